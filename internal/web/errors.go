package web

// errors.go renders every failure as JSON. The technical error is logged
// with the request ID; the client gets the mapped message, action and code
// from core.MapError.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/orderingest/internal/core"
	"github.com/JonMunkholm/orderingest/internal/logging"
)

// Request-level errors. Their text matches the core.MapError patterns.
var (
	ErrFileTooLarge = errors.New("file too large")
	ErrNoFile       = errors.New("no file provided")
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError maps err, logs it and writes the JSON error body. The status
// is derived from the error code.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := core.MapError(err)
	status := statusForCode(msg.Code)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusForCode picks the HTTP status for a core.MapError code.
func statusForCode(code string) int {
	switch code {
	case "FILE001":
		return http.StatusRequestEntityTooLarge
	case "FILE002", "FILE003", "FILE004":
		return http.StatusBadRequest
	case "BATCH001":
		return http.StatusUnprocessableEntity
	case "BATCH002", "DB002", "DB003", "DB004":
		return http.StatusServiceUnavailable
	case "BATCH003", "BATCH004":
		return http.StatusRequestTimeout
	}
	if strings.HasPrefix(code, "DB") {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeJSON encodes v with the given status. Encoding errors are logged only,
// since the header is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}

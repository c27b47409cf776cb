package core

// error_messages.go maps technical errors and rejection reasons to stable
// codes that operators can quote when reporting a failed batch.
//
// Codes are grouped by category:
//
//	DB001-DB099     storage failures (constraint, connection, lock)
//	FILE001-FILE099 upload and CSV decoding problems
//	BATCH001-BATCH099 batch lifecycle (limits, cancellation, caller errors)
//	VAL001-VAL099   per-row rejection reasons
//	ERR000          anything unrecognized
//
// Matching is by case-insensitive substring, first match wins, so more
// specific patterns must come before generic ones such as "timeout".

import (
	"fmt"
	"strings"
)

// UserMessage is a user-facing description of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Storage
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this key was written twice in one batch",
			Action:  "Check the rejected rows for conflicting order_id and item_sku pairs",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "A record with this key was written twice in one batch",
			Action:  "Check the rejected rows for conflicting order_id and item_sku pairs",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database was busy with another batch",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with another batch",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},

	// Files
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller batches",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is comma-separated with a header row",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was provided",
			Action:  "Attach a CSV file in the 'file' form field or as the request body",
			Code:    "FILE003",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file has no header row",
			Action:  "Ensure the first line lists the column names",
			Code:    "FILE004",
		},
	},

	// Batch lifecycle
	{
		pattern: "no recognized columns",
		msg: UserMessage{
			Message: "None of the columns are recognized",
			Action:  "Use column names such as order_id, item_sku, quantity and unit_price",
			Code:    "BATCH001",
		},
	},
	{
		pattern: "too many batches",
		msg: UserMessage{
			Message: "Too many batches are being processed",
			Action:  "Wait for running batches to finish, then retry",
			Code:    "BATCH002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The batch was cancelled before it was committed",
			Action:  "Nothing was written; resubmit the file",
			Code:    "BATCH003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The batch took too long and was abandoned",
			Action:  "Nothing was written; try a smaller file",
			Code:    "BATCH004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "The batch took too long and was abandoned",
			Action:  "Nothing was written; try a smaller file",
			Code:    "BATCH004",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns a zero UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders an error as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError carries the technical error for logs and the mapped message for
// responses.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError wraps err with its mapped message. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}

var reasonCodes = map[string]string{
	ReasonMissingOrderID:    "VAL001",
	ReasonInvalidOrderDate:  "VAL002",
	ReasonShipBeforeOrder:   "VAL003",
	ReasonInvalidQuantity:   "VAL004",
	ReasonNegativeQuantity:  "VAL005",
	ReasonInvalidUnitPrice:  "VAL006",
	ReasonNegativeUnitPrice: "VAL007",
	ReasonMissingCurrency:   "VAL008",
	ReasonMissingItemSKU:    "VAL009",
	ReasonInvalidEmail:      "VAL010",
	ReasonContactMissing:    "VAL011",
	ReasonCustomerMissing:   "VAL012",
	ReasonConflictingKey:    "VAL013",
}

// ReasonCode returns the stable code of a rejection reason, or "VAL000" for
// a reason this version does not know.
func ReasonCode(reason string) string {
	if code, ok := reasonCodes[reason]; ok {
		return code
	}
	return "VAL000"
}

// ReasonCodes maps each reason of a rejected row to its code, in order.
func ReasonCodes(reasons []string) []string {
	codes := make([]string, len(reasons))
	for i, r := range reasons {
		codes[i] = ReasonCode(r)
	}
	return codes
}

// ReasonCatalog returns a copy of the reason-to-code table.
func ReasonCatalog() map[string]string {
	out := make(map[string]string, len(reasonCodes))
	for reason, code := range reasonCodes {
		out[reason] = code
	}
	return out
}

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/orderingest/internal/core"
	"github.com/JonMunkholm/orderingest/internal/source"
)

// multipartMemory is how much of a multipart upload is kept in memory
// before spilling to temp files.
const multipartMemory = 32 << 20

// defaultLabel names batches sent as a raw body without ?label=.
const defaultLabel = "api-upload"

// BatchResponse is the JSON report for one ingested batch.
type BatchResponse struct {
	BatchID    string             `json:"batch_id"`
	Label      string             `json:"label"`
	IngestedAt time.Time          `json:"ingested_at"`
	DurationMS int64              `json:"duration_ms"`
	Stats      core.Stats         `json:"stats"`
	Rejected   []RejectedResponse `json:"rejected"`
}

// RejectedResponse describes one rejected row.
type RejectedResponse struct {
	OrderID *string         `json:"order_id"`
	ItemSKU *string         `json:"item_sku"`
	Reasons []string        `json:"reasons"`
	Codes   []string        `json:"codes"`
	RawRow  json.RawMessage `json:"raw_row"`
}

func newBatchResponse(rep *core.Report) BatchResponse {
	rejected := make([]RejectedResponse, len(rep.Rejected))
	for i, r := range rep.Rejected {
		rejected[i] = RejectedResponse{
			Reasons: r.Reasons,
			Codes:   core.ReasonCodes(r.Reasons),
			RawRow:  json.RawMessage(r.RawJSON),
		}
		if r.OrderID.Valid {
			rejected[i].OrderID = &r.OrderID.String
		}
		if r.ItemSKU.Valid {
			rejected[i].ItemSKU = &r.ItemSKU.String
		}
	}

	return BatchResponse{
		BatchID:    rep.Meta.ID.String(),
		Label:      rep.Meta.SourceLabel,
		IngestedAt: rep.Meta.IngestedAt,
		DurationMS: rep.Duration.Milliseconds(),
		Stats:      rep.Stats,
		Rejected:   rejected,
	}
}

// handleCreateBatch ingests one CSV file sent either as multipart field
// "file" or as the raw request body.
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Ingest.MaxFileSize)

	body, filename, err := uploadBody(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer body.Close()

	label := strings.TrimSpace(r.URL.Query().Get("label"))
	if label == "" {
		label = filename
	}
	if label == "" {
		label = defaultLabel
	}

	slot, err := s.limiter.Acquire(r.Context(), label)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer slot.Release()

	batch, err := source.ReadCSV(body)
	if err != nil {
		respondError(w, r, uploadError(err))
		return
	}

	report, err := s.ingester.Run(r.Context(), label, batch.Rows)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newBatchResponse(report))
}

// uploadBody returns the CSV stream and, for multipart uploads, the client
// file name.
func uploadBody(r *http.Request) (io.ReadCloser, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if r.ContentLength == 0 {
			return nil, "", ErrNoFile
		}
		return r.Body, "", nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, "", uploadError(err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", ErrNoFile
		}
		return nil, "", uploadError(err)
	}
	return file, header.Filename, nil
}

// uploadError turns a body size overrun into ErrFileTooLarge.
func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, maxErr.Limit)
	}
	if strings.Contains(err.Error(), "request body too large") {
		return fmt.Errorf("%w: %v", ErrFileTooLarge, err)
	}
	return err
}

// HealthResponse reports liveness and batch slot occupancy.
type HealthResponse struct {
	Status  string                  `json:"status"`
	Batches core.BatchLimiterStatus `json:"batches"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Batches: s.limiter.Status(),
	})
}

// handleReasonCodes lists every rejection reason with its stable code.
func (s *Server) handleReasonCodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.ReasonCatalog())
}

// clientIP strips the port from r.RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

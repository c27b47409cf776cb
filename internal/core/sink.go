package core

import "context"

// Sink receives the outputs of one batch. Every call is batch-scoped.
type Sink interface {
	// WriteStagingSnapshot stores the unmodified raw batch for audit.
	WriteStagingSnapshot(ctx context.Context, rows []RawRow, meta BatchMeta) error
	// WriteClean stores canonical records.
	WriteClean(ctx context.Context, records []CanonicalRecord, meta BatchMeta) error
	// WriteRejected stores rejected rows with their reasons.
	WriteRejected(ctx context.Context, rows []RejectedRow, meta BatchMeta) error
}

// Store is a Sink provider with a per-batch transactional boundary: all
// writes made through the Sink passed to fn commit together or not at all.
type Store interface {
	WithTx(ctx context.Context, fn func(Sink) error) error
	Close() error
}

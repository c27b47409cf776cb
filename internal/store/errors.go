// Package store persists ingestion batches to PostgreSQL or SQLite.
package store

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailed is returned when the database cannot be reached.
	ErrConnectionFailed = errors.New("database connection failed")

	// ErrMigrationFailed is returned when the schema cannot be created or upgraded.
	ErrMigrationFailed = errors.New("database migration failed")

	// ErrTxFailed is returned when a batch transaction cannot begin or commit.
	ErrTxFailed = errors.New("transaction failed")

	// ErrUnsupportedDriver is returned by Open for an unknown driver name.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// StoreError wraps errors with the operation and table involved.
type StoreError struct {
	Op      string // Operation that failed (e.g., "WriteClean")
	Table   string // Table involved, if any
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Table != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Table, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, table, message string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		Table:   table,
		Message: message,
		Err:     err,
	}
}

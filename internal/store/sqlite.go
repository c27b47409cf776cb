package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/orderingest/internal/core"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements core.Store on a single SQLite file.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens dsn (a file path or ":memory:") and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", sqliteDSN(dsn))
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "failed to open database", ErrConnectionFailed)
	}

	// One connection serializes batches and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "failed to ping database: "+err.Error(), ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// sqliteDSN adds the connection pragmas the pipeline relies on.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WithTx runs fn with a sink bound to one transaction. The transaction
// commits only if fn returns nil.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(core.Sink) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "failed to begin transaction", errors.Join(ErrTxFailed, err))
	}

	if err := fn(&sqliteSink{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", fmt.Sprintf("rollback failed after error: %v", err), errors.Join(ErrTxFailed, rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "failed to commit transaction", errors.Join(ErrTxFailed, err))
	}
	return nil
}

// sqliteSink implements core.Sink within a transaction.
type sqliteSink struct {
	tx *sqlx.Tx
}

func (s *sqliteSink) nextVersion(ctx context.Context, table string) (int64, error) {
	var v int64
	if err := s.tx.GetContext(ctx, &v, nextVersionQuery(table)); err != nil {
		return 0, NewStoreError("nextVersion", table, "failed to read version", err)
	}
	return v, nil
}

// insertAll writes rows through one prepared named statement.
func insertAll[T any](ctx context.Context, tx *sqlx.Tx, op, table, query string, rows []T) error {
	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return NewStoreError(op, table, "failed to prepare insert", err)
	}
	defer stmt.Close()

	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]); err != nil {
			return NewStoreError(op, table, fmt.Sprintf("failed to insert row %d", i+1), err)
		}
	}
	return nil
}

func (s *sqliteSink) WriteStagingSnapshot(ctx context.Context, rows []core.RawRow, meta core.BatchMeta) error {
	if len(rows) == 0 {
		return nil
	}
	version, err := s.nextVersion(ctx, TableStaging)
	if err != nil {
		return err
	}

	bc := newBatchColumns(meta, version)
	staged := make([]stagingRow, len(rows))
	for i, row := range rows {
		staged[i] = stagingRow{RowNumber: i + 1, RawRowJSON: core.RawJSON(row), batchColumns: bc}
	}

	query := insertSQL(TableStaging, stagingColumns, namedPlaceholders(stagingColumns))
	return insertAll(ctx, s.tx, "WriteStagingSnapshot", TableStaging, query, staged)
}

func (s *sqliteSink) WriteClean(ctx context.Context, recs []core.CanonicalRecord, meta core.BatchMeta) error {
	if len(recs) == 0 {
		return nil
	}
	version, err := s.nextVersion(ctx, TableOrders)
	if err != nil {
		return err
	}

	bc := newBatchColumns(meta, version)
	rows := make([]orderRow, len(recs))
	for i, rec := range recs {
		rows[i] = toOrderRow(rec, bc)
	}

	return insertAll(ctx, s.tx, "WriteClean", TableOrders, upsertOrdersSQL(namedPlaceholders(orderColumns)), rows)
}

func (s *sqliteSink) WriteRejected(ctx context.Context, rejected []core.RejectedRow, meta core.BatchMeta) error {
	if len(rejected) == 0 {
		return nil
	}
	version, err := s.nextVersion(ctx, TableRejected)
	if err != nil {
		return err
	}

	bc := newBatchColumns(meta, version)
	rows := make([]rejectedRow, len(rejected))
	for i, r := range rejected {
		rows[i] = toRejectedRow(r, bc)
	}

	query := insertSQL(TableRejected, rejectedColumns, namedPlaceholders(rejectedColumns))
	return insertAll(ctx, s.tx, "WriteRejected", TableRejected, query, rows)
}

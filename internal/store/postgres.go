package store

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/orderingest/internal/config"
	"github.com/JonMunkholm/orderingest/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresSchema is applied at open. Every statement is idempotent.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS orders_staging (
    id            BIGSERIAL PRIMARY KEY,
    row_number    INTEGER     NOT NULL,
    raw_row_json  JSONB       NOT NULL,
    batch_id      UUID        NOT NULL,
    source_file   TEXT        NOT NULL,
    ingested_at   TIMESTAMPTZ NOT NULL,
    version       BIGINT      NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_staging_batch ON orders_staging (batch_id);

CREATE TABLE IF NOT EXISTS orders (
    order_id      BIGINT      NOT NULL,
    customer_id   TEXT,
    customer_name TEXT,
    email         TEXT,
    phone         TEXT,
    country       TEXT,
    state         TEXT,
    city          TEXT,
    address       TEXT,
    postal_code   TEXT,
    order_date    DATE,
    ship_date     DATE,
    ship_mode     TEXT,
    item_sku      TEXT        NOT NULL,
    item_name     TEXT,
    quantity      BIGINT,
    unit_price    NUMERIC,
    currency      TEXT,
    discount_code TEXT,
    order_notes   TEXT,
    batch_id      UUID        NOT NULL,
    source_file   TEXT        NOT NULL,
    ingested_at   TIMESTAMPTZ NOT NULL,
    version       BIGINT      NOT NULL,
    PRIMARY KEY (order_id, item_sku)
);

CREATE TABLE IF NOT EXISTS orders_bad (
    id            BIGSERIAL PRIMARY KEY,
    order_id      TEXT,
    item_sku      TEXT,
    error_reasons TEXT        NOT NULL,
    raw_row_json  JSONB       NOT NULL,
    batch_id      UUID        NOT NULL,
    source_file   TEXT        NOT NULL,
    ingested_at   TIMESTAMPTZ NOT NULL,
    version       BIGINT      NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_bad_batch ON orders_bad (batch_id);
`

// PostgresStore implements core.Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects using cfg and ensures the schema exists.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, NewStoreError("NewPostgresStore", "", "failed to parse database URL", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, NewStoreError("NewPostgresStore", "", err.Error(), ErrConnectionFailed)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, NewStoreError("NewPostgresStore", "", "failed to ping database: "+err.Error(), ErrConnectionFailed)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, NewStoreError("NewPostgresStore", "", err.Error(), ErrMigrationFailed)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// WithTx runs fn with a sink bound to one transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(core.Sink) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return NewStoreError("WithTx", "", "failed to begin transaction: "+err.Error(), ErrTxFailed)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if err := fn(&pgSink{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return NewStoreError("WithTx", "", "failed to commit transaction: "+err.Error(), ErrTxFailed)
	}
	return nil
}

// pgSink implements core.Sink within a transaction.
type pgSink struct {
	tx pgx.Tx
}

// nextVersion serializes batches per table with a transaction-scoped
// advisory lock, then reads 1 + MAX(version).
func (s *pgSink) nextVersion(ctx context.Context, table string) (int64, error) {
	if _, err := s.tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", table); err != nil {
		return 0, NewStoreError("nextVersion", table, "failed to lock table version", err)
	}

	var v int64
	if err := s.tx.QueryRow(ctx, nextVersionQuery(table)).Scan(&v); err != nil {
		return 0, NewStoreError("nextVersion", table, "failed to read version", err)
	}
	return v, nil
}

// batchValues returns the trailing batch columns in pgx types.
func batchValues(meta core.BatchMeta, version int64) []any {
	return []any{
		pgtype.UUID{Bytes: meta.ID, Valid: true},
		meta.SourceLabel,
		pgtype.Timestamptz{Time: meta.IngestedAt.UTC(), Valid: true},
		version,
	}
}

func (s *pgSink) copyRows(ctx context.Context, op, table string, cols []string, rows [][]any) error {
	n, err := s.tx.CopyFrom(ctx, pgx.Identifier{table}, cols, pgx.CopyFromRows(rows))
	if err != nil {
		return NewStoreError(op, table, "copy failed", err)
	}
	if int(n) != len(rows) {
		return NewStoreError(op, table, fmt.Sprintf("copied %d of %d rows", n, len(rows)), nil)
	}
	return nil
}

func (s *pgSink) WriteStagingSnapshot(ctx context.Context, rows []core.RawRow, meta core.BatchMeta) error {
	if len(rows) == 0 {
		return nil
	}
	version, err := s.nextVersion(ctx, TableStaging)
	if err != nil {
		return err
	}

	bv := batchValues(meta, version)
	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = append([]any{int32(i + 1), core.RawJSON(row)}, bv...)
	}
	return s.copyRows(ctx, "WriteStagingSnapshot", TableStaging, stagingColumns, values)
}

func (s *pgSink) WriteClean(ctx context.Context, recs []core.CanonicalRecord, meta core.BatchMeta) error {
	if len(recs) == 0 {
		return nil
	}
	version, err := s.nextVersion(ctx, TableOrders)
	if err != nil {
		return err
	}

	query := upsertOrdersSQL(positionalPlaceholders(len(orderColumns)))
	bv := batchValues(meta, version)

	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(query, append(recordValues(rec), bv...)...)
	}

	br := s.tx.SendBatch(ctx, batch)
	for i := range recs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return NewStoreError("WriteClean", TableOrders, fmt.Sprintf("failed to upsert record %d", i+1), err)
		}
	}
	if err := br.Close(); err != nil {
		return NewStoreError("WriteClean", TableOrders, "batch close failed", err)
	}
	return nil
}

func (s *pgSink) WriteRejected(ctx context.Context, rejected []core.RejectedRow, meta core.BatchMeta) error {
	if len(rejected) == 0 {
		return nil
	}
	version, err := s.nextVersion(ctx, TableRejected)
	if err != nil {
		return err
	}

	bv := batchValues(meta, version)
	values := make([][]any, len(rejected))
	for i, r := range rejected {
		values[i] = append([]any{r.OrderID, r.ItemSKU, r.ReasonText(), r.RawJSON}, bv...)
	}
	return s.copyRows(ctx, "WriteRejected", TableRejected, rejectedColumns, values)
}

// recordValues lists a clean record in orderColumns order, without the
// batch columns.
func recordValues(rec core.CanonicalRecord) []any {
	price := pgtype.Numeric{}
	if rec.UnitPrice.Valid {
		d := rec.UnitPrice.Decimal
		price = pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
	}

	return []any{
		rec.OrderID, rec.CustomerID, rec.CustomerName, rec.Email, rec.Phone,
		rec.Country, rec.State, rec.City, rec.Address, rec.PostalCode,
		rec.OrderDate, rec.ShipDate, rec.ShipMode,
		rec.ItemSKU, rec.ItemName, rec.Quantity, price, rec.Currency,
		rec.DiscountCode, rec.OrderNotes,
	}
}

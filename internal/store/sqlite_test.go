package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/orderingest/internal/config"
	"github.com/JonMunkholm/orderingest/internal/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func testMeta(label string) core.BatchMeta {
	return core.BatchMeta{
		ID:          uuid.New(),
		SourceLabel: label,
		IngestedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func orderRows(header []string, rows ...[]string) []core.RawRow {
	out := make([]core.RawRow, len(rows))
	for i, r := range rows {
		out[i] = core.NewRawRow(header, r)
	}
	return out
}

var testHeader = []string{
	core.ColOrderID, core.ColCustomerName, core.ColEmail, core.ColOrderDate,
	core.ColItemSKU, core.ColQuantity, core.ColUnitPrice, core.ColCurrency,
}

func count(t *testing.T, s *SQLiteStore, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func selectOrders(t *testing.T, s *SQLiteStore) []orderRow {
	t.Helper()
	var rows []orderRow
	err := s.db.Select(&rows, "SELECT "+strings.Join(orderColumns, ", ")+" FROM orders ORDER BY order_id, item_sku")
	require.NoError(t, err)
	return rows
}

// =============================================================================
// Ingestion
// =============================================================================

func TestSQLiteStore_IngestBatch(t *testing.T) {
	store := setupTestStore(t)
	in := core.NewIngester(store, 2)

	rows := orderRows(testHeader,
		[]string{"1", "Ada", "ada@example.com", "2024-03-15", "A", "2", "$10.50", ""},
		[]string{"1", "Ada", "ada@example.com", "2024-03-15", "A", "2", "$10.50", ""},
		[]string{"2", "Bob", "bob@example.com", "03/16/2024", "B", "three", "149,99", "eur"},
		[]string{"3", "Cy", "not-an-email", "2024-03-17", "C", "1", "5", "USD"},
	)

	report, err := in.Run(context.Background(), "orders.csv", rows)
	require.NoError(t, err)
	assert.Equal(t, core.Stats{Read: 4, ExactDuplicates: 1, Clean: 2, Rejected: 1}, report.Stats)

	assert.Equal(t, 4, count(t, store, TableStaging))
	assert.Equal(t, 2, count(t, store, TableOrders))
	assert.Equal(t, 1, count(t, store, TableRejected))

	orders := selectOrders(t, store)
	require.Len(t, orders, 2)

	first := orders[0]
	assert.Equal(t, int64(1), *first.OrderID)
	assert.Equal(t, "10.5", *first.UnitPrice)
	assert.Equal(t, "USD", *first.Currency)
	assert.Equal(t, "2024-03-15", *first.OrderDate)
	assert.Nil(t, first.ShipDate)
	assert.Equal(t, report.Meta.ID.String(), first.BatchID)
	assert.Equal(t, "orders.csv", first.SourceFile)
	assert.Equal(t, int64(1), first.Version)

	second := orders[1]
	assert.Equal(t, "149.99", *second.UnitPrice)
	assert.Equal(t, "EUR", *second.Currency)
	assert.Equal(t, int64(3), *second.Quantity)
	assert.Equal(t, "2024-03-16", *second.OrderDate)

	var bad rejectedRow
	require.NoError(t, store.db.Get(&bad, "SELECT "+strings.Join(rejectedColumns, ", ")+" FROM orders_bad"))
	assert.Equal(t, "3", *bad.OrderID)
	assert.Equal(t, core.ReasonInvalidEmail, bad.ErrorReasons)
	assert.Contains(t, bad.RawRowJSON, `"email": "not-an-email"`)
}

func TestSQLiteStore_VersionIncrementsAndUpserts(t *testing.T) {
	store := setupTestStore(t)
	in := core.NewIngester(store, 0)
	ctx := context.Background()

	_, err := in.Run(ctx, "day1.csv", orderRows(testHeader,
		[]string{"1", "Ada", "ada@example.com", "2024-03-15", "A", "2", "10", "USD"},
	))
	require.NoError(t, err)

	_, err = in.Run(ctx, "day2.csv", orderRows(testHeader,
		[]string{"1", "Ada", "ada@example.com", "2024-03-15", "A", "5", "12", "USD"},
	))
	require.NoError(t, err)

	orders := selectOrders(t, store)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(5), *orders[0].Quantity)
	assert.Equal(t, "12", *orders[0].UnitPrice)
	assert.Equal(t, "day2.csv", orders[0].SourceFile)
	assert.Equal(t, int64(2), orders[0].Version)

	var versions []int64
	require.NoError(t, store.db.Select(&versions, "SELECT DISTINCT version FROM orders_staging ORDER BY version"))
	assert.Equal(t, []int64{1, 2}, versions)
}

func TestSQLiteStore_EmptyWritesAreNoOps(t *testing.T) {
	store := setupTestStore(t)

	err := store.WithTx(context.Background(), func(sink core.Sink) error {
		meta := testMeta("empty.csv")
		require.NoError(t, sink.WriteStagingSnapshot(context.Background(), nil, meta))
		require.NoError(t, sink.WriteClean(context.Background(), nil, meta))
		return sink.WriteRejected(context.Background(), nil, meta)
	})
	require.NoError(t, err)

	assert.Zero(t, count(t, store, TableStaging))
	assert.Zero(t, count(t, store, TableOrders))
	assert.Zero(t, count(t, store, TableRejected))
}

func TestSQLiteStore_WithTxRollsBack(t *testing.T) {
	store := setupTestStore(t)
	boom := errors.New("boom")
	ctx := context.Background()

	err := store.WithTx(ctx, func(sink core.Sink) error {
		rows := orderRows(testHeader, []string{"1", "Ada", "", "", "A", "", "", ""})
		require.NoError(t, sink.WriteStagingSnapshot(ctx, rows, testMeta("x.csv")))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Zero(t, count(t, store, TableStaging))
}

func TestSQLiteStore_CancelledContext(t *testing.T) {
	store := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.WithTx(ctx, func(core.Sink) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTxFailed)
}

// =============================================================================
// Helpers and errors
// =============================================================================

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql", URL: "x"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestOpen_SQLite(t *testing.T) {
	s, err := Open(context.Background(), config.DatabaseConfig{Driver: config.DriverSQLite, URL: ":memory:"})
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestStoreError(t *testing.T) {
	inner := errors.New("UNIQUE constraint failed")
	err := NewStoreError("WriteClean", TableOrders, "failed to insert row 2", inner)

	assert.Equal(t, "WriteClean orders: failed to insert row 2: UNIQUE constraint failed", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "Open: driver \"x\"", NewStoreError("Open", "", `driver "x"`, nil).Error())
}

func TestUpsertOrdersSQL(t *testing.T) {
	q := upsertOrdersSQL(namedPlaceholders(orderColumns))

	assert.True(t, strings.HasPrefix(q, "INSERT INTO orders (order_id, customer_id,"))
	assert.Contains(t, q, "ON CONFLICT (order_id, item_sku) DO UPDATE SET customer_id = excluded.customer_id")
	assert.Contains(t, q, "version = excluded.version")
	assert.NotContains(t, q, "order_id = excluded")
	assert.NotContains(t, q, "item_sku = excluded")
}

func TestPositionalPlaceholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", positionalPlaceholders(3))
	assert.Equal(t, ":a, :b", namedPlaceholders([]string{"a", "b"}))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "orders.db?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", sqliteDSN("orders.db"))
	assert.True(t, strings.HasPrefix(sqliteDSN("file:x.db?cache=shared"), "file:x.db?cache=shared&"))
}

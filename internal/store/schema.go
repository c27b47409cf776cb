package store

import (
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/orderingest/internal/core"
)

// Table names shared by both sinks.
const (
	TableStaging  = "orders_staging"
	TableOrders   = "orders"
	TableRejected = "orders_bad"
)

// Columns in insert order. The batch columns come last in every table.
var (
	stagingColumns = []string{
		"row_number", "raw_row_json",
		"batch_id", "source_file", "ingested_at", "version",
	}

	orderColumns = []string{
		"order_id", "customer_id", "customer_name", "email", "phone",
		"country", "state", "city", "address", "postal_code",
		"order_date", "ship_date", "ship_mode",
		"item_sku", "item_name", "quantity", "unit_price", "currency",
		"discount_code", "order_notes",
		"batch_id", "source_file", "ingested_at", "version",
	}

	rejectedColumns = []string{
		"order_id", "item_sku", "error_reasons", "raw_row_json",
		"batch_id", "source_file", "ingested_at", "version",
	}
)

// orderRow is the flat form of a clean record as stored in SQLite.
// Dates are ISO strings and prices keep their exact decimal text.
type orderRow struct {
	OrderID      *int64  `db:"order_id"`
	CustomerID   *string `db:"customer_id"`
	CustomerName *string `db:"customer_name"`
	Email        *string `db:"email"`
	Phone        *string `db:"phone"`
	Country      *string `db:"country"`
	State        *string `db:"state"`
	City         *string `db:"city"`
	Address      *string `db:"address"`
	PostalCode   *string `db:"postal_code"`
	OrderDate    *string `db:"order_date"`
	ShipDate     *string `db:"ship_date"`
	ShipMode     *string `db:"ship_mode"`
	ItemSKU      *string `db:"item_sku"`
	ItemName     *string `db:"item_name"`
	Quantity     *int64  `db:"quantity"`
	UnitPrice    *string `db:"unit_price"`
	Currency     *string `db:"currency"`
	DiscountCode *string `db:"discount_code"`
	OrderNotes   *string `db:"order_notes"`
	batchColumns
}

type stagingRow struct {
	RowNumber  int    `db:"row_number"`
	RawRowJSON string `db:"raw_row_json"`
	batchColumns
}

type rejectedRow struct {
	OrderID      *string `db:"order_id"`
	ItemSKU      *string `db:"item_sku"`
	ErrorReasons string  `db:"error_reasons"`
	RawRowJSON   string  `db:"raw_row_json"`
	batchColumns
}

type batchColumns struct {
	BatchID    string `db:"batch_id"`
	SourceFile string `db:"source_file"`
	IngestedAt string `db:"ingested_at"`
	Version    int64  `db:"version"`
}

func newBatchColumns(meta core.BatchMeta, version int64) batchColumns {
	return batchColumns{
		BatchID:    meta.ID.String(),
		SourceFile: meta.SourceLabel,
		IngestedAt: meta.IngestedAt.UTC().Format(time.RFC3339),
		Version:    version,
	}
}

func toOrderRow(rec core.CanonicalRecord, bc batchColumns) orderRow {
	row := orderRow{
		CustomerID:   textPtr(rec.CustomerID.String, rec.CustomerID.Valid),
		CustomerName: textPtr(rec.CustomerName.String, rec.CustomerName.Valid),
		Email:        textPtr(rec.Email.String, rec.Email.Valid),
		Phone:        textPtr(rec.Phone.String, rec.Phone.Valid),
		Country:      textPtr(rec.Country.String, rec.Country.Valid),
		State:        textPtr(rec.State.String, rec.State.Valid),
		City:         textPtr(rec.City.String, rec.City.Valid),
		Address:      textPtr(rec.Address.String, rec.Address.Valid),
		PostalCode:   textPtr(rec.PostalCode.String, rec.PostalCode.Valid),
		OrderDate:    textPtr(core.FormatDate(rec.OrderDate), rec.OrderDate.Valid),
		ShipDate:     textPtr(core.FormatDate(rec.ShipDate), rec.ShipDate.Valid),
		ShipMode:     textPtr(rec.ShipMode.String, rec.ShipMode.Valid),
		ItemSKU:      textPtr(rec.ItemSKU.String, rec.ItemSKU.Valid),
		ItemName:     textPtr(rec.ItemName.String, rec.ItemName.Valid),
		Currency:     textPtr(rec.Currency.String, rec.Currency.Valid),
		DiscountCode: textPtr(rec.DiscountCode.String, rec.DiscountCode.Valid),
		OrderNotes:   textPtr(rec.OrderNotes.String, rec.OrderNotes.Valid),
		batchColumns: bc,
	}
	if rec.OrderID.Valid {
		row.OrderID = &rec.OrderID.Int64
	}
	if rec.Quantity.Valid {
		row.Quantity = &rec.Quantity.Int64
	}
	if rec.UnitPrice.Valid {
		s := rec.UnitPrice.Decimal.String()
		row.UnitPrice = &s
	}
	return row
}

func toRejectedRow(r core.RejectedRow, bc batchColumns) rejectedRow {
	return rejectedRow{
		OrderID:      textPtr(r.OrderID.String, r.OrderID.Valid),
		ItemSKU:      textPtr(r.ItemSKU.String, r.ItemSKU.Valid),
		ErrorReasons: r.ReasonText(),
		RawRowJSON:   r.RawJSON,
		batchColumns: bc,
	}
}

func textPtr(s string, valid bool) *string {
	if !valid {
		return nil
	}
	return &s
}

// nextVersionQuery returns the statement computing 1 + MAX(version) of table.
// table is always one of the constants above.
func nextVersionQuery(table string) string {
	return "SELECT COALESCE(MAX(version), 0) + 1 FROM " + table
}

// namedPlaceholders renders ":a, :b, ..." for sqlx named statements.
func namedPlaceholders(cols []string) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = ":" + c
	}
	return strings.Join(names, ", ")
}

// positionalPlaceholders renders "$1, $2, ..." for PostgreSQL.
func positionalPlaceholders(n int) string {
	params := make([]string, n)
	for i := range params {
		params[i] = "$" + strconv.Itoa(i+1)
	}
	return strings.Join(params, ", ")
}

// insertSQL builds an INSERT for table with the given value list.
func insertSQL(table string, cols []string, values string) string {
	return "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + values + ")"
}

// upsertOrdersSQL inserts a clean record, replacing every non-key column of
// an existing (order_id, item_sku) row.
func upsertOrdersSQL(values string) string {
	var set []string
	for _, c := range orderColumns {
		if c == "order_id" || c == "item_sku" {
			continue
		}
		set = append(set, c+" = excluded."+c)
	}
	return insertSQL(TableOrders, orderColumns, values) +
		" ON CONFLICT (order_id, item_sku) DO UPDATE SET " + strings.Join(set, ", ")
}

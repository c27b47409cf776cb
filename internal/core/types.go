package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Column names recognized in a raw row. Source headers are expected to be
// lower-cased and underscore-joined already.
const (
	ColOrderID      = "order_id"
	ColCustomerID   = "customer_id"
	ColCustomerName = "customer_name"
	ColEmail        = "email"
	ColPhone        = "phone"
	ColCountry      = "country"
	ColState        = "state"
	ColCity         = "city"
	ColAddress      = "address"
	ColPostalCode   = "postal_code"
	ColOrderDate    = "order_date"
	ColShipDate     = "ship_date"
	ColShipMode     = "ship_mode"
	ColItemSKU      = "item_sku"
	ColItemName     = "item_name"
	ColQuantity     = "quantity"
	ColUnitPrice    = "unit_price"
	ColCurrency     = "currency"
	ColDiscountCode = "discount_code"
	ColOrderNotes   = "order_notes"
)

// KnownColumns lists every column the canonicalizer reads, in canonical order.
var KnownColumns = []string{
	ColOrderID, ColCustomerID, ColCustomerName, ColEmail, ColPhone,
	ColCountry, ColState, ColCity, ColAddress, ColPostalCode,
	ColOrderDate, ColShipDate, ColShipMode,
	ColItemSKU, ColItemName, ColQuantity, ColUnitPrice, ColCurrency,
	ColDiscountCode, ColOrderNotes,
}

var knownColumnSet = func() map[string]bool {
	m := make(map[string]bool, len(KnownColumns))
	for _, c := range KnownColumns {
		m[c] = true
	}
	return m
}()

// RawField is one column of a raw input row. Valid is false when the source
// resolved the cell to absent.
type RawField struct {
	Name  string
	Value string
	Valid bool
}

// RawRow is an ordered mapping of column name to raw string (or absent).
// Rows are never mutated once produced by a source.
type RawRow struct {
	Fields []RawField
}

// NewRawRow builds a row from parallel header/value slices. Empty values are
// stored as absent.
func NewRawRow(header []string, values []string) RawRow {
	fields := make([]RawField, len(header))
	for i, name := range header {
		fields[i].Name = name
		if i < len(values) && values[i] != "" {
			fields[i].Value = values[i]
			fields[i].Valid = true
		}
	}
	return RawRow{Fields: fields}
}

// Get returns the raw value of a column and whether it is present.
func (r RawRow) Get(col string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == col {
			return f.Value, f.Valid
		}
	}
	return "", false
}

// hasKnownColumn reports whether at least one column name is recognized.
func (r RawRow) hasKnownColumn() bool {
	for _, f := range r.Fields {
		if knownColumnSet[f.Name] {
			return true
		}
	}
	return false
}

// CanonicalRecord is the fully typed, normalized representation of one
// order-item row. Text fields are never Valid with an empty string.
type CanonicalRecord struct {
	OrderID      pgtype.Int8
	CustomerID   pgtype.Text
	CustomerName pgtype.Text
	Email        pgtype.Text
	Phone        pgtype.Text
	Country      pgtype.Text
	State        pgtype.Text
	City         pgtype.Text
	Address      pgtype.Text
	PostalCode   pgtype.Text
	OrderDate    pgtype.Date
	ShipDate     pgtype.Date
	ShipMode     pgtype.Text
	ItemSKU      pgtype.Text
	ItemName     pgtype.Text
	Quantity     pgtype.Int8
	UnitPrice    decimal.NullDecimal
	Currency     pgtype.Text
	DiscountCode pgtype.Text
	OrderNotes   pgtype.Text
}

// ValidationOutcome pairs a canonical record with its violation reasons.
// An empty Reasons slice means the record is clean.
type ValidationOutcome struct {
	Record  CanonicalRecord
	Reasons []string
}

// Clean reports whether the outcome carries no violations.
func (o ValidationOutcome) Clean() bool {
	return len(o.Reasons) == 0
}

// RejectedRow is a row routed to the rejected stream.
// OrderID and ItemSKU carry the raw text, not the canonical values.
type RejectedRow struct {
	OrderID pgtype.Text
	ItemSKU pgtype.Text
	Reasons []string
	RawJSON string
}

// ReasonText joins all reasons the way they are stored downstream.
func (r RejectedRow) ReasonText() string {
	return JoinReasons(r.Reasons)
}

// Stats are the batch counters. They always reconcile:
// Read == ExactDuplicates + Clean + Rejected and Rejected >= ConflictingDuplicates.
type Stats struct {
	Read                  int `json:"read"`
	ExactDuplicates       int `json:"exact_duplicates_dropped"`
	ConflictingDuplicates int `json:"conflicting_duplicates"`
	Clean                 int `json:"clean"`
	Rejected              int `json:"rejected"`
}

// Reconciles reports whether the counters satisfy the batch invariants.
func (s Stats) Reconciles() bool {
	return s.Read == s.ExactDuplicates+s.Clean+s.Rejected &&
		s.Rejected >= s.ConflictingDuplicates
}

// BatchResult holds the two output streams of one processed batch.
type BatchResult struct {
	Clean    []CanonicalRecord
	Rejected []RejectedRow
	Stats    Stats
}

// BatchMeta identifies one ingestion run for the sink.
type BatchMeta struct {
	ID          uuid.UUID
	SourceLabel string
	IngestedAt  time.Time
}

// Report is the outcome of one Ingester run.
type Report struct {
	Meta     BatchMeta
	Stats    Stats
	Rejected []RejectedRow
	Duration time.Duration
}

func textOrNull(s string, valid bool) pgtype.Text {
	if !valid {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

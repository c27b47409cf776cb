package core

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText applies Unicode NFKC normalization, trims the value and
// collapses internal whitespace runs to single spaces.
func NormalizeText(s string) string {
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// ToText converts a raw string to normalized text.
// Returns invalid if nothing is left after normalization.
func ToText(s string) pgtype.Text {
	s = NormalizeText(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// Canonicalize maps one raw row to one canonical record.
// It never rejects: unparseable fields come back invalid for the validator
// to report.
func Canonicalize(row RawRow) CanonicalRecord {
	get := func(col string) string {
		v, _ := row.Get(col)
		return v
	}

	country := ToText(strings.ToUpper(get(ColCountry)))
	price, currency := ParsePrice(get(ColUnitPrice), get(ColCurrency))

	return CanonicalRecord{
		OrderID:      ParseOrderID(get(ColOrderID)),
		CustomerID:   ToText(get(ColCustomerID)),
		CustomerName: ToText(get(ColCustomerName)),
		Email:        ToText(get(ColEmail)),
		Phone:        NormalizePhone(get(ColPhone), country.String),
		Country:      country,
		State:        ToText(get(ColState)),
		City:         ToText(get(ColCity)),
		Address:      ToText(get(ColAddress)),
		PostalCode:   ToText(get(ColPostalCode)),
		OrderDate:    ParseDate(get(ColOrderDate)),
		ShipDate:     ParseDate(get(ColShipDate)),
		ShipMode:     ToText(get(ColShipMode)),
		ItemSKU:      ToText(get(ColItemSKU)),
		ItemName:     ToText(get(ColItemName)),
		Quantity:     ParseQuantity(get(ColQuantity)),
		UnitPrice:    price,
		Currency:     currency,
		DiscountCode: ToText(get(ColDiscountCode)),
		OrderNotes:   ToText(get(ColOrderNotes)),
	}
}

// RawJSON serializes a raw row as a JSON object preserving column order.
// Absent values are written as null.
func RawJSON(row RawRow) string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range row.Fields {
		if i > 0 {
			buf.WriteString(", ")
		}
		writeJSONString(&buf, f.Name)
		buf.WriteString(": ")
		if f.Valid {
			writeJSONString(&buf, f.Value)
		} else {
			buf.WriteString("null")
		}
	}
	buf.WriteByte('}')
	return buf.String()
}

func writeJSONString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	// Encode cannot fail for a string; it appends a newline we drop.
	_ = enc.Encode(s)
	buf.Truncate(buf.Len() - 1)
}

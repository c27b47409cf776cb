package core

// validation.go provides the business rules applied to a canonical record.
//
// Rules are evaluated independently and in a fixed order, so a record reports
// every violation it has, not just the first. Reason strings are stored and
// reported verbatim downstream; do not reword them.

import (
	"regexp"
	"strings"
)

// Violation reasons reported by Validate and the duplicate resolver.
const (
	ReasonMissingOrderID    = "missing order_id"
	ReasonInvalidOrderDate  = "invalid order_date"
	ReasonShipBeforeOrder   = "ship_date earlier than order_date"
	ReasonInvalidQuantity   = "invalid quantity"
	ReasonNegativeQuantity  = "negative quantity"
	ReasonInvalidUnitPrice  = "invalid unit_price"
	ReasonNegativeUnitPrice = "negative unit_price"
	ReasonMissingCurrency   = "missing currency"
	ReasonMissingItemSKU    = "missing item_sku"
	ReasonInvalidEmail      = "invalid email"
	ReasonContactMissing    = "Contact info Missing"
	ReasonCustomerMissing   = "Customer info Missing"
	ReasonConflictingKey    = "conflicting duplicate key (order_id, item_sku)"
)

// ReasonSeparator joins multiple reasons into the stored error_reasons text.
const ReasonSeparator = "; "

var emailRegex = regexp.MustCompile(`(?i)^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// rule inspects one aspect of a record and returns a reason or "".
type rule func(rec *CanonicalRecord) string

var rules = []rule{
	func(rec *CanonicalRecord) string {
		if !rec.OrderID.Valid {
			return ReasonMissingOrderID
		}
		return ""
	},
	func(rec *CanonicalRecord) string {
		if !rec.OrderDate.Valid {
			return ReasonInvalidOrderDate
		}
		return ""
	},
	func(rec *CanonicalRecord) string {
		if rec.OrderDate.Valid && rec.ShipDate.Valid && rec.ShipDate.Time.Before(rec.OrderDate.Time) {
			return ReasonShipBeforeOrder
		}
		return ""
	},
	func(rec *CanonicalRecord) string {
		switch {
		case !rec.Quantity.Valid:
			return ReasonInvalidQuantity
		case rec.Quantity.Int64 < 0:
			return ReasonNegativeQuantity
		}
		return ""
	},
	func(rec *CanonicalRecord) string {
		switch {
		case !rec.UnitPrice.Valid:
			return ReasonInvalidUnitPrice
		case rec.UnitPrice.Decimal.IsNegative():
			return ReasonNegativeUnitPrice
		}
		return ""
	},
	func(rec *CanonicalRecord) string {
		if !rec.Currency.Valid || rec.Currency.String == "" {
			return ReasonMissingCurrency
		}
		return ""
	},
	func(rec *CanonicalRecord) string {
		if !rec.ItemSKU.Valid || rec.ItemSKU.String == "" {
			return ReasonMissingItemSKU
		}
		return ""
	},
	func(rec *CanonicalRecord) string {
		if rec.Email.Valid && !emailRegex.MatchString(rec.Email.String) {
			return ReasonInvalidEmail
		}
		return ""
	},
	func(rec *CanonicalRecord) string {
		if !rec.Email.Valid && !rec.Phone.Valid && !rec.Address.Valid {
			return ReasonContactMissing
		}
		return ""
	},
	func(rec *CanonicalRecord) string {
		if !rec.CustomerID.Valid && !rec.CustomerName.Valid {
			return ReasonCustomerMissing
		}
		return ""
	},
}

// Validate applies every business rule to a record and returns the
// violations in rule order. A nil slice means the record is clean.
func Validate(rec CanonicalRecord) []string {
	var reasons []string
	for _, r := range rules {
		if reason := r(&rec); reason != "" {
			reasons = append(reasons, reason)
		}
	}
	return reasons
}

// ValidateRow canonicalizes and validates one raw row.
func ValidateRow(row RawRow) ValidationOutcome {
	rec := Canonicalize(row)
	return ValidationOutcome{Record: rec, Reasons: Validate(rec)}
}

// JoinReasons concatenates reasons into the stored error_reasons form.
func JoinReasons(reasons []string) string {
	return strings.Join(reasons, ReasonSeparator)
}

package core

// convert.go provides the field parsers that turn one raw CSV cell into one
// typed value.
//
// These functions handle the messy reality of free-text order exports:
//   - Many date formats (ISO, ISO with offsets, US, day-first)
//   - Phone numbers with punctuation and optional country calling codes
//   - Quantities written as words ("three")
//   - Prices with currency symbols, ISO codes and US or European separators
//
// Every parser is pure. Unparseable input yields a value with Valid=false,
// never an error.

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// TwoDigitYearWindow is how far (in years) a 2-digit year may resolve from the
// current year. "70" read in 2026 resolves to 2070, "80" to 1980.
var TwoDigitYearWindow = 50

// flexibleDateLayouts are tried first. Numeric day/month forms here are always
// month-first; day-first strings only parse once the month-first reading is
// impossible (day > 12) through DateLayouts below.
//
// A trailing zone abbreviation ("UTC", "CET") uses the offset the local zone
// database knows for it and is otherwise read as UTC.
var flexibleDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2T15:04:05Z07:00",
	"2006-1-2T15:04:05",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04:05 MST",
	"2006-1-2T15:04:05 MST",
	"2006-1-2",
	"2006/01/02",
	"2006.01.02",
	"20060102",
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1-2-2006",
	"1.2.2006",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	time.RFC1123Z,
}

// DateLayouts is the explicit fallback list, tried in order after the
// flexible layouts.
var DateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"1/2/2006",
	"2-1-2006",
	"1/2/06",
	"2/1/2006",
	"2/1/06",
}

var (
	phoneKeepRegex     = regexp.MustCompile(`[^0-9+]`)
	quantityRegex      = regexp.MustCompile(`^-?[0-9]+$`)
	isoCurrencyRegex   = regexp.MustCompile(`\b([A-Z]{3})\b`)
	currencyTokenRegex = regexp.MustCompile(`(?i)[a-z]{3}`)
	commaDecimalRegex  = regexp.MustCompile(`[0-9]+,[0-9]{2}\b`)
	amountJunkRegex    = regexp.MustCompile(`[^0-9.\-]`)
	amountRegex        = regexp.MustCompile(`^-?([0-9]+\.?[0-9]*|\.[0-9]+)$`)
)

// ParseDate converts a date string to a calendar date in UTC.
// Values carrying an offset are converted to UTC before the time of day is
// discarded; values without one are taken as UTC already.
func ParseDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	for _, layout := range flexibleDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOf(resolveTwoDigitYear(layout, t))
		}
	}

	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOf(resolveTwoDigitYear(layout, t))
		}
	}

	return pgtype.Date{Valid: false}
}

// FormatDate renders a date in ISO form, or "" when invalid.
func FormatDate(d pgtype.Date) string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format("2006-01-02")
}

func dateOf(t time.Time) pgtype.Date {
	u := t.UTC()
	return pgtype.Date{
		Time:  time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC),
		Valid: true,
	}
}

// resolveTwoDigitYear moves a 2-digit year into the window around the
// current year. Layouts with a 4-digit year are left untouched.
func resolveTwoDigitYear(layout string, t time.Time) time.Time {
	if strings.Contains(layout, "2006") || !strings.Contains(layout, "06") {
		return t
	}
	current := time.Now().Year()
	switch {
	case t.Year() >= current+TwoDigitYearWindow:
		return t.AddDate(-100, 0, 0)
	case t.Year() < current-TwoDigitYearWindow:
		return t.AddDate(100, 0, 0)
	}
	return t
}

// NormalizePhone reduces a phone number to digits with an international
// calling code when one can be determined.
//
// A value that already starts with '+' and has at least 8 digits is returned
// as-is. Otherwise the country's calling code is prepended to the national
// digits (leading zeros removed). Without a known country the bare digits are
// returned.
func NormalizePhone(raw, country string) pgtype.Text {
	if raw == "" {
		return pgtype.Text{Valid: false}
	}

	kept := phoneKeepRegex.ReplaceAllString(asciiDigits(raw), "")
	national := digitsOnly(kept)

	if strings.HasPrefix(kept, "+") && len(national) >= 8 {
		return pgtype.Text{String: kept, Valid: true}
	}

	if code, ok := CallingCode(country); ok && national != "" {
		return pgtype.Text{String: code + strings.TrimLeft(national, "0"), Valid: true}
	}

	if national == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: national, Valid: true}
}

// ParseQuantity converts a quantity to an integer. The words "zero" through
// "ten" are accepted; anything else must be an optionally negative integer.
func ParseQuantity(s string) pgtype.Int8 {
	q := asciiDigits(strings.ToLower(strings.TrimSpace(s)))
	if q == "" {
		return pgtype.Int8{Valid: false}
	}

	if n, ok := numberWords[q]; ok {
		return pgtype.Int8{Int64: n, Valid: true}
	}

	if quantityRegex.MatchString(q) {
		n, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			return pgtype.Int8{Valid: false}
		}
		return pgtype.Int8{Int64: n, Valid: true}
	}

	return pgtype.Int8{Valid: false}
}

// DetectCurrency infers a currency code from free text.
//
// A standalone run of three uppercase letters wins and is returned as-is,
// whether or not it is a real ISO code. Otherwise the symbol table is scanned
// in its fixed order, so "€5 or $5" reports EUR only if '$' is absent.
func DetectCurrency(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}

	if m := isoCurrencyRegex.FindStringSubmatch(s); m != nil {
		return pgtype.Text{String: m[1], Valid: true}
	}

	for _, cs := range currencySymbols {
		if strings.Contains(s, cs.symbol) {
			return pgtype.Text{String: cs.code, Valid: true}
		}
	}

	return pgtype.Text{Valid: false}
}

// ParsePrice converts a price cell and an optional currency cell into an
// amount and a currency code.
//
// The currency is the explicit currency cell (upper-cased) when present,
// otherwise whatever DetectCurrency finds in the price text. An amount that
// cannot be read leaves the price invalid while the currency may still be set.
func ParsePrice(value, currencyHint string) (decimal.NullDecimal, pgtype.Text) {
	value = strings.TrimSpace(value)
	currencyHint = strings.TrimSpace(currencyHint)
	if value == "" && currencyHint == "" {
		return decimal.NullDecimal{}, pgtype.Text{Valid: false}
	}

	var currency pgtype.Text
	if currencyHint != "" {
		currency = pgtype.Text{String: strings.ToUpper(currencyHint), Valid: true}
	} else {
		currency = DetectCurrency(value)
	}

	return parseAmount(value), currency
}

func parseAmount(s string) decimal.NullDecimal {
	s = asciiDigits(s)
	s = currencyTokenRegex.ReplaceAllString(s, "")
	for _, cs := range currencySymbols {
		s = strings.ReplaceAll(s, cs.symbol, "")
	}
	s = strings.TrimSpace(s)

	s = normalizeSeparators(s)

	s = strings.ReplaceAll(s, " ", "")
	s = amountJunkRegex.ReplaceAllString(s, "")

	if !amountRegex.MatchString(s) {
		return decimal.NullDecimal{}
	}

	s = strings.TrimSuffix(s, ".")
	if strings.HasPrefix(s, "-.") {
		s = "-0" + s[1:]
	} else if strings.HasPrefix(s, ".") {
		s = "0" + s
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// normalizeSeparators rewrites the amount so '.' is the only decimal mark.
//
// With both marks present the one occurring last is the decimal separator
// ("1.234,56" and "1,234.56" both read 1234.56). A lone comma is a decimal
// mark only when followed by exactly two digits; otherwise commas group
// thousands.
func normalizeSeparators(s string) string {
	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.ReplaceAll(s, ",", ".")
		}
		return strings.ReplaceAll(s, ",", "")
	case hasComma && commaDecimalRegex.MatchString(s):
		return strings.ReplaceAll(s, ",", ".")
	default:
		return strings.ReplaceAll(s, ",", "")
	}
}

// ParseOrderID strips every non-digit and parses the remainder.
func ParseOrderID(s string) pgtype.Int8 {
	digits := digitsOnly(asciiDigits(s))
	if digits == "" {
		return pgtype.Int8{Valid: false}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: n, Valid: true}
}

// asciiDigits rewrites every Unicode decimal digit ("٣", "३", "３") as its
// ASCII form and leaves other runes alone.
func asciiDigits(s string) string {
	ascii := true
	for _, r := range s {
		if r >= 0x80 && unicode.IsDigit(r) {
			ascii = false
			break
		}
	}
	if ascii {
		return s
	}

	return strings.Map(func(r rune) rune {
		if v, ok := digitValue(r); ok {
			return '0' + rune(v)
		}
		return r
	}, s)
}

// digitValue reports the numeric value of a decimal digit. Every Nd block is
// a run of ten code points starting at zero, and the range table merges
// adjacent blocks, so the offset into a range modulo ten is the value.
func digitValue(r rune) (int, bool) {
	if r >= '0' && r <= '9' {
		return int(r - '0'), true
	}
	if !unicode.IsDigit(r) {
		return 0, false
	}
	for _, rg := range unicode.Nd.R16 {
		if lo, hi := rune(rg.Lo), rune(rg.Hi); r >= lo && r <= hi {
			return int(r-lo) % 10, true
		}
	}
	for _, rg := range unicode.Nd.R32 {
		if lo, hi := rune(rg.Lo), rune(rg.Hi); r >= lo && r <= hi {
			return int(r-lo) % 10, true
		}
	}
	return 0, false
}

// digitsOnly drops everything but ASCII digits.
func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

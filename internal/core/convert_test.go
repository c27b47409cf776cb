package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----------------------------------------------------------------------------
// ParseDate Tests
// ----------------------------------------------------------------------------

func TestParseDate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		want      string
	}{
		{name: "iso date", input: "2024-03-15", wantValid: true, want: "2024-03-15"},
		{name: "iso with surrounding space", input: "  2024-03-15 ", wantValid: true, want: "2024-03-15"},
		{name: "rfc3339 utc", input: "2024-03-15T10:00:00Z", wantValid: true, want: "2024-03-15"},
		{name: "offset crosses midnight", input: "2024-03-15T23:30:00-0500", wantValid: true, want: "2024-03-16"},
		{name: "offset-less datetime is utc", input: "2024-03-15T23:30:00", wantValid: true, want: "2024-03-15"},
		{name: "us month/day/year", input: "03/15/2024", wantValid: true, want: "2024-03-15"},
		{name: "ambiguous reads month first", input: "03/04/2020", wantValid: true, want: "2020-03-04"},
		{name: "day first with slashes", input: "15/03/2024", wantValid: true, want: "2024-03-15"},
		{name: "day first with dashes", input: "15-03-2024", wantValid: true, want: "2024-03-15"},
		{name: "month name", input: "March 15, 2024", wantValid: true, want: "2024-03-15"},
		{name: "abbreviated month", input: "Mar 15, 2024", wantValid: true, want: "2024-03-15"},
		{name: "compact", input: "20240315", wantValid: true, want: "2024-03-15"},
		{name: "unpadded iso", input: "2020-3-4", wantValid: true, want: "2020-03-04"},
		{name: "unpadded iso datetime", input: "2020-3-4T10:00:00", wantValid: true, want: "2020-03-04"},
		{name: "unpadded iso with offset", input: "2020-3-4T23:00:00-02:00", wantValid: true, want: "2020-03-05"},
		{name: "unpadded iso with space", input: "2020-3-4 10:00:00", wantValid: true, want: "2020-03-04"},
		{name: "zone abbreviation suffix", input: "2020-03-04 10:00:00 UTC", wantValid: true, want: "2020-03-04"},
		{name: "day first two digit year", input: "13/04/20", wantValid: true, want: "2020-04-13"},
		{name: "ambiguous two digit year reads month first", input: "03/04/20", wantValid: true, want: "2020-03-04"},
		{name: "two digit year", input: "3/15/24", wantValid: true, want: "2024-03-15"},
		{name: "empty", input: "", wantValid: false},
		{name: "garbage", input: "not a date", wantValid: false},
		{name: "impossible day", input: "02/30/2024", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.input)
			require.Equal(t, tt.wantValid, got.Valid)
			if tt.wantValid {
				assert.Equal(t, tt.want, FormatDate(got))
				assert.Equal(t, time.UTC, got.Time.Location())
			}
		})
	}
}

func TestParseDate_TwoDigitYearWindow(t *testing.T) {
	assert.Equal(t, "1999-01-01", FormatDate(ParseDate("1/1/99")))
	assert.Equal(t, "2030-01-01", FormatDate(ParseDate("1/1/30")))
}

func TestParseDate_RoundTrip(t *testing.T) {
	// Day 19 keeps day-first layouts from reading as month-first.
	d := time.Date(2023, time.July, 19, 0, 0, 0, 0, time.UTC)

	for _, layout := range DateLayouts {
		t.Run(layout, func(t *testing.T) {
			got := ParseDate(d.Format(layout))
			require.True(t, got.Valid, "layout %q rendered %q", layout, d.Format(layout))
			assert.True(t, d.Equal(got.Time), "got %s", FormatDate(got))
		})
	}
}

// ----------------------------------------------------------------------------
// NormalizePhone Tests
// ----------------------------------------------------------------------------

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		country   string
		wantValid bool
		want      string
	}{
		{name: "national with country", raw: "0712345678", country: "FR", wantValid: true, want: "+33712345678"},
		{name: "already international", raw: "+1 (555) 123-4567", country: "", wantValid: true, want: "+15551234567"},
		{name: "us punctuation", raw: "(555) 123-4567", country: "US", wantValid: true, want: "+15551234567"},
		{name: "lower-case country", raw: "030 1234567", country: "de", wantValid: true, want: "+49301234567"},
		{name: "uk alias", raw: "020 7946 0958", country: "UK", wantValid: true, want: "+442079460958"},
		{name: "unknown country keeps digits", raw: "555-1234", country: "ZZ", wantValid: true, want: "5551234"},
		{name: "no country keeps digits", raw: "555-1234", country: "", wantValid: true, want: "5551234"},
		{name: "short plus number gets country code", raw: "+1234", country: "GB", wantValid: true, want: "+441234"},
		{name: "empty", raw: "", country: "US", wantValid: false},
		{name: "no digits", raw: "n/a", country: "US", wantValid: false},
		{name: "arabic-indic digits", raw: "٠٧١٢٣٤٥٦٧٨", country: "FR", wantValid: true, want: "+33712345678"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePhone(tt.raw, tt.country)
			require.Equal(t, tt.wantValid, got.Valid)
			if tt.wantValid {
				assert.Equal(t, tt.want, got.String)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseQuantity Tests
// ----------------------------------------------------------------------------

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		want      int64
	}{
		{input: "three", wantValid: true, want: 3},
		{input: " Three ", wantValid: true, want: 3},
		{input: "zero", wantValid: true, want: 0},
		{input: "ten", wantValid: true, want: 10},
		{input: "-5", wantValid: true, want: -5},
		{input: "12", wantValid: true, want: 12},
		{input: "٣", wantValid: true, want: 3},
		{input: "-٣", wantValid: true, want: -3},
		{input: "१२", wantValid: true, want: 12},
		{input: "twelve", wantValid: false},
		{input: "1.5", wantValid: false},
		{input: "two dozen", wantValid: false},
		{input: "", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseQuantity(tt.input)
			require.Equal(t, tt.wantValid, got.Valid)
			assert.Equal(t, tt.want, got.Int64)
		})
	}
}

// ----------------------------------------------------------------------------
// DetectCurrency / ParsePrice Tests
// ----------------------------------------------------------------------------

func TestDetectCurrency(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "12.50 EUR", want: "EUR"},
		{input: "XYZ 10", want: "XYZ"},
		{input: "$10", want: "USD"},
		{input: "€10", want: "EUR"},
		{input: "£10", want: "GBP"},
		{input: "¥1000", want: "JPY"},
		{input: "1000円", want: "JPY"},
		{input: "99元", want: "CNY"},
		{input: "€5 or $5", want: "USD"},
		{input: "10", want: ""},
		{input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := DetectCurrency(tt.input)
			assert.Equal(t, tt.want != "", got.Valid)
			assert.Equal(t, tt.want, got.String)
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		hint         string
		wantPrice    string
		wantCurrency string
	}{
		{name: "european separators", value: "1.234,56", wantPrice: "1234.56"},
		{name: "us separators with symbol", value: "$1,234.56", wantPrice: "1234.56", wantCurrency: "USD"},
		{name: "comma decimal with hint", value: "149,99", hint: "EUR", wantPrice: "149.99", wantCurrency: "EUR"},
		{name: "hint is upper-cased", value: "10", hint: "gbp", wantPrice: "10", wantCurrency: "GBP"},
		{name: "hint beats detection", value: "$10", hint: "CAD", wantPrice: "10", wantCurrency: "CAD"},
		{name: "iso code in text", value: "EUR 12.50", wantPrice: "12.5", wantCurrency: "EUR"},
		{name: "comma thousands", value: "1,234", wantPrice: "1234"},
		{name: "negative", value: "-3.50", wantPrice: "-3.5"},
		{name: "leading decimal point", value: ".99", wantPrice: "0.99"},
		{name: "devanagari digits", value: "१२.५० EUR", wantPrice: "12.5", wantCurrency: "EUR"},
		{name: "trailing decimal point", value: "99.", wantPrice: "99"},
		{name: "spaces inside amount", value: "1 234.00 €", wantPrice: "1234", wantCurrency: "EUR"},
		{name: "unreadable amount keeps currency", value: "free", hint: "usd", wantCurrency: "USD"},
		{name: "currency only", value: "", hint: "JPY", wantCurrency: "JPY"},
		{name: "both absent", value: "", hint: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, currency := ParsePrice(tt.value, tt.hint)

			if tt.wantPrice == "" {
				assert.False(t, price.Valid)
			} else {
				require.True(t, price.Valid)
				want := decimal.RequireFromString(tt.wantPrice)
				assert.True(t, want.Equal(price.Decimal), "got %s, want %s", price.Decimal, want)
			}

			assert.Equal(t, tt.wantCurrency != "", currency.Valid)
			assert.Equal(t, tt.wantCurrency, currency.String)
		})
	}
}

// ----------------------------------------------------------------------------
// ParseOrderID Tests
// ----------------------------------------------------------------------------

func TestParseOrderID(t *testing.T) {
	assert.Equal(t, int64(1042), ParseOrderID("ORD-1042").Int64)
	assert.True(t, ParseOrderID("7").Valid)
	assert.False(t, ParseOrderID("none").Valid)
	assert.False(t, ParseOrderID("").Valid)
	assert.False(t, ParseOrderID("99999999999999999999999").Valid)
	assert.Equal(t, int64(1042), ParseOrderID("ORD-١٠٤٢").Int64)
	assert.Equal(t, int64(7), ParseOrderID("#𝟕").Int64)
}

func TestDigitValue(t *testing.T) {
	tests := []struct {
		r    rune
		want int
		ok   bool
	}{
		{r: '7', want: 7, ok: true},
		{r: '٣', want: 3, ok: true},
		{r: '۹', want: 9, ok: true},
		{r: '०', want: 0, ok: true},
		{r: '５', want: 5, ok: true},
		{r: '𝟕', want: 7, ok: true},
		{r: '𝟗', want: 9, ok: true},
		{r: 'x', ok: false},
		{r: '½', ok: false},
		{r: '²', ok: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.r), func(t *testing.T) {
			got, ok := digitValue(tt.r)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

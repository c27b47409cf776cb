package core

import "strings"

// callingCodes maps ISO country codes to international calling codes.
var callingCodes = map[string]string{
	"US": "+1",
	"CA": "+1",
	"GB": "+44",
	"FR": "+33",
	"DE": "+49",
	"ES": "+34",
	"CN": "+86",
	"JP": "+81",
	"IN": "+91",
}

// countryAliases maps non-ISO country codes seen in exports to ISO codes.
var countryAliases = map[string]string{
	"UK": "GB",
}

type currencySymbol struct {
	symbol string
	code   string
}

// currencySymbols is scanned in order; the first symbol found wins.
var currencySymbols = []currencySymbol{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"元", "CNY"},
	{"円", "JPY"},
}

var numberWords = map[string]int64{
	"zero":  0,
	"one":   1,
	"two":   2,
	"three": 3,
	"four":  4,
	"five":  5,
	"six":   6,
	"seven": 7,
	"eight": 8,
	"nine":  9,
	"ten":   10,
}

// CallingCode returns the calling code for a two-letter country code.
// Lookup is case-insensitive and honors aliases such as UK for GB.
func CallingCode(country string) (string, bool) {
	c := strings.ToUpper(strings.TrimSpace(country))
	if alias, ok := countryAliases[c]; ok {
		c = alias
	}
	code, ok := callingCodes[c]
	return code, ok
}

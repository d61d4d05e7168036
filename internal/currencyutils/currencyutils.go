// Package currencyutils parses and formats the monetary cells of ledger exports.
package currencyutils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var symbolPattern = regexp.MustCompile(`(?i)(ARS|USD|EUR|U\$S|[$€£\s])`)

// Separators describes the decimal and thousands marks used by an export.
type Separators struct {
	Decimal   rune
	Thousands rune
}

var (
	// DotDecimal matches raw spreadsheet values ("1234.56").
	DotDecimal = Separators{Decimal: '.', Thousands: ','}
	// CommaDecimal matches Argentine delimited exports ("1.234,56").
	CommaDecimal = Separators{Decimal: ',', Thousands: '.'}
)

// SeparatorsFor returns the Separators whose decimal mark is sep. Anything other than
// ',' yields DotDecimal.
func SeparatorsFor(sep string) Separators {
	if sep == "," {
		return CommaDecimal
	}
	return DotDecimal
}

// ParseAmountWith parses s using explicit separators. Currency symbols and blanks are
// stripped first; an empty cell parses as zero.
func ParseAmountWith(s string, sep Separators) (decimal.Decimal, error) {
	cleaned := symbolPattern.ReplaceAllString(s, "")
	if cleaned == "" {
		return decimal.Zero, nil
	}
	cleaned = strings.ReplaceAll(cleaned, string(sep.Thousands), "")
	if sep.Decimal != '.' {
		cleaned = strings.ReplaceAll(cleaned, string(sep.Decimal), ".")
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount '%s': %w", s, err)
	}
	return amount, nil
}

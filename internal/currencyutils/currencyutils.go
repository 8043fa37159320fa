// Package currencyutils provides amount parsing for bank statement feeds.
package currencyutils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// currencySymbols are stripped from amount strings before parsing.
var currencySymbols = []string{"$", "€", "£", "AUD", "USD", "EUR", "GBP", "CHF"}

// Standardize removes currency symbols, thousands separators and
// surrounding whitespace from an amount string, leaving a plain decimal
// with an optional leading sign.
func Standardize(amountStr string) string {
	s := strings.TrimSpace(amountStr)

	for _, symbol := range currencySymbols {
		s = strings.ReplaceAll(s, symbol, "")
	}
	s = strings.TrimSpace(s)

	// Accounting-style negatives: (123.45)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")

	return s
}

// ParseAmount parses an amount string such as "$1,234.56" or "-500.00"
// into a decimal. Empty strings parse as zero.
func ParseAmount(amountStr string) (decimal.Decimal, error) {
	if strings.TrimSpace(amountStr) == "" {
		return decimal.Zero, nil
	}

	standardized := Standardize(amountStr)
	amount, err := decimal.NewFromString(standardized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount %q: %w", amountStr, err)
	}

	return amount, nil
}

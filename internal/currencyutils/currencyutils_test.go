package currencyutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStandardize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain", "123.45", "123.45"},
		{"Dollar sign", "$123.45", "123.45"},
		{"Thousands separator", "1,234.56", "1234.56"},
		{"Symbol and separator", "$1,234.56", "1234.56"},
		{"Currency code", "500.00 AUD", "500.00"},
		{"Negative", "-42.00", "-42.00"},
		{"Accounting parentheses", "(123.45)", "-123.45"},
		{"Accounting with symbol", "($1,234.56)", "-1234.56"},
		{"Internal spaces", "1 234.56", "1234.56"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Standardize(tc.input))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    string
		expectError bool
	}{
		{"Plain", "123.45", "123.45", false},
		{"Formatted", "$1,234.56", "1234.56", false},
		{"Negative", "-500", "-500", false},
		{"Parenthesized negative", "(75.20)", "-75.2", false},
		{"Empty is zero", "", "0", false},
		{"Whitespace is zero", "   ", "0", false},
		{"Garbage", "abc", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			amount, err := ParseAmount(tc.input)

			if tc.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, amount.String())
		})
	}
}

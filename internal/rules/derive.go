package rules

import (
	"regexp"
	"strings"
)

// Purchase-method prefixes banks prepend to the merchant name. Stripped
// before deriving a pattern so the rule matches the merchant, not the
// payment rail.
var methodPrefixes = []string{
	"EFTPOS PURCHASE",
	"EFTPOS",
	"VISA PURCHASE",
	"VISA-PURCHASE",
	"VISA",
	"MASTERCARD PURCHASE",
	"DEBIT CARD PURCHASE",
	"CARD PURCHASE",
	"POS AUTHORISATION",
	"POS",
	"DIRECT DEBIT",
	"DIRECT CREDIT",
	"TAP AND PAY",
	"TAP & PAY",
	"PAYPAL *",
	"PAYPAL",
	"SQ *",
}

var (
	// Trailing date fragments such as "12/03", "12/03/24", "03MAR".
	trailingDateRe = regexp.MustCompile(`\s+(\d{1,2}[/\-.]\d{1,2}([/\-.]\d{2,4})?|\d{2}[A-Z]{3}(\d{2})?)$`)
	// Trailing two-letter state or country codes such as "NS", "AU".
	trailingRegionRe = regexp.MustCompile(`\s+[A-Z]{2}$`)
	multiSpaceRe     = regexp.MustCompile(`\s+`)
)

// DerivePattern turns a raw transaction description into the pattern
// stored when a human assigns a category: method prefixes, trailing date
// fragments and trailing region suffixes are stripped, then the first
// three remaining words are uppercased and joined by spaces.
func DerivePattern(description string) string {
	s := strings.ToUpper(strings.TrimSpace(description))
	s = multiSpaceRe.ReplaceAllString(s, " ")

	// A prefix only counts at a word boundary: followed by a space or the
	// end of the string. "*" prefixes bind directly to the merchant name.
	for _, prefix := range methodPrefixes {
		if !strings.HasPrefix(s, prefix) {
			continue
		}
		rest := s[len(prefix):]
		if rest != "" && !strings.HasPrefix(rest, " ") && !strings.HasSuffix(prefix, "*") {
			continue
		}
		s = strings.TrimSpace(rest)
		break
	}

	// Date and region fragments stack at the end ("... 12/03 NS"), so
	// strip repeatedly until stable.
	for {
		next := trailingDateRe.ReplaceAllString(s, "")
		next = trailingRegionRe.ReplaceAllString(next, "")
		if next == s {
			break
		}
		s = next
	}

	words := strings.Fields(s)
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.Join(words, " ")
}

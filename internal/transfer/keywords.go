package transfer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"hearthledger/internal/models"
)

// KeywordTable drives the no-counterpart fallback: a candidate whose
// description carries one of these keywords is confident enough to flag
// as a transfer and categorize without a cross-account match. The lists
// are heuristic, so the table is replaceable from a YAML file.
type KeywordTable struct {
	// Mortgage vocabulary, strongest signal for Loan Repayment.
	Mortgage []string `yaml:"mortgage"`
	// PersonalLoan vocabulary for Personal Loan Repayment.
	PersonalLoan []string `yaml:"personal_loan"`
	// Loan vocabulary, generic repayments and BPAY to known lenders.
	Loan []string `yaml:"loan"`
	// Savings vocabulary, generic transfer/savings phrasing.
	Savings []string `yaml:"savings"`
}

// DefaultKeywords is the built-in fallback keyword table.
func DefaultKeywords() KeywordTable {
	return KeywordTable{
		Mortgage: []string{
			"MORTGAGE", "HOME LOAN", "HOMELOAN", "HOME-LOAN",
		},
		PersonalLoan: []string{
			"PERSONAL LOAN", "PERSONAL-LOAN", "P/LOAN",
		},
		Loan: []string{
			"LOAN REPAYMENT", "LOAN PAYMENT", "LOAN REPAY",
			"BPAY LOAN", "LENDING", "REDRAW",
		},
		Savings: []string{
			"TRANSFER TO SAVINGS", "SAVINGS", "NETSAVER", "GOALSAVER",
			"GOAL SAVER", "ISAVER", "INTERNET TRANSFER", "TRANSFER TO",
			"TRANSFER FROM",
		},
	}
}

// LoadKeywords reads a keyword table from a YAML file. Empty sections
// fall back to the built-in lists rather than disabling a signal.
func LoadKeywords(path string) (KeywordTable, error) {
	table := DefaultKeywords()

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from user config
	if err != nil {
		return table, fmt.Errorf("read keywords file: %w", err)
	}

	var loaded KeywordTable
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return table, fmt.Errorf("parse keywords file: %w", err)
	}

	if len(loaded.Mortgage) > 0 {
		table.Mortgage = loaded.Mortgage
	}
	if len(loaded.PersonalLoan) > 0 {
		table.PersonalLoan = loaded.PersonalLoan
	}
	if len(loaded.Loan) > 0 {
		table.Loan = loaded.Loan
	}
	if len(loaded.Savings) > 0 {
		table.Savings = loaded.Savings
	}
	return table, nil
}

// Classify resolves a fallback transfer category name from a
// description. More specific vocabularies are checked first so
// "PERSONAL LOAN" never lands on the generic loan bucket.
func (t KeywordTable) Classify(description string) (string, bool) {
	upper := strings.ToUpper(description)

	if containsAny(upper, t.Mortgage) {
		return models.CategoryLoanRepayment, true
	}
	if containsAny(upper, t.PersonalLoan) {
		return models.CategoryPersonalLoanRepayment, true
	}
	if containsAny(upper, t.Loan) {
		return models.CategoryLoanRepayment, true
	}
	if containsAny(upper, t.Savings) {
		return models.CategorySavingsTransfer, true
	}
	return "", false
}

func containsAny(upper string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(upper, strings.ToUpper(keyword)) {
			return true
		}
	}
	return false
}

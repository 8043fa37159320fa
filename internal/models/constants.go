package models

// Direction records which side of the account a transaction falls on.
// Amounts are always stored as non-negative magnitudes; the direction
// carries the sign.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// Opposite returns the counterpart direction, used when pairing the two
// halves of an internal transfer.
func (d Direction) Opposite() Direction {
	if d == DirectionDebit {
		return DirectionCredit
	}
	return DirectionDebit
}

// Provenance records which mechanism last set a transaction's category.
type Provenance string

const (
	// ProvenanceNone marks a transaction that has never been categorized.
	ProvenanceNone Provenance = ""
	// ProvenanceRule marks a Tier-1 rule match applied at import time.
	ProvenanceRule Provenance = "rule"
	// ProvenanceAI marks a Tier-2 assignment from the external classifier.
	ProvenanceAI Provenance = "ai"
	// ProvenanceManual marks a human correction. Manual is sticky: no
	// automated pass may overwrite it.
	ProvenanceManual Provenance = "manual"
	// ProvenanceAuto marks a category written by the transfer linker.
	ProvenanceAuto Provenance = "auto"
)

// Sticky reports whether an automated categorization pass must leave the
// category alone.
func (p Provenance) Sticky() bool {
	return p == ProvenanceRule || p == ProvenanceManual
}

// AccountType tags an account for transfer sub-category selection.
type AccountType string

const (
	AccountTypeTransaction  AccountType = "transaction"
	AccountTypeSavings      AccountType = "savings"
	AccountTypeLoan         AccountType = "loan"
	AccountTypePersonalLoan AccountType = "personal-loan"
	AccountTypeCredit       AccountType = "credit"
	AccountTypeOther        AccountType = "other"
)

// Names of the seeded system categories the pipeline depends on.
const (
	CategorySavingsTransfer       = "Savings Transfer"
	CategoryLoanRepayment         = "Loan Repayment"
	CategoryPersonalLoanRepayment = "Personal Loan Repayment"
	// CategoryUncategorised is the explicit fallback for classifier
	// responses that reference an unknown category id.
	CategoryUncategorised = "Uncategorised"
)

// MaxRuleConfidence is the confidence assigned to rules learned from a
// manual correction, placing them ahead of every derived rule.
const MaxRuleConfidence = 100

// Package models defines the core domain types shared across the ledger
// pipeline: transactions, accounts, categories and learned category rules.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one bank ledger entry.
//
// Amount is always a non-negative magnitude; Direction carries the sign.
// (AccountID, Date, Description, Amount, Direction) forms the natural
// dedupe key for feeds without a stable external id.
type Transaction struct {
	ID         int64
	ExternalID string // aggregator feed id; empty for CSV rows
	AccountID  int64
	Date       time.Time // calendar date, normalized to UTC midnight
	Description string   // raw description, verbatim from the source
	CleanName  string    // merchant-normalized description, when known
	Amount     decimal.Decimal
	Direction  Direction
	CategoryID *int64
	Provenance Provenance
	Excluded   bool // excluded from budget totals
	IsTransfer bool
	LinkedID   *int64 // counterpart transaction; symmetric when set
	Note       string
	CreatedAt  time.Time
}

// Key returns the natural dedupe key for this transaction.
func (t *Transaction) Key() TransactionKey {
	return TransactionKey{
		AccountID:   t.AccountID,
		Date:        NormalizeDate(t.Date),
		Description: t.Description,
		Amount:      t.Amount.String(),
		Direction:   t.Direction,
	}
}

// TransactionKey is the comparable natural key of a transaction.
type TransactionKey struct {
	AccountID   int64
	Date        time.Time
	Description string
	Amount      string
	Direction   Direction
}

// NormalizeDate strips the time-of-day and timezone from a date so that
// calendar-day comparisons behave the same regardless of feed origin.
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Account is a bank or manually maintained ledger container.
type Account struct {
	ID           int64
	Name         string
	Type         AccountType
	Balance      decimal.Decimal
	ConnectionID string // owning aggregator connection; empty for manual accounts
	CreatedAt    time.Time
}

// Category is a label node in a shallow tree (depth effectively 2).
// System categories are seeded and protected from deletion.
type Category struct {
	ID       int64
	Name     string
	ParentID *int64
	System   bool
}

// CategoryRule is a learned mapping from a text pattern to a category.
// The pattern is tried as a case-insensitive regular expression and falls
// back to a substring test when it does not compile. Rules are evaluated
// in descending confidence order, first match wins.
type CategoryRule struct {
	ID         int64
	Pattern    string
	CategoryID int64
	Confidence int
	Provenance Provenance
	CreatedAt  time.Time
}

// Package classifier defines the contract with the external
// probabilistic categorization service and its Gemini-backed
// implementation.
//
// The service is best-effort by design: responses may be wrong, partial
// or absent, and the caller must treat every failure as "no information".
package classifier

import (
	"context"

	"hearthledger/internal/models"
)

// BatchItem is one transaction presented to the classifier.
type BatchItem struct {
	ID          int64            `json:"id"`
	Description string           `json:"description"`
	Amount      string           `json:"amount"` // signed, as a string
	Direction   models.Direction `json:"direction"`
	AccountName string           `json:"account_name"`
	AccountType models.AccountType `json:"account_type"`
	Date        string           `json:"date"`
}

// AccountInfo describes one household account for classifier context.
type AccountInfo struct {
	Name string             `json:"name"`
	Type models.AccountType `json:"type"`
}

// BatchRequest is one classification request: the transactions plus the
// household's category catalog and account list.
type BatchRequest struct {
	Items      []BatchItem
	Categories map[int64]string // id → name
	Accounts   []AccountInfo
}

// Suggestion is the classifier's best-effort guess for one transaction.
// A zero CategoryID means no category information.
type Suggestion struct {
	CategoryID int64
	IsTransfer bool
	CleanName  string
}

// Classifier is the external categorization service. An absent or
// malformed response entry means "no information" for that id, not an
// error.
type Classifier interface {
	Suggest(ctx context.Context, req BatchRequest) (map[int64]Suggestion, error)
}

// Disabled is the no-op classifier used when no API key is configured.
// It always reports no information.
type Disabled struct{}

// Suggest returns an empty mapping.
func (Disabled) Suggest(context.Context, BatchRequest) (map[int64]Suggestion, error) {
	return map[int64]Suggestion{}, nil
}

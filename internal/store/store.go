// Package store provides the ledger repository: persistence of
// transactions, accounts, categories and learned category rules.
//
// Two implementations exist: a sqlite-backed store for the real ledger
// and a map-backed store used by tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"hearthledger/internal/models"
)

var (
	// ErrDuplicate is returned when an insert collides with the natural
	// dedupe key or an external feed id. Callers treat it as a skip.
	ErrDuplicate = errors.New("duplicate transaction")
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrProtected is returned when deleting a seeded system category.
	ErrProtected = errors.New("system category is protected")
)

// TransactionFilter selects transactions by equality/range criteria only;
// no pipeline logic depends on richer query features.
type TransactionFilter struct {
	AccountID        *int64
	ExcludeAccountID *int64
	From             *time.Time
	To               *time.Time
	Direction        *models.Direction
	Amount           *decimal.Decimal
	IsTransfer       *bool
	Linked           *bool // whether a linked counterpart is set
	Uncategorised    bool  // only rows with no category
	CategoryID       *int64
}

// TransactionUpdate is a partial field set applied to one transaction.
// Nil pointers leave the corresponding field untouched.
type TransactionUpdate struct {
	CategoryID    *int64
	ClearCategory bool
	Provenance    *models.Provenance
	CleanName     *string
	IsTransfer    *bool
	LinkedID      *int64
	ClearLink     bool
	Excluded      *bool
	Note          *string
}

// Store is the repository surface consumed by the pipeline.
type Store interface {
	// CreateTransaction inserts a new transaction and returns its id.
	// Returns ErrDuplicate when the natural key or external id already
	// exists.
	CreateTransaction(ctx context.Context, tx *models.Transaction) (int64, error)
	GetTransaction(ctx context.Context, id int64) (*models.Transaction, error)
	FindTransactionByKey(ctx context.Context, key models.TransactionKey) (*models.Transaction, error)
	FindTransactionByExternalID(ctx context.Context, externalID string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, upd TransactionUpdate) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error)

	// LinkPair marks two transactions as the halves of one transfer:
	// both get is-transfer set and linked to each other, plus their
	// respective updates, atomically. A half-linked pair must never
	// become visible.
	LinkPair(ctx context.Context, aID, bID int64, aUpd, bUpd TransactionUpdate) error
	// ClearTransferLinks resets every is-transfer flag and link before a
	// full re-scan. Returns the number of rows reset.
	ClearTransferLinks(ctx context.Context) (int, error)

	CreateAccount(ctx context.Context, account *models.Account) (int64, error)
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	GetAccountByName(ctx context.Context, name string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error

	CreateCategory(ctx context.Context, category *models.Category) (int64, error)
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	// DeleteCategory removes a user category, reassigning its
	// transactions to reassignTo (or clearing them when nil). System
	// categories return ErrProtected.
	DeleteCategory(ctx context.Context, id int64, reassignTo *int64) error

	// ListRules returns all rules ordered by descending confidence,
	// oldest first among equals.
	ListRules(ctx context.Context) ([]models.CategoryRule, error)
	// UpsertRule creates or overwrites the rule for pattern; pattern is
	// a unique key.
	UpsertRule(ctx context.Context, pattern string, categoryID int64, confidence int, provenance models.Provenance) error
}

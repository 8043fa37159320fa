package transfer

import (
	"context"
	"errors"
	"fmt"

	"hearthledger/internal/logging"
	"hearthledger/internal/models"
	"hearthledger/internal/store"
)

// Result is the structured summary of one linker run.
type Result struct {
	Candidates      int // pattern matches that entered reconciliation
	LinkedPairs     int // cross-account pairs linked this run
	FallbackFlagged int // transfers flagged by keyword fallback alone
	Cleared         int // links reset by a full re-scan
}

// Linker identifies internal transfers and pairs their halves across
// accounts.
type Linker struct {
	store      store.Store
	keywords   KeywordTable
	windowDays int
	logger     logging.Logger
}

// New creates a transfer linker. windowDays is the calendar-day
// tolerance when matching counterparts; below zero falls back to 1.
func New(st store.Store, keywords KeywordTable, windowDays int, logger logging.Logger) *Linker {
	if windowDays < 0 {
		windowDays = 1
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Linker{store: st, keywords: keywords, windowDays: windowDays, logger: logger}
}

// categoryTable maps the transfer sub-category names to their ids,
// resolved once per run. A zero id means the category is missing from
// the catalog and must be left unwritten.
type categoryTable struct {
	savingsTransfer       int64
	loanRepayment         int64
	personalLoanRepayment int64
}

func (l *Linker) resolveCategories(ctx context.Context) (categoryTable, error) {
	var table categoryTable
	lookup := func(name string) (int64, error) {
		category, err := l.store.GetCategoryByName(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("resolve category %q: %w", name, err)
		}
		return category.ID, nil
	}

	var err error
	if table.savingsTransfer, err = lookup(models.CategorySavingsTransfer); err != nil {
		return table, err
	}
	if table.loanRepayment, err = lookup(models.CategoryLoanRepayment); err != nil {
		return table, err
	}
	if table.personalLoanRepayment, err = lookup(models.CategoryPersonalLoanRepayment); err != nil {
		return table, err
	}
	return table, nil
}

// byName resolves a fallback category name to an id via the table.
func (t categoryTable) byName(name string) int64 {
	switch name {
	case models.CategorySavingsTransfer:
		return t.savingsTransfer
	case models.CategoryLoanRepayment:
		return t.loanRepayment
	case models.CategoryPersonalLoanRepayment:
		return t.personalLoanRepayment
	}
	return 0
}

// byDestination picks the transfer sub-category from the destination
// account's type. Unknown types default to Savings Transfer.
func (t categoryTable) byDestination(destType models.AccountType) int64 {
	switch destType {
	case models.AccountTypeSavings:
		return t.savingsTransfer
	case models.AccountTypeLoan:
		return t.loanRepayment
	case models.AccountTypePersonalLoan:
		return t.personalLoanRepayment
	}
	return t.savingsTransfer
}

// LinkAccount runs the linker over one account. With fewer than two
// accounts in the household, cross-matching is impossible and the
// keyword fallback applies directly.
func (l *Linker) LinkAccount(ctx context.Context, accountID int64) (*Result, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return nil, fmt.Errorf("target account %d: %w", accountID, err)
	}

	accounts, err := l.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	table, err := l.resolveCategories(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	if err := l.linkOne(ctx, accountID, accounts, table, result); err != nil {
		return nil, err
	}

	l.logResult(result)
	return result, nil
}

// LinkAll runs the linker over every account in a stable order.
func (l *Linker) LinkAll(ctx context.Context) (*Result, error) {
	accounts, err := l.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	table, err := l.resolveCategories(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, account := range accounts {
		if err := l.linkOne(ctx, account.ID, accounts, table, result); err != nil {
			return nil, err
		}
	}

	l.logResult(result)
	return result, nil
}

// Rescan resets every existing transfer flag and link, then re-links
// all accounts. This is intentionally destructive-then-rebuild so stale
// links disappear after new accounts are added.
func (l *Linker) Rescan(ctx context.Context) (*Result, error) {
	cleared, err := l.store.ClearTransferLinks(ctx)
	if err != nil {
		return nil, err
	}

	result, err := l.LinkAll(ctx)
	if err != nil {
		return nil, err
	}
	result.Cleared = cleared
	return result, nil
}

func (l *Linker) linkOne(ctx context.Context, accountID int64, accounts []models.Account,
	table categoryTable, result *Result) error {

	accountsByID := make(map[int64]models.Account, len(accounts))
	for _, account := range accounts {
		accountsByID[account.ID] = account
	}

	// Phase 1: unflagged, unlinked transactions matching a transfer
	// pattern. Already-linked rows are excluded up front, which is what
	// makes a second run a no-op.
	no := false
	candidates, err := l.store.ListTransactions(ctx, store.TransactionFilter{
		AccountID:  &accountID,
		IsTransfer: &no,
		Linked:     &no,
	})
	if err != nil {
		return fmt.Errorf("list candidates: %w", err)
	}

	singleAccount := len(accounts) < 2

	for _, candidate := range candidates {
		if !isCandidate(candidate.Description) {
			continue
		}
		result.Candidates++

		// The candidate may have been consumed as an earlier candidate's
		// counterpart during this run.
		current, err := l.store.GetTransaction(ctx, candidate.ID)
		if err != nil {
			return fmt.Errorf("reload candidate: %w", err)
		}
		if current.IsTransfer || current.LinkedID != nil {
			continue
		}

		if singleAccount {
			flagged, err := l.applyFallback(ctx, current, table)
			if err != nil {
				return err
			}
			if flagged {
				result.FallbackFlagged++
			}
			continue
		}

		counterpart, err := l.findCounterpart(ctx, current)
		if err != nil {
			return err
		}

		if counterpart == nil {
			flagged, err := l.applyFallback(ctx, current, table)
			if err != nil {
				return err
			}
			if flagged {
				result.FallbackFlagged++
			}
			continue
		}

		if err := l.linkPair(ctx, current, counterpart, accountsByID, table); err != nil {
			return err
		}
		result.LinkedPairs++
	}

	return nil
}

// findCounterpart searches the other accounts for an unlinked,
// non-transfer transaction with the same amount, opposite direction and
// a date within the window. Returns nil when none exists.
func (l *Linker) findCounterpart(ctx context.Context, candidate *models.Transaction) (*models.Transaction, error) {
	no := false
	opposite := candidate.Direction.Opposite()
	from := candidate.Date.AddDate(0, 0, -l.windowDays)
	to := candidate.Date.AddDate(0, 0, l.windowDays)

	matches, err := l.store.ListTransactions(ctx, store.TransactionFilter{
		ExcludeAccountID: &candidate.AccountID,
		Direction:        &opposite,
		Amount:           &candidate.Amount,
		IsTransfer:       &no,
		Linked:           &no,
		From:             &from,
		To:               &to,
	})
	if err != nil {
		return nil, fmt.Errorf("search counterpart: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

// linkPair writes both halves of a confirmed transfer atomically. The
// sub-category follows the destination (credit-side) account's type and
// is applied to both sides, except where a manual assignment is sticky.
func (l *Linker) linkPair(ctx context.Context, a, b *models.Transaction,
	accountsByID map[int64]models.Account, table categoryTable) error {

	destination := a
	if destination.Direction != models.DirectionCredit {
		destination = b
	}

	var categoryID int64
	if account, ok := accountsByID[destination.AccountID]; ok {
		categoryID = table.byDestination(account.Type)
	} else {
		categoryID = table.byDestination(models.AccountTypeOther)
	}

	if err := l.store.LinkPair(ctx, a.ID, b.ID,
		sideUpdate(a, categoryID), sideUpdate(b, categoryID)); err != nil {
		return fmt.Errorf("link pair %d/%d: %w", a.ID, b.ID, err)
	}

	l.logger.WithFields(
		logging.Field{Key: "debit_id", Value: a.ID},
		logging.Field{Key: "credit_id", Value: b.ID},
		logging.Field{Key: "category_id", Value: categoryID},
	).Debug("Linked transfer pair")
	return nil
}

// sideUpdate builds the category part of a link write for one side.
// The category is written only when it resolved, and never over a
// manual assignment; provenance becomes "auto" only when a category was
// actually written.
func sideUpdate(tx *models.Transaction, categoryID int64) store.TransactionUpdate {
	var upd store.TransactionUpdate
	if categoryID != 0 && tx.Provenance != models.ProvenanceManual {
		provenance := models.ProvenanceAuto
		upd.CategoryID = &categoryID
		upd.Provenance = &provenance
	}
	return upd
}

// applyFallback classifies a candidate with no counterpart by keywords
// alone. A pattern match without a confident keyword leaves the
// transaction untouched: is-transfer stays false.
func (l *Linker) applyFallback(ctx context.Context, tx *models.Transaction, table categoryTable) (bool, error) {
	categoryName, ok := l.keywords.Classify(tx.Description)
	if !ok {
		return false, nil
	}

	yes := true
	upd := store.TransactionUpdate{IsTransfer: &yes}
	if categoryID := table.byName(categoryName); categoryID != 0 && tx.Provenance != models.ProvenanceManual {
		provenance := models.ProvenanceAuto
		upd.CategoryID = &categoryID
		upd.Provenance = &provenance
	}

	if err := l.store.UpdateTransaction(ctx, tx.ID, upd); err != nil {
		return false, fmt.Errorf("flag fallback transfer %d: %w", tx.ID, err)
	}

	l.logger.WithFields(
		logging.Field{Key: "transaction_id", Value: tx.ID},
		logging.Field{Key: "category", Value: categoryName},
	).Debug("Flagged transfer by keyword fallback")
	return true, nil
}

func (l *Linker) logResult(result *Result) {
	l.logger.WithFields(
		logging.Field{Key: "candidates", Value: result.Candidates},
		logging.Field{Key: "linked_pairs", Value: result.LinkedPairs},
		logging.Field{Key: "fallback_flagged", Value: result.FallbackFlagged},
	).Info("Transfer linking finished")
}

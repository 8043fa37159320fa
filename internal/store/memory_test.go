package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hearthledger/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateTransactionNaturalKeyDedupe(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	accountID, err := m.CreateAccount(ctx, &models.Account{Name: "Everyday"})
	require.NoError(t, err)

	tx := models.Transaction{
		AccountID:   accountID,
		Date:        date(2023, time.March, 12),
		Description: "WOOLWORTHS METRO",
		Amount:      decimal.RequireFromString("42.50"),
		Direction:   models.DirectionDebit,
	}

	_, err = m.CreateTransaction(ctx, &tx)
	require.NoError(t, err)

	// Identical natural key: rejected.
	dup := tx
	_, err = m.CreateTransaction(ctx, &dup)
	assert.ErrorIs(t, err, ErrDuplicate)

	// Same key except direction: a distinct transaction.
	credit := tx
	credit.Direction = models.DirectionCredit
	_, err = m.CreateTransaction(ctx, &credit)
	assert.NoError(t, err)

	// Same key but a different calendar day: distinct.
	nextDay := tx
	nextDay.Date = date(2023, time.March, 13)
	_, err = m.CreateTransaction(ctx, &nextDay)
	assert.NoError(t, err)
}

func TestCreateTransactionDedupesAcrossAmountScales(t *testing.T) {
	// Two feed origins may format the same amount as "42.50" and "42.5".
	// Decimal string keys trim trailing zeros, so both spell one key.
	ctx := context.Background()
	m := NewMemory()

	accountID, err := m.CreateAccount(ctx, &models.Account{Name: "Everyday"})
	require.NoError(t, err)

	tx := models.Transaction{
		AccountID:   accountID,
		Date:        date(2023, time.March, 12),
		Description: "WOOLWORTHS METRO",
		Amount:      decimal.RequireFromString("42.50"),
		Direction:   models.DirectionDebit,
	}
	_, err = m.CreateTransaction(ctx, &tx)
	require.NoError(t, err)

	rescaled := tx
	rescaled.Amount = decimal.RequireFromString("42.5")
	assert.Equal(t, tx.Key(), rescaled.Key())
	_, err = m.CreateTransaction(ctx, &rescaled)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestCreateTransactionExternalIDDedupe(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	accountID, err := m.CreateAccount(ctx, &models.Account{Name: "Everyday"})
	require.NoError(t, err)

	_, err = m.CreateTransaction(ctx, &models.Transaction{
		ExternalID:  "feed-1",
		AccountID:   accountID,
		Date:        date(2023, time.March, 12),
		Description: "WOOLWORTHS METRO",
		Amount:      decimal.RequireFromString("42.50"),
		Direction:   models.DirectionDebit,
	})
	require.NoError(t, err)

	_, err = m.CreateTransaction(ctx, &models.Transaction{
		ExternalID:  "feed-1",
		AccountID:   accountID,
		Date:        date(2023, time.March, 13),
		Description: "SOMETHING ELSE",
		Amount:      decimal.RequireFromString("10.00"),
		Direction:   models.DirectionDebit,
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	found, err := m.FindTransactionByExternalID(ctx, "feed-1")
	require.NoError(t, err)
	assert.Equal(t, "WOOLWORTHS METRO", found.Description)

	_, err = m.FindTransactionByExternalID(ctx, "feed-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinkPairSetsBothSides(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a, err := m.CreateAccount(ctx, &models.Account{Name: "Everyday"})
	require.NoError(t, err)
	b, err := m.CreateAccount(ctx, &models.Account{Name: "Savings"})
	require.NoError(t, err)

	debitID, err := m.CreateTransaction(ctx, &models.Transaction{
		AccountID: a, Date: date(2023, time.June, 1), Description: "TRANSFER TO SAVINGS",
		Amount: decimal.RequireFromString("500"), Direction: models.DirectionDebit,
	})
	require.NoError(t, err)
	creditID, err := m.CreateTransaction(ctx, &models.Transaction{
		AccountID: b, Date: date(2023, time.June, 1), Description: "TRANSFER FROM EVERYDAY",
		Amount: decimal.RequireFromString("500"), Direction: models.DirectionCredit,
	})
	require.NoError(t, err)

	categoryID := int64(9)
	provenance := models.ProvenanceAuto
	upd := TransactionUpdate{CategoryID: &categoryID, Provenance: &provenance}
	require.NoError(t, m.LinkPair(ctx, debitID, creditID, upd, upd))

	debit, err := m.GetTransaction(ctx, debitID)
	require.NoError(t, err)
	credit, err := m.GetTransaction(ctx, creditID)
	require.NoError(t, err)

	assert.True(t, debit.IsTransfer)
	assert.True(t, credit.IsTransfer)
	require.NotNil(t, debit.LinkedID)
	require.NotNil(t, credit.LinkedID)
	assert.Equal(t, creditID, *debit.LinkedID)
	assert.Equal(t, debitID, *credit.LinkedID)
	assert.Equal(t, models.ProvenanceAuto, debit.Provenance)
	assert.Equal(t, models.ProvenanceAuto, credit.Provenance)
}

func TestLinkPairUnknownTransaction(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	accountID, err := m.CreateAccount(ctx, &models.Account{Name: "Everyday"})
	require.NoError(t, err)
	txID, err := m.CreateTransaction(ctx, &models.Transaction{
		AccountID: accountID, Date: date(2023, time.June, 1), Description: "TRANSFER",
		Amount: decimal.RequireFromString("500"), Direction: models.DirectionDebit,
	})
	require.NoError(t, err)

	err = m.LinkPair(ctx, txID, 999, TransactionUpdate{}, TransactionUpdate{})
	assert.ErrorIs(t, err, ErrNotFound)

	// The surviving side must not have been half-linked.
	tx, err := m.GetTransaction(ctx, txID)
	require.NoError(t, err)
	assert.False(t, tx.IsTransfer)
	assert.Nil(t, tx.LinkedID)
}

func TestClearTransferLinks(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a, err := m.CreateAccount(ctx, &models.Account{Name: "Everyday"})
	require.NoError(t, err)

	linkedID, err := m.CreateTransaction(ctx, &models.Transaction{
		AccountID: a, Date: date(2023, time.June, 1), Description: "TRANSFER",
		Amount: decimal.RequireFromString("500"), Direction: models.DirectionDebit,
	})
	require.NoError(t, err)
	plainID, err := m.CreateTransaction(ctx, &models.Transaction{
		AccountID: a, Date: date(2023, time.June, 2), Description: "WOOLWORTHS",
		Amount: decimal.RequireFromString("42.50"), Direction: models.DirectionDebit,
	})
	require.NoError(t, err)

	yes := true
	require.NoError(t, m.UpdateTransaction(ctx, linkedID, TransactionUpdate{IsTransfer: &yes}))

	count, err := m.ClearTransferLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	cleared, err := m.GetTransaction(ctx, linkedID)
	require.NoError(t, err)
	assert.False(t, cleared.IsTransfer)
	assert.Nil(t, cleared.LinkedID)

	plain, err := m.GetTransaction(ctx, plainID)
	require.NoError(t, err)
	assert.False(t, plain.IsTransfer)
}

func TestDeleteCategoryReassigns(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	accountID, err := m.CreateAccount(ctx, &models.Account{Name: "Everyday"})
	require.NoError(t, err)
	oldID, err := m.CreateCategory(ctx, &models.Category{Name: "Takeaway"})
	require.NoError(t, err)
	newID, err := m.CreateCategory(ctx, &models.Category{Name: "Dining Out"})
	require.NoError(t, err)

	txID, err := m.CreateTransaction(ctx, &models.Transaction{
		AccountID: accountID, Date: date(2023, time.June, 1), Description: "KEBAB HOUSE",
		Amount: decimal.RequireFromString("18.00"), Direction: models.DirectionDebit,
		CategoryID: &oldID,
	})
	require.NoError(t, err)
	require.NoError(t, m.UpsertRule(ctx, "KEBAB", oldID, 50, models.ProvenanceManual))

	require.NoError(t, m.DeleteCategory(ctx, oldID, &newID))

	tx, err := m.GetTransaction(ctx, txID)
	require.NoError(t, err)
	require.NotNil(t, tx.CategoryID)
	assert.Equal(t, newID, *tx.CategoryID)

	_, err = m.GetCategory(ctx, oldID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Rules pointing at the deleted category go with it.
	ruleList, err := m.ListRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, ruleList)
}

func TestDeleteCategoryClearsWhenNoReplacement(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	accountID, err := m.CreateAccount(ctx, &models.Account{Name: "Everyday"})
	require.NoError(t, err)
	categoryID, err := m.CreateCategory(ctx, &models.Category{Name: "Takeaway"})
	require.NoError(t, err)

	txID, err := m.CreateTransaction(ctx, &models.Transaction{
		AccountID: accountID, Date: date(2023, time.June, 1), Description: "KEBAB HOUSE",
		Amount: decimal.RequireFromString("18.00"), Direction: models.DirectionDebit,
		CategoryID: &categoryID,
	})
	require.NoError(t, err)

	require.NoError(t, m.DeleteCategory(ctx, categoryID, nil))

	tx, err := m.GetTransaction(ctx, txID)
	require.NoError(t, err)
	assert.Nil(t, tx.CategoryID)
}

func TestDeleteCategoryProtectsSystem(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	systemID, err := m.CreateCategory(ctx, &models.Category{Name: models.CategoryUncategorised, System: true})
	require.NoError(t, err)

	err = m.DeleteCategory(ctx, systemID, nil)
	assert.ErrorIs(t, err, ErrProtected)
}

func TestListRulesOrdering(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.UpsertRule(ctx, "LOW", 1, 10, models.ProvenanceManual))
	require.NoError(t, m.UpsertRule(ctx, "HIGH", 2, 100, models.ProvenanceManual))
	require.NoError(t, m.UpsertRule(ctx, "MID", 3, 50, models.ProvenanceManual))

	ruleList, err := m.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, ruleList, 3)
	assert.Equal(t, "HIGH", ruleList[0].Pattern)
	assert.Equal(t, "MID", ruleList[1].Pattern)
	assert.Equal(t, "LOW", ruleList[2].Pattern)
}

func TestListTransactionsFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a, err := m.CreateAccount(ctx, &models.Account{Name: "Everyday"})
	require.NoError(t, err)
	b, err := m.CreateAccount(ctx, &models.Account{Name: "Savings"})
	require.NoError(t, err)

	amount := decimal.RequireFromString("500")
	_, err = m.CreateTransaction(ctx, &models.Transaction{
		AccountID: a, Date: date(2023, time.June, 1), Description: "TRANSFER TO SAVINGS",
		Amount: amount, Direction: models.DirectionDebit,
	})
	require.NoError(t, err)
	_, err = m.CreateTransaction(ctx, &models.Transaction{
		AccountID: b, Date: date(2023, time.June, 2), Description: "TRANSFER FROM EVERYDAY",
		Amount: amount, Direction: models.DirectionCredit,
	})
	require.NoError(t, err)

	credit := models.DirectionCredit
	from := date(2023, time.June, 1)
	to := date(2023, time.June, 3)
	out, err := m.ListTransactions(ctx, TransactionFilter{
		ExcludeAccountID: &a,
		Direction:        &credit,
		Amount:           &amount,
		From:             &from,
		To:               &to,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "TRANSFER FROM EVERYDAY", out[0].Description)

	uncategorised, err := m.ListTransactions(ctx, TransactionFilter{Uncategorised: true})
	require.NoError(t, err)
	assert.Len(t, uncategorised, 2)
}

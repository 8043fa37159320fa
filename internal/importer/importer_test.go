package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hearthledger/internal/feed"
	"hearthledger/internal/models"
	"hearthledger/internal/store"
)

func newImportFixture(t *testing.T) (context.Context, *store.Memory, int64) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	accountID, err := st.CreateAccount(ctx, &models.Account{Name: "Everyday", Type: models.AccountTypeTransaction})
	require.NoError(t, err)
	return ctx, st, accountID
}

func TestImportBasicRows(t *testing.T) {
	ctx, st, accountID := newImportFixture(t)

	rows := []feed.Row{
		{Date: "12/03/2023", Description: "WOOLWORTHS METRO", Debit: "42.50", Balance: "1,000.00"},
		{Date: "13/03/2023", Description: "SALARY ACME PTY LTD", Credit: "2,500.00", Balance: "3,500.00"},
	}

	result, err := New(st, nil, nil).Import(ctx, accountID, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 0, result.Duplicates)
	assert.Equal(t, 0, result.Skipped)
	assert.Len(t, result.NewIDs, 2)
	assert.True(t, result.BalanceSet)

	all, err := st.ListTransactions(ctx, store.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	debit := all[0]
	assert.Equal(t, "WOOLWORTHS METRO", debit.Description)
	assert.Equal(t, models.DirectionDebit, debit.Direction)
	assert.True(t, debit.Amount.Equal(decimal.RequireFromString("42.50")))
	assert.Equal(t, time.Date(2023, time.March, 12, 0, 0, 0, 0, time.UTC), debit.Date)

	credit := all[1]
	assert.Equal(t, models.DirectionCredit, credit.Direction)

	account, err := st.GetAccount(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("3500.00")))
}

func TestImportSignedAmountColumn(t *testing.T) {
	ctx, st, accountID := newImportFixture(t)

	rows := []feed.Row{
		{Date: "12/03/2023", Description: "WOOLWORTHS", Amount: "-42.50"},
		{Date: "13/03/2023", Description: "SALARY", Amount: "2500.00"},
	}

	result, err := New(st, nil, nil).Import(ctx, accountID, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)

	all, err := st.ListTransactions(ctx, store.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, models.DirectionDebit, all[0].Direction)
	assert.True(t, all[0].Amount.Equal(decimal.RequireFromString("42.50")))
	assert.Equal(t, models.DirectionCredit, all[1].Direction)
}

func TestImportIsIdempotent(t *testing.T) {
	ctx, st, accountID := newImportFixture(t)

	rows := []feed.Row{
		{Date: "12/03/2023", Description: "WOOLWORTHS METRO", Debit: "42.50"},
		{Date: "13/03/2023", Description: "SALARY", Credit: "2500.00"},
	}

	im := New(st, nil, nil)
	first, err := im.Import(ctx, accountID, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Imported)

	second, err := im.Import(ctx, accountID, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 2, second.Duplicates)

	all, err := st.ListTransactions(ctx, store.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestImportSkipsIdenticalRowsWithinOneFile(t *testing.T) {
	ctx, st, accountID := newImportFixture(t)

	// Two identical coffees on the same day are two real purchases only
	// when the source says so twice with different keys; with identical
	// keys the second row is indistinguishable from a re-export and is
	// skipped.
	rows := []feed.Row{
		{Date: "12/03/2023", Description: "CITY COFFEE", Debit: "4.50"},
		{Date: "12/03/2023", Description: "CITY COFFEE", Debit: "4.50"},
	}

	result, err := New(st, nil, nil).Import(ctx, accountID, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Duplicates)
}

func TestImportExternalIDDedupe(t *testing.T) {
	ctx, st, accountID := newImportFixture(t)

	im := New(st, nil, nil)
	first, err := im.Import(ctx, accountID, []feed.Row{
		{Date: "12/03/2023", Description: "WOOLWORTHS", Amount: "-42.50", ExternalID: "feed-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Imported)

	// Same feed id with a reworded description: still the same entry.
	second, err := im.Import(ctx, accountID, []feed.Row{
		{Date: "12/03/2023", Description: "WOOLWORTHS METRO SYDNEY", Amount: "-42.50", ExternalID: "feed-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 1, second.Duplicates)
}

func TestImportMalformedRowsAreSkippedNotFatal(t *testing.T) {
	ctx, st, accountID := newImportFixture(t)

	rows := []feed.Row{
		{Date: "12/03/2023", Description: "GOOD ROW", Debit: "10.00"},
		{Date: "not a date", Description: "BAD DATE", Debit: "10.00"},
		{Date: "13/03/2023", Description: "", Debit: "10.00"},
		{Date: "14/03/2023", Description: "NO AMOUNT"},
		{Date: "15/03/2023", Description: "BAD AMOUNT", Debit: "abc"},
		{Date: "16/03/2023", Description: "ANOTHER GOOD ROW", Credit: "20.00"},
	}

	result, err := New(st, nil, nil).Import(ctx, accountID, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 4, result.Skipped)
}

func TestImportUnknownAccountFailsWholeOperation(t *testing.T) {
	ctx, st, _ := newImportFixture(t)

	_, err := New(st, nil, nil).Import(ctx, 999, []feed.Row{
		{Date: "12/03/2023", Description: "WOOLWORTHS", Debit: "10.00"},
	})
	assert.Error(t, err)
}

func TestImportBalanceResolution(t *testing.T) {
	ctx, st, accountID := newImportFixture(t)

	// The most recent dated balance wins regardless of input order; among
	// rows on the same most-recent date, the last seen wins.
	rows := []feed.Row{
		{Date: "14/03/2023", Description: "ROW C", Debit: "1.00", Balance: "700.00"},
		{Date: "12/03/2023", Description: "ROW A", Debit: "1.00", Balance: "900.00"},
		{Date: "14/03/2023", Description: "ROW D", Debit: "1.00", Balance: "650.00"},
		{Date: "13/03/2023", Description: "ROW B", Debit: "1.00", Balance: "800.00"},
	}

	result, err := New(st, nil, nil).Import(ctx, accountID, rows)
	require.NoError(t, err)
	assert.True(t, result.BalanceSet)

	account, err := st.GetAccount(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("650.00")))
}

func TestImportWithoutBalancesLeavesAccountUntouched(t *testing.T) {
	ctx, st, accountID := newImportFixture(t)
	require.NoError(t, st.UpdateAccountBalance(ctx, accountID, decimal.RequireFromString("123.45")))

	result, err := New(st, nil, nil).Import(ctx, accountID, []feed.Row{
		{Date: "12/03/2023", Description: "WOOLWORTHS", Debit: "10.00"},
	})
	require.NoError(t, err)
	assert.False(t, result.BalanceSet)

	account, err := st.GetAccount(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("123.45")))
}

func TestImportAppliesRulesAtTierOne(t *testing.T) {
	ctx, st, accountID := newImportFixture(t)

	groceriesID, err := st.CreateCategory(ctx, &models.Category{Name: "Groceries"})
	require.NoError(t, err)
	require.NoError(t, st.UpsertRule(ctx, "WOOLWORTHS", groceriesID, models.MaxRuleConfidence, models.ProvenanceManual))

	result, err := New(st, nil, nil).Import(ctx, accountID, []feed.Row{
		{Date: "12/03/2023", Description: "EFTPOS WOOLWORTHS METRO", Debit: "42.50"},
		{Date: "13/03/2023", Description: "ALDI STORES", Debit: "30.00"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.RuleCategorised)

	all, err := st.ListTransactions(ctx, store.TransactionFilter{})
	require.NoError(t, err)

	matched := all[0]
	require.NotNil(t, matched.CategoryID)
	assert.Equal(t, groceriesID, *matched.CategoryID)
	assert.Equal(t, models.ProvenanceRule, matched.Provenance)

	unmatched := all[1]
	assert.Nil(t, unmatched.CategoryID)
	assert.Equal(t, models.ProvenanceNone, unmatched.Provenance)
}

func TestReadCSV(t *testing.T) {
	input := strings.Join([]string{
		"Date,Description,Credit,Debit,Amount,Balance",
		"12/03/2023,WOOLWORTHS METRO,,42.50,,1000.00",
		`13/03/2023,"SALARY, ACME PTY LTD",2500.00,,,3500.00`,
	}, "\n")

	rows, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "WOOLWORTHS METRO", rows[0].Description)
	assert.Equal(t, "42.50", rows[0].Debit)
	assert.Equal(t, "SALARY, ACME PTY LTD", rows[1].Description)
	assert.Equal(t, "2500.00", rows[1].Credit)
	assert.Equal(t, "1000.00", rows[0].Balance)
}

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hearthledger/internal/classifier"
	"hearthledger/internal/models"
	"hearthledger/internal/store"
)

// fakeClassifier answers from a canned suggestion map and records the
// batches it was asked about.
type fakeClassifier struct {
	suggestions map[int64]classifier.Suggestion
	err         error
	calls       [][]int64
}

func (f *fakeClassifier) Suggest(_ context.Context, req classifier.BatchRequest) (map[int64]classifier.Suggestion, error) {
	ids := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ID)
	}
	f.calls = append(f.calls, ids)

	if f.err != nil {
		return nil, f.err
	}
	out := make(map[int64]classifier.Suggestion)
	for _, id := range ids {
		if suggestion, ok := f.suggestions[id]; ok {
			out[id] = suggestion
		}
	}
	return out, nil
}

type fixture struct {
	ctx       context.Context
	st        *store.Memory
	accountID int64
	groceries int64
	fallback  int64
}

func newEngineFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()

	accountID, err := st.CreateAccount(ctx, &models.Account{Name: "Everyday", Type: models.AccountTypeTransaction})
	require.NoError(t, err)
	groceries, err := st.CreateCategory(ctx, &models.Category{Name: "Groceries"})
	require.NoError(t, err)
	fallback, err := st.CreateCategory(ctx, &models.Category{Name: models.CategoryUncategorised, System: true})
	require.NoError(t, err)

	return &fixture{ctx: ctx, st: st, accountID: accountID, groceries: groceries, fallback: fallback}
}

func (f *fixture) addTransaction(t *testing.T, description string, provenance models.Provenance, categoryID *int64) int64 {
	t.Helper()
	id, err := f.st.CreateTransaction(f.ctx, &models.Transaction{
		AccountID:   f.accountID,
		Date:        time.Date(2023, time.March, 12, 0, 0, 0, 0, time.UTC),
		Description: description,
		Amount:      decimal.RequireFromString("10.00"),
		Direction:   models.DirectionDebit,
		CategoryID:  categoryID,
		Provenance:  provenance,
	})
	require.NoError(t, err)
	return id
}

func TestCategorizeAppliesSuggestions(t *testing.T) {
	f := newEngineFixture(t)
	txID := f.addTransaction(t, "WOOLWORTHS METRO", models.ProvenanceNone, nil)

	fake := &fakeClassifier{suggestions: map[int64]classifier.Suggestion{
		txID: {CategoryID: f.groceries, CleanName: "Woolworths"},
	}}

	stats, err := New(f.st, fake, 0, nil).CategorizeAll(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Considered)
	assert.Equal(t, 1, stats.AICategorised)
	assert.Equal(t, 1, stats.Renamed)

	tx, err := f.st.GetTransaction(f.ctx, txID)
	require.NoError(t, err)
	require.NotNil(t, tx.CategoryID)
	assert.Equal(t, f.groceries, *tx.CategoryID)
	assert.Equal(t, models.ProvenanceAI, tx.Provenance)
	assert.Equal(t, "Woolworths", tx.CleanName)
}

func TestCategorizeExcludesStickyProvenance(t *testing.T) {
	f := newEngineFixture(t)
	manualID := f.addTransaction(t, "MANUAL ROW", models.ProvenanceManual, &f.groceries)
	ruleID := f.addTransaction(t, "RULE ROW", models.ProvenanceRule, &f.groceries)
	aiID := f.addTransaction(t, "AI ROW", models.ProvenanceAI, &f.groceries)
	plainID := f.addTransaction(t, "PLAIN ROW", models.ProvenanceNone, nil)

	fake := &fakeClassifier{suggestions: map[int64]classifier.Suggestion{}}

	stats, err := New(f.st, fake, 0, nil).CategorizeAll(f.ctx)
	require.NoError(t, err)

	// Rule- and manually-categorized rows never reach the classifier;
	// already-AI rows may be refined.
	assert.Equal(t, 2, stats.Considered)
	require.Len(t, fake.calls, 1)
	assert.ElementsMatch(t, []int64{aiID, plainID}, fake.calls[0])
	assert.NotContains(t, fake.calls[0], manualID)
	assert.NotContains(t, fake.calls[0], ruleID)
}

func TestCategorizeUnknownCategoryRemapsToFallback(t *testing.T) {
	f := newEngineFixture(t)
	txID := f.addTransaction(t, "MYSTERY SHOP", models.ProvenanceNone, nil)

	fake := &fakeClassifier{suggestions: map[int64]classifier.Suggestion{
		txID: {CategoryID: 9999},
	}}

	stats, err := New(f.st, fake, 0, nil).CategorizeAll(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AICategorised)

	tx, err := f.st.GetTransaction(f.ctx, txID)
	require.NoError(t, err)
	require.NotNil(t, tx.CategoryID)
	assert.Equal(t, f.fallback, *tx.CategoryID)
	assert.Equal(t, models.ProvenanceAI, tx.Provenance)
}

func TestCategorizeTransferFlagIsSticky(t *testing.T) {
	f := newEngineFixture(t)
	flaggedID := f.addTransaction(t, "ALREADY FLAGGED", models.ProvenanceNone, nil)
	yes := true
	require.NoError(t, f.st.UpdateTransaction(f.ctx, flaggedID, store.TransactionUpdate{IsTransfer: &yes}))
	newID := f.addTransaction(t, "NEWLY FLAGGED", models.ProvenanceNone, nil)

	fake := &fakeClassifier{suggestions: map[int64]classifier.Suggestion{
		// A false (or absent) is_transfer must never revert the flag.
		flaggedID: {IsTransfer: false},
		newID:     {IsTransfer: true},
	}}

	stats, err := New(f.st, fake, 0, nil).CategorizeAll(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TransfersFlagged)

	flagged, err := f.st.GetTransaction(f.ctx, flaggedID)
	require.NoError(t, err)
	assert.True(t, flagged.IsTransfer)

	newlyFlagged, err := f.st.GetTransaction(f.ctx, newID)
	require.NoError(t, err)
	assert.True(t, newlyFlagged.IsTransfer)
}

func TestCategorizeClassifierFailureIsSoft(t *testing.T) {
	f := newEngineFixture(t)
	txID := f.addTransaction(t, "WOOLWORTHS METRO", models.ProvenanceNone, nil)

	fake := &fakeClassifier{err: errors.New("service unavailable")}

	stats, err := New(f.st, fake, 0, nil).CategorizeAll(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Considered)
	assert.Equal(t, 0, stats.AICategorised)
	assert.Equal(t, 1, stats.ChunksFailed)

	// The transaction is untouched and eligible for the next run.
	tx, err := f.st.GetTransaction(f.ctx, txID)
	require.NoError(t, err)
	assert.Nil(t, tx.CategoryID)
	assert.Equal(t, models.ProvenanceNone, tx.Provenance)
}

func TestCategorizeChunkingDoesNotChangeSemantics(t *testing.T) {
	f := newEngineFixture(t)

	suggestions := make(map[int64]classifier.Suggestion)
	var ids []int64
	for i := 0; i < 5; i++ {
		id := f.addTransaction(t, "SHOP "+string(rune('A'+i)), models.ProvenanceNone, nil)
		ids = append(ids, id)
		suggestions[id] = classifier.Suggestion{CategoryID: f.groceries}
	}

	fake := &fakeClassifier{suggestions: suggestions}
	stats, err := New(f.st, fake, 2, nil).CategorizeAll(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Considered)
	assert.Equal(t, 5, stats.AICategorised)
	assert.Len(t, fake.calls, 3) // 2 + 2 + 1

	for _, id := range ids {
		tx, err := f.st.GetTransaction(f.ctx, id)
		require.NoError(t, err)
		require.NotNil(t, tx.CategoryID)
		assert.Equal(t, f.groceries, *tx.CategoryID)
	}
}

func TestCategorizeIDsSkipsUnknown(t *testing.T) {
	f := newEngineFixture(t)
	txID := f.addTransaction(t, "WOOLWORTHS", models.ProvenanceNone, nil)

	fake := &fakeClassifier{suggestions: map[int64]classifier.Suggestion{
		txID: {CategoryID: f.groceries},
	}}

	stats, err := New(f.st, fake, 0, nil).CategorizeIDs(f.ctx, []int64{txID, 999})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Considered)
	assert.Equal(t, 1, stats.AICategorised)
}

func TestCategorizeDisabledClassifierIsNoOp(t *testing.T) {
	f := newEngineFixture(t)
	txID := f.addTransaction(t, "WOOLWORTHS", models.ProvenanceNone, nil)

	stats, err := New(f.st, classifier.Disabled{}, 0, nil).CategorizeAll(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Considered)
	assert.Equal(t, 0, stats.AICategorised)
	assert.Equal(t, 0, stats.ChunksFailed)

	tx, err := f.st.GetTransaction(f.ctx, txID)
	require.NoError(t, err)
	assert.Nil(t, tx.CategoryID)
}

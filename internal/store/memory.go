package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"hearthledger/internal/models"
)

// Memory is a map-backed Store used in tests. It enforces the same
// natural-key and external-id uniqueness as the sqlite store.
type Memory struct {
	mu sync.Mutex

	nextTxID       int64
	nextAccountID  int64
	nextCategoryID int64
	nextRuleID     int64

	transactions map[int64]*models.Transaction
	accounts     map[int64]*models.Account
	categories   map[int64]*models.Category
	rules        map[int64]*models.CategoryRule
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[int64]*models.Transaction),
		accounts:     make(map[int64]*models.Account),
		categories:   make(map[int64]*models.Category),
		rules:        make(map[int64]*models.CategoryRule),
	}
}

func (m *Memory) CreateTransaction(_ context.Context, t *models.Transaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := t.Key()
	for _, existing := range m.transactions {
		if existing.Key() == key {
			return 0, ErrDuplicate
		}
		if t.ExternalID != "" && existing.ExternalID == t.ExternalID {
			return 0, ErrDuplicate
		}
	}

	m.nextTxID++
	clone := *t
	clone.ID = m.nextTxID
	clone.Date = models.NormalizeDate(t.Date)
	if t.CategoryID != nil {
		id := *t.CategoryID
		clone.CategoryID = &id
	}
	m.transactions[clone.ID] = &clone
	return clone.ID, nil
}

func (m *Memory) GetTransaction(_ context.Context, id int64) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (m *Memory) FindTransactionByKey(_ context.Context, key models.TransactionKey) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transactions {
		if t.Key() == key {
			clone := *t
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) FindTransactionByExternalID(_ context.Context, externalID string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transactions {
		if t.ExternalID != "" && t.ExternalID == externalID {
			clone := *t
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func applyUpdate(t *models.Transaction, upd TransactionUpdate) {
	if upd.ClearCategory {
		t.CategoryID = nil
	} else if upd.CategoryID != nil {
		id := *upd.CategoryID
		t.CategoryID = &id
	}
	if upd.Provenance != nil {
		t.Provenance = *upd.Provenance
	}
	if upd.CleanName != nil {
		t.CleanName = *upd.CleanName
	}
	if upd.IsTransfer != nil {
		t.IsTransfer = *upd.IsTransfer
	}
	if upd.ClearLink {
		t.LinkedID = nil
	} else if upd.LinkedID != nil {
		id := *upd.LinkedID
		t.LinkedID = &id
	}
	if upd.Excluded != nil {
		t.Excluded = *upd.Excluded
	}
	if upd.Note != nil {
		t.Note = *upd.Note
	}
}

func (m *Memory) UpdateTransaction(_ context.Context, id int64, upd TransactionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return ErrNotFound
	}
	applyUpdate(t, upd)
	return nil
}

func (m *Memory) ListTransactions(_ context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Transaction
	for _, t := range m.transactions {
		if filter.AccountID != nil && t.AccountID != *filter.AccountID {
			continue
		}
		if filter.ExcludeAccountID != nil && t.AccountID == *filter.ExcludeAccountID {
			continue
		}
		if filter.From != nil && t.Date.Before(models.NormalizeDate(*filter.From)) {
			continue
		}
		if filter.To != nil && t.Date.After(models.NormalizeDate(*filter.To)) {
			continue
		}
		if filter.Direction != nil && t.Direction != *filter.Direction {
			continue
		}
		if filter.Amount != nil && !t.Amount.Equal(*filter.Amount) {
			continue
		}
		if filter.IsTransfer != nil && t.IsTransfer != *filter.IsTransfer {
			continue
		}
		if filter.Linked != nil && (t.LinkedID != nil) != *filter.Linked {
			continue
		}
		if filter.Uncategorised && t.CategoryID != nil {
			continue
		}
		if filter.CategoryID != nil && (t.CategoryID == nil || *t.CategoryID != *filter.CategoryID) {
			continue
		}
		out = append(out, *t)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) LinkPair(_ context.Context, aID, bID int64, aUpd, bUpd TransactionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.transactions[aID]
	if !ok {
		return ErrNotFound
	}
	b, ok := m.transactions[bID]
	if !ok {
		return ErrNotFound
	}

	yes := true
	aUpd.IsTransfer = &yes
	aUpd.LinkedID = &bID
	aUpd.ClearLink = false
	bUpd.IsTransfer = &yes
	bUpd.LinkedID = &aID
	bUpd.ClearLink = false

	applyUpdate(a, aUpd)
	applyUpdate(b, bUpd)
	return nil
}

func (m *Memory) ClearTransferLinks(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, t := range m.transactions {
		if t.IsTransfer || t.LinkedID != nil {
			t.IsTransfer = false
			t.LinkedID = nil
			count++
		}
	}
	return count, nil
}

func (m *Memory) CreateAccount(_ context.Context, a *models.Account) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAccountID++
	clone := *a
	clone.ID = m.nextAccountID
	m.accounts[clone.ID] = &clone
	return clone.ID, nil
}

func (m *Memory) GetAccount(_ context.Context, id int64) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (m *Memory) GetAccountByName(_ context.Context, name string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Name == name {
			clone := *a
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListAccounts(_ context.Context) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Account
	for _, a := range m.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateAccountBalance(_ context.Context, id int64, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.Balance = balance
	return nil
}

func (m *Memory) CreateCategory(_ context.Context, c *models.Category) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.categories {
		if existing.Name == c.Name {
			return 0, ErrDuplicate
		}
	}
	m.nextCategoryID++
	clone := *c
	clone.ID = m.nextCategoryID
	m.categories[clone.ID] = &clone
	return clone.ID, nil
}

func (m *Memory) GetCategory(_ context.Context, id int64) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (m *Memory) GetCategoryByName(_ context.Context, name string) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.Name == name {
			clone := *c
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListCategories(_ context.Context) ([]models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Category
	for _, c := range m.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteCategory(_ context.Context, id int64, reassignTo *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.categories[id]
	if !ok {
		return ErrNotFound
	}
	if c.System {
		return ErrProtected
	}

	for _, t := range m.transactions {
		if t.CategoryID != nil && *t.CategoryID == id {
			if reassignTo != nil {
				target := *reassignTo
				t.CategoryID = &target
			} else {
				t.CategoryID = nil
			}
		}
	}
	for ruleID, r := range m.rules {
		if r.CategoryID == id {
			delete(m.rules, ruleID)
		}
	}
	delete(m.categories, id)
	return nil
}

func (m *Memory) ListRules(_ context.Context) ([]models.CategoryRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CategoryRule
	for _, r := range m.rules {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) UpsertRule(_ context.Context, pattern string, categoryID int64, confidence int, provenance models.Provenance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.rules {
		if r.Pattern == pattern {
			r.CategoryID = categoryID
			r.Confidence = confidence
			r.Provenance = provenance
			return nil
		}
	}

	m.nextRuleID++
	m.rules[m.nextRuleID] = &models.CategoryRule{
		ID:         m.nextRuleID,
		Pattern:    pattern,
		CategoryID: categoryID,
		Confidence: confidence,
		Provenance: provenance,
	}
	return nil
}

// Package seed populates a fresh ledger with the category tree and the
// household's accounts.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"hearthledger/internal/logging"
	"hearthledger/internal/models"
	"hearthledger/internal/store"
)

// CategoryEntry is one category in a seed file.
type CategoryEntry struct {
	Name     string          `yaml:"name"`
	Parent   string          `yaml:"parent,omitempty"`
	Children []CategoryEntry `yaml:"children,omitempty"`
}

// AccountEntry is one account in a seed file.
type AccountEntry struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	ConnectionID string `yaml:"connection_id,omitempty"`
}

// Result summarizes one seeding run.
type Result struct {
	CategoriesCreated int
	AccountsCreated   int
	Skipped           int // entries that already existed
}

// systemCategories must exist for the pipeline to work: the transfer
// linker and the Tier-2 fallback resolve them by name. They are marked
// protected so DeleteCategory refuses them.
var systemCategories = []string{
	models.CategoryUncategorised,
	models.CategorySavingsTransfer,
	models.CategoryLoanRepayment,
	models.CategoryPersonalLoanRepayment,
}

// DefaultCategories is the built-in shallow category tree applied when
// no seed file is given.
func DefaultCategories() []CategoryEntry {
	return []CategoryEntry{
		{Name: "Groceries"},
		{Name: "Dining Out"},
		{Name: "Transport", Children: []CategoryEntry{
			{Name: "Fuel"},
			{Name: "Public Transport"},
		}},
		{Name: "Utilities", Children: []CategoryEntry{
			{Name: "Electricity"},
			{Name: "Water"},
			{Name: "Internet"},
		}},
		{Name: "Housing", Children: []CategoryEntry{
			{Name: "Rent"},
			{Name: "Rates"},
		}},
		{Name: "Health"},
		{Name: "Insurance"},
		{Name: "Entertainment"},
		{Name: "Shopping"},
		{Name: "Subscriptions"},
		{Name: "Income", Children: []CategoryEntry{
			{Name: "Salary"},
			{Name: "Interest"},
		}},
		{Name: "Fees & Charges"},
	}
}

// LoadCategories reads a category seed file.
func LoadCategories(path string) ([]CategoryEntry, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from user config
	if err != nil {
		return nil, fmt.Errorf("read categories file: %w", err)
	}

	var doc struct {
		Categories []CategoryEntry `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse categories file: %w", err)
	}
	return doc.Categories, nil
}

// LoadAccounts reads an account seed file.
func LoadAccounts(path string) ([]AccountEntry, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from user config
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}

	var doc struct {
		Accounts []AccountEntry `yaml:"accounts"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}
	return doc.Accounts, nil
}

// Apply seeds system categories, the given category tree and accounts.
// Seeding is idempotent: entries that already exist by name are skipped,
// so re-running init never duplicates or resets anything.
func Apply(ctx context.Context, st store.Store, categories []CategoryEntry,
	accounts []AccountEntry, logger logging.Logger) (*Result, error) {

	if logger == nil {
		logger = logging.NewNopLogger()
	}
	result := &Result{}

	for _, name := range systemCategories {
		created, _, err := ensureCategory(ctx, st, name, nil, true)
		if err != nil {
			return nil, err
		}
		if created {
			result.CategoriesCreated++
		} else {
			result.Skipped++
		}
	}

	if err := applyCategories(ctx, st, categories, nil, result); err != nil {
		return nil, err
	}

	for _, entry := range accounts {
		if entry.Name == "" {
			return nil, fmt.Errorf("account entry without a name")
		}
		if _, err := st.GetAccountByName(ctx, entry.Name); err == nil {
			result.Skipped++
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("look up account %q: %w", entry.Name, err)
		}

		accountType := models.AccountType(entry.Type)
		if accountType == "" {
			accountType = models.AccountTypeTransaction
		}
		if _, err := st.CreateAccount(ctx, &models.Account{
			Name:         entry.Name,
			Type:         accountType,
			Balance:      decimal.Zero,
			ConnectionID: entry.ConnectionID,
		}); err != nil {
			return nil, fmt.Errorf("create account %q: %w", entry.Name, err)
		}
		result.AccountsCreated++
	}

	logger.WithFields(
		logging.Field{Key: "categories_created", Value: result.CategoriesCreated},
		logging.Field{Key: "accounts_created", Value: result.AccountsCreated},
		logging.Field{Key: "skipped", Value: result.Skipped},
	).Info("Seeding finished")
	return result, nil
}

func applyCategories(ctx context.Context, st store.Store, entries []CategoryEntry,
	parentID *int64, result *Result) error {

	for _, entry := range entries {
		if entry.Name == "" {
			return fmt.Errorf("category entry without a name")
		}

		effectiveParent := parentID
		if entry.Parent != "" {
			parent, err := st.GetCategoryByName(ctx, entry.Parent)
			if err != nil {
				return fmt.Errorf("parent category %q: %w", entry.Parent, err)
			}
			effectiveParent = &parent.ID
		}

		created, id, err := ensureCategory(ctx, st, entry.Name, effectiveParent, false)
		if err != nil {
			return err
		}
		if created {
			result.CategoriesCreated++
		} else {
			result.Skipped++
		}

		if err := applyCategories(ctx, st, entry.Children, &id, result); err != nil {
			return err
		}
	}
	return nil
}

func ensureCategory(ctx context.Context, st store.Store, name string,
	parentID *int64, system bool) (bool, int64, error) {

	if existing, err := st.GetCategoryByName(ctx, name); err == nil {
		return false, existing.ID, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, 0, fmt.Errorf("look up category %q: %w", name, err)
	}

	id, err := st.CreateCategory(ctx, &models.Category{
		Name:     name,
		ParentID: parentID,
		System:   system,
	})
	if err != nil {
		return false, 0, fmt.Errorf("create category %q: %w", name, err)
	}
	return true, id, nil
}

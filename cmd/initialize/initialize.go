// Package initialize handles first-time ledger setup.
package initialize

import (
	"github.com/spf13/cobra"

	"hearthledger/cmd/root"
	"hearthledger/internal/logging"
	"hearthledger/internal/seed"
)

var (
	categoriesFile string
	accountsFile   string
)

// Cmd represents the init command.
var Cmd = &cobra.Command{
	Use:   "init",
	Short: "Create the ledger database and seed categories and accounts",
	Long: `Create the ledger database, seed the system and default categories,
and optionally create the household's accounts from a YAML file.
Re-running init is safe: existing entries are left untouched.`,
	RunE: initFunc,
}

func init() {
	Cmd.Flags().StringVarP(&categoriesFile, "categories", "c", "", "YAML file with the category tree (defaults to the built-in tree)")
	Cmd.Flags().StringVarP(&accountsFile, "accounts", "a", "", "YAML file with the household's accounts")
}

func initFunc(cmd *cobra.Command, args []string) error {
	categories := seed.DefaultCategories()
	if categoriesFile != "" {
		loaded, err := seed.LoadCategories(categoriesFile)
		if err != nil {
			return err
		}
		categories = loaded
	}

	var accounts []seed.AccountEntry
	if accountsFile != "" {
		loaded, err := seed.LoadAccounts(accountsFile)
		if err != nil {
			return err
		}
		accounts = loaded
	}

	result, err := seed.Apply(cmd.Context(), root.Ledger, categories, accounts, root.Log)
	if err != nil {
		return err
	}

	root.Log.WithFields(
		logging.Field{Key: "categories_created", Value: result.CategoriesCreated},
		logging.Field{Key: "accounts_created", Value: result.AccountsCreated},
		logging.Field{Key: "skipped", Value: result.Skipped},
	).Info("Ledger initialized")
	return nil
}

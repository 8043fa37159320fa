// Package sync handles pulling transactions from the account aggregator.
package sync

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hearthledger/cmd/root"
	"hearthledger/internal/feed"
	"hearthledger/internal/importer"
	"hearthledger/internal/logging"
	"hearthledger/internal/models"
)

var accountRef string

// Cmd represents the sync command.
var Cmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull transactions from the aggregator into an account",
	Long: `Fetch transactions for an account from the configured aggregator
service and import them. Rows already imported, by feed id or by their
natural key, are skipped.`,
	RunE: syncFunc,
}

func init() {
	Cmd.Flags().StringVarP(&accountRef, "account", "a", "", "Target account name or id; all connected accounts when omitted")
}

func syncFunc(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if root.Cfg.Aggregator.BaseURL == "" {
		return fmt.Errorf("aggregator.base_url is not configured")
	}

	client := feed.NewAggregatorClient(
		root.Cfg.Aggregator.BaseURL,
		root.Cfg.Aggregator.APIKey,
		time.Duration(root.Cfg.Aggregator.TimeoutSeconds)*time.Second,
		root.Log,
	)

	accounts, err := targetAccounts(cmd, client)
	if err != nil {
		return err
	}

	im := importer.New(root.Ledger, root.Cfg.Import.DateFormats, root.Log)
	for _, account := range accounts {
		rows, err := client.FetchRows(ctx, account.ConnectionID)
		if err != nil {
			return fmt.Errorf("fetch account %q: %w", account.Name, err)
		}

		result, err := im.Import(ctx, account.ID, rows)
		if err != nil {
			return fmt.Errorf("import account %q: %w", account.Name, err)
		}

		root.Log.WithFields(
			logging.Field{Key: "account", Value: account.Name},
			logging.Field{Key: "fetched", Value: len(rows)},
			logging.Field{Key: "imported", Value: result.Imported},
			logging.Field{Key: "duplicates", Value: result.Duplicates},
			logging.Field{Key: "skipped", Value: result.Skipped},
			logging.Field{Key: "rule_categorised", Value: result.RuleCategorised},
			logging.Field{Key: "balance_set", Value: result.BalanceSet},
		).Info("Sync summary")
	}
	return nil
}

// targetAccounts resolves the --account flag, or collects every account
// with an aggregator connection when the flag is omitted.
func targetAccounts(cmd *cobra.Command, client *feed.AggregatorClient) ([]models.Account, error) {
	ctx := cmd.Context()

	if accountRef != "" {
		account, err := root.ResolveAccount(ctx, accountRef)
		if err != nil {
			return nil, fmt.Errorf("resolve account %q: %w", accountRef, err)
		}
		if account.ConnectionID == "" {
			return nil, fmt.Errorf("account %q has no aggregator connection", account.Name)
		}
		return []models.Account{*account}, nil
	}

	all, err := root.Ledger.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	connected := make([]models.Account, 0, len(all))
	for _, account := range all {
		if account.ConnectionID != "" {
			connected = append(connected, account)
		}
	}
	if len(connected) == 0 {
		return nil, fmt.Errorf("no accounts have an aggregator connection")
	}
	return connected, nil
}

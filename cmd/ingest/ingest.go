// Package ingest handles CSV statement imports.
package ingest

import (
	"fmt"

	"github.com/spf13/cobra"

	"hearthledger/cmd/root"
	"hearthledger/internal/engine"
	"hearthledger/internal/importer"
	"hearthledger/internal/logging"
)

var (
	inputFile  string
	accountRef string
	categorize bool
)

// Cmd represents the import command.
var Cmd = &cobra.Command{
	Use:   "import",
	Short: "Import a bank statement CSV into an account",
	Long: `Import a bank statement CSV file into one account. Rows are
deduplicated, categorized by learned rules and the account balance is
updated from the most recent row that carries one.`,
	RunE: importFunc,
}

func init() {
	Cmd.Flags().StringVarP(&inputFile, "file", "f", "", "Input CSV file (required)")
	Cmd.Flags().StringVarP(&accountRef, "account", "a", "", "Target account name or id (required)")
	Cmd.Flags().BoolVar(&categorize, "categorize", false, "Run the AI categorization pass on the newly imported rows")
	_ = Cmd.MarkFlagRequired("file")
	_ = Cmd.MarkFlagRequired("account")
}

func importFunc(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	account, err := root.ResolveAccount(ctx, accountRef)
	if err != nil {
		return fmt.Errorf("resolve account %q: %w", accountRef, err)
	}

	rows, err := importer.ReadCSVFile(inputFile)
	if err != nil {
		return err
	}

	im := importer.New(root.Ledger, root.Cfg.Import.DateFormats, root.Log)
	result, err := im.Import(ctx, account.ID, rows)
	if err != nil {
		return err
	}

	root.Log.WithFields(
		logging.Field{Key: "account", Value: account.Name},
		logging.Field{Key: "imported", Value: result.Imported},
		logging.Field{Key: "duplicates", Value: result.Duplicates},
		logging.Field{Key: "skipped", Value: result.Skipped},
		logging.Field{Key: "rule_categorised", Value: result.RuleCategorised},
		logging.Field{Key: "balance_set", Value: result.BalanceSet},
	).Info("Import summary")

	if !categorize || len(result.NewIDs) == 0 {
		return nil
	}

	cl, cleanup, err := root.NewClassifier(ctx)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	stats, err := engine.New(root.Ledger, cl, root.Cfg.AI.ChunkSize, root.Log).
		CategorizeIDs(ctx, result.NewIDs)
	if err != nil {
		return err
	}

	root.Log.WithFields(
		logging.Field{Key: "considered", Value: stats.Considered},
		logging.Field{Key: "ai_categorised", Value: stats.AICategorised},
		logging.Field{Key: "transfers_flagged", Value: stats.TransfersFlagged},
		logging.Field{Key: "renamed", Value: stats.Renamed},
		logging.Field{Key: "chunks_failed", Value: stats.ChunksFailed},
	).Info("Categorization summary")
	return nil
}

// Package categorize handles the AI categorization pass.
package categorize

import (
	"github.com/spf13/cobra"

	"hearthledger/cmd/root"
	"hearthledger/internal/engine"
	"hearthledger/internal/logging"
)

// Cmd represents the categorize command.
var Cmd = &cobra.Command{
	Use:   "categorize",
	Short: "Categorize uncategorized transactions with the AI classifier",
	Long: `Send still-uncategorized transactions to the configured classifier
in batches and write the suggestions back. Rule and manual categories
are never overwritten; a classifier outage leaves transactions
untouched for the next run.`,
	RunE: categorizeFunc,
}

func categorizeFunc(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if !root.Cfg.AI.Enabled {
		root.Log.Warn("AI classification is disabled; enable ai.enabled and set GEMINI_API_KEY")
	}

	cl, cleanup, err := root.NewClassifier(ctx)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	stats, err := engine.New(root.Ledger, cl, root.Cfg.AI.ChunkSize, root.Log).
		CategorizeAll(ctx)
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

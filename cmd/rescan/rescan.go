// Package rescan handles the full transfer re-scan.
package rescan

import (
	"github.com/spf13/cobra"

	"hearthledger/cmd/root"
	"hearthledger/internal/logging"
	"hearthledger/internal/transfer"
)

// Cmd represents the rescan command.
var Cmd = &cobra.Command{
	Use:   "rescan",
	Short: "Reset all transfer links and re-link every account",
	Long: `Clear every transfer flag and link, then run the linker over all
accounts. Use after adding an account so one-sided transfers can find
their counterpart.`,
	RunE: rescanFunc,
}

func rescanFunc(cmd *cobra.Command, args []string) error {
	keywords, err := root.Keywords()
	if err != nil {
		return err
	}

	linker := transfer.New(root.Ledger, keywords, root.Cfg.Transfer.WindowDays, root.Log)
	result, err := linker.Rescan(cmd.Context())
	if err != nil {
		return err
	}

	root.Log.WithFields(
		logging.Field{Key: "cleared", Value: result.Cleared},
		logging.Field{Key: "candidates", Value: result.Candidates},
		logging.Field{Key: "linked_pairs", Value: result.LinkedPairs},
		logging.Field{Key: "fallback_flagged", Value: result.FallbackFlagged},
	).Info("Re-scan summary")
	return nil
}

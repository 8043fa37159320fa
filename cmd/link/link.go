// Package link handles transfer linking commands.
package link

import (
	"fmt"

	"github.com/spf13/cobra"

	"hearthledger/cmd/root"
	"hearthledger/internal/logging"
	"hearthledger/internal/transfer"
)

var accountRef string

// Cmd represents the link command.
var Cmd = &cobra.Command{
	Use:   "link",
	Short: "Identify and pair internal transfers",
	Long: `Scan unflagged transactions for transfer patterns and pair their
debit/credit halves across the household's accounts. Candidates with no
counterpart fall back to keyword classification.`,
	RunE: linkFunc,
}

func init() {
	Cmd.Flags().StringVarP(&accountRef, "account", "a", "", "Limit linking to one account (name or id)")
}

func linkFunc(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	keywords, err := root.Keywords()
	if err != nil {
		return err
	}
	linker := transfer.New(root.Ledger, keywords, root.Cfg.Transfer.WindowDays, root.Log)

	var result *transfer.Result
	if accountRef != "" {
		account, err := root.ResolveAccount(ctx, accountRef)
		if err != nil {
			return fmt.Errorf("resolve account %q: %w", accountRef, err)
		}
		result, err = linker.LinkAccount(ctx, account.ID)
		if err != nil {
			return err
		}
	} else {
		result, err = linker.LinkAll(ctx)
		if err != nil {
			return err
		}
	}

	root.Log.WithFields(
		logging.Field{Key: "candidates", Value: result.Candidates},
		logging.Field{Key: "linked_pairs", Value: result.LinkedPairs},
		logging.Field{Key: "fallback_flagged", Value: result.FallbackFlagged},
	).Info("Link summary")
	return nil
}

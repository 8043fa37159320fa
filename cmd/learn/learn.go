// Package learn handles manual category corrections.
package learn

import (
	"fmt"

	"github.com/spf13/cobra"

	"hearthledger/cmd/root"
	"hearthledger/internal/logging"
	"hearthledger/internal/rules"
)

var (
	transactionID int64
	categoryRef   string
)

// Cmd represents the learn command.
var Cmd = &cobra.Command{
	Use:   "learn",
	Short: "Manually categorize a transaction and learn a rule from it",
	Long: `Assign a category to one transaction with manual provenance and
derive a maximum-confidence rule from its description, so similar rows
categorize themselves at the next import.`,
	RunE: learnFunc,
}

func init() {
	Cmd.Flags().Int64VarP(&transactionID, "transaction", "t", 0, "Transaction id (required)")
	Cmd.Flags().StringVarP(&categoryRef, "category", "c", "", "Category name or id (required)")
	_ = Cmd.MarkFlagRequired("transaction")
	_ = Cmd.MarkFlagRequired("category")
}

func learnFunc(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	category, err := root.ResolveCategory(ctx, categoryRef)
	if err != nil {
		return fmt.Errorf("resolve category %q: %w", categoryRef, err)
	}

	if err := rules.NewService(root.Ledger, root.Log).
		Assign(ctx, transactionID, category.ID); err != nil {
		return err
	}

	root.Log.WithFields(
		logging.Field{Key: "transaction_id", Value: transactionID},
		logging.Field{Key: "category", Value: category.Name},
	).Info("Manual category assigned")
	return nil
}

// Package root contains the root command and the shared wiring every
// subcommand builds on: configuration, logging and the opened ledger.
package root

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"hearthledger/internal/classifier"
	"hearthledger/internal/config"
	"hearthledger/internal/logging"
	"hearthledger/internal/models"
	"hearthledger/internal/store"
	"hearthledger/internal/transfer"
)

var (
	// Log is the shared logger instance for commands.
	Log logging.Logger = logging.NewNopLogger()

	// Cfg is the loaded application configuration.
	Cfg *config.Config

	// Ledger is the opened store shared by all subcommands.
	Ledger store.Store

	sqliteLedger *store.SQLite

	// DBPath overrides the configured database path.
	DBPath string

	// Cmd is the root command.
	Cmd = &cobra.Command{
		Use:   "hearthledger",
		Short: "A CLI tool to import, categorize and link household bank transactions.",
		Long: `hearthledger imports bank statement feeds into a local ledger,
categorizes transactions with learned rules and an AI classifier, and
links internal transfers between the household's accounts.`,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to hearthledger!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			Cfg = cfg
			Log = logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)

			path := cfg.Store.Path
			if DBPath != "" {
				path = DBPath
			}
			ledger, err := store.Open(path)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			sqliteLedger = ledger
			Ledger = ledger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if sqliteLedger != nil {
				if err := sqliteLedger.Close(); err != nil {
					Log.WithError(err).Warn("Failed to close ledger")
				}
			}
		},
	}
)

// Init initializes the root command flags.
func Init() {
	Cmd.PersistentFlags().StringVar(&DBPath, "db", "", "Ledger database file (overrides configuration)")
}

// ResolveAccount accepts a numeric account id or an account name.
func ResolveAccount(ctx context.Context, ref string) (*models.Account, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return Ledger.GetAccount(ctx, id)
	}
	return Ledger.GetAccountByName(ctx, ref)
}

// ResolveCategory accepts a numeric category id or a category name.
func ResolveCategory(ctx context.Context, ref string) (*models.Category, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return Ledger.GetCategory(ctx, id)
	}
	return Ledger.GetCategoryByName(ctx, ref)
}

// Keywords loads the transfer fallback keyword table, honoring a
// configured override file.
func Keywords() (transfer.KeywordTable, error) {
	if Cfg.Transfer.KeywordsFile == "" {
		return transfer.DefaultKeywords(), nil
	}
	return transfer.LoadKeywords(Cfg.Transfer.KeywordsFile)
}

// NewClassifier builds the configured classifier. When AI is disabled
// it returns the no-op classifier and a nil cleanup.
func NewClassifier(ctx context.Context) (classifier.Classifier, func(), error) {
	if !Cfg.AI.Enabled {
		Log.Debug("AI classification disabled, using no-op classifier")
		return classifier.Disabled{}, nil, nil
	}

	gemini, err := classifier.NewGemini(ctx, Cfg.AI.APIKey, Cfg.AI.Model,
		time.Duration(Cfg.AI.TimeoutSeconds)*time.Second, Log)
	if err != nil {
		return nil, nil, fmt.Errorf("create classifier: %w", err)
	}
	return gemini, func() {
		if err := gemini.Close(); err != nil {
			Log.WithError(err).Warn("Failed to close classifier")
		}
	}, nil
}

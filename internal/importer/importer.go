// Package importer turns raw feed rows into persisted, deduplicated,
// Tier-1-categorized ledger transactions.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hearthledger/internal/currencyutils"
	"hearthledger/internal/dateutils"
	"hearthledger/internal/feed"
	"hearthledger/internal/logging"
	"hearthledger/internal/models"
	"hearthledger/internal/rules"
	"hearthledger/internal/store"
)

// Result is the structured summary an import returns to its caller.
type Result struct {
	Imported        int
	Skipped         int // malformed rows
	Duplicates      int
	RuleCategorised int
	NewIDs          []int64
	BalanceSet      bool
}

// Importer persists feed rows into the ledger.
type Importer struct {
	store       store.Store
	dateFormats []string
	logger      logging.Logger
}

// New creates an importer. Empty dateFormats fall back to the standard
// day-first set.
func New(st store.Store, dateFormats []string, logger logging.Logger) *Importer {
	if len(dateFormats) == 0 {
		dateFormats = dateutils.DayFirstFormats
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Importer{store: st, dateFormats: dateFormats, logger: logger}
}

// candidate is one parsed, not-yet-persisted row.
type candidate struct {
	date        time.Time
	description string
	amount      decimal.Decimal
	direction   models.Direction
	balance     *decimal.Decimal
	externalID  string
}

// Import processes rows in input order against the target account.
// Malformed rows and duplicates are counted, never fatal; a missing
// account rejects the whole operation.
func (im *Importer) Import(ctx context.Context, accountID int64, rows []feed.Row) (*Result, error) {
	if _, err := im.store.GetAccount(ctx, accountID); err != nil {
		return nil, fmt.Errorf("target account %d: %w", accountID, err)
	}

	matcher, err := rules.LoadMatcher(ctx, im.store, im.logger)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	// Balance resolution: the balance of the most recent dated row wins,
	// last-seen-in-input breaking ties. Never derived by summing amounts.
	var balance *decimal.Decimal
	var balanceDate time.Time

	for i, row := range rows {
		cand, err := im.parseRow(row)
		if err != nil {
			result.Skipped++
			im.logger.WithError(err).WithField("row", i+1).Warn("Skipping malformed feed row")
			continue
		}

		if cand.balance != nil && !cand.date.Before(balanceDate) {
			balance = cand.balance
			balanceDate = cand.date
		}

		if cand.externalID != "" {
			if _, err := im.store.FindTransactionByExternalID(ctx, cand.externalID); err == nil {
				result.Duplicates++
				continue
			} else if !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("dedupe lookup: %w", err)
			}
		}

		tx := models.Transaction{
			ExternalID:  cand.externalID,
			AccountID:   accountID,
			Date:        cand.date,
			Description: cand.description,
			Amount:      cand.amount,
			Direction:   cand.direction,
		}

		if _, err := im.store.FindTransactionByKey(ctx, tx.Key()); err == nil {
			result.Duplicates++
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("dedupe lookup: %w", err)
		}

		// Tier 1: rule lookup on the raw description.
		if categoryID, ok := matcher.Match(cand.description); ok {
			tx.CategoryID = &categoryID
			tx.Provenance = models.ProvenanceRule
		}

		id, err := im.store.CreateTransaction(ctx, &tx)
		if err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				// Lost a check-then-act race with a concurrent insert;
				// equivalent to a duplicate, not a failure.
				result.Duplicates++
				continue
			}
			return nil, fmt.Errorf("insert transaction: %w", err)
		}

		result.Imported++
		result.NewIDs = append(result.NewIDs, id)
		if tx.Provenance == models.ProvenanceRule {
			result.RuleCategorised++
		}
	}

	if balance != nil {
		if err := im.store.UpdateAccountBalance(ctx, accountID, *balance); err != nil {
			return nil, fmt.Errorf("update balance: %w", err)
		}
		result.BalanceSet = true
	}

	im.logger.WithFields(
		logging.Field{Key: "account_id", Value: accountID},
		logging.Field{Key: "imported", Value: result.Imported},
		logging.Field{Key: "skipped", Value: result.Skipped},
		logging.Field{Key: "duplicates", Value: result.Duplicates},
		logging.Field{Key: "rule_categorised", Value: result.RuleCategorised},
	).Info("Import finished")
	return result, nil
}

// parseRow validates and normalizes one feed row.
func (im *Importer) parseRow(row feed.Row) (*candidate, error) {
	description := strings.TrimSpace(row.Description)
	if description == "" {
		return nil, fmt.Errorf("missing description")
	}

	date, err := dateutils.ParseDayFirstFormats(row.Date, im.dateFormats)
	if err != nil {
		return nil, fmt.Errorf("unusable date: %w", err)
	}

	amount, direction, err := parseAmount(row)
	if err != nil {
		return nil, err
	}

	cand := &candidate{
		date:        date,
		description: description,
		amount:      amount,
		direction:   direction,
		externalID:  strings.TrimSpace(row.ExternalID),
	}

	if strings.TrimSpace(row.Balance) != "" {
		if balance, err := currencyutils.ParseAmount(row.Balance); err == nil {
			cand.balance = &balance
		}
		// An unparseable balance only disqualifies this row from balance
		// resolution; the transaction itself is fine.
	}

	return cand, nil
}

// parseAmount derives magnitude and direction: a populated credit column
// wins, then a populated debit column, then the sign of the single
// signed amount column.
func parseAmount(row feed.Row) (decimal.Decimal, models.Direction, error) {
	if strings.TrimSpace(row.Credit) != "" {
		amount, err := currencyutils.ParseAmount(row.Credit)
		if err != nil {
			return decimal.Zero, "", fmt.Errorf("unusable credit amount: %w", err)
		}
		return amount.Abs(), models.DirectionCredit, nil
	}

	if strings.TrimSpace(row.Debit) != "" {
		amount, err := currencyutils.ParseAmount(row.Debit)
		if err != nil {
			return decimal.Zero, "", fmt.Errorf("unusable debit amount: %w", err)
		}
		return amount.Abs(), models.DirectionDebit, nil
	}

	if strings.TrimSpace(row.Amount) != "" {
		amount, err := currencyutils.ParseAmount(row.Amount)
		if err != nil {
			return decimal.Zero, "", fmt.Errorf("unusable amount: %w", err)
		}
		direction := models.DirectionCredit
		if amount.IsNegative() {
			direction = models.DirectionDebit
		}
		return amount.Abs(), direction, nil
	}

	return decimal.Zero, "", fmt.Errorf("no usable amount field")
}

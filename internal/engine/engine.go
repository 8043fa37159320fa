// Package engine orchestrates Tier-2 categorization: it batches
// still-uncategorized transactions to the external classifier and merges
// the suggestions back under a single precedence policy.
package engine

import (
	"context"
	"errors"
	"fmt"

	"hearthledger/internal/classifier"
	"hearthledger/internal/logging"
	"hearthledger/internal/models"
	"hearthledger/internal/store"
)

// DefaultChunkSize bounds one classifier request. Chunk boundaries are a
// throughput device only; they never affect output semantics.
const DefaultChunkSize = 20

// Stats summarizes one categorization pass.
type Stats struct {
	Considered       int // transactions offered to the classifier
	AICategorised    int // categories written with provenance "ai"
	TransfersFlagged int // is-transfer flags newly set
	Renamed          int // clean names written
	ChunksFailed     int // chunks the service failed to answer
}

// Engine runs the Tier-2 pass.
type Engine struct {
	store      store.Store
	classifier classifier.Classifier
	chunkSize  int
	logger     logging.Logger
}

// New creates a categorization engine. A chunkSize below one falls back
// to DefaultChunkSize.
func New(st store.Store, cl classifier.Classifier, chunkSize int, logger logging.Logger) *Engine {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{store: st, classifier: cl, chunkSize: chunkSize, logger: logger}
}

// CategorizeAll runs Tier 2 over every eligible transaction in the
// ledger. Transactions with rule or manual provenance are excluded from
// the batch input entirely, which makes re-runs unable to degrade them.
func (e *Engine) CategorizeAll(ctx context.Context) (Stats, error) {
	transactions, err := e.store.ListTransactions(ctx, store.TransactionFilter{})
	if err != nil {
		return Stats{}, fmt.Errorf("list transactions: %w", err)
	}
	return e.categorize(ctx, transactions)
}

// CategorizeIDs runs Tier 2 over the given transactions, typically the
// rows a just-finished import created. Unknown ids are skipped.
func (e *Engine) CategorizeIDs(ctx context.Context, ids []int64) (Stats, error) {
	transactions := make([]models.Transaction, 0, len(ids))
	for _, id := range ids {
		tx, err := e.store.GetTransaction(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return Stats{}, fmt.Errorf("load transaction %d: %w", id, err)
		}
		transactions = append(transactions, *tx)
	}
	return e.categorize(ctx, transactions)
}

func (e *Engine) categorize(ctx context.Context, transactions []models.Transaction) (Stats, error) {
	var stats Stats

	candidates := make([]models.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.Provenance.Sticky() {
			continue
		}
		candidates = append(candidates, tx)
	}
	stats.Considered = len(candidates)
	if len(candidates) == 0 {
		return stats, nil
	}

	catalog, fallbackID, err := e.loadCatalog(ctx)
	if err != nil {
		return stats, err
	}
	accounts, accountsByID, err := e.loadAccounts(ctx)
	if err != nil {
		return stats, err
	}

	for start := 0; start < len(candidates); start += e.chunkSize {
		end := start + e.chunkSize
		if end > len(candidates) {
			end = len(candidates)
		}
		chunk := candidates[start:end]

		suggestions := e.suggest(ctx, chunk, catalog, accounts, accountsByID)
		if suggestions == nil {
			stats.ChunksFailed++
			continue
		}

		for _, tx := range chunk {
			suggestion, ok := suggestions[tx.ID]
			if !ok {
				continue
			}

			upd, applied := merge(&tx, suggestion, catalog, fallbackID)
			if upd == nil {
				continue
			}
			if err := e.store.UpdateTransaction(ctx, tx.ID, *upd); err != nil {
				e.logger.WithError(err).WithField("transaction_id", tx.ID).
					Warn("Failed to write classifier suggestion")
				continue
			}
			if applied.category {
				stats.AICategorised++
			}
			if applied.transfer {
				stats.TransfersFlagged++
			}
			if applied.cleanName {
				stats.Renamed++
			}
		}
	}

	e.logger.WithFields(
		logging.Field{Key: "considered", Value: stats.Considered},
		logging.Field{Key: "ai_categorised", Value: stats.AICategorised},
		logging.Field{Key: "transfers_flagged", Value: stats.TransfersFlagged},
		logging.Field{Key: "chunks_failed", Value: stats.ChunksFailed},
	).Info("Tier-2 categorization pass finished")
	return stats, nil
}

// suggest dispatches one chunk. A service failure is a soft failure:
// the chunk yields nil and the pass continues.
func (e *Engine) suggest(ctx context.Context, chunk []models.Transaction,
	catalog map[int64]string, accounts []classifier.AccountInfo,
	accountsByID map[int64]models.Account) map[int64]classifier.Suggestion {

	items := make([]classifier.BatchItem, 0, len(chunk))
	for _, tx := range chunk {
		amount := tx.Amount.String()
		if tx.Direction == models.DirectionDebit {
			amount = "-" + amount
		}
		item := classifier.BatchItem{
			ID:          tx.ID,
			Description: tx.Description,
			Amount:      amount,
			Direction:   tx.Direction,
			Date:        tx.Date.Format("2006-01-02"),
		}
		if account, ok := accountsByID[tx.AccountID]; ok {
			item.AccountName = account.Name
			item.AccountType = account.Type
		}
		items = append(items, item)
	}

	suggestions, err := e.classifier.Suggest(ctx, classifier.BatchRequest{
		Items:      items,
		Categories: catalog,
		Accounts:   accounts,
	})
	if err != nil {
		e.logger.WithError(err).WithField("chunk_size", len(chunk)).
			Warn("Classifier unavailable, leaving chunk uncategorized")
		return nil
	}
	return suggestions
}

func (e *Engine) loadCatalog(ctx context.Context) (map[int64]string, int64, error) {
	categories, err := e.store.ListCategories(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}

	catalog := make(map[int64]string, len(categories))
	var fallbackID int64
	for _, category := range categories {
		catalog[category.ID] = category.Name
		if category.Name == models.CategoryUncategorised {
			fallbackID = category.ID
		}
	}
	return catalog, fallbackID, nil
}

func (e *Engine) loadAccounts(ctx context.Context) ([]classifier.AccountInfo, map[int64]models.Account, error) {
	accounts, err := e.store.ListAccounts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list accounts: %w", err)
	}

	infos := make([]classifier.AccountInfo, 0, len(accounts))
	byID := make(map[int64]models.Account, len(accounts))
	for _, account := range accounts {
		infos = append(infos, classifier.AccountInfo{Name: account.Name, Type: account.Type})
		byID[account.ID] = account
	}
	return infos, byID, nil
}

// appliedFields records which parts of a suggestion survived the merge.
type appliedFields struct {
	category  bool
	transfer  bool
	cleanName bool
}

// merge applies the write-back precedence table to one suggestion:
//
//   - category + provenance "ai" only when the current provenance is not
//     rule or manual;
//   - an unknown category id is remapped to the Uncategorised fallback,
//     never accepted verbatim;
//   - is-transfer true is applied unconditionally, and an absent or
//     false response never reverts an existing true;
//   - a non-empty clean name always overwrites.
//
// Returns nil when nothing should be written.
func merge(tx *models.Transaction, suggestion classifier.Suggestion,
	catalog map[int64]string, fallbackID int64) (*store.TransactionUpdate, appliedFields) {

	var upd store.TransactionUpdate
	var applied appliedFields

	if suggestion.CategoryID != 0 && !tx.Provenance.Sticky() {
		categoryID := suggestion.CategoryID
		if _, known := catalog[categoryID]; !known {
			categoryID = fallbackID
		}
		if categoryID != 0 {
			provenance := models.ProvenanceAI
			upd.CategoryID = &categoryID
			upd.Provenance = &provenance
			applied.category = true
		}
	}

	if suggestion.IsTransfer && !tx.IsTransfer {
		yes := true
		upd.IsTransfer = &yes
		applied.transfer = true
	}

	if suggestion.CleanName != "" && suggestion.CleanName != tx.CleanName {
		cleanName := suggestion.CleanName
		upd.CleanName = &cleanName
		applied.cleanName = true
	}

	if !applied.category && !applied.transfer && !applied.cleanName {
		return nil, applied
	}
	return &upd, applied
}

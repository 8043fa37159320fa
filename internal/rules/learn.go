package rules

import (
	"context"
	"fmt"

	"hearthledger/internal/logging"
	"hearthledger/internal/models"
	"hearthledger/internal/store"
)

// Service records manual corrections: it writes the chosen category to
// the transaction with manual provenance and learns a rule from the
// description so similar rows categorize themselves next import.
type Service struct {
	store  store.Store
	logger logging.Logger
}

// NewService creates a rule-learning service.
func NewService(st store.Store, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{store: st, logger: logger}
}

// Assign sets a transaction's category with manual provenance and
// upserts a rule derived from its description at maximum confidence.
// An existing rule for the same derived pattern is overwritten.
func (s *Service) Assign(ctx context.Context, txID, categoryID int64) error {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}
	if _, err := s.store.GetCategory(ctx, categoryID); err != nil {
		return fmt.Errorf("load category: %w", err)
	}

	provenance := models.ProvenanceManual
	if err := s.store.UpdateTransaction(ctx, txID, store.TransactionUpdate{
		CategoryID: &categoryID,
		Provenance: &provenance,
	}); err != nil {
		return fmt.Errorf("assign category: %w", err)
	}

	pattern := DerivePattern(tx.Description)
	if pattern == "" {
		s.logger.WithField("transaction_id", txID).Debug("No derivable pattern, rule not learned")
		return nil
	}

	if err := s.store.UpsertRule(ctx, pattern, categoryID, models.MaxRuleConfidence, models.ProvenanceManual); err != nil {
		return fmt.Errorf("learn rule: %w", err)
	}

	s.logger.WithFields(
		logging.Field{Key: "pattern", Value: pattern},
		logging.Field{Key: "category_id", Value: categoryID},
	).Info("Learned category rule from manual assignment")
	return nil
}

// LoadMatcher builds a Matcher from the store's rules in confidence
// order.
func LoadMatcher(ctx context.Context, st store.Store, logger logging.Logger) (*Matcher, error) {
	ruleList, err := st.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return NewMatcher(ruleList, logger), nil
}

package services

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vhqtran/coingains/internal/models"
)

// memoryDecisionStore is an in-memory stand-in for the sqlite decision
// repository. Put keeps the first write, like the real store.
type memoryDecisionStore struct {
	decisions map[string]*models.ClassificationDecision
	puts      int
}

func newMemoryDecisionStore() *memoryDecisionStore {
	return &memoryDecisionStore{decisions: make(map[string]*models.ClassificationDecision)}
}

func (s *memoryDecisionStore) Get(_ context.Context, fingerprint string) (*models.ClassificationDecision, error) {
	if d, ok := s.decisions[fingerprint]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, nil
}

func (s *memoryDecisionStore) Put(_ context.Context, decision *models.ClassificationDecision) error {
	if err := decision.Validate(); err != nil {
		return err
	}
	s.puts++
	if _, exists := s.decisions[decision.Fingerprint]; exists {
		return nil
	}
	copied := *decision
	s.decisions[decision.Fingerprint] = &copied
	return nil
}

func (s *memoryDecisionStore) Delete(_ context.Context, fingerprint string) error {
	delete(s.decisions, fingerprint)
	return nil
}

func (s *memoryDecisionStore) List(_ context.Context) ([]*models.ClassificationDecision, error) {
	keys := make([]string, 0, len(s.decisions))
	for k := range s.decisions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*models.ClassificationDecision, 0, len(keys))
	for _, k := range keys {
		copied := *s.decisions[k]
		out = append(out, &copied)
	}
	return out, nil
}

// fixedPriceProvider quotes the same price for every date.
type fixedPriceProvider struct {
	price decimal.Decimal
	calls int
}

func (p *fixedPriceProvider) PriceAt(_ context.Context, _ string, _ time.Time) (decimal.Decimal, error) {
	p.calls++
	return p.price, nil
}

// scriptedResolver returns canned decisions keyed by transaction id and
// records what it was asked.
type scriptedResolver struct {
	answers map[string]*models.ClassificationDecision
	asked   []string
}

func (r *scriptedResolver) Resolve(_ context.Context, rec *models.TransactionRecord, suggested decimal.Decimal) (*models.ClassificationDecision, error) {
	r.asked = append(r.asked, rec.ID)
	if d, ok := r.answers[rec.ID]; ok {
		copied := *d
		return &copied, nil
	}
	return &models.ClassificationDecision{
		Outcome:    DefaultOutcome(rec.Kind),
		FiatAmount: suggested,
	}, nil
}

func day(d int) time.Time {
	return time.Date(2023, 1, d, 12, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func rec(id, account string, ts time.Time, kind models.TransactionKind, amount string) *models.TransactionRecord {
	return &models.TransactionRecord{
		ID:          id,
		Account:     account,
		Timestamp:   ts,
		Kind:        kind,
		AssetAmount: dec(amount),
	}
}

package repositories

import (
	"context"
	"time"

	"github.com/vhqtran/coingains/internal/models"
)

// DecisionRepository is the durable classification cache contract. Get
// must be consulted before any prompt; Put persists a fresh decision and
// never overwrites an existing fingerprint. Delete is the supported way
// to force re-classification.
type DecisionRepository interface {
	Get(ctx context.Context, fingerprint string) (*models.ClassificationDecision, error)
	Put(ctx context.Context, decision *models.ClassificationDecision) error
	Delete(ctx context.Context, fingerprint string) error
	List(ctx context.Context) ([]*models.ClassificationDecision, error)
}

// PriceRepository caches historical fair-market-value quotes.
type PriceRepository interface {
	Get(ctx context.Context, asset string, date time.Time) (*models.CachedPrice, error)
	Put(ctx context.Context, price *models.CachedPrice) error
}

// DateKey is the canonical cache key for a quote date.
func DateKey(date time.Time) string {
	return date.UTC().Format("2006-01-02")
}

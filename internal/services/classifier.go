package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/vhqtran/coingains/internal/errors"
	"github.com/vhqtran/coingains/internal/models"
	"github.com/vhqtran/coingains/internal/repositories"
)

// Classifier determines the tax treatment of a transaction the transfer
// detector could not pair. The cache is consulted first; only a miss
// reaches the resolver, and every fresh answer is persisted immediately
// so an aborted run keeps its progress.
type Classifier struct {
	store    repositories.DecisionRepository
	resolver Resolver
	prices   PriceProvider
	asset    string
	logger   *zap.Logger
}

// NewClassifier wires the classifier. resolver may be nil for a strictly
// non-interactive run, in which case a cache miss is fatal.
func NewClassifier(store repositories.DecisionRepository, resolver Resolver, prices PriceProvider, asset string, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{store: store, resolver: resolver, prices: prices, asset: asset, logger: logger}
}

// Classify returns the decision for rec, from cache or resolver.
func (c *Classifier) Classify(ctx context.Context, rec *models.TransactionRecord) (*models.ClassificationDecision, error) {
	fp := rec.Fingerprint()
	cached, err := c.store.Get(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("decision cache lookup failed: %w", err)
	}
	if cached != nil {
		if !cached.Outcome.ValidFor(rec.Kind) {
			return nil, fmt.Errorf("cached decision %s has outcome %q, invalid for %s %s; delete the cache entry to re-classify",
				fp, cached.Outcome, rec.Kind, rec.ID)
		}
		c.logger.Debug("classification cache hit",
			zap.String("tx", rec.ID), zap.String("outcome", string(cached.Outcome)))
		return cached, nil
	}

	if c.resolver == nil {
		return nil, &apperrors.ErrUnresolved{TransactionID: rec.ID, Fingerprint: fp}
	}

	suggested := c.suggestedValue(ctx, rec)
	decision, err := c.resolver.Resolve(ctx, rec, suggested)
	if err != nil {
		return nil, err
	}
	decision.Fingerprint = fp
	if !decision.Outcome.ValidFor(rec.Kind) {
		return nil, fmt.Errorf("resolver returned outcome %q, invalid for %s %s", decision.Outcome, rec.Kind, rec.ID)
	}
	if err := c.store.Put(ctx, decision); err != nil {
		return nil, fmt.Errorf("failed to persist decision for %s: %w", rec.ID, err)
	}
	c.logger.Info("classified transaction",
		zap.String("tx", rec.ID),
		zap.String("outcome", string(decision.Outcome)),
		zap.String("fiat", decision.FiatAmount.String()))
	return decision, nil
}

// suggestedValue is the source-reported fiat amount when present,
// otherwise quantity times the fair market value on the transaction day.
// Price lookup failures degrade to a zero suggestion; the resolver (or
// the user) supplies the value then.
func (c *Classifier) suggestedValue(ctx context.Context, rec *models.TransactionRecord) decimal.Decimal {
	if rec.FiatAmount != nil {
		return *rec.FiatAmount
	}
	if c.prices == nil {
		return decimal.Zero
	}
	price, err := c.prices.PriceAt(ctx, c.asset, rec.Timestamp)
	if err != nil {
		c.logger.Warn("fair market value lookup failed",
			zap.String("tx", rec.ID), zap.Error(err))
		return decimal.Zero
	}
	return price.Mul(rec.AssetAmount.Abs())
}

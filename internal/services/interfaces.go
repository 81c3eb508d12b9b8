package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vhqtran/coingains/internal/models"
)

// PriceProvider supplies the historical fair market value of the tracked
// asset, used only to suggest a value while classifying external
// movements. It is never consulted for internal transfers or
// already-classified transactions.
type PriceProvider interface {
	PriceAt(ctx context.Context, asset string, date time.Time) (decimal.Decimal, error)
}

// ErrResolverAborted is returned by a resolver when the user quits
// mid-run. Decisions already committed to the cache stay intact and the
// next run resumes from the first unresolved transaction.
var ErrResolverAborted = errors.New("classification aborted by user")

// Resolver answers a classification question for one transaction. The
// suggested fiat value (fair market value when the source had no price)
// is offered as the default; the implementation may accept it, override
// it, or return ErrResolverAborted.
type Resolver interface {
	Resolve(ctx context.Context, rec *models.TransactionRecord, suggested decimal.Decimal) (*models.ClassificationDecision, error)
}

package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vhqtran/coingains/internal/db"
	"github.com/vhqtran/coingains/internal/models"
)

type priceRepository struct {
	db *db.DB
}

// NewPriceRepository creates a sqlite-backed historical price cache.
func NewPriceRepository(database *db.DB) PriceRepository {
	return &priceRepository{db: database}
}

func (r *priceRepository) Get(ctx context.Context, asset string, date time.Time) (*models.CachedPrice, error) {
	var price models.CachedPrice
	err := r.db.WithContext(ctx).
		First(&price, "asset = ? AND date = ?", asset, DateKey(date)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached price %s/%s: %w", asset, DateKey(date), err)
	}
	return &price, nil
}

func (r *priceRepository) Put(ctx context.Context, price *models.CachedPrice) error {
	// First fetch wins, so a re-run never reprices an already-priced day.
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(price).Error
	if err != nil {
		return fmt.Errorf("failed to cache price %s/%s: %w", price.Asset, price.Date, err)
	}
	return nil
}

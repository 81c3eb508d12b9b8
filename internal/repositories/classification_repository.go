package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vhqtran/coingains/internal/db"
	"github.com/vhqtran/coingains/internal/models"
)

type decisionRepository struct {
	db *db.DB
}

// NewDecisionRepository creates a sqlite-backed decision cache.
func NewDecisionRepository(database *db.DB) DecisionRepository {
	return &decisionRepository{db: database}
}

func (r *decisionRepository) Get(ctx context.Context, fingerprint string) (*models.ClassificationDecision, error) {
	var decision models.ClassificationDecision
	err := r.db.WithContext(ctx).First(&decision, "fingerprint = ?", fingerprint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read decision %s: %w", fingerprint, err)
	}
	return &decision, nil
}

func (r *decisionRepository) Put(ctx context.Context, decision *models.ClassificationDecision) error {
	if err := decision.Validate(); err != nil {
		return fmt.Errorf("decision validation failed: %w", err)
	}
	// DoNothing keeps the first answer authoritative: a cached decision
	// is never silently overwritten.
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(decision).Error
	if err != nil {
		return fmt.Errorf("failed to store decision %s: %w", decision.Fingerprint, err)
	}
	return nil
}

func (r *decisionRepository) Delete(ctx context.Context, fingerprint string) error {
	err := r.db.WithContext(ctx).
		Delete(&models.ClassificationDecision{}, "fingerprint = ?", fingerprint).Error
	if err != nil {
		return fmt.Errorf("failed to delete decision %s: %w", fingerprint, err)
	}
	return nil
}

func (r *decisionRepository) List(ctx context.Context) ([]*models.ClassificationDecision, error) {
	var decisions []*models.ClassificationDecision
	err := r.db.WithContext(ctx).
		Order("fingerprint").
		Find(&decisions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	return decisions, nil
}

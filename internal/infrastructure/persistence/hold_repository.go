package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/flashsale/backend/internal/domain/checkout"
	"github.com/flashsale/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormHoldRepository implements checkout.HoldRepository using GORM
type GormHoldRepository struct {
	db *gorm.DB
}

// NewGormHoldRepository creates a new GormHoldRepository
func NewGormHoldRepository(db *gorm.DB) *GormHoldRepository {
	return &GormHoldRepository{db: db}
}

// FindByID finds a hold by its id
func (r *GormHoldRepository) FindByID(ctx context.Context, id uuid.UUID) (*checkout.Hold, error) {
	var hold checkout.Hold
	err := r.db.WithContext(ctx).First(&hold, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &hold, nil
}

// FindByIDForUpdate finds a hold and takes an exclusive row lock
func (r *GormHoldRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*checkout.Hold, error) {
	var hold checkout.Hold
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&hold, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &hold, nil
}

// Create inserts a new hold
func (r *GormHoldRepository) Create(ctx context.Context, hold *checkout.Hold) error {
	return r.db.WithContext(ctx).Create(hold).Error
}

// Save persists changes to an existing hold
func (r *GormHoldRepository) Save(ctx context.Context, hold *checkout.Hold) error {
	return r.db.WithContext(ctx).Save(hold).Error
}

// SumActiveQuantityForUpdate locks every active, unexpired hold of the
// product and sums their quantities. Postgres disallows FOR UPDATE on an
// aggregate, so the rows are locked first and summed in memory; the sets
// involved are bounded by the product's stock divided by the minimum hold
// quantity.
func (r *GormHoldRepository) SumActiveQuantityForUpdate(ctx context.Context, productID int64, now time.Time) (int64, error) {
	var holds []checkout.Hold
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND status = ? AND expires_at > ?", productID, checkout.HoldStatusActive, now).
		Find(&holds).Error
	if err != nil {
		return 0, err
	}
	var sum int64
	for i := range holds {
		sum += holds[i].Quantity
	}
	return sum, nil
}

// SumActiveQuantity is the non-locking aggregate used by the cache loader
func (r *GormHoldRepository) SumActiveQuantity(ctx context.Context, productID int64, now time.Time) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&checkout.Hold{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("product_id = ? AND status = ? AND expires_at > ?", productID, checkout.HoldStatusActive, now).
		Scan(&sum).Error
	return sum, err
}

// FindDuePage returns up to limit active holds whose deadline has passed,
// oldest deadline first
func (r *GormHoldRepository) FindDuePage(ctx context.Context, now time.Time, limit int) ([]checkout.Hold, error) {
	var holds []checkout.Hold
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", checkout.HoldStatusActive, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&holds).Error
	return holds, err
}

var _ checkout.HoldRepository = (*GormHoldRepository)(nil)

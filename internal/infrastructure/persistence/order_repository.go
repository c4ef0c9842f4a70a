package persistence

import (
	"context"
	"errors"

	"github.com/flashsale/backend/internal/domain/checkout"
	"github.com/flashsale/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements checkout.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order by its id
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*checkout.Order, error) {
	var order checkout.Order
	err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate finds an order and takes an exclusive row lock. The lock
// serializes the terminal transitions so an order settles exactly once.
func (r *GormOrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*checkout.Order, error) {
	var order checkout.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindByHoldID finds the order converted from the given hold
func (r *GormOrderRepository) FindByHoldID(ctx context.Context, holdID uuid.UUID) (*checkout.Order, error) {
	var order checkout.Order
	err := r.db.WithContext(ctx).First(&order, "hold_id = ?", holdID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// Create inserts a new order. The unique index on hold_id maps a conflict
// to ErrAlreadyExists.
func (r *GormOrderRepository) Create(ctx context.Context, order *checkout.Order) error {
	err := r.db.WithContext(ctx).Create(order).Error
	if err != nil && IsUniqueViolation(err) {
		return shared.ErrAlreadyExists
	}
	return err
}

// Save persists changes to an existing order
func (r *GormOrderRepository) Save(ctx context.Context, order *checkout.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

var _ checkout.OrderRepository = (*GormOrderRepository)(nil)

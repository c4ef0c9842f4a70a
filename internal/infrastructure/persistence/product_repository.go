package persistence

import (
	"context"
	"errors"

	"github.com/flashsale/backend/internal/domain/checkout"
	"github.com/flashsale/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductRepository implements checkout.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by its id
func (r *GormProductRepository) FindByID(ctx context.Context, id int64) (*checkout.Product, error) {
	var product checkout.Product
	err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// FindByIDForUpdate finds a product and takes an exclusive row lock for the
// rest of the transaction. This lock is the authoritative admission gate.
func (r *GormProductRepository) FindByIDForUpdate(ctx context.Context, id int64) (*checkout.Product, error) {
	var product checkout.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// Save persists changes to an existing product
func (r *GormProductRepository) Save(ctx context.Context, product *checkout.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// Create inserts a new product
func (r *GormProductRepository) Create(ctx context.Context, product *checkout.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

var _ checkout.ProductRepository = (*GormProductRepository)(nil)

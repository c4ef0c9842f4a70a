package checkout

import (
	"time"

	"github.com/flashsale/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Product is a sale item with physical stock. Stock is decremented only on
// payment success; availability for new holds is stock minus active hold
// quantities (see HoldService).
type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	Name        string          `gorm:"type:varchar(255);not null"`
	Description string          `gorm:"type:text"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Stock       int64           `gorm:"not null;default:0;check:stock >= 0"`
	Version     int64           `gorm:"not null;default:1"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// DeductStock removes qty units of physical stock and bumps the optimistic
// lock version. Callers must hold the product row lock. Returns
// ErrStockInvariant when stock would go negative; that indicates a bug in the
// admission layer and must never happen by construction.
func (p *Product) DeductStock(qty int64) error {
	if qty <= 0 {
		return shared.ErrInvalidInput
	}
	if p.Stock < qty {
		return shared.ErrStockInvariant
	}
	p.Stock -= qty
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	return nil
}

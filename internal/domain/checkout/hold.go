package checkout

import (
	"time"

	"github.com/flashsale/backend/internal/domain/shared"
)

// HoldStatus is the lifecycle state of a Hold
type HoldStatus string

const (
	HoldStatusActive    HoldStatus = "active"
	HoldStatusConverted HoldStatus = "converted"
	HoldStatusExpired   HoldStatus = "expired"
	HoldStatusReleased  HoldStatus = "released"
)

// Hold is a time-bounded reservation of product units. It counts against
// available stock but never against physical stock. A hold leaves the active
// state exactly once:
//
//	active    -> converted  (order created)
//	active    -> expired    (sweep or lazy detection)
//	active    -> released   (explicit release)
//	converted -> released   (order cancelled)
type Hold struct {
	shared.BaseEntity
	ProductID int64      `gorm:"not null;index:idx_holds_product_status,priority:1"`
	Quantity  int64      `gorm:"not null"`
	ExpiresAt time.Time  `gorm:"not null;index:idx_holds_status_expires,priority:2"`
	Status    HoldStatus `gorm:"type:varchar(20);not null;index:idx_holds_status_expires,priority:1;index:idx_holds_product_status,priority:2"`
}

// TableName returns the table name for GORM
func (Hold) TableName() string {
	return "holds"
}

// NewHold creates an active hold expiring after ttl
func NewHold(productID, quantity int64, ttl time.Duration) *Hold {
	return &Hold{
		BaseEntity: shared.NewBaseEntity(),
		ProductID:  productID,
		Quantity:   quantity,
		ExpiresAt:  time.Now().UTC().Add(ttl),
		Status:     HoldStatusActive,
	}
}

// IsActive returns true while the hold still counts against availability
func (h *Hold) IsActive() bool {
	return h.Status == HoldStatusActive
}

// IsExpiredAt reports whether the hold deadline has passed at the given instant
func (h *Hold) IsExpiredAt(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// Convert transitions active -> converted. The caller must already have
// rejected expired holds; conversion of an expired hold is a state error.
func (h *Hold) Convert() error {
	if h.Status != HoldStatusActive {
		return shared.ErrHoldNotActive
	}
	h.Status = HoldStatusConverted
	h.UpdatedAt = time.Now().UTC()
	return nil
}

// Expire transitions active -> expired
func (h *Hold) Expire() error {
	if h.Status != HoldStatusActive {
		return shared.ErrHoldNotActive
	}
	h.Status = HoldStatusExpired
	h.UpdatedAt = time.Now().UTC()
	return nil
}

// Release transitions active -> released, or converted -> released when the
// associated order is cancelled. Releasing a hold in any other state is a
// no-op error for the caller to absorb.
func (h *Hold) Release() error {
	if h.Status != HoldStatusActive && h.Status != HoldStatusConverted {
		return shared.ErrHoldNotActive
	}
	h.Status = HoldStatusReleased
	h.UpdatedAt = time.Now().UTC()
	return nil
}

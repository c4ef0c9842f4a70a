package checkout

import (
	"time"

	"github.com/flashsale/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an Order
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusCancelled      OrderStatus = "cancelled"
	// OrderStatusRefunded is a reserved terminal state; no transition into it
	// is implemented yet.
	OrderStatusRefunded OrderStatus = "refunded"
)

// Order is the conversion of a hold into a purchase awaiting payment.
// The unit price is snapshotted at creation time. At most one order exists
// per hold (unique index on hold_id).
type Order struct {
	shared.BaseEntity
	HoldID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_orders_hold_id"`
	ProductID  int64           `gorm:"not null"`
	Quantity   int64           `gorm:"not null"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status     OrderStatus     `gorm:"type:varchar(20);not null;index:idx_orders_status"`
}

// TableName returns the table name for GORM
func (Order) TableName() string {
	return "orders"
}

// NewOrderFromHold builds a pending_payment order from a converted hold,
// snapshotting the product's current price.
func NewOrderFromHold(hold *Hold, unitPrice decimal.Decimal) *Order {
	return &Order{
		BaseEntity: shared.NewBaseEntity(),
		HoldID:     hold.ID,
		ProductID:  hold.ProductID,
		Quantity:   hold.Quantity,
		UnitPrice:  unitPrice,
		TotalPrice: unitPrice.Mul(decimal.NewFromInt(hold.Quantity)),
		Status:     OrderStatusPendingPayment,
	}
}

// IsFinalized reports whether the order is in a terminal state
func (o *Order) IsFinalized() bool {
	return o.Status == OrderStatusPaid ||
		o.Status == OrderStatusCancelled ||
		o.Status == OrderStatusRefunded
}

// MarkPaid transitions pending_payment -> paid
func (o *Order) MarkPaid() error {
	if o.Status != OrderStatusPendingPayment {
		return shared.ErrTerminalState
	}
	o.Status = OrderStatusPaid
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel transitions pending_payment -> cancelled
func (o *Order) Cancel() error {
	if o.Status != OrderStatusPendingPayment {
		return shared.ErrTerminalState
	}
	o.Status = OrderStatusCancelled
	o.UpdatedAt = time.Now().UTC()
	return nil
}

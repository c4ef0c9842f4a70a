package checkout

import (
	"time"

	"github.com/flashsale/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// PaymentStatus is the outcome reported by the payment provider
type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// ProcessingStatus tracks whether the webhook's effect has been applied
type ProcessingStatus string

const (
	ProcessingStatusPending   ProcessingStatus = "pending"
	ProcessingStatusProcessed ProcessingStatus = "processed"
)

// PaymentWebhook records a payment notification. The idempotency key is
// globally unique; the unique index is the hard at-most-once backstop.
// OrderID is deliberately not a foreign key: webhooks may arrive before the
// order row exists and are parked as pending until the sweeper drains them.
type PaymentWebhook struct {
	shared.BaseEntity
	IdempotencyKey   string           `gorm:"type:varchar(255);not null;uniqueIndex:idx_webhooks_idempotency_key"`
	OrderID          uuid.UUID        `gorm:"type:uuid;not null;index:idx_webhooks_order_processing,priority:1"`
	PaymentStatus    PaymentStatus    `gorm:"type:varchar(20);not null"`
	ProcessingStatus ProcessingStatus `gorm:"type:varchar(20);not null;index:idx_webhooks_order_processing,priority:2"`
	Payload          []byte           `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (PaymentWebhook) TableName() string {
	return "payment_webhooks"
}

// NewPaymentWebhook creates a pending webhook row
func NewPaymentWebhook(idempotencyKey string, orderID uuid.UUID, status PaymentStatus, payload []byte) *PaymentWebhook {
	return &PaymentWebhook{
		BaseEntity:       shared.NewBaseEntity(),
		IdempotencyKey:   idempotencyKey,
		OrderID:          orderID,
		PaymentStatus:    status,
		ProcessingStatus: ProcessingStatusPending,
		Payload:          payload,
	}
}

// IsProcessed reports whether the payment effect has been applied (or absorbed)
func (w *PaymentWebhook) IsProcessed() bool {
	return w.ProcessingStatus == ProcessingStatusProcessed
}

// MarkProcessed finalizes the webhook row; once processed it is immutable
func (w *PaymentWebhook) MarkProcessed() {
	w.ProcessingStatus = ProcessingStatusProcessed
	w.UpdatedAt = time.Now().UTC()
}

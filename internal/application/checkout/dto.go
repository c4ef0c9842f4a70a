package checkout

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateHoldInput is the validated request to reserve units
type CreateHoldInput struct {
	ProductID int64
	Quantity  int64
}

// HoldResult describes a created or released hold
type HoldResult struct {
	HoldID    uuid.UUID
	ProductID int64
	Quantity  int64
	Status    string
	ExpiresAt time.Time
}

// OrderResult describes an order returned to the caller
type OrderResult struct {
	OrderID    uuid.UUID
	HoldID     uuid.UUID
	ProductID  int64
	Quantity   int64
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
	Status     string
	CreatedAt  time.Time
}

// ProductView is the public product snapshot including approximate
// availability from the stock cache
type ProductView struct {
	ID             int64
	Name           string
	Description    string
	Price          decimal.Decimal
	AvailableStock int64
	UpdatedAt      time.Time
}

// WebhookOutcome is the terminal disposition of a processed webhook
type WebhookOutcome string

const (
	// WebhookOutcomeProcessed means the payment effect was applied now
	WebhookOutcomeProcessed WebhookOutcome = "processed"
	// WebhookOutcomeDuplicate means the idempotency key was seen before
	WebhookOutcomeDuplicate WebhookOutcome = "duplicate"
	// WebhookOutcomePending means the order does not exist yet; the webhook
	// is parked and drained later
	WebhookOutcomePending WebhookOutcome = "pending"
	// WebhookOutcomeAlreadyFinalized means the order was terminal so the
	// webhook was absorbed without effect
	WebhookOutcomeAlreadyFinalized WebhookOutcome = "already_finalized"
)

// WebhookInput is a validated payment notification
type WebhookInput struct {
	IdempotencyKey string
	OrderID        uuid.UUID
	PaymentStatus  string
	Payload        []byte
}

// WebhookResult reports how a webhook was settled
type WebhookResult struct {
	Outcome          WebhookOutcome
	WebhookID        uuid.UUID
	OrderID          uuid.UUID
	OrderStatus      string
	ProcessingStatus string
}

package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProductRepository provides access to product rows. ForUpdate variants take
// an exclusive row lock for the duration of the surrounding transaction.
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (*Product, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*Product, error)
	Save(ctx context.Context, product *Product) error
	Create(ctx context.Context, product *Product) error
}

// HoldRepository provides access to hold rows
type HoldRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Hold, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Hold, error)
	Create(ctx context.Context, hold *Hold) error
	Save(ctx context.Context, hold *Hold) error
	// SumActiveQuantityForUpdate locks every active, unexpired hold of the
	// product and returns the sum of their quantities. The row locks freeze
	// the set for the rest of the transaction, serializing admission against
	// concurrent expiry and conversion.
	SumActiveQuantityForUpdate(ctx context.Context, productID int64, now time.Time) (int64, error)
	// SumActiveQuantity is the non-locking variant used by the cache loader
	SumActiveQuantity(ctx context.Context, productID int64, now time.Time) (int64, error)
	// FindDuePage returns up to limit active holds whose deadline has passed
	FindDuePage(ctx context.Context, now time.Time, limit int) ([]Hold, error)
}

// OrderRepository provides access to order rows
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByHoldID(ctx context.Context, holdID uuid.UUID) (*Order, error)
	Create(ctx context.Context, order *Order) error
	Save(ctx context.Context, order *Order) error
}

// WebhookRepository provides access to payment webhook rows
type WebhookRepository interface {
	FindByKeyForUpdate(ctx context.Context, idempotencyKey string) (*PaymentWebhook, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*PaymentWebhook, error)
	Create(ctx context.Context, webhook *PaymentWebhook) error
	Save(ctx context.Context, webhook *PaymentWebhook) error
	// FindPendingPage returns up to limit pending webhooks created after the
	// given instant, ordered by creation time. Keyset paging lets the drain
	// walk past rows that stay pending.
	FindPendingPage(ctx context.Context, after time.Time, limit int) ([]PaymentWebhook, error)
}

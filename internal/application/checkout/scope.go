package checkout

import (
	"context"

	"github.com/flashsale/backend/internal/domain/checkout"
)

// Repositories bundles the repositories bound to one database transaction.
// Everything obtained through it shares the transaction's visibility and
// locks.
type Repositories interface {
	Products() checkout.ProductRepository
	Holds() checkout.HoldRepository
	Orders() checkout.OrderRepository
	Webhooks() checkout.WebhookRepository
}

// TransactionScope runs a function inside a database transaction. The
// function's error rolls the transaction back; nil commits it.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	// ExecuteWithRetry behaves like Execute but transparently retries the
	// whole transaction when the database aborts it as a deadlock victim.
	// After the attempt budget is exhausted it returns ErrTransient.
	ExecuteWithRetry(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

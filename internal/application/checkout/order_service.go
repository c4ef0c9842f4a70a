package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/flashsale/backend/internal/domain/checkout"
	"github.com/flashsale/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService converts holds to orders and applies terminal order
// transitions. The physical stock decrement happens here, on payment
// success, never earlier.
type OrderService struct {
	scope  TransactionScope
	cache  StockCache
	logger *zap.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(scope TransactionScope, cache StockCache, logger *zap.Logger) *OrderService {
	return &OrderService{scope: scope, cache: cache, logger: logger}
}

// CreateOrderFromHold converts an active hold into a pending_payment order.
// Conversion is idempotent: a retried request for an already-converted hold
// returns the existing order unchanged. An expired-but-unswept hold is
// lazily transitioned to expired and the request fails with ErrHoldExpired.
func (s *OrderService) CreateOrderFromHold(ctx context.Context, holdID uuid.UUID) (*OrderResult, error) {
	var (
		order       *checkout.Order
		productID   int64
		lazyExpired bool
	)
	err := s.scope.ExecuteWithRetry(ctx, func(ctx context.Context, repos Repositories) error {
		order = nil
		lazyExpired = false

		hold, err := repos.Holds().FindByIDForUpdate(ctx, holdID)
		if err != nil {
			return err
		}
		productID = hold.ProductID

		existing, err := repos.Orders().FindByHoldID(ctx, holdID)
		if err == nil {
			order = existing
			return nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		if !hold.IsActive() {
			return shared.ErrHoldNotActive
		}

		if hold.IsExpiredAt(time.Now().UTC()) {
			// Commit the lazy expiry even though the request fails.
			if err := hold.Expire(); err != nil {
				return err
			}
			if err := repos.Holds().Save(ctx, hold); err != nil {
				return err
			}
			lazyExpired = true
			return nil
		}

		product, err := repos.Products().FindByID(ctx, hold.ProductID)
		if err != nil {
			return err
		}

		if err := hold.Convert(); err != nil {
			return err
		}
		if err := repos.Holds().Save(ctx, hold); err != nil {
			return err
		}

		order = checkout.NewOrderFromHold(hold, product.Price)
		return repos.Orders().Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	if lazyExpired {
		s.cache.Invalidate(ctx, productID)
		return nil, shared.ErrHoldExpired
	}

	s.cache.Invalidate(ctx, productID)
	s.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("hold_id", holdID.String()),
		zap.String("status", string(order.Status)))

	return orderResult(order), nil
}

// MarkPaid settles an order as paid and deducts physical stock. It runs
// inside the caller's transaction; the caller must hold the order row lock.
// An already-paid order is a no-op.
func (s *OrderService) MarkPaid(ctx context.Context, repos Repositories, order *checkout.Order) error {
	if order.Status == checkout.OrderStatusPaid {
		return nil
	}
	if order.Status != checkout.OrderStatusPendingPayment {
		return shared.ErrTerminalState
	}

	product, err := repos.Products().FindByIDForUpdate(ctx, order.ProductID)
	if err != nil {
		return err
	}
	if err := product.DeductStock(order.Quantity); err != nil {
		if errors.Is(err, shared.ErrStockInvariant) {
			s.logger.Error("stock invariant violated on settlement",
				zap.String("order_id", order.ID.String()),
				zap.Int64("product_id", product.ID),
				zap.Int64("stock", product.Stock),
				zap.Int64("quantity", order.Quantity))
		}
		return err
	}
	if err := repos.Products().Save(ctx, product); err != nil {
		return err
	}

	if err := order.MarkPaid(); err != nil {
		return err
	}
	return repos.Orders().Save(ctx, order)
}

// CancelOrder settles an order as cancelled and releases its hold so the
// reserved units return to availability. Stock is untouched because it was
// never deducted. Runs inside the caller's transaction under the order row
// lock. An already-cancelled order is a no-op.
func (s *OrderService) CancelOrder(ctx context.Context, repos Repositories, order *checkout.Order) error {
	if order.Status == checkout.OrderStatusCancelled {
		return nil
	}
	if order.Status != checkout.OrderStatusPendingPayment {
		return shared.ErrTerminalState
	}

	hold, err := repos.Holds().FindByIDForUpdate(ctx, order.HoldID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	if hold != nil && hold.Status == checkout.HoldStatusConverted {
		if err := hold.Release(); err != nil {
			return err
		}
		if err := repos.Holds().Save(ctx, hold); err != nil {
			return err
		}
	}

	if err := order.Cancel(); err != nil {
		return err
	}
	return repos.Orders().Save(ctx, order)
}

func orderResult(order *checkout.Order) *OrderResult {
	return &OrderResult{
		OrderID:    order.ID,
		HoldID:     order.HoldID,
		ProductID:  order.ProductID,
		Quantity:   order.Quantity,
		UnitPrice:  order.UnitPrice,
		TotalPrice: order.TotalPrice,
		Status:     string(order.Status),
		CreatedAt:  order.CreatedAt,
	}
}

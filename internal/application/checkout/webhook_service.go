package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/flashsale/backend/internal/domain/checkout"
	"github.com/flashsale/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// WebhookConfig holds the tunables of webhook settlement
type WebhookConfig struct {
	// OrderWaitAttempts bounds the in-transaction poll for an order whose
	// creating transaction has not committed yet
	OrderWaitAttempts int
	// OrderWaitSleep separates the poll attempts
	OrderWaitSleep time.Duration
	// DrainPageSize bounds how many pending webhooks one drain pass loads
	DrainPageSize int
}

// WebhookService applies payment notifications exactly once. The unique
// index on the idempotency key is the hard backstop: a duplicate that races
// past the lock-read fails its insert, retries, and then observes the
// winner's row.
type WebhookService struct {
	scope  TransactionScope
	orders *OrderService
	cache  StockCache
	cfg    WebhookConfig
	logger *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(scope TransactionScope, orders *OrderService, cache StockCache, cfg WebhookConfig, logger *zap.Logger) *WebhookService {
	if cfg.OrderWaitAttempts <= 0 {
		cfg.OrderWaitAttempts = 3
	}
	if cfg.OrderWaitSleep <= 0 {
		cfg.OrderWaitSleep = 100 * time.Millisecond
	}
	if cfg.DrainPageSize <= 0 {
		cfg.DrainPageSize = 100
	}
	return &WebhookService{
		scope:  scope,
		orders: orders,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
	}
}

// ProcessWebhook settles a payment notification. Outcomes:
//
//	duplicate          the key was seen before; nothing is re-applied
//	pending            the order does not exist yet; the row is parked
//	already_finalized  the order was terminal; the key is remembered
//	processed          the payment effect was applied now
func (s *WebhookService) ProcessWebhook(ctx context.Context, in WebhookInput) (*WebhookResult, error) {
	if in.IdempotencyKey == "" || len(in.IdempotencyKey) > 255 {
		return nil, shared.ErrInvalidInput
	}
	if in.PaymentStatus != string(checkout.PaymentStatusSuccess) && in.PaymentStatus != string(checkout.PaymentStatusFailed) {
		return nil, shared.ErrInvalidInput
	}

	var (
		res       *WebhookResult
		productID int64
	)
	for attempt := 0; ; attempt++ {
		err := s.scope.ExecuteWithRetry(ctx, func(ctx context.Context, repos Repositories) error {
			res = nil
			productID = 0

			existing, err := repos.Webhooks().FindByKeyForUpdate(ctx, in.IdempotencyKey)
			if err == nil {
				res = s.duplicateResult(ctx, repos, existing)
				return nil
			}
			if !errors.Is(err, shared.ErrNotFound) {
				return err
			}

			order, err := s.waitForOrder(ctx, repos, in)
			if err != nil {
				return err
			}

			webhook := checkout.NewPaymentWebhook(in.IdempotencyKey, in.OrderID, checkout.PaymentStatus(in.PaymentStatus), in.Payload)

			if order == nil {
				if err := repos.Webhooks().Create(ctx, webhook); err != nil {
					return err
				}
				res = &WebhookResult{
					Outcome:          WebhookOutcomePending,
					WebhookID:        webhook.ID,
					OrderID:          in.OrderID,
					ProcessingStatus: string(webhook.ProcessingStatus),
				}
				return nil
			}

			if order.IsFinalized() {
				webhook.MarkProcessed()
				if err := repos.Webhooks().Create(ctx, webhook); err != nil {
					return err
				}
				res = &WebhookResult{
					Outcome:          WebhookOutcomeAlreadyFinalized,
					WebhookID:        webhook.ID,
					OrderID:          order.ID,
					OrderStatus:      string(order.Status),
					ProcessingStatus: string(webhook.ProcessingStatus),
				}
				return nil
			}

			if err := repos.Webhooks().Create(ctx, webhook); err != nil {
				return err
			}
			if err := s.applyEffect(ctx, repos, webhook.PaymentStatus, order); err != nil {
				return err
			}
			webhook.MarkProcessed()
			if err := repos.Webhooks().Save(ctx, webhook); err != nil {
				return err
			}

			productID = order.ProductID
			res = &WebhookResult{
				Outcome:          WebhookOutcomeProcessed,
				WebhookID:        webhook.ID,
				OrderID:          order.ID,
				OrderStatus:      string(order.Status),
				ProcessingStatus: string(webhook.ProcessingStatus),
			}
			return nil
		})
		if err != nil {
			// A racing insert with the same key lost to the unique index.
			// Re-running observes the winner's row and reports duplicate.
			if errors.Is(err, shared.ErrAlreadyExists) && attempt == 0 {
				continue
			}
			return nil, err
		}
		break
	}

	if res.Outcome == WebhookOutcomeProcessed {
		s.cache.Invalidate(ctx, productID)
		s.logger.Info("webhook processed",
			zap.String("webhook_id", res.WebhookID.String()),
			zap.String("order_id", res.OrderID.String()),
			zap.String("order_status", res.OrderStatus))
	}
	return res, nil
}

// waitForOrder lock-reads the target order, briefly polling to absorb a
// racing order creation that has not committed yet. A nil order with nil
// error means the order genuinely does not exist.
func (s *WebhookService) waitForOrder(ctx context.Context, repos Repositories, in WebhookInput) (*checkout.Order, error) {
	for i := 0; i < s.cfg.OrderWaitAttempts; i++ {
		order, err := repos.Orders().FindByIDForUpdate(ctx, in.OrderID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		if i == s.cfg.OrderWaitAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.OrderWaitSleep):
		}
	}
	return nil, nil
}

func (s *WebhookService) duplicateResult(ctx context.Context, repos Repositories, webhook *checkout.PaymentWebhook) *WebhookResult {
	res := &WebhookResult{
		Outcome:          WebhookOutcomeDuplicate,
		WebhookID:        webhook.ID,
		OrderID:          webhook.OrderID,
		ProcessingStatus: string(webhook.ProcessingStatus),
	}
	if order, err := repos.Orders().FindByID(ctx, webhook.OrderID); err == nil {
		res.OrderStatus = string(order.Status)
	}
	return res
}

func (s *WebhookService) applyEffect(ctx context.Context, repos Repositories, status checkout.PaymentStatus, order *checkout.Order) error {
	switch status {
	case checkout.PaymentStatusSuccess:
		return s.orders.MarkPaid(ctx, repos, order)
	case checkout.PaymentStatusFailed:
		return s.orders.CancelOrder(ctx, repos, order)
	default:
		return shared.ErrInvalidInput
	}
}

// DrainPending re-attempts every parked webhook whose order may exist by
// now. Each webhook settles in its own transaction under its row lock.
// Returns how many webhooks it marked processed.
func (s *WebhookService) DrainPending(ctx context.Context) (int, error) {
	count := 0
	after := time.Time{}
	for {
		var page []checkout.PaymentWebhook
		err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
			var err error
			page, err = repos.Webhooks().FindPendingPage(ctx, after, s.cfg.DrainPageSize)
			return err
		})
		if err != nil {
			return count, err
		}
		if len(page) == 0 {
			return count, nil
		}

		for i := range page {
			processed, productID, err := s.drainOne(ctx, page[i])
			if err != nil {
				return count, err
			}
			if processed {
				count++
				s.cache.Invalidate(ctx, productID)
			}
		}

		after = page[len(page)-1].CreatedAt
		if len(page) < s.cfg.DrainPageSize {
			return count, nil
		}
	}
}

func (s *WebhookService) drainOne(ctx context.Context, candidate checkout.PaymentWebhook) (bool, int64, error) {
	var (
		processed bool
		productID int64
	)
	err := s.scope.ExecuteWithRetry(ctx, func(ctx context.Context, repos Repositories) error {
		processed = false

		webhook, err := repos.Webhooks().FindByIDForUpdate(ctx, candidate.ID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			return err
		}
		if webhook.IsProcessed() {
			return nil
		}

		order, err := repos.Orders().FindByIDForUpdate(ctx, webhook.OrderID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				// Order still absent; the row stays pending for a later pass.
				return nil
			}
			return err
		}

		if !order.IsFinalized() {
			if err := s.applyEffect(ctx, repos, webhook.PaymentStatus, order); err != nil {
				return err
			}
		}

		webhook.MarkProcessed()
		if err := repos.Webhooks().Save(ctx, webhook); err != nil {
			return err
		}
		processed = true
		productID = order.ProductID
		return nil
	})
	return processed, productID, err
}

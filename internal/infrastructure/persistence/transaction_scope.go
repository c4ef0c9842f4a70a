package persistence

import (
	"context"
	"math/rand"
	"time"

	appcheckout "github.com/flashsale/backend/internal/application/checkout"
	"github.com/flashsale/backend/internal/domain/checkout"
	"github.com/flashsale/backend/internal/domain/shared"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RetryConfig bounds the deadlock retry loop
type RetryConfig struct {
	MaxAttempts int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
}

// DefaultRetryConfig returns the standard attempt budget
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BackoffMin:  10 * time.Millisecond,
		BackoffMax:  50 * time.Millisecond,
	}
}

// GormTransactionScope implements the application TransactionScope using
// GORM transactions. Repositories obtained inside the callback share the
// transaction's locks and visibility.
type GormTransactionScope struct {
	db     *gorm.DB
	retry  RetryConfig
	logger *zap.Logger
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB, retry RetryConfig, logger *zap.Logger) *GormTransactionScope {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 5
	}
	if retry.BackoffMin <= 0 {
		retry.BackoffMin = 10 * time.Millisecond
	}
	if retry.BackoffMax < retry.BackoffMin {
		retry.BackoffMax = retry.BackoffMin
	}
	return &GormTransactionScope{db: db, retry: retry, logger: logger}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(ctx context.Context, repos appcheckout.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormRepositories{tx: tx})
	})
}

// ExecuteWithRetry runs the transaction, transparently retrying when the
// database aborts it as a deadlock victim. Each retry backs off a randomized
// interval so the former contenders do not collide again in lockstep. When
// the attempt budget runs out the failure surfaces as ErrTransient.
func (s *GormTransactionScope) ExecuteWithRetry(ctx context.Context, fn func(ctx context.Context, repos appcheckout.Repositories) error) error {
	var err error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		err = s.Execute(ctx, fn)
		if err == nil || !IsDeadlock(err) {
			return err
		}

		s.logger.Warn("transaction aborted by deadlock, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.retry.MaxAttempts),
			zap.Error(err))

		if attempt == s.retry.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff()):
		}
	}

	s.logger.Error("transaction retry budget exhausted", zap.Error(err))
	return shared.ErrTransient
}

func (s *GormTransactionScope) backoff() time.Duration {
	spread := s.retry.BackoffMax - s.retry.BackoffMin
	if spread <= 0 {
		return s.retry.BackoffMin
	}
	return s.retry.BackoffMin + time.Duration(rand.Int63n(int64(spread)))
}

// gormRepositories provides access to all repositories within a transaction
type gormRepositories struct {
	tx *gorm.DB
}

func (r *gormRepositories) Products() checkout.ProductRepository {
	return NewGormProductRepository(r.tx)
}

func (r *gormRepositories) Holds() checkout.HoldRepository {
	return NewGormHoldRepository(r.tx)
}

func (r *gormRepositories) Orders() checkout.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

func (r *gormRepositories) Webhooks() checkout.WebhookRepository {
	return NewGormWebhookRepository(r.tx)
}

var _ appcheckout.TransactionScope = (*GormTransactionScope)(nil)
var _ appcheckout.Repositories = (*gormRepositories)(nil)

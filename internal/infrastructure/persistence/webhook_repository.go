package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/flashsale/backend/internal/domain/checkout"
	"github.com/flashsale/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormWebhookRepository implements checkout.WebhookRepository using GORM
type GormWebhookRepository struct {
	db *gorm.DB
}

// NewGormWebhookRepository creates a new GormWebhookRepository
func NewGormWebhookRepository(db *gorm.DB) *GormWebhookRepository {
	return &GormWebhookRepository{db: db}
}

// FindByKeyForUpdate finds a webhook by idempotency key and takes an
// exclusive row lock
func (r *GormWebhookRepository) FindByKeyForUpdate(ctx context.Context, idempotencyKey string) (*checkout.PaymentWebhook, error) {
	var webhook checkout.PaymentWebhook
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&webhook, "idempotency_key = ?", idempotencyKey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &webhook, nil
}

// FindByIDForUpdate finds a webhook by id and takes an exclusive row lock
func (r *GormWebhookRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*checkout.PaymentWebhook, error) {
	var webhook checkout.PaymentWebhook
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&webhook, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &webhook, nil
}

// Create inserts a new webhook row. The unique index on idempotency_key is
// the at-most-once backstop; a conflict maps to ErrAlreadyExists.
func (r *GormWebhookRepository) Create(ctx context.Context, webhook *checkout.PaymentWebhook) error {
	err := r.db.WithContext(ctx).Create(webhook).Error
	if err != nil && IsUniqueViolation(err) {
		return shared.ErrAlreadyExists
	}
	return err
}

// Save persists changes to an existing webhook row
func (r *GormWebhookRepository) Save(ctx context.Context, webhook *checkout.PaymentWebhook) error {
	return r.db.WithContext(ctx).Save(webhook).Error
}

// FindPendingPage returns up to limit pending webhooks created after the
// given instant, ordered by creation time
func (r *GormWebhookRepository) FindPendingPage(ctx context.Context, after time.Time, limit int) ([]checkout.PaymentWebhook, error) {
	var webhooks []checkout.PaymentWebhook
	err := r.db.WithContext(ctx).
		Where("processing_status = ? AND created_at > ?", checkout.ProcessingStatusPending, after).
		Order("created_at ASC").
		Limit(limit).
		Find(&webhooks).Error
	return webhooks, err
}

var _ checkout.WebhookRepository = (*GormWebhookRepository)(nil)

package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	appcheckout "github.com/flashsale/backend/internal/application/checkout"
	"github.com/flashsale/backend/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestIsDeadlock(t *testing.T) {
	assert.True(t, IsDeadlock(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, IsDeadlock(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsDeadlock(fmt.Errorf("tx failed: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, IsDeadlock(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsDeadlock(errors.New("deadlock detected")))
	assert.False(t, IsDeadlock(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsUniqueViolation(nil))
}

func TestGormTransactionScope_ExecuteWithRetry(t *testing.T) {
	retry := RetryConfig{MaxAttempts: 3, BackoffMin: time.Millisecond, BackoffMax: 2 * time.Millisecond}

	t.Run("retries deadlock victims until success", func(t *testing.T) {
		db, mock, sqlDB := newMockDB(t)
		defer sqlDB.Close()
		scope := NewGormTransactionScope(db, retry, zap.NewNop())

		// Two aborted attempts, then a clean commit.
		mock.ExpectBegin()
		mock.ExpectRollback()
		mock.ExpectBegin()
		mock.ExpectRollback()
		mock.ExpectBegin()
		mock.ExpectCommit()

		calls := 0
		err := scope.ExecuteWithRetry(context.Background(), func(ctx context.Context, repos appcheckout.Repositories) error {
			calls++
			if calls < 3 {
				return &pgconn.PgError{Code: "40P01"}
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exhausted budget surfaces as transient", func(t *testing.T) {
		db, mock, sqlDB := newMockDB(t)
		defer sqlDB.Close()
		scope := NewGormTransactionScope(db, retry, zap.NewNop())

		for i := 0; i < retry.MaxAttempts; i++ {
			mock.ExpectBegin()
			mock.ExpectRollback()
		}

		calls := 0
		err := scope.ExecuteWithRetry(context.Background(), func(ctx context.Context, repos appcheckout.Repositories) error {
			calls++
			return &pgconn.PgError{Code: "40P01"}
		})

		assert.True(t, errors.Is(err, shared.ErrTransient))
		assert.Equal(t, retry.MaxAttempts, calls)
	})

	t.Run("business errors are not retried", func(t *testing.T) {
		db, mock, sqlDB := newMockDB(t)
		defer sqlDB.Close()
		scope := NewGormTransactionScope(db, retry, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectRollback()

		calls := 0
		err := scope.ExecuteWithRetry(context.Background(), func(ctx context.Context, repos appcheckout.Repositories) error {
			calls++
			return shared.ErrInsufficientStock
		})

		assert.True(t, errors.Is(err, shared.ErrInsufficientStock))
		assert.Equal(t, 1, calls)
	})
}

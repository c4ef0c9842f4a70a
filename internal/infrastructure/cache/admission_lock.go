package cache

import (
	"context"
	"strconv"
	"time"

	appcheckout "github.com/flashsale/backend/internal/application/checkout"
	"github.com/flashsale/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const admissionKeyPrefix = "hold_lock:product:"

// AdmissionLockConfig holds admission lock tunables
type AdmissionLockConfig struct {
	// TTL is the hard timeout after which a stuck lock self-expires
	TTL time.Duration
	// Wait is the blocking budget for acquiring a contended lock
	Wait time.Duration
	// Strict surfaces SystemBusy instead of proceeding when the lock
	// backend is unreachable
	Strict bool
}

// RedisAdmissionLock serializes hold admission per product with a Redis
// SETNX lock. It only shields the database from stampedes on hot products;
// the product row lock remains the correctness gate, so an unreachable
// Redis fails open unless strict mode is configured.
type RedisAdmissionLock struct {
	client *redis.Client
	cfg    AdmissionLockConfig
	logger *zap.Logger
}

// NewRedisAdmissionLock creates a new RedisAdmissionLock
func NewRedisAdmissionLock(client *redis.Client, cfg AdmissionLockConfig, logger *zap.Logger) *RedisAdmissionLock {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 5 * time.Second
	}
	return &RedisAdmissionLock{client: client, cfg: cfg, logger: logger}
}

// Acquire blocks until the product lock is held or the wait budget runs
// out. Contention past the budget surfaces as SystemBusy. The returned
// release function deletes the lock only if this caller still owns it.
func (l *RedisAdmissionLock) Acquire(ctx context.Context, productID int64) (func(), error) {
	key := admissionKeyPrefix + strconv.FormatInt(productID, 10)
	token := uuid.NewString()
	deadline := time.Now().Add(l.cfg.Wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.cfg.TTL).Result()
		if err != nil {
			if l.cfg.Strict {
				return func() {}, shared.ErrSystemBusy
			}
			l.logger.Warn("admission lock backend unavailable, proceeding with row locks only",
				zap.Int64("product_id", productID), zap.Error(err))
			return func() {}, nil
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}

		if time.Now().After(deadline) {
			return func() {}, shared.ErrSystemBusy
		}
		select {
		case <-ctx.Done():
			return func() {}, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// releaseScript deletes the lock only when the stored token matches, so a
// slow holder cannot release a successor's lock after its TTL fired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisAdmissionLock) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
		l.logger.Warn("admission lock release failed", zap.String("key", key), zap.Error(err))
	}
}

var _ appcheckout.AdmissionLock = (*RedisAdmissionLock)(nil)

package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	appcheckout "github.com/flashsale/backend/internal/application/checkout"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const stockKeyPrefix = "stock:available:"

// RedisStockCache is a read-through cache of approximate available stock per
// product. Values are advisory only; every admission decision recomputes
// availability under the product row lock. A Redis outage degrades to
// loading straight from the store.
type RedisStockCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStockCache creates a new RedisStockCache
func NewRedisStockCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStockCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &RedisStockCache{client: client, ttl: ttl, logger: logger}
}

// GetAvailable returns the cached availability for the product, loading it
// through loader on a miss and populating the cache. Values below zero are
// clamped on the way in.
func (c *RedisStockCache) GetAvailable(ctx context.Context, productID int64, loader func(ctx context.Context) (int64, error)) (int64, error) {
	key := c.key(productID)

	val, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if available, parseErr := strconv.ParseInt(val, 10, 64); parseErr == nil {
			return available, nil
		}
		// Unparseable entry; fall through and rebuild it.
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("stock cache read failed, loading from store",
			zap.Int64("product_id", productID), zap.Error(err))
	}

	available, err := loader(ctx)
	if err != nil {
		return 0, err
	}
	if available < 0 {
		available = 0
	}

	if err := c.client.Set(ctx, key, strconv.FormatInt(available, 10), c.ttl).Err(); err != nil {
		c.logger.Warn("stock cache populate failed",
			zap.Int64("product_id", productID), zap.Error(err))
	}

	return available, nil
}

// Invalidate drops the cached entry for the product. Best-effort; a cache
// fault is logged and ignored because the TTL self-heals.
func (c *RedisStockCache) Invalidate(ctx context.Context, productID int64) {
	if err := c.client.Del(ctx, c.key(productID)).Err(); err != nil {
		c.logger.Warn("stock cache invalidation failed",
			zap.Int64("product_id", productID), zap.Error(err))
	}
}

func (c *RedisStockCache) key(productID int64) string {
	return stockKeyPrefix + strconv.FormatInt(productID, 10)
}

var _ appcheckout.StockCache = (*RedisStockCache)(nil)

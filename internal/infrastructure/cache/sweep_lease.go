package cache

import (
	"context"
	"time"

	appcheckout "github.com/flashsale/backend/internal/application/checkout"
	"github.com/redis/go-redis/v9"
)

const sweepLeaseKey = "sweep:leader"

// RedisSweepLease elects a single sweeper across replicas with a SETNX
// lease. The lease lives as long as the sweep period, so a crashed leader
// is replaced after at most one missed pass.
type RedisSweepLease struct {
	client   *redis.Client
	instance string
}

// NewRedisSweepLease creates a new RedisSweepLease identified by instance
func NewRedisSweepLease(client *redis.Client, instance string) *RedisSweepLease {
	return &RedisSweepLease{client: client, instance: instance}
}

// TryAcquire returns true when this instance holds the sweep lease for the
// period. The current leader renews by holding its own token.
func (l *RedisSweepLease) TryAcquire(ctx context.Context, period time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, sweepLeaseKey, l.instance, period).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	holder, err := l.client.Get(ctx, sweepLeaseKey).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if holder != l.instance {
		return false, nil
	}
	// Still the leader; extend the lease for another period.
	if err := l.client.Expire(ctx, sweepLeaseKey, period).Err(); err != nil {
		return false, err
	}
	return true, nil
}

var _ appcheckout.SweepLease = (*RedisSweepLease)(nil)

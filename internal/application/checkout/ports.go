package checkout

import (
	"context"
	"time"
)

// StockCache is a read-through cache of approximate available stock.
// Values are advisory; correctness always comes from the database path.
type StockCache interface {
	// GetAvailable returns the cached availability for the product, loading
	// it through loader on a miss. A cache outage degrades to calling loader
	// directly.
	GetAvailable(ctx context.Context, productID int64, loader func(ctx context.Context) (int64, error)) (int64, error)
	// Invalidate drops the cached entry. Failures are logged, never returned.
	Invalidate(ctx context.Context, productID int64)
}

// AdmissionLock serializes hold admission per product ahead of the database
// row lock, keeping hot products from stampeding the database. It is an
// optimization: when the lock backend is unreachable the caller proceeds
// without it unless strict mode is configured.
type AdmissionLock interface {
	// Acquire blocks until the product lock is held, the wait budget runs
	// out (ErrSystemBusy), or ctx is done. The returned release function is
	// always safe to call.
	Acquire(ctx context.Context, productID int64) (release func(), err error)
}

// SweepLease elects a single sweeper across replicas
type SweepLease interface {
	// TryAcquire returns true when this instance holds the sweep lease for
	// the period. A lease backend outage returns false with the error.
	TryAcquire(ctx context.Context, period time.Duration) (bool, error)
}

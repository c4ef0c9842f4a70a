package checkout

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SweeperConfig holds sweeper configuration
type SweeperConfig struct {
	Enabled bool
	// Period is the cadence between sweep passes
	Period time.Duration
}

// DefaultSweeperConfig returns default sweeper configuration
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Enabled: true,
		Period:  time.Minute,
	}
}

// Sweeper periodically expires overdue holds and drains parked webhooks.
// A lease elects a single active sweeper across replicas. The system stays
// correct without the sweeper; it only delays hold release and out-of-order
// webhook settlement.
type Sweeper struct {
	config   SweeperConfig
	holds    *HoldService
	webhooks *WebhookService
	lease    SweepLease
	logger   *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSweeper creates a new sweeper instance
func NewSweeper(config SweeperConfig, holds *HoldService, webhooks *WebhookService, lease SweepLease, logger *zap.Logger) *Sweeper {
	if config.Period <= 0 {
		config.Period = time.Minute
	}
	return &Sweeper{
		config:   config,
		holds:    holds,
		webhooks: webhooks,
		lease:    lease,
		logger:   logger,
	}
}

// Start starts the sweep loop
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Sweeper started", zap.Duration("period", s.config.Period))
	return nil
}

// Stop gracefully stops the sweep loop
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sweeper stop timed out")
		return ctx.Err()
	}
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Sweep runs one pass immediately, outside the periodic cadence
func (s *Sweeper) Sweep(ctx context.Context) {
	s.sweep(ctx)
}

func (s *Sweeper) sweep(ctx context.Context) {
	held, err := s.lease.TryAcquire(ctx, s.config.Period)
	if err != nil {
		s.logger.Warn("sweep lease unavailable, skipping pass", zap.Error(err))
		return
	}
	if !held {
		return
	}

	start := time.Now()

	expired, err := s.holds.ExpireDue(ctx)
	if err != nil {
		s.logger.Error("hold expiry sweep failed", zap.Int("expired", expired), zap.Error(err))
	}

	drained, err := s.webhooks.DrainPending(ctx)
	if err != nil {
		s.logger.Error("webhook drain failed", zap.Int("drained", drained), zap.Error(err))
	}

	if expired > 0 || drained > 0 {
		s.logger.Info("sweep pass completed",
			zap.Int("holds_expired", expired),
			zap.Int("webhooks_drained", drained),
			zap.Duration("elapsed", time.Since(start)))
	}
}

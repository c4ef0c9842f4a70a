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

// HoldConfig holds the tunables of the reservation path
type HoldConfig struct {
	// HoldDuration is how long a hold reserves availability
	HoldDuration time.Duration
	// MaxQuantity caps the units a single hold may reserve
	MaxQuantity int64
	// SweepPageSize bounds how many due holds one sweep iteration loads
	SweepPageSize int
}

// HoldService creates, releases, and expires holds. It is the sole admission
// gate: availability is recomputed under the product row lock on every
// creation, so the cache can never cause an oversell.
type HoldService struct {
	scope     TransactionScope
	cache     StockCache
	admission AdmissionLock
	cfg       HoldConfig
	logger    *zap.Logger
}

// NewHoldService creates a new HoldService
func NewHoldService(scope TransactionScope, cache StockCache, admission AdmissionLock, cfg HoldConfig, logger *zap.Logger) *HoldService {
	if cfg.HoldDuration <= 0 {
		cfg.HoldDuration = 2 * time.Minute
	}
	if cfg.MaxQuantity <= 0 {
		cfg.MaxQuantity = 100
	}
	if cfg.SweepPageSize <= 0 {
		cfg.SweepPageSize = 100
	}
	return &HoldService{
		scope:     scope,
		cache:     cache,
		admission: admission,
		cfg:       cfg,
		logger:    logger,
	}
}

// CreateHold reserves quantity units of a product for the hold duration.
// Admission is decided under the product row lock against physical stock
// minus the locked sum of active hold quantities.
func (s *HoldService) CreateHold(ctx context.Context, in CreateHoldInput) (*HoldResult, error) {
	if in.Quantity < 1 || in.Quantity > s.cfg.MaxQuantity {
		return nil, shared.ErrInvalidInput
	}

	release, err := s.admission.Acquire(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	defer release()

	var hold *checkout.Hold
	err = s.scope.ExecuteWithRetry(ctx, func(ctx context.Context, repos Repositories) error {
		product, err := repos.Products().FindByIDForUpdate(ctx, in.ProductID)
		if err != nil {
			return err
		}

		held, err := repos.Holds().SumActiveQuantityForUpdate(ctx, in.ProductID, time.Now().UTC())
		if err != nil {
			return err
		}

		if product.Stock-held < in.Quantity {
			return shared.ErrInsufficientStock
		}

		hold = checkout.NewHold(in.ProductID, in.Quantity, s.cfg.HoldDuration)
		return repos.Holds().Create(ctx, hold)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, in.ProductID)
	s.logger.Info("hold created",
		zap.String("hold_id", hold.ID.String()),
		zap.Int64("product_id", in.ProductID),
		zap.Int64("quantity", in.Quantity))

	return &HoldResult{
		HoldID:    hold.ID,
		ProductID: hold.ProductID,
		Quantity:  hold.Quantity,
		Status:    string(hold.Status),
		ExpiresAt: hold.ExpiresAt,
	}, nil
}

// ReleaseHold returns an active hold's units to availability. Releasing a
// hold that already left the active state is a no-op that reports the
// current status.
func (s *HoldService) ReleaseHold(ctx context.Context, holdID uuid.UUID) (*HoldResult, error) {
	var hold *checkout.Hold
	err := s.scope.ExecuteWithRetry(ctx, func(ctx context.Context, repos Repositories) error {
		h, err := repos.Holds().FindByIDForUpdate(ctx, holdID)
		if err != nil {
			return err
		}
		hold = h
		if !h.IsActive() {
			return nil
		}
		if err := h.Release(); err != nil {
			return err
		}
		return repos.Holds().Save(ctx, h)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, hold.ProductID)

	return &HoldResult{
		HoldID:    hold.ID,
		ProductID: hold.ProductID,
		Quantity:  hold.Quantity,
		Status:    string(hold.Status),
		ExpiresAt: hold.ExpiresAt,
	}, nil
}

// ExpireDue transitions every active hold whose deadline has passed to
// expired and returns how many holds it transitioned. Each hold moves in
// its own transaction; the page read is re-verified under the row lock
// because creation, conversion, and release race with the sweep.
func (s *HoldService) ExpireDue(ctx context.Context) (int, error) {
	count := 0
	for {
		var page []checkout.Hold
		err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
			var err error
			page, err = repos.Holds().FindDuePage(ctx, time.Now().UTC(), s.cfg.SweepPageSize)
			return err
		})
		if err != nil {
			return count, err
		}
		if len(page) == 0 {
			return count, nil
		}

		for i := range page {
			expired, err := s.expireOne(ctx, page[i].ID)
			if err != nil {
				return count, err
			}
			if expired {
				count++
				s.cache.Invalidate(ctx, page[i].ProductID)
			}
		}

		if len(page) < s.cfg.SweepPageSize {
			return count, nil
		}
	}
}

func (s *HoldService) expireOne(ctx context.Context, holdID uuid.UUID) (bool, error) {
	expired := false
	err := s.scope.ExecuteWithRetry(ctx, func(ctx context.Context, repos Repositories) error {
		h, err := repos.Holds().FindByIDForUpdate(ctx, holdID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			return err
		}
		if !h.IsActive() || !h.IsExpiredAt(time.Now().UTC()) {
			return nil
		}
		if err := h.Expire(); err != nil {
			return err
		}
		if err := repos.Holds().Save(ctx, h); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}

// GetProduct returns the public product snapshot. Availability comes from
// the read-through cache and may lag the truth by the cache TTL.
func (s *HoldService) GetProduct(ctx context.Context, productID int64) (*ProductView, error) {
	var product *checkout.Product
	err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		product, err = repos.Products().FindByID(ctx, productID)
		return err
	})
	if err != nil {
		return nil, err
	}

	available, err := s.cache.GetAvailable(ctx, productID, s.availabilityLoader(productID))
	if err != nil {
		return nil, err
	}

	return &ProductView{
		ID:             product.ID,
		Name:           product.Name,
		Description:    product.Description,
		Price:          product.Price,
		AvailableStock: available,
		UpdatedAt:      product.UpdatedAt,
	}, nil
}

// availabilityLoader computes available stock from the store without locks.
// A missing product loads as zero so the cache absorbs probes for deleted
// or unknown products.
func (s *HoldService) availabilityLoader(productID int64) func(ctx context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		var available int64
		err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
			product, err := repos.Products().FindByID(ctx, productID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					available = 0
					return nil
				}
				return err
			}
			held, err := repos.Holds().SumActiveQuantity(ctx, productID, time.Now().UTC())
			if err != nil {
				return err
			}
			available = product.Stock - held
			if available < 0 {
				available = 0
			}
			return nil
		})
		return available, err
	}
}

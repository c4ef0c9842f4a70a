package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flashsale/backend/internal/domain/checkout"
	"github.com/flashsale/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newHoldFixture(t *testing.T) (*HoldService, *memStore, *fakeCache, *fakeAdmission) {
	t.Helper()
	store := newMemStore()
	cache := &fakeCache{}
	admission := &fakeAdmission{}
	svc := NewHoldService(store, cache, admission, HoldConfig{
		HoldDuration:  2 * time.Minute,
		MaxQuantity:   100,
		SweepPageSize: 100,
	}, zap.NewNop())
	return svc, store, cache, admission
}

func TestHoldService_CreateHold(t *testing.T) {
	svc, store, cache, admission := newHoldFixture(t)
	store.putProduct(checkout.Product{ID: 1, Name: "widget", Stock: 10, Version: 1, Price: decimal.RequireFromString("99.99")})

	res, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: 1, Quantity: 2})

	require.NoError(t, err)
	assert.Equal(t, int64(1), res.ProductID)
	assert.Equal(t, int64(2), res.Quantity)
	assert.Equal(t, string(checkout.HoldStatusActive), res.Status)
	assert.WithinDuration(t, time.Now().UTC().Add(2*time.Minute), res.ExpiresAt, time.Second)
	assert.Equal(t, 1, admission.acquired)
	assert.Equal(t, 1, cache.invalidations())

	// Physical stock is untouched by reservation.
	assert.Equal(t, int64(10), store.products[1].Stock)
}

func TestHoldService_CreateHold_Validation(t *testing.T) {
	svc, _, _, admission := newHoldFixture(t)

	for _, qty := range []int64{0, -1, 101} {
		_, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: 1, Quantity: qty})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput), "qty %d", qty)
	}
	assert.Zero(t, admission.acquired)
}

func TestHoldService_CreateHold_ProductNotFound(t *testing.T) {
	svc, _, _, _ := newHoldFixture(t)

	_, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: 404, Quantity: 1})
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestHoldService_CreateHold_NoOversell(t *testing.T) {
	svc, store, _, _ := newHoldFixture(t)
	store.putProduct(checkout.Product{ID: 1, Stock: 10, Version: 1, Price: decimal.NewFromInt(5)})

	succeeded, refused := 0, 0
	for i := 0; i < 20; i++ {
		_, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: 1, Quantity: 1})
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, shared.ErrInsufficientStock):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 10, refused)

	held, err := (&memHolds{store}).SumActiveQuantity(context.Background(), 1, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(10), held)
	assert.Equal(t, int64(10), store.products[1].Stock)
}

func TestHoldService_CreateHold_NoOversellConcurrent(t *testing.T) {
	svc, store, _, _ := newHoldFixture(t)
	store.putProduct(checkout.Product{ID: 1, Stock: 10, Version: 1, Price: decimal.NewFromInt(5)})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: 1, Quantity: 1}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	held, err := (&memHolds{store}).SumActiveQuantity(context.Background(), 1, time.Now().UTC())
	require.NoError(t, err)
	assert.LessOrEqual(t, held, int64(10))
	assert.Equal(t, int64(held), int64(succeeded))
}

func TestHoldService_CreateHold_AdmissionBusy(t *testing.T) {
	svc, store, _, admission := newHoldFixture(t)
	store.putProduct(checkout.Product{ID: 1, Stock: 10, Version: 1})
	admission.err = shared.ErrSystemBusy

	_, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: 1, Quantity: 1})
	assert.True(t, errors.Is(err, shared.ErrSystemBusy))
}

func TestHoldService_ReleaseHold(t *testing.T) {
	svc, store, cache, _ := newHoldFixture(t)
	store.putProduct(checkout.Product{ID: 1, Stock: 5, Version: 1})

	created, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: 1, Quantity: 5})
	require.NoError(t, err)

	// Product is fully reserved.
	_, err = svc.CreateHold(context.Background(), CreateHoldInput{ProductID: 1, Quantity: 1})
	require.True(t, errors.Is(err, shared.ErrInsufficientStock))

	released, err := svc.ReleaseHold(context.Background(), created.HoldID)
	require.NoError(t, err)
	assert.Equal(t, string(checkout.HoldStatusReleased), released.Status)
	assert.GreaterOrEqual(t, cache.invalidations(), 2)

	// Releasing again is a no-op reporting the current status.
	again, err := svc.ReleaseHold(context.Background(), created.HoldID)
	require.NoError(t, err)
	assert.Equal(t, string(checkout.HoldStatusReleased), again.Status)

	// Availability is back.
	_, err = svc.CreateHold(context.Background(), CreateHoldInput{ProductID: 1, Quantity: 5})
	assert.NoError(t, err)
}

func TestHoldService_ReleaseHold_NotFound(t *testing.T) {
	svc, _, _, _ := newHoldFixture(t)

	_, err := svc.ReleaseHold(context.Background(), checkout.NewHold(1, 1, time.Minute).ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestHoldService_ExpireDue(t *testing.T) {
	svc, store, _, _ := newHoldFixture(t)
	store.putProduct(checkout.Product{ID: 1, Stock: 5, Version: 1})

	created, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: 1, Quantity: 5})
	require.NoError(t, err)

	// Force the deadline into the past.
	h := store.holds[created.HoldID]
	h.ExpiresAt = time.Now().UTC().Add(-time.Second)
	store.holds[created.HoldID] = h

	count, err := svc.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, checkout.HoldStatusExpired, store.holds[created.HoldID].Status)

	// Expired units are available again.
	_, err = svc.CreateHold(context.Background(), CreateHoldInput{ProductID: 1, Quantity: 5})
	assert.NoError(t, err)

	// Nothing left to expire.
	count, err = svc.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHoldService_GetProduct(t *testing.T) {
	svc, store, _, _ := newHoldFixture(t)
	store.putProduct(checkout.Product{ID: 1, Name: "widget", Description: "a widget", Stock: 10, Version: 1, Price: decimal.RequireFromString("99.99")})

	_, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: 1, Quantity: 3})
	require.NoError(t, err)

	view, err := svc.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "widget", view.Name)
	assert.Equal(t, int64(7), view.AvailableStock)
	assert.True(t, view.Price.Equal(decimal.RequireFromString("99.99")))

	_, err = svc.GetProduct(context.Background(), 404)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

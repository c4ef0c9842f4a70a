package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	appcheckout "github.com/flashsale/backend/internal/application/checkout"
	"github.com/flashsale/backend/internal/domain/checkout"
	"github.com/flashsale/backend/internal/domain/shared"
	"github.com/flashsale/backend/internal/interfaces/http/middleware"
	"github.com/flashsale/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubStore backs the services with plain maps so handlers can be driven
// end to end without a database. It does not model rollback.
type stubStore struct {
	mu       sync.Mutex
	products map[int64]checkout.Product
	holds    map[uuid.UUID]checkout.Hold
	orders   map[uuid.UUID]checkout.Order
	webhooks map[uuid.UUID]checkout.PaymentWebhook
}

func newStubStore() *stubStore {
	return &stubStore{
		products: make(map[int64]checkout.Product),
		holds:    make(map[uuid.UUID]checkout.Hold),
		orders:   make(map[uuid.UUID]checkout.Order),
		webhooks: make(map[uuid.UUID]checkout.PaymentWebhook),
	}
}

func (s *stubStore) Execute(ctx context.Context, fn func(ctx context.Context, repos appcheckout.Repositories) error) error {
	return fn(ctx, stubRepos{s})
}

func (s *stubStore) ExecuteWithRetry(ctx context.Context, fn func(ctx context.Context, repos appcheckout.Repositories) error) error {
	return s.Execute(ctx, fn)
}

type stubRepos struct{ s *stubStore }

func (r stubRepos) Products() checkout.ProductRepository { return stubProducts{r.s} }
func (r stubRepos) Holds() checkout.HoldRepository       { return stubHolds{r.s} }
func (r stubRepos) Orders() checkout.OrderRepository     { return stubOrders{r.s} }
func (r stubRepos) Webhooks() checkout.WebhookRepository { return stubWebhooks{r.s} }

type stubProducts struct{ s *stubStore }

func (m stubProducts) FindByID(ctx context.Context, id int64) (*checkout.Product, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.products[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (m stubProducts) FindByIDForUpdate(ctx context.Context, id int64) (*checkout.Product, error) {
	return m.FindByID(ctx, id)
}

func (m stubProducts) Save(ctx context.Context, p *checkout.Product) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.products[p.ID] = *p
	return nil
}

func (m stubProducts) Create(ctx context.Context, p *checkout.Product) error {
	return m.Save(ctx, p)
}

type stubHolds struct{ s *stubStore }

func (m stubHolds) FindByID(ctx context.Context, id uuid.UUID) (*checkout.Hold, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	h, ok := m.s.holds[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := h
	return &cp, nil
}

func (m stubHolds) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*checkout.Hold, error) {
	return m.FindByID(ctx, id)
}

func (m stubHolds) Create(ctx context.Context, h *checkout.Hold) error {
	return m.Save(ctx, h)
}

func (m stubHolds) Save(ctx context.Context, h *checkout.Hold) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.holds[h.ID] = *h
	return nil
}

func (m stubHolds) SumActiveQuantityForUpdate(ctx context.Context, productID int64, now time.Time) (int64, error) {
	return m.SumActiveQuantity(ctx, productID, now)
}

func (m stubHolds) SumActiveQuantity(ctx context.Context, productID int64, now time.Time) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var sum int64
	for _, h := range m.s.holds {
		if h.ProductID == productID && h.Status == checkout.HoldStatusActive && h.ExpiresAt.After(now) {
			sum += h.Quantity
		}
	}
	return sum, nil
}

func (m stubHolds) FindDuePage(ctx context.Context, now time.Time, limit int) ([]checkout.Hold, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var due []checkout.Hold
	for _, h := range m.s.holds {
		if h.Status == checkout.HoldStatusActive && !now.Before(h.ExpiresAt) {
			due = append(due, h)
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

type stubOrders struct{ s *stubStore }

func (m stubOrders) FindByID(ctx context.Context, id uuid.UUID) (*checkout.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := o
	return &cp, nil
}

func (m stubOrders) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*checkout.Order, error) {
	return m.FindByID(ctx, id)
}

func (m stubOrders) FindByHoldID(ctx context.Context, holdID uuid.UUID) (*checkout.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, o := range m.s.orders {
		if o.HoldID == holdID {
			cp := o
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m stubOrders) Create(ctx context.Context, o *checkout.Order) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.orders {
		if existing.HoldID == o.HoldID {
			return shared.ErrAlreadyExists
		}
	}
	m.s.orders[o.ID] = *o
	return nil
}

func (m stubOrders) Save(ctx context.Context, o *checkout.Order) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.orders[o.ID] = *o
	return nil
}

type stubWebhooks struct{ s *stubStore }

func (m stubWebhooks) FindByKeyForUpdate(ctx context.Context, key string) (*checkout.PaymentWebhook, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, w := range m.s.webhooks {
		if w.IdempotencyKey == key {
			cp := w
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m stubWebhooks) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*checkout.PaymentWebhook, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	w, ok := m.s.webhooks[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := w
	return &cp, nil
}

func (m stubWebhooks) Create(ctx context.Context, w *checkout.PaymentWebhook) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.webhooks {
		if existing.IdempotencyKey == w.IdempotencyKey {
			return shared.ErrAlreadyExists
		}
	}
	m.s.webhooks[w.ID] = *w
	return nil
}

func (m stubWebhooks) Save(ctx context.Context, w *checkout.PaymentWebhook) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.webhooks[w.ID] = *w
	return nil
}

func (m stubWebhooks) FindPendingPage(ctx context.Context, after time.Time, limit int) ([]checkout.PaymentWebhook, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var pending []checkout.PaymentWebhook
	for _, w := range m.s.webhooks {
		if w.ProcessingStatus == checkout.ProcessingStatusPending && w.CreatedAt.After(after) {
			pending = append(pending, w)
		}
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

// passCache always loads through
type passCache struct{}

func (passCache) GetAvailable(ctx context.Context, productID int64, loader func(ctx context.Context) (int64, error)) (int64, error) {
	return loader(ctx)
}

func (passCache) Invalidate(ctx context.Context, productID int64) {}

// openAdmission always grants the lock
type openAdmission struct{}

func (openAdmission) Acquire(ctx context.Context, productID int64) (func(), error) {
	return func() {}, nil
}

type testEnv struct {
	store  *stubStore
	engine *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newStubStore()
	log := zap.NewNop()

	holdSvc := appcheckout.NewHoldService(store, passCache{}, openAdmission{}, appcheckout.HoldConfig{}, log)
	orderSvc := appcheckout.NewOrderService(store, passCache{}, log)
	webhookSvc := appcheckout.NewWebhookService(store, orderSvc, passCache{}, appcheckout.WebhookConfig{
		OrderWaitAttempts: 1,
		OrderWaitSleep:    time.Millisecond,
	}, log)

	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(middleware.RequestID())

	r := router.NewRouter(engine)
	r.Register(NewProductHandler(holdSvc))
	r.Register(NewHoldHandler(holdSvc))
	r.Register(NewOrderHandler(orderSvc))
	r.Register(NewWebhookHandler(webhookSvc))
	r.Setup()

	return &testEnv{store: store, engine: engine}
}

func (e *testEnv) seedProduct(id int64, price string, stock int64) {
	e.store.products[id] = checkout.Product{
		ID:    id,
		Name:  "Test Product",
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	body := decodeBody(t, rec)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "response has no error object: %s", rec.Body.String())
	code, _ := errObj["code"].(string)
	return code
}

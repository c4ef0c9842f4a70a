package checkout

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flashsale/backend/internal/domain/checkout"
	"github.com/flashsale/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// memStore is an in-memory stand-in for the transactional store. It gives
// the services real state to mutate without a database; it does not model
// rollback, so tests only assert on state the services commit.
type memStore struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	products map[int64]checkout.Product
	holds    map[uuid.UUID]checkout.Hold
	orders   map[uuid.UUID]checkout.Order
	webhooks map[uuid.UUID]checkout.PaymentWebhook

	// failNextWebhookCreate makes the next webhook insert report a unique
	// key conflict, simulating a lost race on the idempotency index.
	failNextWebhookCreate bool
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[int64]checkout.Product),
		holds:    make(map[uuid.UUID]checkout.Hold),
		orders:   make(map[uuid.UUID]checkout.Order),
		webhooks: make(map[uuid.UUID]checkout.PaymentWebhook),
	}
}

func (s *memStore) putProduct(p checkout.Product) { s.products[p.ID] = p }

func (s *memStore) Execute(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return fn(ctx, &memRepos{store: s})
}

// ExecuteWithRetry serializes write transactions the way the row locks
// would in the real store.
func (s *memStore) ExecuteWithRetry(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.Execute(ctx, fn)
}

type memRepos struct{ store *memStore }

func (r *memRepos) Products() checkout.ProductRepository { return &memProducts{r.store} }
func (r *memRepos) Holds() checkout.HoldRepository       { return &memHolds{r.store} }
func (r *memRepos) Orders() checkout.OrderRepository     { return &memOrders{r.store} }
func (r *memRepos) Webhooks() checkout.WebhookRepository { return &memWebhooks{r.store} }

type memProducts struct{ s *memStore }

func (m *memProducts) FindByID(ctx context.Context, id int64) (*checkout.Product, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.products[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (m *memProducts) FindByIDForUpdate(ctx context.Context, id int64) (*checkout.Product, error) {
	return m.FindByID(ctx, id)
}

func (m *memProducts) Save(ctx context.Context, p *checkout.Product) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.products[p.ID] = *p
	return nil
}

func (m *memProducts) Create(ctx context.Context, p *checkout.Product) error {
	return m.Save(ctx, p)
}

type memHolds struct{ s *memStore }

func (m *memHolds) FindByID(ctx context.Context, id uuid.UUID) (*checkout.Hold, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	h, ok := m.s.holds[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := h
	return &cp, nil
}

func (m *memHolds) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*checkout.Hold, error) {
	return m.FindByID(ctx, id)
}

func (m *memHolds) Create(ctx context.Context, h *checkout.Hold) error {
	return m.Save(ctx, h)
}

func (m *memHolds) Save(ctx context.Context, h *checkout.Hold) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.holds[h.ID] = *h
	return nil
}

func (m *memHolds) SumActiveQuantityForUpdate(ctx context.Context, productID int64, now time.Time) (int64, error) {
	return m.SumActiveQuantity(ctx, productID, now)
}

func (m *memHolds) SumActiveQuantity(ctx context.Context, productID int64, now time.Time) (int64, error) {
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

func (m *memHolds) FindDuePage(ctx context.Context, now time.Time, limit int) ([]checkout.Hold, error) {
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

type memOrders struct{ s *memStore }

func (m *memOrders) FindByID(ctx context.Context, id uuid.UUID) (*checkout.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := o
	return &cp, nil
}

func (m *memOrders) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*checkout.Order, error) {
	return m.FindByID(ctx, id)
}

func (m *memOrders) FindByHoldID(ctx context.Context, holdID uuid.UUID) (*checkout.Order, error) {
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

func (m *memOrders) Create(ctx context.Context, o *checkout.Order) error {
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

func (m *memOrders) Save(ctx context.Context, o *checkout.Order) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.orders[o.ID] = *o
	return nil
}

type memWebhooks struct{ s *memStore }

func (m *memWebhooks) FindByKeyForUpdate(ctx context.Context, key string) (*checkout.PaymentWebhook, error) {
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

func (m *memWebhooks) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*checkout.PaymentWebhook, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	w, ok := m.s.webhooks[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := w
	return &cp, nil
}

func (m *memWebhooks) Create(ctx context.Context, w *checkout.PaymentWebhook) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failNextWebhookCreate {
		m.s.failNextWebhookCreate = false
		return shared.ErrAlreadyExists
	}
	for _, existing := range m.s.webhooks {
		if existing.IdempotencyKey == w.IdempotencyKey {
			return shared.ErrAlreadyExists
		}
	}
	m.s.webhooks[w.ID] = *w
	return nil
}

func (m *memWebhooks) Save(ctx context.Context, w *checkout.PaymentWebhook) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.webhooks[w.ID] = *w
	return nil
}

func (m *memWebhooks) FindPendingPage(ctx context.Context, after time.Time, limit int) ([]checkout.PaymentWebhook, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var pending []checkout.PaymentWebhook
	for _, w := range m.s.webhooks {
		if w.ProcessingStatus == checkout.ProcessingStatusPending && w.CreatedAt.After(after) {
			pending = append(pending, w)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// fakeCache records invalidations and always misses
type fakeCache struct {
	mu          sync.Mutex
	invalidated []int64
}

func (c *fakeCache) GetAvailable(ctx context.Context, productID int64, loader func(ctx context.Context) (int64, error)) (int64, error) {
	return loader(ctx)
}

func (c *fakeCache) Invalidate(ctx context.Context, productID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, productID)
}

func (c *fakeCache) invalidations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.invalidated)
}

// fakeAdmission counts acquisitions; err, when set, is returned to the caller
type fakeAdmission struct {
	mu       sync.Mutex
	acquired int
	err      error
}

func (a *fakeAdmission) Acquire(ctx context.Context, productID int64) (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return func() {}, a.err
	}
	a.acquired++
	return func() {}, nil
}

// fakeLease grants or withholds the sweep lease
type fakeLease struct {
	held bool
	err  error
}

func (l *fakeLease) TryAcquire(ctx context.Context, period time.Duration) (bool, error) {
	return l.held, l.err
}

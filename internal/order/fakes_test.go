package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"dapur-be/internal/cart"
	"dapur-be/internal/notify"
	"dapur-be/internal/product"
	"dapur-be/internal/verification"

	"github.com/shopspring/decimal"
)

// memStock is a linearizable in-memory catalog.
type memStock struct {
	mu       sync.Mutex
	products map[string]*product.Product

	// beforeDecrement runs under no lock right before a decrement, so tests
	// can simulate a concurrent buyer.
	beforeDecrement func(productID string)
	incrementErr    func(productID string) error
	decrementErr    func(productID string) error
}

func newMemStock(products ...product.Product) *memStock {
	s := &memStock{products: map[string]*product.Product{}}
	for i := range products {
		p := products[i]
		s.products[p.ID] = &p
	}
	return s
}

func (s *memStock) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memStock) GetStock(ctx context.Context, id string) (*product.StockLevel, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return &product.StockLevel{ProductID: p.ID, StockQuantity: p.StockQuantity, IsAvailable: p.IsAvailable()}, nil
}

func (s *memStock) ConditionalDecrement(ctx context.Context, id string, qty int) (int, error) {
	if s.beforeDecrement != nil {
		s.beforeDecrement(id)
	}
	if s.decrementErr != nil {
		if err := s.decrementErr(id); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return 0, product.ErrProductNotFound
	}
	if p.StockQuantity < qty {
		return 0, product.ErrInsufficientStock
	}
	p.StockQuantity -= qty
	return p.StockQuantity, nil
}

func (s *memStock) Increment(ctx context.Context, id string, qty int) (int, error) {
	if s.incrementErr != nil {
		if err := s.incrementErr(id); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return 0, product.ErrProductNotFound
	}
	p.StockQuantity += qty
	return p.StockQuantity, nil
}

func (s *memStock) level(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].StockQuantity
}

func (s *memStock) setPrice(id string, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id].Price = decimal.RequireFromString(price)
}

// memOrders mimics the ledger's unique keys and per-day counters.
type memOrders struct {
	mu       sync.Mutex
	orders   map[string]*Order
	numbers  map[string]string
	carts    map[string]string
	counters map[string]int64

	// preTaken numbers behave as if another writer already used them.
	preTaken map[string]bool
}

func newMemOrders() *memOrders {
	return &memOrders{
		orders:   map[string]*Order{},
		numbers:  map[string]string{},
		carts:    map[string]string{},
		counters: map[string]int64{},
		preTaken: map[string]bool{},
	}
}

func (m *memOrders) NextSequence(ctx context.Context, day time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := day.Format("2006-01-02")
	m.counters[key]++
	return m.counters[key], nil
}

func (m *memOrders) Insert(ctx context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.numbers[o.OrderNumber]; taken || m.preTaken[o.OrderNumber] {
		return errNumberTaken
	}
	if _, dup := m.carts[o.CartSessionID]; dup {
		return ErrCartAlreadyOrdered
	}
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	m.orders[o.ID] = &cp
	m.numbers[o.OrderNumber] = o.ID
	m.carts[o.CartSessionID] = o.ID
	return nil
}

func (m *memOrders) get(id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	return &cp, nil
}

func (m *memOrders) GetByID(ctx context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *memOrders) GetByNumber(ctx context.Context, number string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(m.numbers[number])
}

func (m *memOrders) GetByCartSession(ctx context.Context, cartSessionID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(m.carts[cartSessionID])
}

func (m *memOrders) ListByPhone(ctx context.Context, phone string, status *Status) ([]*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Order{}
	for id, o := range m.orders {
		if o.CustomerPhone != phone || (status != nil && o.Status != *status) {
			continue
		}
		cp, _ := m.get(id)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber > out[j].OrderNumber })
	return out, nil
}

func (m *memOrders) UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time, by Initiator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return errStatusChanged
	}
	o.stamp(to, at)
	if to == StatusCancelled {
		o.CancelledBy = by
	}
	return nil
}

func (m *memOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type memCarts struct {
	mu       sync.Mutex
	sessions map[string]*cart.Session
}

func (c *memCarts) GetCart(ctx context.Context, id string) (*cart.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	if s.IsExpired(testNow) {
		return nil, cart.ErrCartExpired
	}
	cp := *s
	return &cp, nil
}

func (c *memCarts) put(id string, items ...cart.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[id] = &cart.Session{
		ID:        id,
		Items:     items,
		CreatedAt: testNow.Add(-time.Hour),
		ExpiresAt: testNow.Add(time.Hour),
	}
}

// memVerifier accepts each issued code exactly once.
type memVerifier struct {
	mu    sync.Mutex
	codes map[string]string
	used  map[string]bool
	calls int
}

func newMemVerifier() *memVerifier {
	return &memVerifier{codes: map[string]string{}, used: map[string]bool{}}
}

func (v *memVerifier) issue(phone, code string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.codes[phone] = code
	v.used[phone] = false
}

func (v *memVerifier) Consume(ctx context.Context, phone, code string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	want, ok := v.codes[phone]
	switch {
	case !ok:
		return verification.ErrCodeNotFound
	case v.used[phone]:
		return verification.ErrCodeConsumed
	case want != code:
		return verification.ErrCodeMismatch
	}
	v.used[phone] = true
	return nil
}

type sentNotification struct {
	phone string
	kind  notify.Kind
	data  notify.Data
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, phone string, kind notify.Kind, data notify.Data) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentNotification{phone, kind, data})
}

func (d *recordingDispatcher) kinds() []notify.Kind {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]notify.Kind, 0, len(d.sent))
	for _, s := range d.sent {
		out = append(out, s.kind)
	}
	return out
}

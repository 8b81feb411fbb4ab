package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/order"
)

// --- Coupons ---

type memCouponRepo struct {
	mu       sync.Mutex
	coupons  map[string]*coupon.Coupon
	deactErr error
}

func newMemCouponRepo(coupons ...coupon.Coupon) *memCouponRepo {
	r := &memCouponRepo{coupons: make(map[string]*coupon.Coupon)}
	for i := range coupons {
		c := coupons[i]
		r.coupons[c.UserID+"/"+c.Code] = &c
	}
	return r
}

func (r *memCouponRepo) FindActive(_ context.Context, code, userID string) (*coupon.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[userID+"/"+code]
	if !ok || !c.Active {
		return nil, coupon.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCouponRepo) Create(_ context.Context, c *coupon.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := c.UserID + "/" + c.Code
	if _, ok := r.coupons[k]; ok {
		return coupon.ErrDuplicateCode
	}
	cp := *c
	r.coupons[k] = &cp
	return nil
}

func (r *memCouponRepo) Deactivate(_ context.Context, code, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deactErr != nil {
		return false, r.deactErr
	}
	c, ok := r.coupons[userID+"/"+code]
	if !ok || !c.Active {
		return false, nil
	}
	c.Active = false
	return true, nil
}

func (r *memCouponRepo) ListActive(_ context.Context, userID string) ([]coupon.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []coupon.Coupon
	for _, c := range r.coupons {
		if c.UserID == userID && c.Active {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memCouponRepo) get(userID, code string) *coupon.Coupon {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coupons[userID+"/"+code]
}

func (r *memCouponRepo) countFor(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.coupons {
		if c.UserID == userID {
			n++
		}
	}
	return n
}

// --- Carts ---

type mockCartRepo struct {
	items map[string][]cart.LineItem
	err   error
}

func (m *mockCartRepo) FindUserCart(_ context.Context, userID string) ([]cart.LineItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	items, ok := m.items[userID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return items, nil
}

// --- Orders ---

type memOrderRepo struct {
	mu        sync.Mutex
	bySession map[string]*order.Order
	creates   int
	createErr error
	// beforeCreate runs once inside Create, before the uniqueness check.
	beforeCreate func()
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{bySession: make(map[string]*order.Order)}
}

func (r *memOrderRepo) Create(_ context.Context, o *order.Order) error {
	if hook := r.beforeCreate; hook != nil {
		r.beforeCreate = nil
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.bySession[o.SessionID]; ok {
		return order.ErrDuplicateSession
	}
	o.CreatedAt = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	cp := *o
	r.bySession[o.SessionID] = &cp
	return nil
}

func (r *memOrderRepo) GetBySessionID(_ context.Context, sessionID string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.bySession[sessionID]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []order.Order
	for _, o := range r.bySession {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySession)
}

// --- Provider ---

type fakeProvider struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	requests  []SessionRequest
	createErr error
	getErr    error
	gets      int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{sessions: make(map[string]*Session)}
}

func (p *fakeProvider) CreateSession(_ context.Context, req SessionRequest) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.requests = append(p.requests, req)
	id := fmt.Sprintf("cs_test_%d", len(p.requests))
	s := &Session{
		ID:            id,
		URL:           "https://pay.example.com/" + id,
		PaymentStatus: PaymentStatusUnpaid,
		Metadata:      req.Metadata,
	}
	p.sessions[id] = s
	return s, nil
}

func (p *fakeProvider) GetSession(_ context.Context, id string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gets++
	if p.getErr != nil {
		return nil, p.getErr
	}
	s, ok := p.sessions[id]
	if !ok {
		return nil, ErrInvalidSession
	}
	cp := *s
	return &cp, nil
}

func (p *fakeProvider) put(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[s.ID] = s
}

func (p *fakeProvider) pay(id string, amount int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.sessions[id]
	s.PaymentStatus = PaymentStatusPaid
	s.AmountTotal = amount
}

// --- Locker ---

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) Lock(_ context.Context, key string) (UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	if l.held[key] {
		return nil, ErrLockHeld
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}

func (l *fakeLocker) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key]
}

// --- Publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	orders []*order.Order
	err    error
}

func (p *recordingPublisher) PublishOrderCreated(_ context.Context, o *order.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, o)
	return p.err
}

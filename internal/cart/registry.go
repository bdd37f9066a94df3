package cart

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry tracks the live cart of every terminal. Carts idle past the
// TTL are dropped; an abandoned register must not pin lines forever.
type Registry struct {
	mu    sync.Mutex
	carts map[string]*entry
	ttl   time.Duration
	now   func() time.Time
}

type entry struct {
	cart    *Cart
	touched time.Time
}

// NewRegistry constructs a registry with the given idle TTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &Registry{
		carts: make(map[string]*entry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// SetNow overrides the clock for tests.
func (r *Registry) SetNow(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now != nil {
		r.now = now
	}
}

// Create registers a new empty cart.
func (r *Registry) Create() *Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := New(uuid.NewString())
	r.carts[c.ID()] = &entry{cart: c, touched: r.now()}
	return c
}

// Get returns the cart with the given id, refreshing its idle timer.
// An expired cart is dropped and reported as missing.
func (r *Registry) Get(id string) (*Cart, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.carts[id]
	if !ok {
		return nil, false
	}
	at := r.now()
	if at.Sub(e.touched) > r.ttl {
		delete(r.carts, id)
		return nil, false
	}
	e.touched = at
	return e.cart, true
}

// Delete removes a cart.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, id)
}

// Sweep drops every idle cart and reports how many were removed.
// Intended to be called periodically from the server's housekeeping loop.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	at := r.now()
	removed := 0
	for id, e := range r.carts {
		if at.Sub(e.touched) > r.ttl {
			delete(r.carts, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live carts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.carts)
}

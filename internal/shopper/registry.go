// Package shopper keeps the per-client state of the storefront: one cart and
// one auth session per client id. State lives in memory only.
package shopper

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/session"
)

// Shopper is the state of one client.
type Shopper struct {
	ID      string
	Cart    *cart.Cart
	Session *session.Manager

	lastSeen time.Time
}

// Logout signs the shopper out and empties the cart.
func (s *Shopper) Logout(ctx context.Context) error {
	if err := s.Session.Logout(ctx); err != nil {
		return err
	}
	s.Cart.Clear()
	return nil
}

// Registry maps client ids to shoppers and evicts idle ones.
type Registry struct {
	newProvider func() session.Provider
	idleTTL     time.Duration
	now         func() time.Time

	mu       sync.Mutex
	shoppers map[string]*Shopper
}

// NewRegistry returns a Registry creating a fresh identity provider per
// shopper. A zero idleTTL disables eviction.
func NewRegistry(newProvider func() session.Provider, idleTTL time.Duration) *Registry {
	return &Registry{
		newProvider: newProvider,
		idleTTL:     idleTTL,
		now:         time.Now,
		shoppers:    make(map[string]*Shopper),
	}
}

// Get returns the shopper for id and marks it active.
func (r *Registry) Get(id string) (*Shopper, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.shoppers[id]
	if ok {
		s.lastSeen = r.now()
	}
	return s, ok
}

// GetOrCreate returns the shopper for id, or a new shopper with a new id
// when id is empty or unknown. Unknown ids are never adopted so clients
// cannot pick each other's ids.
func (r *Registry) GetOrCreate(id string) (s *Shopper, created bool) {
	if id != "" {
		if s, ok := r.Get(id); ok {
			return s, false
		}
	}

	s = &Shopper{
		ID:   uuid.NewString(),
		Cart: cart.New(),
	}
	s.Session = session.NewManager(r.newProvider())

	r.mu.Lock()
	s.lastSeen = r.now()
	r.shoppers[s.ID] = s
	r.mu.Unlock()
	return s, true
}

// Len returns the number of live shoppers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.shoppers)
}

// Sweep evicts shoppers idle for longer than the TTL and returns how many
// were evicted.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}

	r.mu.Lock()
	cutoff := r.now().Add(-r.idleTTL)
	var idle []*Shopper
	for id, s := range r.shoppers {
		if s.lastSeen.Before(cutoff) {
			idle = append(idle, s)
			delete(r.shoppers, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Session.Close()
	}
	return len(idle)
}

// Run sweeps periodically until ctx is done.
func (r *Registry) Run(ctx context.Context) error {
	if r.idleTTL <= 0 {
		<-ctx.Done()
		return nil
	}

	lg := zctx.From(ctx)
	ticker := time.NewTicker(r.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				lg.Debug("Evicted idle shoppers", zap.Int("count", n), zap.Int("live", r.Len()))
			}
		}
	}
}

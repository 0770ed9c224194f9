package shopper

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
)

type stubProvider struct {
	user      *session.User
	listeners []func(*session.User)
	closed    int
}

func (p *stubProvider) SignIn(context.Context, string, string) error {
	p.user = &session.User{ID: "u1", Email: "a@b.co"}
	for _, fn := range p.listeners {
		fn(p.user)
	}
	return nil
}

func (p *stubProvider) SignUp(context.Context, string, string) (*session.User, error) {
	return nil, nil
}

func (p *stubProvider) SignOut(context.Context) error {
	p.user = nil
	return nil
}

func (p *stubProvider) UpdateProfile(context.Context, string) error { return nil }

func (p *stubProvider) CurrentUser() *session.User { return p.user }

func (p *stubProvider) OnAuthStateChanged(fn func(*session.User)) func() {
	p.listeners = append(p.listeners, fn)
	fn(p.user)
	return func() { p.closed++ }
}

func newRegistry(ttl time.Duration) (*Registry, *[]*stubProvider) {
	var providers []*stubProvider
	r := NewRegistry(func() session.Provider {
		p := &stubProvider{}
		providers = append(providers, p)
		return p
	}, ttl)
	return r, &providers
}

func TestRegistry_GetOrCreate(t *testing.T) {
	r, providers := newRegistry(time.Minute)

	s, created := r.GetOrCreate("")
	require.True(t, created)
	assert.NotEmpty(t, s.ID)

	again, created := r.GetOrCreate(s.ID)
	assert.False(t, created)
	assert.Same(t, s, again)

	other, created := r.GetOrCreate("made-up-id")
	assert.True(t, created)
	assert.NotEqual(t, "made-up-id", other.ID)
	assert.NotSame(t, s.Cart, other.Cart)

	assert.Equal(t, 2, r.Len())
	assert.Len(t, *providers, 2)
}

func TestRegistry_SweepEvictsIdle(t *testing.T) {
	r, providers := newRegistry(time.Minute)
	now := time.Unix(1700000000, 0)
	r.now = func() time.Time { return now }

	idle, _ := r.GetOrCreate("")
	now = now.Add(45 * time.Second)
	active, _ := r.GetOrCreate("")
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, r.Sweep())
	_, ok := r.Get(idle.ID)
	assert.False(t, ok)
	_, ok = r.Get(active.ID)
	assert.True(t, ok)
	assert.Equal(t, 1, (*providers)[0].closed, "evicted session unsubscribed")

	// Get refreshed the active shopper.
	now = now.Add(59 * time.Second)
	assert.Zero(t, r.Sweep())
}

func TestRegistry_NoTTLNeverEvicts(t *testing.T) {
	r, _ := newRegistry(0)
	r.GetOrCreate("")
	r.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	assert.Zero(t, r.Sweep())
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_RunStopsOnCancel(t *testing.T) {
	r, _ := newRegistry(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestShopper_LogoutClearsCart(t *testing.T) {
	r, _ := newRegistry(time.Minute)
	s, _ := r.GetOrCreate("")
	ctx := context.Background()

	require.NoError(t, s.Session.Login(ctx, "a@b.co", "secret1"))
	require.NoError(t, s.Cart.Add(product.Product{ID: "p1", Price: decimal.NewFromInt(1)}, 2))

	require.NoError(t, s.Logout(ctx))
	assert.Zero(t, s.Cart.ItemCount())
	_, err := s.Session.User()
	assert.ErrorIs(t, err, session.ErrNoActiveSession)
}

func TestShopper_LogoutWithoutSessionKeepsCart(t *testing.T) {
	r, _ := newRegistry(time.Minute)
	s, _ := r.GetOrCreate("")
	require.NoError(t, s.Cart.Add(product.Product{ID: "p1", Price: decimal.NewFromInt(1)}, 2))

	err := s.Logout(context.Background())
	assert.ErrorIs(t, err, session.ErrNoActiveSession)
	assert.Equal(t, 2, s.Cart.ItemCount())
}

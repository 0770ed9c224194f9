// Package session tracks the sign-in state of one shopper.
//
// The identity provider is the source of truth: Login, Register and Logout
// only trigger provider calls, and the Manager moves to Authenticated or
// Unauthenticated when the provider reports an auth state change.
package session

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
)

// ErrNoActiveSession is returned by operations that need a signed-in user.
var ErrNoActiveSession = errors.New("no user is currently logged in")

// State is the coarse auth state.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// User is the signed-in identity.
type User struct {
	ID    string
	Email string
	Name  string
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	Authenticated bool
	Loading       bool
	// Error is the message of the last failed operation, empty if none.
	Error string
	User  *User
}

// State derives the coarse state from the snapshot.
func (s Snapshot) State() State {
	switch {
	case s.Loading:
		return Authenticating
	case s.Authenticated:
		return Authenticated
	default:
		return Unauthenticated
	}
}

// Provider is the identity backend for one client.
type Provider interface {
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string) (*User, error)
	SignOut(ctx context.Context) error
	// UpdateProfile sets the display name of the current user.
	UpdateProfile(ctx context.Context, name string) error
	// CurrentUser returns the signed-in user or nil.
	CurrentUser() *User
	// OnAuthStateChanged registers fn to be called with the current user
	// (nil when signed out) now and on every change.
	OnAuthStateChanged(fn func(*User)) (unsubscribe func())
}

// Manager owns the session state of one shopper.
type Manager struct {
	provider    Provider
	unsubscribe func()

	mu    sync.Mutex
	state Snapshot
}

// NewManager creates a Manager listening to provider. The session stays
// loading until the provider reports the initial user.
func NewManager(provider Provider) *Manager {
	m := &Manager{
		provider: provider,
		state:    Snapshot{Loading: true},
	}
	m.unsubscribe = provider.OnAuthStateChanged(m.onAuthStateChanged)
	return m
}

func (m *Manager) onAuthStateChanged(u *User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u == nil {
		m.state = Snapshot{}
		return
	}
	cp := *u
	m.state = Snapshot{Authenticated: true, User: &cp}
}

// Snapshot returns a copy of the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state
	if s.User != nil {
		cp := *s.User
		s.User = &cp
	}
	return s
}

// User returns the signed-in user or ErrNoActiveSession.
func (m *Manager) User() (User, error) {
	s := m.Snapshot()
	if !s.Authenticated || s.User == nil {
		return User{}, ErrNoActiveSession
	}
	return *s.User, nil
}

// Login signs in with email and password.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	m.begin()
	if err := m.provider.SignIn(ctx, email, password); err != nil {
		return m.fail(err)
	}
	return nil
}

// Register creates an identity and sets its display name.
func (m *Manager) Register(ctx context.Context, email, password, name string) error {
	m.begin()
	if _, err := m.provider.SignUp(ctx, email, password); err != nil {
		return m.fail(err)
	}
	if err := m.provider.UpdateProfile(ctx, name); err != nil {
		return m.fail(err)
	}
	m.setName(name)
	return nil
}

// Logout signs the current user out.
func (m *Manager) Logout(ctx context.Context) error {
	m.begin()
	if m.provider.CurrentUser() == nil {
		return m.fail(ErrNoActiveSession)
	}
	if err := m.provider.SignOut(ctx); err != nil {
		return m.fail(err)
	}

	m.mu.Lock()
	m.state = Snapshot{}
	m.mu.Unlock()
	return nil
}

// UpdateDisplayName changes the display name remotely and in the snapshot.
func (m *Manager) UpdateDisplayName(ctx context.Context, name string) error {
	if m.provider.CurrentUser() == nil {
		return m.setError(ErrNoActiveSession)
	}
	if err := m.provider.UpdateProfile(ctx, name); err != nil {
		return m.setError(err)
	}
	m.setName(name)
	return nil
}

// Close stops listening to the provider.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m *Manager) begin() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Loading = true
	m.state.Error = ""
}

func (m *Manager) fail(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Loading = false
	m.state.Error = err.Error()
	return err
}

func (m *Manager) setError(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Error = err.Error()
	return err
}

func (m *Manager) setName(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.User != nil {
		m.state.User.Name = name
	}
}

package session

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type fakeProvider struct {
	current   *User
	listeners map[int]func(*User)
	nextID    int

	// notify controls whether sign-in/out changes are reported.
	notify bool

	signInErr  error
	signUpErr  error
	signOutErr error
	profileErr error

	signOutCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{listeners: make(map[int]func(*User)), notify: true}
}

func (f *fakeProvider) emit() {
	if !f.notify {
		return
	}
	for _, fn := range f.listeners {
		fn(f.current)
	}
}

func (f *fakeProvider) SignIn(_ context.Context, email, _ string) error {
	if f.signInErr != nil {
		return f.signInErr
	}
	f.current = &User{ID: "uid-1", Email: email, Name: "Stored Name"}
	f.emit()
	return nil
}

func (f *fakeProvider) SignUp(_ context.Context, email, _ string) (*User, error) {
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	f.current = &User{ID: "uid-2", Email: email}
	f.emit()
	return f.current, nil
}

func (f *fakeProvider) SignOut(context.Context) error {
	f.signOutCalls++
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.current = nil
	f.emit()
	return nil
}

func (f *fakeProvider) UpdateProfile(_ context.Context, name string) error {
	if f.profileErr != nil {
		return f.profileErr
	}
	f.current.Name = name
	return nil
}

func (f *fakeProvider) CurrentUser() *User { return f.current }

func (f *fakeProvider) OnAuthStateChanged(fn func(*User)) func() {
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	fn(f.current)
	return func() { delete(f.listeners, id) }
}

// --- Tests ---

func TestManager_InitialStateFromProvider(t *testing.T) {
	m := NewManager(newFakeProvider())

	s := m.Snapshot()
	assert.Equal(t, Unauthenticated, s.State())
	assert.False(t, s.Loading)
	assert.Nil(t, s.User)
}

func TestManager_LoadingUntilProviderReports(t *testing.T) {
	p := &silentProvider{fakeProvider: newFakeProvider()}
	m := NewManager(p)

	assert.Equal(t, Authenticating, m.Snapshot().State())

	p.report(&User{ID: "u"})
	assert.Equal(t, Authenticated, m.Snapshot().State())
}

type silentProvider struct {
	*fakeProvider
	fn func(*User)
}

func (s *silentProvider) OnAuthStateChanged(fn func(*User)) func() {
	s.fn = fn
	return func() {}
}

func (s *silentProvider) report(u *User) { s.fn(u) }

func TestManager_Login(t *testing.T) {
	m := NewManager(newFakeProvider())

	require.NoError(t, m.Login(context.Background(), "a@b.c", "secret"))

	s := m.Snapshot()
	assert.Equal(t, Authenticated, s.State())
	assert.Empty(t, s.Error)
	require.NotNil(t, s.User)
	assert.Equal(t, User{ID: "uid-1", Email: "a@b.c", Name: "Stored Name"}, *s.User)
}

func TestManager_LoginWaitsForNotification(t *testing.T) {
	p := newFakeProvider()
	p.notify = false
	m := NewManager(p)

	require.NoError(t, m.Login(context.Background(), "a@b.c", "secret"))

	// the provider has not reported the change yet
	assert.Equal(t, Authenticating, m.Snapshot().State())

	p.notify = true
	p.emit()
	assert.Equal(t, Authenticated, m.Snapshot().State())
}

func TestManager_LoginFailure(t *testing.T) {
	p := newFakeProvider()
	p.signInErr = errors.New("invalid email or password")
	m := NewManager(p)

	err := m.Login(context.Background(), "a@b.c", "wrong")
	require.ErrorIs(t, err, p.signInErr)

	s := m.Snapshot()
	assert.Equal(t, Unauthenticated, s.State())
	assert.Equal(t, "invalid email or password", s.Error)
}

func TestManager_ErrorClearedOnNextAttempt(t *testing.T) {
	p := newFakeProvider()
	p.signInErr = errors.New("boom")
	m := NewManager(p)

	require.Error(t, m.Login(context.Background(), "a@b.c", "x"))
	p.signInErr = nil
	require.NoError(t, m.Login(context.Background(), "a@b.c", "x"))

	assert.Empty(t, m.Snapshot().Error)
}

func TestManager_Register(t *testing.T) {
	m := NewManager(newFakeProvider())

	require.NoError(t, m.Register(context.Background(), "new@b.c", "secret", "Ayse"))

	u, err := m.User()
	require.NoError(t, err)
	assert.Equal(t, User{ID: "uid-2", Email: "new@b.c", Name: "Ayse"}, u)
}

func TestManager_RegisterFailure(t *testing.T) {
	p := newFakeProvider()
	p.signUpErr = errors.New("email already in use")
	m := NewManager(p)

	err := m.Register(context.Background(), "a@b.c", "secret", "Ayse")
	require.Error(t, err)

	s := m.Snapshot()
	assert.False(t, s.Loading)
	assert.Equal(t, "email already in use", s.Error)
}

func TestManager_Logout(t *testing.T) {
	p := newFakeProvider()
	m := NewManager(p)
	require.NoError(t, m.Login(context.Background(), "a@b.c", "secret"))

	require.NoError(t, m.Logout(context.Background()))

	s := m.Snapshot()
	assert.Equal(t, Unauthenticated, s.State())
	assert.Nil(t, s.User)
	assert.Equal(t, 1, p.signOutCalls)
}

func TestManager_LogoutWithoutSession(t *testing.T) {
	p := newFakeProvider()
	m := NewManager(p)

	err := m.Logout(context.Background())
	require.ErrorIs(t, err, ErrNoActiveSession)

	assert.Equal(t, 0, p.signOutCalls, "remote sign-out must not be attempted")
	assert.Equal(t, ErrNoActiveSession.Error(), m.Snapshot().Error)
	assert.False(t, m.Snapshot().Loading)
}

func TestManager_LogoutFailureKeepsUser(t *testing.T) {
	p := newFakeProvider()
	m := NewManager(p)
	require.NoError(t, m.Login(context.Background(), "a@b.c", "secret"))
	p.signOutErr = errors.New("network down")

	require.Error(t, m.Logout(context.Background()))

	s := m.Snapshot()
	assert.True(t, s.Authenticated)
	assert.Equal(t, "network down", s.Error)
}

func TestManager_UpdateDisplayName(t *testing.T) {
	p := newFakeProvider()
	m := NewManager(p)
	require.NoError(t, m.Login(context.Background(), "a@b.c", "secret"))

	require.NoError(t, m.UpdateDisplayName(context.Background(), "New Name"))

	u, err := m.User()
	require.NoError(t, err)
	assert.Equal(t, "New Name", u.Name)
	assert.Equal(t, "New Name", p.current.Name)
}

func TestManager_UpdateDisplayNameWithoutSession(t *testing.T) {
	m := NewManager(newFakeProvider())

	err := m.UpdateDisplayName(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestManager_SnapshotIsCopy(t *testing.T) {
	m := NewManager(newFakeProvider())
	require.NoError(t, m.Login(context.Background(), "a@b.c", "secret"))

	s := m.Snapshot()
	s.User.Name = "hacked"

	u, err := m.User()
	require.NoError(t, err)
	assert.Equal(t, "Stored Name", u.Name)
}

func TestManager_Close(t *testing.T) {
	p := newFakeProvider()
	m := NewManager(p)
	require.Len(t, p.listeners, 1)

	m.Close()
	assert.Empty(t, p.listeners)
}

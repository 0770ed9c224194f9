package identity

import (
	"context"
	"sync"

	"github.com/xenking/storefront/internal/domain/session"
)

var _ session.Provider = (*Client)(nil)

// Client is one shopper's connection to the Directory. Listeners are called
// synchronously, outside the Client's lock, whenever the signed-in user
// changes.
type Client struct {
	dir *Directory

	mu        sync.Mutex
	user      *session.User
	listeners map[int]func(*session.User)
	nextID    int
}

// NewClient returns a signed-out Client.
func NewClient(dir *Directory) *Client {
	return &Client{
		dir:       dir,
		listeners: make(map[int]func(*session.User)),
	}
}

func (c *Client) SignIn(ctx context.Context, email, password string) error {
	u, err := c.dir.Authenticate(ctx, email, password)
	if err != nil {
		return err
	}
	c.set(u)
	return nil
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*session.User, error) {
	u, err := c.dir.Register(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.set(u)
	cp := *u
	return &cp, nil
}

func (c *Client) SignOut(context.Context) error {
	c.set(nil)
	return nil
}

// UpdateProfile stores the display name. Listeners are not notified, the
// signed-in identity does not change.
func (c *Client) UpdateProfile(ctx context.Context, name string) error {
	u := c.CurrentUser()
	if u == nil {
		return session.ErrNoActiveSession
	}
	if err := c.dir.SetName(ctx, u.Email, name); err != nil {
		return err
	}

	c.mu.Lock()
	if c.user != nil && c.user.ID == u.ID {
		c.user.Name = name
	}
	c.mu.Unlock()
	return nil
}

func (c *Client) CurrentUser() *session.User {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.copyUser()
}

// OnAuthStateChanged calls fn with the current user now and after every
// sign-in or sign-out.
func (c *Client) OnAuthStateChanged(fn func(*session.User)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	cur := c.copyUser()
	c.mu.Unlock()

	fn(cur)

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) set(u *session.User) {
	c.mu.Lock()
	if u == nil {
		c.user = nil
	} else {
		cp := *u
		c.user = &cp
	}
	fns := make([]func(*session.User), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(c.CurrentUser())
	}
}

func (c *Client) copyUser() *session.User {
	if c.user == nil {
		return nil
	}
	cp := *c.user
	return &cp
}

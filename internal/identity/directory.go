// Package identity is the storefront's identity provider. Accounts live in
// the remote store with bcrypt password hashes; each shopper gets a Client
// that tracks who is signed in and implements session.Provider.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront/internal/domain/session"
	"github.com/xenking/storefront/internal/storage"
	"github.com/xenking/storefront/pkg/validate"
)

const accountsPath = "accounts"

var (
	// ErrEmailInUse is returned when registering an email that already has an account.
	ErrEmailInUse = errors.New("email already in use")
	// ErrInvalidCredentials is returned for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// Directory stores accounts keyed by a digest of the lowercased email.
type Directory struct {
	store storage.Client
	cost  int

	// mu serializes registrations so two sign-ups cannot claim one email.
	mu sync.Mutex
}

// NewDirectory returns a Directory on store. A cost of 0 means
// bcrypt.DefaultCost.
func NewDirectory(store storage.Client, cost int) *Directory {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Directory{store: store, cost: cost}
}

// Register creates an account and returns its user.
func (d *Directory) Register(ctx context.Context, email, password string) (*session.User, error) {
	email = normalizeEmail(email)
	if err := validate.Struct(credentials{Email: email, Password: password}); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := emailKey(email)
	_, err = d.store.GetByID(ctx, accountsPath, key)
	switch {
	case err == nil:
		return nil, ErrEmailInUse
	case !errors.Is(err, storage.ErrNotFound):
		return nil, errors.Wrap(err, "lookup account")
	}

	u := &session.User{ID: storage.NewKey(), Email: email}
	rec := storage.Record{
		"uid":          u.ID,
		"email":        email,
		"name":         "",
		"passwordHash": string(hash),
		"createdAt":    storage.ServerTimestamp,
	}
	if err := d.store.Set(ctx, accountsPath, key, rec); err != nil {
		return nil, errors.Wrap(err, "create account")
	}
	return u, nil
}

// Authenticate checks the password of the account registered for email.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (*session.User, error) {
	email = normalizeEmail(email)
	rec, err := d.store.GetByID(ctx, accountsPath, emailKey(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "lookup account")
	}

	hash, _ := rec["passwordHash"].(string)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	uid, _ := rec["uid"].(string)
	name, _ := rec["name"].(string)
	return &session.User{ID: uid, Email: email, Name: name}, nil
}

// SetName updates the display name of the account registered for email.
func (d *Directory) SetName(ctx context.Context, email, name string) error {
	key := emailKey(normalizeEmail(email))
	_, err := d.store.Transact(ctx, accountsPath, key, func(cur storage.Record) (storage.Record, error) {
		cur["name"] = name
		return cur, nil
	})
	if err != nil {
		return errors.Wrap(err, "update profile")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// emailKey maps an email onto a store key; emails contain '.', which keys
// may not.
func emailKey(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}

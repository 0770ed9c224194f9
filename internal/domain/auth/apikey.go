// Package auth authenticates admin requests with HMAC-hashed API keys.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// Scopes granted to API keys.
const (
	ScopeCatalogWrite = "catalog:write"
	ScopeSeed         = "seed"
)

var (
	// ErrUnauthorized is returned for unknown or malformed keys.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a valid key lacks a required scope.
	ErrForbidden = errors.New("forbidden")
	// ErrKeyNotFound is returned by repositories for unknown hashes.
	ErrKeyNotFound = errors.New("api key not found")
)

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key grants scope.
func (i *APIKeyInfo) HasScope(scope string) bool {
	return slices.Contains(i.Scopes, scope)
}

// Repository provides lookup and registration of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
	Save(ctx context.Context, info APIKeyInfo) error
}

// Authenticator verifies raw API keys against a Repository.
type Authenticator struct {
	keys   Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator hashing keys with pepper.
func NewAuthenticator(keys Repository, pepper []byte) *Authenticator {
	return &Authenticator{keys: keys, pepper: pepper}
}

// Hash returns the hex HMAC-SHA256 of key.
func (a *Authenticator) Hash(key string) string {
	return hex.EncodeToString(a.mac(key))
}

func (a *Authenticator) mac(key string) []byte {
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(key))
	return mac.Sum(nil)
}

// Authenticate looks up key and checks it grants scope. Lookup failures
// other than an unknown key are returned wrapped so callers can tell an
// outage from a bad key.
func (a *Authenticator) Authenticate(ctx context.Context, key, scope string) (*APIKeyInfo, error) {
	if key == "" {
		return nil, ErrUnauthorized
	}

	hash := a.mac(key)
	info, err := a.keys.FindByHash(ctx, hex.EncodeToString(hash))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, errors.Wrap(err, "lookup api key")
	}

	// The stored hash could differ from the computed one if the repository
	// returns a stale row.
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
		return nil, ErrUnauthorized
	}

	if scope != "" && !info.HasScope(scope) {
		return nil, ErrForbidden
	}
	return info, nil
}

// Issue generates a new random key, stores its hash and returns the raw key.
func (a *Authenticator) Issue(ctx context.Context, id, name string, scopes ...string) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generate key")
	}
	key := "sk_" + hex.EncodeToString(buf)

	if err := a.Register(ctx, id, name, key, scopes...); err != nil {
		return "", err
	}
	return key, nil
}

// Register stores the hash of a caller-chosen key.
func (a *Authenticator) Register(ctx context.Context, id, name, key string, scopes ...string) error {
	info := APIKeyInfo{
		ID:      id,
		KeyHash: a.Hash(key),
		Name:    name,
		Scopes:  scopes,
	}
	if err := a.keys.Save(ctx, info); err != nil {
		return errors.Wrap(err, "save api key")
	}
	return nil
}

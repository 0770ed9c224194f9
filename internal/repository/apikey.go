package repository

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/storage"
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository stores API keys under apiKeys/{hash}.
type APIKeyRepository struct {
	store storage.Client
}

// NewAPIKeyRepository returns an APIKeyRepository backed by store.
func NewAPIKeyRepository(store storage.Client) *APIKeyRepository {
	return &APIKeyRepository{store: store}
}

// FindByHash looks up an API key by its HMAC-SHA256 hash.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	rec, err := r.store.GetByID(ctx, apiKeysPath, hash)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidPath) {
		return nil, auth.ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get api key")
	}

	info := &auth.APIKeyInfo{
		ID:      str(rec["id"]),
		KeyHash: hash,
		Name:    str(rec["name"]),
	}
	for _, s := range list(rec["scopes"]) {
		if scope := str(s); scope != "" {
			info.Scopes = append(info.Scopes, scope)
		}
	}
	return info, nil
}

// Save stores info keyed by its hash.
func (r *APIKeyRepository) Save(ctx context.Context, info auth.APIKeyInfo) error {
	scopes := make([]any, len(info.Scopes))
	for i, s := range info.Scopes {
		scopes[i] = s
	}
	rec := storage.Record{
		"id":     info.ID,
		"name":   info.Name,
		"scopes": scopes,
	}
	if err := r.store.Set(ctx, apiKeysPath, info.KeyHash, rec); err != nil {
		return errors.Wrap(err, "save api key")
	}
	return nil
}

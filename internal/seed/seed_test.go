package seed

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/db"
	"github.com/xenking/storefront/internal/storage"
	"github.com/xenking/storefront/internal/storage/memory"
)

func demoCatalog(t *testing.T) []storage.Record {
	t.Helper()
	catalog, err := ParseCatalog(bytes.NewReader(db.SeedProducts))
	require.NoError(t, err)
	return catalog
}

func TestParseCatalog_Embedded(t *testing.T) {
	catalog := demoCatalog(t)
	require.Len(t, catalog, 18)
	assert.Equal(t, "Turkish Baklava", catalog[0]["name"])
	assert.Equal(t, []any{}, catalog[0]["reviews"])
}

func TestParseCatalog(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "fills missing fields", input: `[{"name":"Tea","price":3}]`},
		{name: "not an array", input: `{"name":"Tea"}`, wantErr: "decode catalog"},
		{name: "unnamed entry", input: `[{"price":3}]`, wantErr: "has no name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCatalog(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Contains(t, got[0], "rating")
			assert.Equal(t, []any{}, got[0]["reviews"])
		})
	}
}

func TestSeeder_TestConnectionLeavesNoProbe(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, NewSeeder(store, nil).TestConnection(ctx))

	_, err := store.GetByID(ctx, testPath, testKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSeeder_InitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	catalog := demoCatalog(t)
	s := NewSeeder(store, catalog)

	n, err := s.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 18, n)

	n, err = s.Initialize(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	products, err := s.CheckProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 18)
	for i, p := range products {
		assert.Equal(t, catalog[i]["name"], p.Name, "catalog order kept")
	}
}

func TestSeeder_InitializeSkipsNonEmptyStore(t *testing.T) {
	ctx := context.Background()
	s := NewSeeder(memory.New(), demoCatalog(t))

	_, err := s.AddTestProduct(ctx)
	require.NoError(t, err)

	n, err := s.Initialize(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	products, err := s.CheckProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Test Product", products[0].Name)
}

func TestSeeder_Reset(t *testing.T) {
	ctx := context.Background()
	s := NewSeeder(memory.New(), demoCatalog(t))

	_, err := s.AddTestProduct(ctx)
	require.NoError(t, err)

	n, err := s.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 18, n)

	products, err := s.CheckProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 18)
	for _, p := range products {
		assert.NotEqual(t, "Test Product", p.Name)
	}
}

type failingStore struct {
	storage.Client
}

func (failingStore) Set(context.Context, string, string, storage.Record) error {
	return &storage.TransportError{Op: "set", Err: errors.New("connection refused")}
}

func TestSeeder_InitializeFailsOnBrokenStore(t *testing.T) {
	_, err := NewSeeder(failingStore{Client: memory.New()}, nil).Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test connection")

	var te *storage.TransportError
	assert.ErrorAs(t, err, &te)
}

// Package seed checks the remote store and loads the demo catalog into it.
package seed

import (
	"context"
	"encoding/json"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage"
)

const (
	productsPath = "products"
	testPath     = "test"
	testKey      = "connection"

	writeConcurrency = 4
)

// ParseCatalog reads a JSON array of product records. Each record is
// normalized, so missing rating or reviews are filled in.
func ParseCatalog(r io.Reader) ([]storage.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}

	out := make([]storage.Record, len(raw))
	for i, rec := range raw {
		p := product.Normalize(rec, "")
		if p.Name == "" {
			return nil, errors.Errorf("catalog entry %d has no name", i)
		}
		out[i] = product.ToRecord(p)
	}
	return out, nil
}

// Seeder loads a catalog into a store.
type Seeder struct {
	store   storage.Client
	catalog []storage.Record
}

// NewSeeder returns a Seeder writing catalog to store.
func NewSeeder(store storage.Client, catalog []storage.Record) *Seeder {
	return &Seeder{store: store, catalog: catalog}
}

// TestConnection writes, reads back and deletes a probe record.
func (s *Seeder) TestConnection(ctx context.Context) error {
	probe := storage.Record{
		"message":   "connection test",
		"timestamp": storage.ServerTimestamp,
	}
	if err := s.store.Set(ctx, testPath, testKey, probe); err != nil {
		return errors.Wrap(err, "write probe")
	}
	got, err := s.store.GetByID(ctx, testPath, testKey)
	if err != nil {
		return errors.Wrap(err, "read probe")
	}
	if got["message"] != probe["message"] {
		return errors.New("probe read back differs from what was written")
	}
	if err := s.store.Remove(ctx, testPath, testKey); err != nil {
		return errors.Wrap(err, "delete probe")
	}
	return nil
}

// CheckProducts returns the products currently stored.
func (s *Seeder) CheckProducts(ctx context.Context) ([]product.Product, error) {
	entries, err := s.store.GetAll(ctx, productsPath)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	out := make([]product.Product, len(entries))
	for i, e := range entries {
		out[i] = product.Normalize(e.Value, e.Key)
	}
	return out, nil
}

// Initialize seeds the catalog unless products already exist. It returns
// the number of products written, 0 when the store was already seeded.
func (s *Seeder) Initialize(ctx context.Context) (int, error) {
	lg := zctx.From(ctx)

	if err := s.TestConnection(ctx); err != nil {
		return 0, errors.Wrap(err, "test connection")
	}

	existing, err := s.CheckProducts(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		lg.Info("Catalog already seeded", zap.Int("products", len(existing)))
		return 0, nil
	}

	// Keys are assigned up front so the parallel writes keep catalog order.
	keys := make([]string, len(s.catalog))
	for i := range keys {
		keys[i] = storage.NewKey()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(writeConcurrency)
	for i, rec := range s.catalog {
		g.Go(func() error {
			if err := s.store.Set(gctx, productsPath, keys[i], rec); err != nil {
				return errors.Wrapf(err, "write product %d", i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	lg.Info("Catalog seeded", zap.Int("products", len(s.catalog)))
	return len(s.catalog), nil
}

// Reset replaces every stored product with the catalog.
func (s *Seeder) Reset(ctx context.Context) (int, error) {
	keys, err := s.store.ReplaceAll(ctx, productsPath, s.catalog)
	if err != nil {
		return 0, errors.Wrap(err, "replace products")
	}
	zctx.From(ctx).Info("Catalog reset", zap.Int("products", len(keys)))
	return len(keys), nil
}

// AddTestProduct stores a single sample product and returns its id.
func (s *Seeder) AddTestProduct(ctx context.Context) (string, error) {
	p := product.Product{
		Name:        "Test Product",
		Description: "A sample product for connectivity checks",
		Category:    "Test",
		Brand:       "Test Brand",
		Country:     "Test Country",
		Price:       decimal.RequireFromString("9.99"),
	}

	id, err := s.store.Create(ctx, productsPath, product.ToRecord(p))
	if err != nil {
		return "", errors.Wrap(err, "create test product")
	}
	return id, nil
}

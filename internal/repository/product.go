package repository

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository on the "products" path.
type ProductRepository struct {
	store storage.Client
}

// NewProductRepository returns a ProductRepository backed by store.
func NewProductRepository(store storage.Client) *ProductRepository {
	return &ProductRepository{store: store}
}

// List returns all products in key order, which is creation order.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	entries, err := r.store.GetAll(ctx, productsPath)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}

	products := make([]product.Product, len(entries))
	for i, e := range entries {
		products[i] = product.Normalize(e.Value, e.Key)
	}
	return products, nil
}

// GetByID returns a single product. It returns a *product.NotFoundError when
// the product does not exist.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rec, err := r.store.GetByID(ctx, productsPath, id)
	if err != nil {
		return nil, r.mapErr(err, id, "get product")
	}
	p := product.Normalize(rec, id)
	return &p, nil
}

// Create stores p under a new key and returns it.
func (r *ProductRepository) Create(ctx context.Context, p product.Product) (string, error) {
	id, err := r.store.Create(ctx, productsPath, product.ToRecord(p))
	if err != nil {
		return "", errors.Wrap(err, "create product")
	}
	return id, nil
}

// Update shallow-merges the set fields of u into the stored product.
func (r *ProductRepository) Update(ctx context.Context, id string, u product.Update) error {
	if err := r.store.Patch(ctx, productsPath, id, product.UpdateToRecord(u)); err != nil {
		return r.mapErr(err, id, "update product")
	}
	return nil
}

// Delete removes the product. Deleting a missing product is not an error.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Remove(ctx, productsPath, id); err != nil {
		return r.mapErr(err, id, "delete product")
	}
	return nil
}

// AddReview appends rev and recomputes the rating inside one store
// transaction, so concurrent reviews are never lost.
func (r *ProductRepository) AddReview(ctx context.Context, id string, rev product.Review) (*product.Product, error) {
	stored, err := r.store.Transact(ctx, productsPath, id, func(cur storage.Record) (storage.Record, error) {
		return product.AppendReviewRecord(cur, rev)
	})
	if err != nil {
		return nil, r.mapErr(err, id, "append review")
	}
	p := product.Normalize(stored, id)
	return &p, nil
}

// InitializeFields writes a default rating or reviews list on every product
// where that field is absent. Present values are never overwritten.
func (r *ProductRepository) InitializeFields(ctx context.Context) (int, error) {
	entries, err := r.store.GetAll(ctx, productsPath)
	if err != nil {
		return 0, errors.Wrap(err, "list products")
	}

	updated := 0
	for _, e := range entries {
		fields := product.MissingFieldDefaults(e.Value)
		if len(fields) == 0 {
			continue
		}
		if err := r.store.Patch(ctx, productsPath, e.Key, fields); err != nil {
			return updated, errors.Wrapf(err, "initialize product %s", e.Key)
		}
		updated++
	}
	return updated, nil
}

func (r *ProductRepository) mapErr(err error, id, op string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &product.NotFoundError{ID: id}
	}
	if errors.Is(err, storage.ErrInvalidPath) {
		// Ids with reserved characters can never exist.
		return &product.NotFoundError{ID: id}
	}
	if errors.Is(err, product.ErrValidation) {
		return err
	}
	return errors.Wrap(err, op)
}

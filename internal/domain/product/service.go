package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Author identifies the shopper writing a review.
type Author struct {
	ID   string
	Name string
}

// Service encapsulates catalog browsing, administration and reviews.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a catalog Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns the products matching q in catalog order.
func (s *Service) List(ctx context.Context, q Query) ([]Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return Search(products, q), nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	return p, nil
}

// Countries returns the distinct countries of the catalog, sorted.
func (s *Service) Countries(ctx context.Context) ([]string, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return Countries(products), nil
}

// Reviews returns the reviews of a product, or none when it does not exist.
func (s *Service) Reviews(ctx context.Context, id string) ([]Review, error) {
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return []Review{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	return p.Reviews, nil
}

// Add creates a product. Rating and reviews always start empty.
func (s *Service) Add(ctx context.Context, p Product) (string, error) {
	if p.Name == "" {
		return "", &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if p.Price.IsNegative() {
		return "", &ValidationError{Field: "price", Reason: "must not be negative"}
	}

	p.ID = ""
	p.Rating = decimal.Zero
	p.Reviews = []Review{}

	id, err := s.repo.Create(ctx, p)
	if err != nil {
		return "", errors.Wrap(err, "create product")
	}
	return id, nil
}

// Update applies a partial update to an existing product.
func (s *Service) Update(ctx context.Context, id string, u Update) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if u.Empty() {
		return &ValidationError{Field: "update", Reason: "no fields to update"}
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return errors.Wrap(err, "get product")
	}
	if err := s.repo.Update(ctx, id, u); err != nil {
		return errors.Wrap(err, "update product")
	}
	return nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete product")
	}
	return nil
}

// AddReview records a review by author and returns the updated product.
// Callers must ensure the author is signed in.
func (s *Service) AddReview(ctx context.Context, id string, author Author, rating int, comment string) (*Product, error) {
	r := NewReview(author.ID, author.Name, rating, comment, s.now())
	if err := ValidateReview(r); err != nil {
		return nil, err
	}

	p, err := s.repo.AddReview(ctx, id, r)
	if err != nil {
		return nil, errors.Wrap(err, "add review")
	}
	return p, nil
}

// InitializeFields backfills rating and reviews on legacy products.
func (s *Service) InitializeFields(ctx context.Context) (int, error) {
	n, err := s.repo.InitializeFields(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "initialize product fields")
	}
	return n, nil
}

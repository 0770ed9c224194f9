package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// NotFoundError identifies the missing product. It matches ErrNotFound.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports an invalid review or product field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Description string
	Image       string
	Category    string
	Brand       string
	Country     string
	Rating      decimal.Decimal
	Reviews     []Review

	// Extra keeps stored fields the storefront does not model so they
	// survive a read-modify-write.
	Extra map[string]any
}

// Review is a shopper's rating and comment on a product.
type Review struct {
	ID        string
	UserID    string
	UserName  string
	Rating    int
	Comment   string
	CreatedAt string
}

// Update holds the fields of a partial product update. Nil fields are left
// untouched. Rating and reviews only change through AppendReview.
type Update struct {
	Name        *string
	Price       *decimal.Decimal
	Description *string
	Image       *string
	Category    *string
	Brand       *string
	Country     *string
}

// Validate checks the fields that are set.
func (u Update) Validate() error {
	if u.Name != nil && *u.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if u.Price != nil && u.Price.IsNegative() {
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	return nil
}

// Empty reports whether no field is set.
func (u Update) Empty() bool {
	return u.Name == nil && u.Price == nil && u.Description == nil && u.Image == nil &&
		u.Category == nil && u.Brand == nil && u.Country == nil
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p Product) (string, error)
	Update(ctx context.Context, id string, u Update) error
	Delete(ctx context.Context, id string) error
	// AddReview appends r and recomputes the rating atomically.
	AddReview(ctx context.Context, id string, r Review) (*Product, error)
	// InitializeFields backfills rating and reviews on stored products that
	// lack them and returns how many were written.
	InitializeFields(ctx context.Context) (int, error)
}

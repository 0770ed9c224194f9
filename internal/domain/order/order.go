package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/pkg/validate"
)

// StatusPaid is the status of every order that passed the payment step.
const StatusPaid = "paid"

var (
	// ErrEmptyCart is returned when checking out a cart with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrPaymentDeclined is returned when the simulated payment is refused.
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("invalid checkout details")
)

// ValidationError lists the checkout form fields that failed validation.
type ValidationError struct {
	Fields []validate.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + " " + f.Message
	}
	return "invalid checkout details: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Shipping is the delivery address collected at checkout.
type Shipping struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Address  string `json:"address" validate:"required"`
	City     string `json:"city" validate:"required"`
	State    string `json:"state" validate:"required"`
	ZipCode  string `json:"zipCode" validate:"required"`
	Country  string `json:"country" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
}

// Payment is the card data collected at checkout. It is never persisted.
type Payment struct {
	CardNumber string `json:"cardNumber" validate:"required,numeric,min=12,max=19"`
	CardName   string `json:"cardName" validate:"required"`
	ExpiryDate string `json:"expiryDate" validate:"required"`
	CVV        string `json:"cvv" validate:"required,numeric,min=3,max=4"`
}

// CheckoutRequest is the checkout form.
type CheckoutRequest struct {
	Shipping   Shipping `json:"shipping"`
	Payment    Payment  `json:"payment"`
	CouponCode string   `json:"couponCode"`
}

// Item is a cart line frozen at checkout time.
type Item struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

// Subtotal is Price times Quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a placed order.
type Order struct {
	ID         string
	UserID     string
	Items      []Item
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	CouponCode string
	Shipping   Shipping
	CardLast4  string
	Status     string
	// CreatedAt is assigned by the store.
	CreatedAt time.Time
}

// Repository persists orders per user.
type Repository interface {
	// Create stores o under its user and fills in ID and CreatedAt.
	Create(ctx context.Context, o *Order) error
	// ListByUser returns a user's orders, oldest first.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}

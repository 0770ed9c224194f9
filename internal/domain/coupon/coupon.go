// Package coupon implements optional checkout discounts.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
	// DiscountFreeLowest removes the cost of one unit of the cheapest product.
	DiscountFreeLowest DiscountType = "free_lowest"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	switch t {
	case DiscountPercentage, DiscountFixed, DiscountFreeLowest:
		return true
	default:
		return false
	}
}

var (
	// ErrInvalidCoupon is returned when a coupon code is not found or
	// the cart does not satisfy the coupon's minimum item requirement.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
)

// Rule defines a coupon's discount behaviour and eligibility constraints.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinItems     int
	Description  string
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	// MaxUses of 0 means unlimited.
	MaxUses int
	Uses    int
	// MaxDiscount caps the discount amount when positive.
	MaxDiscount decimal.Decimal
}

// CheckAvailable reports whether the rule can be used at now.
func (r *Rule) CheckAvailable(now time.Time) error {
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrCouponExpired
	}
	if r.ValidUntil != nil && now.After(*r.ValidUntil) {
		return ErrCouponExpired
	}
	if r.MaxUses > 0 && r.Uses >= r.MaxUses {
		return ErrCouponUsageLimitReached
	}
	return nil
}

// Discount holds the computed discount amount and a human-readable description.
type Discount struct {
	Code        string
	Amount      decimal.Decimal
	Description string
}

// Item represents a cart line for discount calculation purposes.
type Item struct {
	ProductID string
	Price     decimal.Decimal
	Quantity  int
}

// Repository provides lookup and redemption of coupon rules.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	// Redeem atomically re-checks availability at now and counts one use.
	Redeem(ctx context.Context, code string, now time.Time) error
	// Release gives back one use counted by Redeem.
	Release(ctx context.Context, code string) error
}

// NormalizeCode canonicalizes a user-entered code. Codes are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DemoRules returns the coupons seeded with the demo catalog.
func DemoRules() []Rule {
	return []Rule{
		{
			Code:         "WELCOME10",
			DiscountType: DiscountPercentage,
			Value:        decimal.NewFromInt(10),
			Description:  "10% off your order",
			MaxDiscount:  decimal.NewFromInt(25),
		},
		{
			Code:         "FIVEOFF",
			DiscountType: DiscountFixed,
			Value:        decimal.NewFromInt(5),
			MinItems:     2,
			Description:  "$5 off orders of 2 or more items",
		},
		{
			Code:         "TREAT",
			DiscountType: DiscountFreeLowest,
			MinItems:     3,
			MaxUses:      100,
			Description:  "Cheapest item free with 3 or more items",
		},
	}
}

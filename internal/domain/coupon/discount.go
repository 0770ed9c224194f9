package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply calculates the discount for rule over items. It returns
// ErrInvalidCoupon when the cart does not satisfy the minimum item count.
// The amount is rounded to cents and never exceeds the subtotal.
func Apply(rule *Rule, items []Item) (Discount, error) {
	if rule.MinItems > 0 && totalQuantity(items) < rule.MinItems {
		return Discount{}, ErrInvalidCoupon
	}

	subtotal := Subtotal(items)

	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(rule.Value).Div(hundred)
	case DiscountFixed:
		amount = rule.Value
	case DiscountFreeLowest:
		amount = lowestUnitPrice(items)
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	if rule.MaxDiscount.IsPositive() {
		amount = decimal.Min(amount, rule.MaxDiscount)
	}
	amount = decimal.Min(amount, subtotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return Discount{
		Code:        rule.Code,
		Amount:      amount.Round(2),
		Description: rule.Description,
	}, nil
}

// Subtotal returns the sum of price times quantity across items.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}

func totalQuantity(items []Item) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

func lowestUnitPrice(items []Item) decimal.Decimal {
	if len(items) == 0 {
		return decimal.Zero
	}
	lowest := items[0].Price
	for _, item := range items[1:] {
		if item.Price.LessThan(lowest) {
			lowest = item.Price
		}
	}
	return lowest
}

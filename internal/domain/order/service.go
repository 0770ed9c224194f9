// Package order implements checkout of a shopper's cart and order history.
package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/session"
	"github.com/xenking/storefront/pkg/validate"
)

// DeclinedCard is the test card number the simulated gateway always refuses.
const DeclinedCard = "4000000000000002"

// Identity yields the signed-in user. *session.Manager implements it.
type Identity interface {
	User() (session.User, error)
}

// Service places orders.
type Service struct {
	orders  Repository
	coupons coupon.Validator
	// paymentDelay simulates the round trip to a payment gateway.
	paymentDelay time.Duration
}

// NewService creates an order Service. coupons may be nil to disable coupon
// codes.
func NewService(orders Repository, coupons coupon.Validator, paymentDelay time.Duration) *Service {
	return &Service{
		orders:       orders,
		coupons:      coupons,
		paymentDelay: paymentDelay,
	}
}

// Checkout validates the form, charges the simulated card, persists the order
// and takes the ordered lines out of the cart. Items added while the payment
// is in flight stay in the cart. The cart is left intact on any failure, and
// a redeemed coupon is released if the order cannot be stored.
func (s *Service) Checkout(ctx context.Context, who Identity, c *cart.Cart, req CheckoutRequest) (*Order, error) {
	user, err := who.User()
	if err != nil {
		return nil, err
	}

	lines, subtotal := c.Snapshot()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	req.Payment.CardNumber = cardDigits(req.Payment.CardNumber)
	if err := validate.Struct(req); err != nil {
		var fe *validate.FieldsError
		if errors.As(err, &fe) {
			return nil, &ValidationError{Fields: fe.Fields}
		}
		return nil, err
	}

	items := make([]Item, len(lines))
	couponItems := make([]coupon.Item, len(lines))
	for i, l := range lines {
		items[i] = Item{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Price:     l.Product.Price,
			Quantity:  l.Quantity,
		}
		couponItems[i] = coupon.Item{
			ProductID: l.Product.ID,
			Price:     l.Product.Price,
			Quantity:  l.Quantity,
		}
	}

	discount := decimal.Zero
	code := ""
	if strings.TrimSpace(req.CouponCode) != "" {
		if s.coupons == nil {
			return nil, coupon.ErrInvalidCoupon
		}
		d, err := s.coupons.Quote(ctx, req.CouponCode, couponItems)
		if err != nil {
			return nil, errors.Wrap(err, "apply coupon")
		}
		discount = d.Amount
		code = d.Code
	}

	if err := s.charge(ctx, req.Payment); err != nil {
		return nil, err
	}

	if code != "" {
		if err := s.coupons.Redeem(ctx, code); err != nil {
			return nil, errors.Wrap(err, "apply coupon")
		}
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	o := &Order{
		UserID:     user.ID,
		Items:      items,
		Subtotal:   subtotal.Round(2),
		Discount:   discount.Round(2),
		Total:      total.Round(2),
		CouponCode: code,
		Shipping:   req.Shipping,
		CardLast4:  last4(req.Payment.CardNumber),
		Status:     StatusPaid,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		if code != "" {
			s.releaseCoupon(ctx, code)
		}
		return nil, errors.Wrap(err, "create order")
	}
	c.Deduct(lines)

	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.Stringer("total", o.Total),
	)
	return o, nil
}

// releaseCoupon ignores cancellation of ctx so the use is not lost.
func (s *Service) releaseCoupon(ctx context.Context, code string) {
	if err := s.coupons.Release(context.WithoutCancel(ctx), code); err != nil {
		zctx.From(ctx).Error("Release coupon",
			zap.String("coupon", code),
			zap.Error(err),
		)
	}
}

// History returns the signed-in user's orders, oldest first.
func (s *Service) History(ctx context.Context, who Identity) ([]Order, error) {
	user, err := who.User()
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

func (s *Service) charge(ctx context.Context, p Payment) error {
	if s.paymentDelay > 0 {
		t := time.NewTimer(s.paymentDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if p.CardNumber == DeclinedCard {
		return ErrPaymentDeclined
	}
	return nil
}

func cardDigits(number string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)
}

func last4(number string) string {
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}

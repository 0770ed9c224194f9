package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Validator quotes a coupon against cart items and redeems it for an
// order.
type Validator interface {
	Quote(ctx context.Context, code string, items []Item) (*Discount, error)
	Redeem(ctx context.Context, code string) error
	// Release returns a redeemed use when the order could not be stored.
	Release(ctx context.Context, code string) error
}

// RepoValidator implements Validator on top of a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Quote looks up the rule for code, checks its time window and usage limit
// and computes the discount. It does not consume a use.
func (v *RepoValidator) Quote(ctx context.Context, code string, items []Item) (*Discount, error) {
	rule, err := v.repo.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if err := rule.CheckAvailable(v.now()); err != nil {
		return nil, err
	}

	d, err := Apply(rule, items)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Redeem consumes one use of code.
func (v *RepoValidator) Redeem(ctx context.Context, code string) error {
	if err := v.repo.Redeem(ctx, NormalizeCode(code), v.now()); err != nil {
		if errors.Is(err, ErrInvalidCoupon) || errors.Is(err, ErrCouponExpired) ||
			errors.Is(err, ErrCouponUsageLimitReached) {
			return err
		}
		return errors.Wrap(err, "redeem coupon")
	}
	return nil
}

// Release gives back one use of code.
func (v *RepoValidator) Release(ctx context.Context, code string) error {
	if err := v.repo.Release(ctx, NormalizeCode(code)); err != nil {
		return errors.Wrap(err, "release coupon")
	}
	return nil
}

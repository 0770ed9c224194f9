package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/storage"
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository stores coupon rules under coupons/{CODE}.
type CouponRepository struct {
	store storage.Client
}

// NewCouponRepository returns a CouponRepository backed by store.
func NewCouponRepository(store storage.Client) *CouponRepository {
	return &CouponRepository{store: store}
}

// FindByCode returns the rule for code or coupon.ErrInvalidCoupon.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rec, err := r.store.GetByID(ctx, couponsPath, code)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidPath) {
		return nil, coupon.ErrInvalidCoupon
	}
	if err != nil {
		return nil, errors.Wrap(err, "get coupon")
	}
	rule := ruleFromRecord(code, rec)
	return &rule, nil
}

// Redeem re-checks availability and counts one use in a single transaction.
func (r *CouponRepository) Redeem(ctx context.Context, code string, now time.Time) error {
	_, err := r.store.Transact(ctx, couponsPath, code, func(cur storage.Record) (storage.Record, error) {
		rule := ruleFromRecord(code, cur)
		if err := rule.CheckAvailable(now); err != nil {
			return nil, err
		}
		cur["uses"] = rule.Uses + 1
		return cur, nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidPath):
		return coupon.ErrInvalidCoupon
	case errors.Is(err, coupon.ErrCouponExpired), errors.Is(err, coupon.ErrCouponUsageLimitReached):
		return err
	default:
		return errors.Wrap(err, "redeem coupon")
	}
}

// Release takes back one counted use. A rule with no uses is left as is and
// a missing rule is not an error.
func (r *CouponRepository) Release(ctx context.Context, code string) error {
	_, err := r.store.Transact(ctx, couponsPath, code, func(cur storage.Record) (storage.Record, error) {
		if uses := integer(cur["uses"]); uses > 0 {
			cur["uses"] = uses - 1
		}
		return cur, nil
	})
	if err == nil || errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidPath) {
		return nil
	}
	return errors.Wrap(err, "release coupon")
}

// Save stores rule, replacing any rule with the same code.
func (r *CouponRepository) Save(ctx context.Context, rule coupon.Rule) error {
	code := coupon.NormalizeCode(rule.Code)
	if err := r.store.Set(ctx, couponsPath, code, ruleToRecord(rule)); err != nil {
		return errors.Wrapf(err, "save coupon %s", code)
	}
	return nil
}

func ruleToRecord(rule coupon.Rule) storage.Record {
	rec := storage.Record{
		"discountType": string(rule.DiscountType),
		"value":        money(rule.Value),
		"minItems":     rule.MinItems,
		"description":  rule.Description,
		"maxUses":      rule.MaxUses,
		"uses":         rule.Uses,
		"maxDiscount":  money(rule.MaxDiscount),
	}
	if rule.ValidFrom != nil {
		rec["validFrom"] = rule.ValidFrom.UnixMilli()
	}
	if rule.ValidUntil != nil {
		rec["validUntil"] = rule.ValidUntil.UnixMilli()
	}
	return rec
}

func ruleFromRecord(code string, rec storage.Record) coupon.Rule {
	return coupon.Rule{
		Code:         code,
		DiscountType: coupon.DiscountType(str(rec["discountType"])),
		Value:        dec(rec["value"]),
		MinItems:     integer(rec["minItems"]),
		Description:  str(rec["description"]),
		ValidFrom:    optionalMillis(rec["validFrom"]),
		ValidUntil:   optionalMillis(rec["validUntil"]),
		MaxUses:      integer(rec["maxUses"]),
		Uses:         integer(rec["uses"]),
		MaxDiscount:  dec(rec["maxDiscount"]),
	}
}

package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
	"github.com/xenking/storefront/internal/identity"
	"github.com/xenking/storefront/internal/storage"
	"github.com/xenking/storefront/pkg/validate"
)

// statusFor maps a domain error to an HTTP status and whether its message
// may be shown to the client.
func statusFor(err error) (int, bool) {
	var te *storage.TransportError
	switch {
	case errors.Is(err, errMalformed):
		return http.StatusBadRequest, true
	case errors.Is(err, validate.ErrInvalid),
		errors.Is(err, product.ErrValidation),
		errors.Is(err, order.ErrValidation),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrQuantityLimit),
		errors.Is(err, coupon.ErrInvalidCoupon),
		errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrCouponUsageLimitReached):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, order.ErrPaymentDeclined):
		return http.StatusPaymentRequired, true
	case errors.Is(err, product.ErrNotFound), errors.Is(err, cart.ErrLineNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, session.ErrNoActiveSession),
		errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, true
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, true
	case errors.Is(err, identity.ErrEmailInUse):
		return http.StatusConflict, true
	case errors.As(err, &te), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, false
	default:
		return http.StatusInternalServerError, false
	}
}

// userMessage strips the wrapping context added on the way up, keeping the
// innermost typed or sentinel message.
func userMessage(err error) string {
	var (
		fe  *validate.FieldsError
		ove *order.ValidationError
		pve *product.ValidationError
		pnf *product.NotFoundError
		iqe *cart.InvalidQuantityError
		qle *cart.QuantityLimitError
		lnf *cart.LineNotFoundError
		mfe *malformedError
	)
	switch {
	case errors.As(err, &ove):
		return ove.Error()
	case errors.As(err, &fe):
		return fe.Error()
	case errors.As(err, &pve):
		return pve.Error()
	case errors.As(err, &pnf):
		return pnf.Error()
	case errors.As(err, &iqe):
		return iqe.Error()
	case errors.As(err, &qle):
		return qle.Error()
	case errors.As(err, &lnf):
		return lnf.Error()
	case errors.As(err, &mfe):
		return mfe.Error()
	}
	for _, sentinel := range []error{
		order.ErrEmptyCart, order.ErrPaymentDeclined,
		coupon.ErrInvalidCoupon, coupon.ErrCouponExpired, coupon.ErrCouponUsageLimitReached,
		product.ErrNotFound, session.ErrNoActiveSession,
		identity.ErrInvalidCredentials, identity.ErrEmailInUse,
		auth.ErrUnauthorized, auth.ErrForbidden,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, public := statusFor(err)
	msg := http.StatusText(status)
	if public {
		msg = userMessage(err)
	}

	lg := zctx.From(r.Context())
	switch {
	case status >= http.StatusInternalServerError:
		lg.Error("Request failed", zap.Int("status", status), zap.Error(err))
	default:
		lg.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeBody(w, status, e.Bytes())
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeJSON encodes with enc and writes the result with status.
func writeJSON(w http.ResponseWriter, status int, enc func(e *jx.Encoder)) {
	var e jx.Encoder
	enc(&e)
	writeBody(w, status, e.Bytes())
}

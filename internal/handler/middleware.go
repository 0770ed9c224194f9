package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/shopper"
)

const (
	// SessionHeader carries the client id issued by the server.
	SessionHeader = "X-Session-ID"
	// APIKeyHeader carries the admin API key.
	APIKeyHeader = "api_key"
)

type shopperKey struct{}

// withShopper resolves the client's shopper from SessionHeader, creating a
// new one when the header is missing or unknown, and echoes its id back.
func (h *Handler) withShopper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, created := h.shoppers.GetOrCreate(r.Header.Get(SessionHeader))
		w.Header().Set(SessionHeader, s.ID)

		ctx := r.Context()
		if created {
			zctx.From(ctx).Debug("New shopper", zap.String("shopper_id", s.ID))
		}
		ctx = zctx.With(ctx, zap.String("shopper_id", s.ID))
		ctx = context.WithValue(ctx, shopperKey{}, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func shopperFrom(ctx context.Context) *shopper.Shopper {
	s, _ := ctx.Value(shopperKey{}).(*shopper.Shopper)
	return s
}

// requireScope rejects requests whose API key is unknown or lacks scope.
func (h *Handler) requireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := h.keys.Authenticate(r.Context(), r.Header.Get(APIKeyHeader), scope)
			if err != nil {
				writeError(w, r, err)
				return
			}
			ctx := zctx.With(r.Context(), zap.String("api_key_id", info.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

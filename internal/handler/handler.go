// Package handler exposes the storefront over HTTP under /api.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/shopper"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// Resetter replaces the catalog with the bundled seed data.
type Resetter interface {
	Reset(ctx context.Context) (int, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
}

// Handler serves the shopper and admin endpoints.
type Handler struct {
	products     *product.Service
	orders       *order.Service
	shoppers     *shopper.Registry
	keys         *auth.Authenticator
	seeder       Resetter
	imageBaseURL string
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	products *product.Service,
	orders *order.Service,
	shoppers *shopper.Registry,
	keys *auth.Authenticator,
	seeder Resetter,
) *Handler {
	return &Handler{
		products:     products,
		orders:       orders,
		shoppers:     shoppers,
		keys:         keys,
		seeder:       seeder,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Mount registers the /api routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(httpmiddleware.LogRequests(), httpmiddleware.Labeler())

		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)
		r.Get("/products/{id}/reviews", h.listReviews)
		r.Get("/countries", h.listCountries)

		r.Group(func(r chi.Router) {
			r.Use(h.withShopper)

			r.Post("/products/{id}/reviews", h.addReview)

			r.Get("/cart", h.getCart)
			r.Post("/cart/items", h.addCartItem)
			r.Put("/cart/items/{productId}", h.updateCartItem)
			r.Delete("/cart/items/{productId}", h.removeCartItem)
			r.Delete("/cart", h.clearCart)

			r.Get("/session", h.getSession)
			r.Post("/session/login", h.login)
			r.Post("/session/register", h.register)
			r.Post("/session/logout", h.logout)
			r.Put("/session/profile", h.updateProfile)

			r.Post("/checkout", h.checkout)
			r.Get("/orders", h.listOrders)
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(h.requireScope(auth.ScopeCatalogWrite)).Post("/products", h.createProduct)
			r.With(h.requireScope(auth.ScopeCatalogWrite)).Patch("/products/{id}", h.updateProduct)
			r.With(h.requireScope(auth.ScopeCatalogWrite)).Delete("/products/{id}", h.deleteProduct)
			r.With(h.requireScope(auth.ScopeCatalogWrite)).Post("/products/initialize-fields", h.initializeFields)
			r.With(h.requireScope(auth.ScopeSeed)).Post("/seed/reset", h.resetCatalog)
		})
	})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, malformed(errors.Wrap(err, "read body"))
	}
	return body, nil
}

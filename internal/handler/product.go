package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/product"
)

// anonymousAuthor names reviewers without a display name.
const anonymousAuthor = "Anonymous"

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := product.Query{
		Text:    r.URL.Query().Get("q"),
		Country: r.URL.Query().Get("country"),
	}
	products, err := h.products.List(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProducts(e, products) })
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, *p) })
}

func (h *Handler) listCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.products.Countries(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeStrings(e, countries) })
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.products.Reviews(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeReviews(e, reviews) })
}

func (h *Handler) addReview(w http.ResponseWriter, r *http.Request) {
	user, err := shopperFrom(r.Context()).Session.User()
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeReview(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	author := product.Author{ID: user.ID, Name: strings.TrimSpace(user.Name)}
	if author.Name == "" {
		author.Name = anonymousAuthor
	}
	p, err := h.products.AddReview(r.Context(), chi.URLParam(r, "id"), author, req.Rating, req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { h.encodeProduct(e, *p) })
}

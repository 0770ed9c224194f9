package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request) {
	c := shopperFrom(r.Context()).Cart
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeCart(e, c) })
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, r)
}

// addCartItem adds a catalog product to the cart. The product is read from
// the store so the cart always holds current name and price.
func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeAddItem(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.products.Get(r.Context(), req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := shopperFrom(r.Context()).Cart.Add(*p, req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, r)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	quantity, err := decodeQuantity(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c := shopperFrom(r.Context()).Cart
	if err := c.UpdateQuantity(chi.URLParam(r, "productId"), quantity); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, r)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	shopperFrom(r.Context()).Cart.Remove(chi.URLParam(r, "productId"))
	h.writeCart(w, r)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	shopperFrom(r.Context()).Cart.Clear()
	h.writeCart(w, r)
}

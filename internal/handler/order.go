package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeCheckout(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s := shopperFrom(r.Context())
	o, err := h.orders.Checkout(r.Context(), s.Session, s.Cart, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, *o) })
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.History(r.Context(), shopperFrom(r.Context()).Session)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrders(e, orders) })
}

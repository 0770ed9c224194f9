package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := decodeProduct(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := h.products.Add(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.products.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { h.encodeProduct(e, *created) })
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := decodeProductUpdate(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.products.Update(r.Context(), id, u); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, *p) })
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) initializeFields(w http.ResponseWriter, r *http.Request) {
	n, err := h.products.InitializeFields(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("updated", func(e *jx.Encoder) { e.Int(n) })
		})
	})
}

func (h *Handler) resetCatalog(w http.ResponseWriter, r *http.Request) {
	n, err := h.seeder.Reset(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("products", func(e *jx.Encoder) { e.Int(n) })
		})
	})
}

package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/session"
)

func writeSession(w http.ResponseWriter, status int, m *session.Manager) {
	snap := m.Snapshot()
	writeJSON(w, status, func(e *jx.Encoder) { encodeSession(e, snap) })
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	writeSession(w, http.StatusOK, shopperFrom(r.Context()).Session)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeCredentials(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m := shopperFrom(r.Context()).Session
	if err := m.Login(r.Context(), req.Email, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	writeSession(w, http.StatusOK, m)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeCredentials(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m := shopperFrom(r.Context()).Session
	if err := m.Register(r.Context(), req.Email, req.Password, req.Name); err != nil {
		writeError(w, r, err)
		return
	}
	writeSession(w, http.StatusCreated, m)
}

// logout signs out and empties the cart.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	s := shopperFrom(r.Context())
	if err := s.Logout(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeSession(w, http.StatusOK, s.Session)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	name, err := decodeName(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m := shopperFrom(r.Context()).Session
	if err := m.UpdateDisplayName(r.Context(), name); err != nil {
		writeError(w, r, err)
		return
	}
	writeSession(w, http.StatusOK, m)
}

// Package httpapi exposes the REST surface: token issuance, registration,
// history search, health, and stats. The WebSocket endpoint is mounted here
// as well so the whole server shares one router.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires all routes.
func NewRouter(h *Handler, chat http.Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/token", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/search", h.Search).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)
	r.Handle("/ws/chat", chat).Methods(http.MethodGet)

	return r
}

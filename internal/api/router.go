package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter serves read-only views of the live monitoring session.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	r.Get("/status", h.Status)
	r.Get("/timeline", h.Timeline)

	return r
}

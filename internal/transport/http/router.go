package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires all endpoints. Everything except health and metrics
// sits behind the auth middleware.
func NewRouter(h *Handler, auth func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Post("/actions/execute", h.HandleExecute)
		r.Get("/audit/events", h.HandleRecentEvents)
		r.Post("/audit/verify", h.HandleVerify)
		r.Get("/grants/{userID}", h.HandleGetGrants)
		r.Post("/grants/{userID}/roles", h.HandleGrantRoles)
	})

	return r
}

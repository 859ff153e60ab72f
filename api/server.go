/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack and route definitions.
  This is the wiring layer connecting URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     request logging
  2. Recoverer:  panic recovery (500 instead of crash)
  3. RequestID:  unique ID per request for tracing
  4. CORS:       cross-origin requests

ROUTE GROUPS:
  /api/accounts/*       account balance views and listings
  /api/transactions/*   transfer lifecycle operations
  /api/recurring/*      templates, history, and the daily run trigger
  /metrics              Prometheus scrape endpoint

SECURITY NOTE:
  Actor identity is taken from the request body; authentication is owned
  by an upstream gateway and out of scope here.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a router with all routes configured. The registry
// backs the /metrics endpoint; pass the one the engine metrics were
// registered on.
func NewRouter(h *Handler, registry *prometheus.Registry) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Get("/{id}/outgoing", h.ListOutgoing)
			r.Get("/{id}/incoming", h.ListIncoming)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", h.CreateTransaction)
			r.Get("/{id}", h.GetTransaction)
			r.Post("/{id}/confirm", h.ConfirmTransaction)
			r.Post("/{id}/accept", h.AcceptTransaction)
			r.Post("/{id}/decline", h.DeclineTransaction)
			r.Post("/{id}/cancel", h.CancelTransaction)
			r.Post("/{id}/deny", h.DenyTransaction)
		})

		r.Route("/recurring", func(r chi.Router) {
			r.Post("/", h.RegisterRecurring)
			r.Post("/run", h.RunRecurring)
			r.Post("/{id}/deactivate", h.DeactivateRecurring)
			r.Get("/{id}/history", h.RecurringHistory)
		})
	})

	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return r
}

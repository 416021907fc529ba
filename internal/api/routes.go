package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/readysetcloud/newsletter-service-sub011/internal/pkg/httputil"
)

// SetupRoutes builds the router. Static prefixes (/health, /webhooks) are
// registered alongside the tenant-scoped routes; chi matches static
// segments before the {tenant} parameter.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.OK(w, map[string]string{"status": "ok"})
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/ses", h.ComplaintIntake)
		r.Post("/issue-cleanup", h.IssueCleanup)
	})

	r.Route("/{tenant}", func(r chi.Router) {
		r.Post("/subscribe", h.Subscribe)
		r.Post("/unsubscribe", h.ManualUnsubscribe)
		r.Get("/unsubscribe", h.LinkUnsubscribe)
		r.Get("/stats", h.Stats)
	})

	return r
}

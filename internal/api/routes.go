package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes. allowedOrigin is the single
// browser origin permitted to reach the lead-capture endpoint; webhook
// and poll endpoints are server-to-server and carry no CORS headers.
func SetupRoutes(h *Handlers, allowedOrigin string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	// One stuck marketplace or SendGrid call must not pin a request
	// forever; external calls have their own tighter timeouts.
	r.Use(middleware.Timeout(90 * time.Second))

	r.Get("/health", h.HealthCheck)

	// Push source: Shopify Flow calls this once per purchase.
	r.Post("/webhook/shopify", h.ShopifyWebhook)

	r.Route("/api", func(r chi.Router) {
		// Poll triggers, one per marketplace. Invoked by an external
		// scheduler; each call is exactly one reconciliation pass.
		r.Post("/poll/{source}", h.PollSource)

		if h.leadStore != nil {
			r.Group(func(r chi.Router) {
				r.Use(cors.Handler(cors.Options{
					AllowedOrigins: []string{allowedOrigin},
					AllowedMethods: []string{"POST", "OPTIONS"},
					AllowedHeaders: []string{"Accept", "Content-Type"},
					MaxAge:         300,
				}))
				r.Post("/leads", h.CaptureLead)
			})
		}
	})

	return r
}

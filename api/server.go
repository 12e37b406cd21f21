/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. RateLimit:  Per-client buckets on the booking POST only

ROUTE GROUPS:
  /api/resources/*   Resource and slot management
  /api/bookings/*    Claim, cancel, complete
  /api/actors/*      Per-actor history and stats
  /api/leaderboard   Ranked reports
  /api/admin/*       Reconciliation
  /api/scenarios/*   Demo data loaders

SECURITY NOTE:
  No authentication middleware. Identities arrive pre-validated in the
  X-Actor-ID header from an upstream gateway.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. A nil
// limiter disables rate limiting on the booking path.
func NewRouter(h *Handler, limiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", actorHeader},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Resource routes
		r.Route("/resources", func(r chi.Router) {
			r.Get("/", h.ListResources)
			r.Post("/", h.CreateResource)
			r.Get("/{id}", h.GetResource)
			r.Put("/{id}", h.UpdateResource)
			r.Put("/{id}/active", h.SetResourceActive)
			r.Delete("/{id}", h.DeleteResource)
			r.Get("/{id}/slots", h.ListSlots)
			r.Get("/{id}/stats", h.GetResourceStats)
		})

		// Booking routes
		r.Route("/bookings", func(r chi.Router) {
			if limiter != nil {
				r.With(limiter.Middleware).Post("/", h.Book)
			} else {
				r.Post("/", h.Book)
			}
			r.Post("/{id}/cancel", h.CancelBooking)
			r.Post("/{id}/complete", h.CompleteBooking)
		})

		// Actor routes
		r.Route("/actors", func(r chi.Router) {
			r.Get("/{id}/bookings", h.ListActorBookings)
			r.Get("/{id}/stats", h.GetActorStats)
		})

		// Report routes
		r.Get("/leaderboard", h.GetLeaderboard)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/reconcile", h.Reconcile)
		})

		// Demo scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

/**
 * @description
 * HTTP router setup for the subscription tracker using go-chi/chi.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions carries the security settings the router needs.
type RouterOptions struct {
	Auth              AuthOptions
	InternalAPIKey    string
	Limiter           RateLimiter
	RateLimitRequests int
	RateLimitWindow   time.Duration
	TrustProxyHeaders bool
}

// NewRouter creates a new Chi router and registers the subscription routes.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()
	policy := func(scope string) RateLimitPolicy {
		return RateLimitPolicy{
			Scope:             scope,
			Limit:             opts.RateLimitRequests,
			Window:            opts.RateLimitWindow,
			TrustProxyHeaders: opts.TrustProxyHeaders,
		}
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Subscription tracker is healthy"))
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(opts.InternalAPIKey))
		r.Use(RateLimitMiddleware(opts.Limiter, policy("internal")))
		r.Get("/subscriptions", h.handleListAllSubscriptions)
		r.Get("/subscriptions/upcoming-renewals", h.handleListAllUpcomingRenewals)
		r.Post("/reminders/run", h.handleRunReminders)
		r.Get("/users", h.handleListUsers)
		r.Get("/users/{id}", h.handleGetUser)
		r.Delete("/users/{id}", h.handleDeleteUser)
	})

	r.Route("/api/v1/subscriptions", func(r chi.Router) {
		r.Use(JWTAuthMiddleware(opts.Auth))
		r.Use(RateLimitMiddleware(opts.Limiter, policy("api")))

		r.Post("/", h.handleCreateSubscription)
		r.Get("/upcoming-renewals", h.handleListUpcomingRenewals)
		r.Get("/user/{userID}", h.handleListUserSubscriptions)
		r.Get("/{id}", h.handleGetSubscription)
		r.Put("/{id}", h.handleUpdateSubscription)
		r.Delete("/{id}", h.handleDeleteSubscription)
		r.Put("/{id}/cancel", h.handleCancelSubscription)
	})

	return r
}

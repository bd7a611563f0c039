package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/docuflow/llm-router/handlers"
	"github.com/docuflow/llm-router/middleware"
)

// Handlers collects the HTTP handlers the router mounts.
type Handlers struct {
	Chat     *handlers.ChatHandler
	Provider *handlers.ProviderHandler
	Decision *handlers.DecisionHandler
	Health   *handlers.HealthHandler
	Identity *middleware.IdentityMiddleware
}

// SetupRoutes configures all application routes and middleware
func SetupRoutes(h Handlers) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(120 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID", "X-Role"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/healthz", h.Health.HandleHealthz)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.Identity.Handler)

		r.Post("/chat", h.Chat.HandleChat)
		r.Get("/providers", h.Provider.HandleList)
		r.Get("/providers/health", h.Provider.HandleHealth)
		r.Get("/decisions", h.Decision.HandleList)
	})

	return r
}

package router

import (
	"flashbot-backend/internal/handler"
	"flashbot-backend/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler       *handler.Handler
	ChatHandler   *handler.ChatHandler
	OrdersHandler *handler.OrdersHandler
	AdminHandler  *handler.AdminHandler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// PUBLIC routes (consumed by the store widget)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}
	if cfg.ChatHandler != nil {
		r.Post("/api/chat", cfg.ChatHandler.Chat)
	}
	if cfg.OrdersHandler != nil {
		r.Post("/api/orders/status", cfg.OrdersHandler.Status)
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check endpoints
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		// Admin endpoints
		if cfg.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Post("/reindex", cfg.AdminHandler.Reindex)
				r.Get("/stats", cfg.AdminHandler.GetStats)
				r.Get("/sample", cfg.AdminHandler.GetSample)
				r.Get("/health", cfg.AdminHandler.GetHealth)
			})
		}
	})

	return r
}

package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions tunes route-level behavior
type RouterOptions struct {
	// RequestTimeout bounds the provider-backed endpoints. Zero disables it.
	RequestTimeout time.Duration

	// ProtectLifecycle requires the bearer token on /apply and /destroy
	ProtectLifecycle bool
}

// NewRouter creates and configures the HTTP router
func NewRouter(handlers *Handlers, authMiddleware *AuthMiddleware, loggingMiddleware *LoggingMiddleware, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - ORDER MATTERS!
	r.Use(middleware.RequestID)      // Generate request ID first
	r.Use(middleware.RealIP)         // Extract real IP
	r.Use(loggingMiddleware.Handler) // Add logger to context with request ID
	r.Use(Recoverer)                 // Panic recovery, answers with the error envelope

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoint (no auth required)
	r.Get("/health", handlers.Health)

	// Power control, backed by the provider API
	r.Group(func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(opts.RequestTimeout))
		}

		r.Get("/status", handlers.Status)
		r.With(authMiddleware.Authenticate).Post("/start", handlers.Start)
		r.With(authMiddleware.Authenticate).Post("/shutdown", handlers.Shutdown)
	})

	// Infrastructure lifecycle, bounded by the terraform timeout instead
	r.Group(func(r chi.Router) {
		if opts.ProtectLifecycle {
			r.Use(authMiddleware.Authenticate)
		}

		r.Post("/apply", handlers.Apply)
		r.Post("/destroy", handlers.Destroy)
	})

	return r
}

package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pbar1/ssh-benchmark/internal/api/handlers"
	"github.com/pbar1/ssh-benchmark/internal/api/middleware"
	"github.com/pbar1/ssh-benchmark/internal/cache"
	"github.com/pbar1/ssh-benchmark/internal/config"
)

// NewRouter creates a new Chi router with all routes and middleware configured
func NewRouter(bundles *cache.BundleCache, cfg *config.Config, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	// Apply middleware stack
	r.Use(middleware.Recovery(logger))
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// Initialize handlers
	var pinger handlers.Pinger
	var store handlers.BundleStore
	if bundles.Enabled() {
		pinger = bundles
		store = bundles
	}
	healthHandler := handlers.NewHealthHandler(pinger, cfg.AppVersion, logger)
	manifestHandler := handlers.NewManifestHandler(store, logger)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/manifests", manifestHandler.Handle)
		r.Get("/strategies", handlers.HandleStrategies)

		// Health and readiness endpoints
		r.Get("/health", healthHandler.HandleHealth)
		r.Get("/ready", healthHandler.HandleReady)

		// Metrics endpoint
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
	})

	return r
}

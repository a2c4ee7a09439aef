package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/blist-xyz/review-service/internal/api/http/handlers"
	"github.com/blist-xyz/review-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Reviews        *handlers.ReviewHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Health probes are open; the API group
// requires a service token.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/healthz", cfg.Health.Live)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)
	api.Get("/queue", cfg.Reviews.Queue)
	api.Get("/stats", cfg.Reviews.Stats)
}

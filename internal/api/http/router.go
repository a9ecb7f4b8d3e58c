package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/support-engine/internal/api/http/handlers"
	"github.com/opsdesk/support-engine/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Export         *handlers.ExportHandler
	Analytics      *handlers.AnalyticsHandler
	GDPR           *handlers.GDPRHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	tickets.Get("/export", auth.RequireAdmin(), cfg.Export.Export)
	tickets.Get("/analytics", auth.RequireAdmin(), cfg.Analytics.Analytics)
	tickets.Get("/", cfg.Tickets.List)
	tickets.Post("/", cfg.Tickets.Mutate)
	tickets.Patch("/", cfg.Tickets.Patch)
	tickets.Delete("/", auth.RequireAdmin(), cfg.Tickets.Delete)

	gdpr := app.Group("/gdpr", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	gdpr.Post("/deletion-request", cfg.GDPR.RequestDeletion)
	gdpr.Get("/deletion-requests", auth.RequireAdmin(), cfg.GDPR.ListDeletionRequests)
	gdpr.Post("/deletion-confirm", auth.RequireAdmin(), cfg.GDPR.ConfirmDeletion)
}

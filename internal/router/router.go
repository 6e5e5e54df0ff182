package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/groupflow/activity-sync-api/internal/config"
	"github.com/groupflow/activity-sync-api/internal/handler"
	"github.com/groupflow/activity-sync-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	WebhookHandler *handler.WebhookHandler
	BadgeHandler   *handler.BadgeHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	if deps.WebhookHandler != nil {
		webhooks := api.Group("/webhooks")
		deps.WebhookHandler.Register(webhooks)
	}

	if deps.BadgeHandler != nil {
		badge := api.Group("/badge")
		deps.BadgeHandler.Register(badge)
	}
}

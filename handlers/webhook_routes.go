// handlers/webhook_routes.go
package handlers

import (
	"mandate-portal/services"

	"github.com/gofiber/fiber/v2"
)

// SetupWebhookRoutes registers provider callbacks. Signatures are checked
// against the raw body, so nothing may rewrite it before the handler.
func SetupWebhookRoutes(app *fiber.App, webhookService *services.WebhookService) {
	app.Post("/api/webhooks/:provider", webhookService.HandleWebhook)
}

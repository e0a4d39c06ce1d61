// handlers/mandate_routes.go
package handlers

import (
	"mandate-portal/services"

	"github.com/gofiber/fiber/v2"
)

// SetupMandateRoutes registers the public intake endpoint.
func SetupMandateRoutes(app *fiber.App, mandateService *services.MandateService, limiter fiber.Handler) {
	app.Post("/api/mandate", limiter, mandateService.CreateMandate)
}

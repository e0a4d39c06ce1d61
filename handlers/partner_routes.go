// handlers/partner_routes.go
package handlers

import (
	"mandate-portal/services"

	"github.com/gofiber/fiber/v2"
)

type PartnerRoutes struct {
	Auth     *services.PartnerAuthService
	Partners *services.PartnerService
	// Guard requires a valid session of an active partner.
	Guard fiber.Handler
	// LinkLimiter throttles magic-link requests per client.
	LinkLimiter fiber.Handler
}

func SetupPartnerRoutes(app *fiber.App, r PartnerRoutes) {
	partner := app.Group("/api/partner")

	partner.Post("/auth/request-link", r.LinkLimiter, r.Auth.RequestLink)
	partner.Post("/auth/verify", r.LinkLimiter, r.Auth.Verify)
	partner.Get("/auth/session", r.Auth.Session)
	partner.Delete("/auth/session", r.Auth.Logout)

	partner.Get("/stats", r.Guard, r.Partners.PartnerStats)
}

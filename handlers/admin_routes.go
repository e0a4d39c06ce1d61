// handlers/admin_routes.go
package handlers

import (
	"mandate-portal/services"

	"github.com/gofiber/fiber/v2"
)

// AdminRoutes bundles what the back-office API needs.
type AdminRoutes struct {
	Auth     *services.AdminAuthService
	Mandates *services.MandateService
	Partners *services.PartnerService
	// Guard rejects requests without a valid admin session.
	Guard fiber.Handler
	// LoginLimiter throttles login attempts per client.
	LoginLimiter fiber.Handler
}

func SetupAdminRoutes(app *fiber.App, r AdminRoutes) {
	admin := app.Group("/api/admin")

	// 🔓 Session endpoints
	admin.Post("/login", r.LoginLimiter, r.Auth.Login)
	admin.Post("/logout", r.Auth.Logout)
	admin.Get("/session", r.Auth.Session)

	// 🔐 Everything below requires an admin session
	admin.Post("/password", r.Guard, r.Auth.ChangePassword)

	admin.Get("/mandates", r.Guard, r.Mandates.ListMandates)
	admin.Get("/mandate/:id", r.Guard, r.Mandates.GetMandate)
	admin.Patch("/mandate/:id", r.Guard, r.Mandates.UpdateStatus)
	admin.Get("/mandate/:id/vollmacht", r.Guard, r.Mandates.DownloadVollmacht)
	admin.Post("/mandate/:id/reminder", r.Guard, r.Mandates.SendReminder)
	admin.Post("/mandate/:id/document", r.Guard, r.Mandates.OriginateDocument)
	admin.Get("/esign/check", r.Guard, r.Mandates.ESignCheck)

	admin.Get("/partner", r.Guard, r.Partners.ListPartners)
	admin.Post("/partner", r.Guard, r.Partners.CreatePartner)
	admin.Get("/partner/stats", r.Guard, r.Partners.AdminPartnerStats)
	admin.Patch("/partner/:id", r.Guard, r.Partners.UpdatePartner)
	admin.Delete("/partner/:id", r.Guard, r.Partners.DeletePartner)
}

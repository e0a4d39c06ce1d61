// middleware/auth.go
package middleware

import (
	"errors"

	"mandate-portal/models"
	"mandate-portal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminSession guards back-office routes. The verified admin id is passed
// on as c.Locals("admin_id").
func AdminSession(sessions *services.SessionManager, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result := sessions.FromRequest(c)
		if !result.Valid() {
			logger.Info("🚫 [ADMIN_AUTH] rejected",
				zap.String("path", c.Path()),
				zap.Stringer("session", result.Status),
			)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Nicht autorisiert",
			})
		}

		c.Locals("admin_id", result.SubjectID)
		return c.Next()
	}
}

// PartnerSession guards partner routes. Only active partners pass; the
// partner row is attached as c.Locals("partner") and its id as "partner_id".
func PartnerSession(sessions *services.SessionManager, db *gorm.DB, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result := sessions.FromRequest(c)
		if !result.Valid() {
			logger.Info("🚫 [PARTNER_AUTH] rejected",
				zap.String("path", c.Path()),
				zap.Stringer("session", result.Status),
			)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Nicht autorisiert",
			})
		}

		var partner models.Partner
		err := db.WithContext(c.UserContext()).First(&partner, "id = ?", result.SubjectID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("❌ [PARTNER_AUTH] partner lookup failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Interner Serverfehler",
			})
		}
		if err != nil || !partner.Active {
			logger.Info("🚫 [PARTNER_AUTH] partner missing or inactive", zap.String("partner_id", result.SubjectID))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Nicht autorisiert",
			})
		}

		c.Locals("partner_id", partner.ID)
		c.Locals("partner", &partner)
		return c.Next()
	}
}

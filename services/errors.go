// services/errors.go
package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrMandateNotFound  = errors.New("mandate not found")
	ErrPartnerNotFound  = errors.New("partner not found")
	ErrTokenNotFound    = errors.New("login token not found")
	ErrTokenUsed        = errors.New("login token already used")
	ErrTokenExpired     = errors.New("login token expired")
	ErrPartnerInactive  = errors.New("partner inactive")
	ErrAlreadySigned    = errors.New("power of attorney already signed")
	ErrNoDocument       = errors.New("no e-sign document for mandate")
	ErrDocumentNotReady = errors.New("e-sign document did not reach draft state")
	ErrESignDisabled    = errors.New("e-sign provider not configured")
	ErrPartnerInUse     = errors.New("partner still referenced by mandates")
)

// User-facing messages.
const (
	msgInvalidData     = "Ungültige Daten"
	msgInternal        = "Interner Serverfehler"
	msgUnauthorized    = "Nicht autorisiert"
	msgMandateNotFound = "Mandat nicht gefunden"
	msgPartnerNotFound = "Partner nicht gefunden"
)

func jsonError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func validationError(c *fiber.Ctx, err error) error {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   msgInvalidData,
			"details": verrs,
		})
	}
	return jsonError(c, fiber.StatusBadRequest, msgInvalidData)
}

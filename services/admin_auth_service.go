// services/admin_auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mandate-portal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// dummyHash keeps login timing similar for unknown addresses.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

// AdminAuthService handles back-office login and password changes.
type AdminAuthService struct {
	DB       *gorm.DB
	Sessions *SessionManager
	Logger   *zap.Logger
}

// HashPassword is shared with the seed command.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Authenticate checks email and password and returns the admin.
func (s *AdminAuthService) Authenticate(ctx context.Context, email, password string) (*models.AdminUser, error) {
	var user models.AdminUser
	err := s.DB.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func adminView(u *models.AdminUser) fiber.Map {
	return fiber.Map{"id": u.ID, "email": u.Email, "name": u.Name}
}

func (s *AdminAuthService) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, msgInvalidData)
	}
	if err := Validate(&req); err != nil {
		return validationError(c, err)
	}

	user, err := s.Authenticate(c.UserContext(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		s.Logger.Info("🚫 admin login rejected", zap.String("ip", c.IP()))
		return jsonError(c, fiber.StatusUnauthorized, "Ungültige Anmeldedaten")
	}
	if err != nil {
		s.Logger.Error("❌ admin login failed", zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, msgInternal)
	}

	if err := s.Sessions.Start(c, user.ID); err != nil {
		s.Logger.Error("❌ failed to start admin session", zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, msgInternal)
	}
	s.Logger.Info("🔓 admin logged in", zap.String("admin_id", user.ID))
	return c.JSON(fiber.Map{"success": true, "user": adminView(user)})
}

func (s *AdminAuthService) Logout(c *fiber.Ctx) error {
	s.Sessions.Clear(c)
	return c.JSON(fiber.Map{"success": true})
}

// Session reports the logged-in admin, if any.
func (s *AdminAuthService) Session(c *fiber.Ctx) error {
	result := s.Sessions.FromRequest(c)
	if !result.Valid() {
		return c.JSON(fiber.Map{"authenticated": false})
	}
	var user models.AdminUser
	if err := s.DB.WithContext(c.UserContext()).First(&user, "id = ?", result.SubjectID).Error; err != nil {
		return c.JSON(fiber.Map{"authenticated": false})
	}
	return c.JSON(fiber.Map{"authenticated": true, "user": adminView(&user)})
}

// ChangePassword lets the logged-in admin replace their password.
func (s *AdminAuthService) ChangePassword(c *fiber.Ctx) error {
	adminID, _ := c.Locals("admin_id").(string)
	if adminID == "" {
		return jsonError(c, fiber.StatusUnauthorized, msgUnauthorized)
	}

	var req PasswordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, msgInvalidData)
	}
	if err := Validate(&req); err != nil {
		return validationError(c, err)
	}

	db := s.DB.WithContext(c.UserContext())
	var user models.AdminUser
	if err := db.First(&user, "id = ?", adminID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusUnauthorized, msgUnauthorized)
		}
		s.Logger.Error("❌ admin lookup failed", zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, msgInternal)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Aktuelles Passwort ist falsch")
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		s.Logger.Error("❌ password hashing failed", zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, msgInternal)
	}
	if err := db.Model(&user).Update("password_hash", hash).Error; err != nil {
		s.Logger.Error("❌ failed to store password", zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, msgInternal)
	}

	s.Logger.Info("🔑 admin password changed", zap.String("admin_id", user.ID))
	return c.JSON(fiber.Map{"success": true, "message": "Passwort erfolgreich geändert"})
}

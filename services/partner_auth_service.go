// services/partner_auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"mandate-portal/models"
	"mandate-portal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	LoginTokenTTL = time.Hour

	msgLinkRequested = "Falls diese E-Mail registriert ist, wurde ein Login-Link gesendet."
	msgInvalidLink   = "Ungültiger oder abgelaufener Login-Link"
)

// PartnerAuthService implements the partner magic-link login.
type PartnerAuthService struct {
	DB            *gorm.DB
	Mailer        Mailer
	Sessions      *SessionManager
	PublicBaseURL string
	Clock         clockwork.Clock
	Logger        *zap.Logger
}

// MagicLinkURL is the login page the partner lands on.
func MagicLinkURL(baseURL, token string) string {
	return baseURL + "/partner/login?token=" + url.QueryEscape(token)
}

// partnerView is the public part of a partner shown to the partner itself.
func partnerView(p *models.Partner) fiber.Map {
	return fiber.Map{
		"id":         p.ID,
		"name":       p.Name,
		"email":      p.Email,
		"trackingId": p.TrackingID,
	}
}

// RequestLink mails a login link. The answer is the same whether or not the
// address belongs to an active partner.
func (s *PartnerAuthService) RequestLink(c *fiber.Ctx) error {
	var req MagicLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, msgInvalidData)
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := Validate(&req); err != nil {
		return validationError(c, err)
	}

	ctx := c.UserContext()
	var partner models.Partner
	err := s.DB.WithContext(ctx).Where("email = ?", req.Email).First(&partner).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.Logger.Info("login link requested for unknown address")
	case err != nil:
		s.Logger.Error("❌ partner lookup failed", zap.Error(err))
	case !partner.Active:
		s.Logger.Info("login link requested for inactive partner", zap.String("partner_id", partner.ID))
	default:
		s.sendLoginLink(ctx, &partner)
	}

	return c.JSON(fiber.Map{"success": true, "message": msgLinkRequested})
}

func (s *PartnerAuthService) sendLoginLink(ctx context.Context, partner *models.Partner) {
	token, err := s.IssueLoginToken(ctx, partner.ID)
	if err != nil {
		s.Logger.Error("❌ failed to issue login token", zap.String("partner_id", partner.ID), zap.Error(err))
		return
	}

	msg, err := MagicLinkMail(*partner.Email, partner.Name, MagicLinkURL(s.PublicBaseURL, token))
	if err != nil {
		s.Logger.Error("❌ failed to render login mail", zap.Error(err))
		return
	}
	if res := s.Mailer.Send(ctx, msg); !res.OK {
		s.Logger.Warn("⚠️ login mail not delivered", zap.String("partner_id", partner.ID), zap.Error(res.Err))
		return
	}
	s.Logger.Info("🔗 login link sent", zap.String("partner_id", partner.ID))
}

// IssueLoginToken stores the fingerprint of a fresh token and returns the raw token.
func (s *PartnerAuthService) IssueLoginToken(ctx context.Context, partnerID string) (string, error) {
	raw, err := utils.GenerateToken(utils.TokenSize256)
	if err != nil {
		return "", err
	}
	token := models.PartnerToken{
		TokenHash: utils.FingerprintToken(raw),
		PartnerID: partnerID,
		ExpiresAt: s.Clock.Now().UTC().Add(LoginTokenTTL),
	}
	if err := s.DB.WithContext(ctx).Create(&token).Error; err != nil {
		return "", fmt.Errorf("failed to store login token: %w", err)
	}
	return raw, nil
}

// ConsumeLoginToken validates raw and marks it used. The update only
// succeeds for an unused, unexpired row, so a token is accepted at most once.
func (s *PartnerAuthService) ConsumeLoginToken(ctx context.Context, raw string) (*models.Partner, error) {
	if raw == "" {
		return nil, ErrTokenNotFound
	}

	var token models.PartnerToken
	err := s.DB.WithContext(ctx).Preload("Partner").
		Where("token_hash = ?", utils.FingerprintToken(raw)).
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now().UTC()
	if token.Used {
		return nil, ErrTokenUsed
	}
	if now.After(token.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	if token.Partner == nil || !token.Partner.Active {
		return nil, ErrPartnerInactive
	}

	res := s.DB.WithContext(ctx).Model(&models.PartnerToken{}).
		Where("id = ? AND used = ? AND expires_at >= ?", token.ID, false, now).
		Update("used", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, ErrTokenUsed
	}
	return token.Partner, nil
}

// Verify exchanges a login token for a partner session cookie.
func (s *PartnerAuthService) Verify(c *fiber.Ctx) error {
	var req VerifyTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, msgInvalidData)
	}
	if err := Validate(&req); err != nil {
		return validationError(c, err)
	}

	partner, err := s.ConsumeLoginToken(c.UserContext(), strings.TrimSpace(req.Token))
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenUsed),
			errors.Is(err, ErrTokenExpired), errors.Is(err, ErrPartnerInactive):
			s.Logger.Info("🚫 login link rejected", zap.Error(err))
			return jsonError(c, fiber.StatusUnauthorized, msgInvalidLink)
		default:
			s.Logger.Error("❌ login token check failed", zap.Error(err))
			return jsonError(c, fiber.StatusInternalServerError, msgInternal)
		}
	}

	if err := s.Sessions.Start(c, partner.ID); err != nil {
		s.Logger.Error("❌ failed to start partner session", zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, msgInternal)
	}

	s.Logger.Info("🔓 partner logged in", zap.String("partner_id", partner.ID))
	return c.JSON(fiber.Map{"success": true, "partner": partnerView(partner)})
}

// Session reports whether the request carries a valid partner session.
func (s *PartnerAuthService) Session(c *fiber.Ctx) error {
	result := s.Sessions.FromRequest(c)
	if !result.Valid() {
		return c.JSON(fiber.Map{"authenticated": false})
	}

	var partner models.Partner
	if err := s.DB.WithContext(c.UserContext()).First(&partner, "id = ?", result.SubjectID).Error; err != nil || !partner.Active {
		return c.JSON(fiber.Map{"authenticated": false})
	}
	return c.JSON(fiber.Map{"authenticated": true, "partner": partnerView(&partner)})
}

func (s *PartnerAuthService) Logout(c *fiber.Ctx) error {
	s.Sessions.Clear(c)
	return c.JSON(fiber.Map{"success": true})
}

// CleanupTokens removes tokens that are used or past expiry.
func (s *PartnerAuthService) CleanupTokens(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("used = ? OR expires_at < ?", true, s.Clock.Now().UTC()).
		Delete(&models.PartnerToken{})
	return res.RowsAffected, res.Error
}

// services/sessions.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

const (
	AdminAudience   = "admin"
	PartnerAudience = "partner"

	AdminCookieName   = "admin_session"
	PartnerCookieName = "partner_session"

	AdminSessionTTL   = 24 * time.Hour
	PartnerSessionTTL = 30 * 24 * time.Hour
)

type SessionStatus int

const (
	SessionInvalid SessionStatus = iota
	SessionValid
	SessionExpired
)

func (s SessionStatus) String() string {
	switch s {
	case SessionValid:
		return "valid"
	case SessionExpired:
		return "expired"
	}
	return "invalid"
}

// SessionResult is the outcome of verifying a session credential.
// SubjectID is only set for SessionValid.
type SessionResult struct {
	Status    SessionStatus
	SubjectID string
}

func (r SessionResult) Valid() bool { return r.Status == SessionValid }

// SessionClaims carries the subject (admin user or partner id) in "sub".
type SessionClaims struct {
	jwt.RegisteredClaims
}

// SessionManager issues and verifies one kind of session. Admin and partner
// sessions use separate managers with distinct audiences, so a credential
// of one kind never verifies as the other even under a shared secret.
type SessionManager struct {
	secret     []byte
	audience   string
	ttl        time.Duration
	cookieName string
	secure     bool
	clock      clockwork.Clock
}

func NewAdminSessions(secret string, secure bool, clock clockwork.Clock) *SessionManager {
	return newSessionManager(secret, AdminAudience, AdminSessionTTL, AdminCookieName, secure, clock)
}

func NewPartnerSessions(secret string, secure bool, clock clockwork.Clock) *SessionManager {
	return newSessionManager(secret, PartnerAudience, PartnerSessionTTL, PartnerCookieName, secure, clock)
}

func newSessionManager(secret, audience string, ttl time.Duration, cookie string, secure bool, clock clockwork.Clock) *SessionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionManager{
		secret:     []byte(secret),
		audience:   audience,
		ttl:        ttl,
		cookieName: cookie,
		secure:     secure,
		clock:      clock,
	}
}

func (m *SessionManager) CookieName() string { return m.cookieName }

// Issue signs a session for subjectID and returns it with its expiry.
func (m *SessionManager) Issue(subjectID string) (string, time.Time, error) {
	now := m.clock.Now()
	expires := now.Add(m.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s session: %w", m.audience, err)
	}
	return signed, expires, nil
}

// Verify checks signature, audience and expiry of a raw token.
func (m *SessionManager) Verify(raw string) SessionResult {
	if raw == "" {
		return SessionResult{Status: SessionInvalid}
	}

	var claims SessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return SessionResult{Status: SessionInvalid}
	case errors.Is(err, jwt.ErrTokenExpired):
		return SessionResult{Status: SessionExpired}
	default:
		return SessionResult{Status: SessionInvalid}
	}

	if claims.Subject == "" {
		return SessionResult{Status: SessionInvalid}
	}
	return SessionResult{Status: SessionValid, SubjectID: claims.Subject}
}

// FromRequest verifies the session cookie of the request.
func (m *SessionManager) FromRequest(c *fiber.Ctx) SessionResult {
	return m.Verify(c.Cookies(m.cookieName))
}

// Start issues a session for subjectID and sets it as cookie.
func (m *SessionManager) Start(c *fiber.Ctx, subjectID string) error {
	token, expires, err := m.Issue(subjectID)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(m.ttl.Seconds()),
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (m *SessionManager) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

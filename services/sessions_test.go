package services

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionIssueAndVerify(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	admin := NewAdminSessions("shared-secret", false, clock)

	token, expires, err := admin.Issue("admin-1")
	require.NoError(t, err)
	assert.WithinDuration(t, clock.Now().Add(AdminSessionTTL), expires, time.Second)

	result := admin.Verify(token)
	assert.True(t, result.Valid())
	assert.Equal(t, "admin-1", result.SubjectID)
}

func TestSessionKindsAreNotInterchangeable(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	admin := NewAdminSessions("shared-secret", false, clock)
	partner := NewPartnerSessions("shared-secret", false, clock)

	adminToken, _, err := admin.Issue("admin-1")
	require.NoError(t, err)
	partnerToken, _, err := partner.Issue("partner-1")
	require.NoError(t, err)

	assert.Equal(t, SessionInvalid, partner.Verify(adminToken).Status)
	assert.Equal(t, SessionInvalid, admin.Verify(partnerToken).Status)
	assert.True(t, partner.Verify(partnerToken).Valid())
}

func TestSessionExpiry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	partner := NewPartnerSessions("secret", false, clock)

	token, _, err := partner.Issue("partner-1")
	require.NoError(t, err)

	clock.Advance(PartnerSessionTTL - time.Minute)
	assert.True(t, partner.Verify(token).Valid())

	clock.Advance(2 * time.Minute)
	result := partner.Verify(token)
	assert.Equal(t, SessionExpired, result.Status)
	assert.Empty(t, result.SubjectID)
}

func TestSessionRejectsTamperedAndForeign(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	admin := NewAdminSessions("secret", false, clock)
	other := NewAdminSessions("other-secret", false, clock)

	token, _, err := admin.Issue("admin-1")
	require.NoError(t, err)

	assert.Equal(t, SessionInvalid, other.Verify(token).Status)
	assert.Equal(t, SessionInvalid, admin.Verify(token+"x").Status)
	assert.Equal(t, SessionInvalid, admin.Verify("").Status)
	assert.Equal(t, SessionInvalid, admin.Verify("not.a.jwt").Status)
}

func TestSessionCookieRoundTrip(t *testing.T) {
	admin := NewAdminSessions("secret", true, clockwork.NewRealClock())

	app := fiber.New()
	app.Post("/login", func(c *fiber.Ctx) error { return admin.Start(c, "admin-7") })
	app.Get("/whoami", func(c *fiber.Ctx) error {
		r := admin.FromRequest(c)
		return c.SendString(r.Status.String() + ":" + r.SubjectID)
	})
	app.Post("/logout", func(c *fiber.Ctx) error {
		admin.Clear(c)
		return nil
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/login", nil))
	require.NoError(t, err)
	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, AdminCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, int(AdminSessionTTL.Seconds()), cookies[0].MaxAge)

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.AddCookie(cookies[0])
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "valid:admin-7", readBody(t, resp))

	resp, err = app.Test(httptest.NewRequest("POST", "/logout", nil))
	require.NoError(t, err)
	require.Len(t, resp.Cookies(), 1)
	assert.Empty(t, resp.Cookies()[0].Value)
}

func TestPartnerCookieLastsThirtyDays(t *testing.T) {
	partner := NewPartnerSessions("secret", false, clockwork.NewRealClock())

	app := fiber.New()
	app.Post("/verify", func(c *fiber.Ctx) error { return partner.Start(c, "partner-1") })

	resp, err := app.Test(httptest.NewRequest("POST", "/verify", nil))
	require.NoError(t, err)
	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, PartnerCookieName, cookies[0].Name)
	assert.Equal(t, 30*24*60*60, cookies[0].MaxAge)
	assert.False(t, cookies[0].Secure)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mandate-portal/models"
	"mandate-portal/services"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func withCookie(req *http.Request, name, value string) *http.Request {
	req.AddCookie(&http.Cookie{Name: name, Value: value})
	return req
}

func TestAdminSession(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	admins := services.NewAdminSessions("secret", false, clock)
	partners := services.NewPartnerSessions("secret", false, clock)

	app := fiber.New()
	app.Get("/admin", AdminSession(admins, zap.NewNop()), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("admin_id").(string))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/admin", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	partnerToken, _, err := partners.Issue("partner-1")
	require.NoError(t, err)
	resp, err = app.Test(withCookie(httptest.NewRequest("GET", "/admin", nil), services.AdminCookieName, partnerToken))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "partner credential on admin route")

	token, _, err := admins.Issue("admin-1")
	require.NoError(t, err)
	resp, err = app.Test(withCookie(httptest.NewRequest("GET", "/admin", nil), services.AdminCookieName, token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	clock.Advance(services.AdminSessionTTL + time.Minute)
	resp, err = app.Test(withCookie(httptest.NewRequest("GET", "/admin", nil), services.AdminCookieName, token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestPartnerSession(t *testing.T) {
	db := newTestDB(t)
	sessions := services.NewPartnerSessions("secret", false, clockwork.NewRealClock())

	active := &models.Partner{Name: "Aktiv", TrackingID: "aktiv", Active: true}
	require.NoError(t, db.Create(active).Error)
	inactive := &models.Partner{Name: "Inaktiv", TrackingID: "inaktiv", Active: true}
	require.NoError(t, db.Create(inactive).Error)
	require.NoError(t, db.Model(inactive).Update("active", false).Error)

	app := fiber.New()
	app.Get("/stats", PartnerSession(sessions, db, zap.NewNop()), func(c *fiber.Ctx) error {
		p := c.Locals("partner").(*models.Partner)
		return c.SendString(p.TrackingID)
	})

	call := func(subject string) *http.Response {
		token, _, err := sessions.Issue(subject)
		require.NoError(t, err)
		resp, err := app.Test(withCookie(httptest.NewRequest("GET", "/stats", nil), services.PartnerCookieName, token))
		require.NoError(t, err)
		return resp
	}

	resp := call(active.ID)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, fiber.StatusUnauthorized, call(inactive.ID).StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, call("deleted-partner").StatusCode)
}

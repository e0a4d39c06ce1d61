package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mandate-portal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const completedEvent = `{"event":"document_state_changed","data":{"id":"doc-hook","status":"document.completed"}}`

func newWebhookApp(t *testing.T, secret string) (*fiber.App, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewWebhookService(newTestReconciler(db, nil), zap.NewNop(), PandaDocWebhook(secret))
	app := fiber.New()
	app.Post("/api/webhooks/:provider", svc.HandleWebhook)
	return app, db
}

func postWebhook(t *testing.T, app *fiber.App, target, body string, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest("POST", target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func reloadMandate(t *testing.T, db *gorm.DB, id string) *models.Mandate {
	t.Helper()
	var m models.Mandate
	require.NoError(t, db.First(&m, "id = ?", id).Error)
	return &m
}

func TestWebhookUnknownProvider(t *testing.T) {
	app, _ := newWebhookApp(t, "")
	resp := postWebhook(t, app, "/api/webhooks/docusign", completedEvent, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestWebhookSignatureRequired(t *testing.T) {
	app, db := newWebhookApp(t, "hook-secret")
	m := seedMandate(t, db, withDocument("doc-hook"))

	resp := postWebhook(t, app, "/api/webhooks/pandadoc", completedEvent, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = postWebhook(t, app, "/api/webhooks/pandadoc", completedEvent, map[string]string{
		"X-PandaDoc-Signature": SignPayload("wrong-secret", []byte(completedEvent)),
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Nil(t, reloadMandate(t, db, m.ID).SignedAt)

	resp = postWebhook(t, app, "/api/webhooks/pandadoc", completedEvent, map[string]string{
		"X-PandaDoc-Signature": SignPayload("hook-secret", []byte(completedEvent)),
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeJSON(t, resp)["received"])
	assert.NotNil(t, reloadMandate(t, db, m.ID).SignedAt)
}

func TestWebhookSignatureInQuery(t *testing.T) {
	app, db := newWebhookApp(t, "hook-secret")
	m := seedMandate(t, db, withDocument("doc-hook"))

	sig := SignPayload("hook-secret", []byte(completedEvent))
	resp := postWebhook(t, app, "/api/webhooks/pandadoc?signature="+sig, completedEvent, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotNil(t, reloadMandate(t, db, m.ID).SignedAt)
}

func TestWebhookIsIdempotent(t *testing.T) {
	app, db := newWebhookApp(t, "")
	m := seedMandate(t, db, withDocument("doc-hook"))

	resp := postWebhook(t, app, "/api/webhooks/pandadoc", completedEvent, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	first := reloadMandate(t, db, m.ID).SignedAt
	require.NotNil(t, first)

	resp = postWebhook(t, app, "/api/webhooks/pandadoc", completedEvent, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, first.Equal(*reloadMandate(t, db, m.ID).SignedAt))
}

func TestWebhookBatchAndIgnoredEvents(t *testing.T) {
	app, db := newWebhookApp(t, "")
	a := seedMandate(t, db, withDocument("doc-a"))
	b := seedMandate(t, db, withDocument("doc-b"))
	c := seedMandate(t, db, withDocument("doc-c"))

	body := `[
		{"event":"document_state_changed","data":{"id":"doc-a","status":"document.completed"}},
		{"event":"document_completed","data":{"id":"doc-b"}},
		{"event":"document_state_changed","data":{"id":"doc-c","status":"document.viewed"}},
		{"event":"document_completed","data":{"id":"doc-unknown"}}
	]`
	resp := postWebhook(t, app, "/api/webhooks/pandadoc", body, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.NotNil(t, reloadMandate(t, db, a.ID).SignedAt)
	assert.NotNil(t, reloadMandate(t, db, b.ID).SignedAt)
	assert.Nil(t, reloadMandate(t, db, c.ID).SignedAt)
}

func TestWebhookMalformedBodyIsAcknowledged(t *testing.T) {
	app, db := newWebhookApp(t, "")
	m := seedMandate(t, db, withDocument("doc-hook"))

	resp := postWebhook(t, app, "/api/webhooks/pandadoc", "{not json", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeJSON(t, resp)["received"])
	assert.Nil(t, reloadMandate(t, db, m.ID).SignedAt)
}

func TestWebhookDatabaseFailureIsAcknowledged(t *testing.T) {
	app, db := newWebhookApp(t, "")
	require.NoError(t, db.Migrator().DropTable(&models.Mandate{}))

	resp := postWebhook(t, app, "/api/webhooks/pandadoc", completedEvent, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeJSON(t, resp)["received"])
}

func TestVerifySignature(t *testing.T) {
	body := []byte(completedEvent)
	sig := SignPayload("s3cret", body)
	assert.Len(t, sig, 64)
	assert.True(t, VerifySignature("s3cret", body, sig))
	assert.True(t, VerifySignature("s3cret", body, strings.ToUpper(sig)))
	assert.False(t, VerifySignature("s3cret", append(body, ' '), sig))
	assert.False(t, VerifySignature("s3cret", body, ""))
}

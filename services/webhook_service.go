// services/webhook_service.go
package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// WebhookProvider knows how to authenticate and decode one provider's callbacks.
type WebhookProvider struct {
	Name            string
	SignatureHeader string
	Secret          string
	// CompletedDocuments extracts the ids of documents reported as signed.
	CompletedDocuments func(body []byte) ([]string, error)
}

// PandaDocWebhook is the provider entry for PandaDoc-style callbacks.
func PandaDocWebhook(secret string) WebhookProvider {
	return WebhookProvider{
		Name:               "pandadoc",
		SignatureHeader:    "X-PandaDoc-Signature",
		Secret:             secret,
		CompletedDocuments: parsePandaDocEvents,
	}
}

type pandaDocEvent struct {
	Event string `json:"event"`
	Type  string `json:"type"`
	Data  struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

// parsePandaDocEvents accepts a single event or a batch array.
func parsePandaDocEvents(body []byte) ([]string, error) {
	var events []pandaDocEvent
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, err
		}
	} else {
		var ev pandaDocEvent
		if err := json.Unmarshal(trimmed, &ev); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	var ids []string
	for _, ev := range events {
		kind := ev.Event
		if kind == "" {
			kind = ev.Type
		}
		completed := (kind == "document_state_changed" && ev.Data.Status == DocumentStatusCompleted) ||
			kind == "document_completed"
		if completed && ev.Data.ID != "" {
			ids = append(ids, ev.Data.ID)
		}
	}
	return ids, nil
}

// SignPayload returns the hex HMAC-SHA256 of body under secret.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares a received hex signature in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := SignPayload(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// WebhookService receives provider callbacks and feeds them to the reconciler.
type WebhookService struct {
	Providers  map[string]WebhookProvider
	Reconciler *Reconciler
	Logger     *zap.Logger
}

func NewWebhookService(reconciler *Reconciler, logger *zap.Logger, providers ...WebhookProvider) *WebhookService {
	registry := make(map[string]WebhookProvider, len(providers))
	for _, p := range providers {
		registry[p.Name] = p
	}
	return &WebhookService{Providers: registry, Reconciler: reconciler, Logger: logger}
}

// HandleWebhook serves POST /api/webhooks/:provider. Once the provider and
// signature are accepted it answers 200, including on processing errors, so
// the provider does not retry.
func (s *WebhookService) HandleWebhook(c *fiber.Ctx) error {
	name := strings.ToLower(c.Params("provider"))
	provider, ok := s.Providers[name]
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "Unbekannter Webhook-Provider")
	}

	body := c.Body()
	if provider.Secret != "" {
		sig := c.Get(provider.SignatureHeader)
		if sig == "" {
			sig = c.Query("signature")
		}
		if sig == "" || !VerifySignature(provider.Secret, body, sig) {
			s.Logger.Warn("🚫 webhook signature rejected",
				zap.String("provider", name),
				zap.Bool("signature_present", sig != ""),
			)
			return jsonError(c, fiber.StatusUnauthorized, "Ungültige Signatur")
		}
	} else {
		s.Logger.Warn("⚠️ webhook secret not configured, accepting unsigned callback", zap.String("provider", name))
	}

	ids, err := provider.CompletedDocuments(body)
	if err != nil {
		s.Logger.Error("❌ malformed webhook payload", zap.String("provider", name), zap.Error(err))
		return c.JSON(fiber.Map{"received": true})
	}

	ctx := c.UserContext()
	for _, docID := range ids {
		marked, err := s.Reconciler.MarkSignedByDocument(ctx, docID)
		switch {
		case errors.Is(err, ErrMandateNotFound):
			s.Logger.Info("webhook for unknown document ignored", zap.String("document_id", docID))
		case err != nil:
			s.Logger.Error("❌ failed to record signature from webhook", zap.String("document_id", docID), zap.Error(err))
		case marked:
			s.Logger.Info("📬 signature recorded from webhook", zap.String("document_id", docID))
		}
	}

	return c.JSON(fiber.Map{"received": true})
}

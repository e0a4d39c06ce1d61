// services/mandate_service.go
package services

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"mandate-portal/models"
	"mandate-portal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	// listReconcileLimit caps provider status checks per list request.
	listReconcileLimit = 25
)

// ESignInfo is the configuration summary exposed to admins. It never carries secrets.
type ESignInfo struct {
	APIURL                  string
	TemplateConfigured      bool
	APIKeyConfigured        bool
	WebhookSecretConfigured bool
	RecipientRole           string
	ArchiveEnabled          bool
}

// MandateService handles intake and the admin mandate views.
type MandateService struct {
	DB            *gorm.DB
	ESign         ESign             // nil when not configured
	Workflow      *DocumentWorkflow // nil when not configured
	Reconciler    *Reconciler
	Archive       DocumentStore // nil when archiving is disabled
	Mailer        Mailer
	PublicBaseURL string
	KanzleiEmail  string
	ESignInfo     ESignInfo
	Clock         clockwork.Clock
	Logger        *zap.Logger
}

// SigningURL is the public page that embeds the provider's signing session.
func SigningURL(baseURL, sessionID string) string {
	return baseURL + "/signing/" + sessionID
}

// CreateMandate accepts the public intake form.
func (s *MandateService) CreateMandate(c *fiber.Ctx) error {
	var req MandateRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, msgInvalidData)
	}

	mandate, err := ValidateMandate(&req, s.Clock.Now())
	if err != nil {
		return validationError(c, err)
	}
	if !*req.HatRechtschutz {
		return jsonError(c, fiber.StatusBadRequest, "Ohne Rechtschutzversicherung kann kein Mandat erstellt werden")
	}

	ctx := c.UserContext()

	var partner *models.Partner
	if tid := strings.TrimSpace(req.PartnerID); tid != "" {
		var p models.Partner
		err := s.DB.WithContext(ctx).Where("tracking_id = ? AND active = ?", tid, true).First(&p).Error
		switch {
		case err == nil:
			partner = &p
			mandate.PartnerID = &p.ID
		case errors.Is(err, gorm.ErrRecordNotFound):
			s.Logger.Info("unknown or inactive partner on intake", zap.String("tracking_id", tid))
		default:
			s.Logger.Error("❌ partner lookup failed", zap.Error(err))
		}
	}

	referrer := strings.TrimSpace(req.Referrer)
	if referrer == "" {
		referrer = c.Get(fiber.HeaderReferer)
	}
	mandate.Referrer = optionalString(referrer)
	mandate.Status = models.MandateStatusNew

	if err := s.DB.WithContext(ctx).Create(mandate).Error; err != nil {
		s.Logger.Error("❌ failed to create mandate", zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, msgInternal)
	}
	s.Logger.Info("✅ mandate created", zap.String("mandate_id", mandate.ID))

	var signingURL string
	if s.Workflow != nil {
		out, err := s.Workflow.Originate(ctx, mandate)
		if err != nil {
			s.Logger.Error("❌ e-sign workflow failed, mandate kept",
				zap.String("mandate_id", mandate.ID),
				zap.Error(err),
			)
		} else if out.SessionID != "" {
			signingURL = SigningURL(s.PublicBaseURL, out.SessionID)
		}
	}

	s.sendIntakeMails(c, mandate, partner, signingURL)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":   true,
		"message":   "Mandat erfolgreich erstellt",
		"mandateId": mandate.ID,
	})
}

func (s *MandateService) sendIntakeMails(c *fiber.Ctx, m *models.Mandate, partner *models.Partner, signingURL string) {
	ctx := c.UserContext()

	if msg, err := ConfirmationMail(m, signingURL); err != nil {
		s.Logger.Error("❌ failed to render confirmation mail", zap.Error(err))
	} else if res := s.Mailer.Send(ctx, msg); !res.OK {
		s.Logger.Warn("⚠️ confirmation mail not delivered", zap.String("mandate_id", m.ID), zap.Error(res.Err))
	}

	if s.KanzleiEmail == "" {
		return
	}
	partnerName := ""
	if partner != nil {
		partnerName = partner.Name
	}
	if msg, err := NotificationMail(s.KanzleiEmail, m, partnerName); err != nil {
		s.Logger.Error("❌ failed to render firm notification", zap.Error(err))
	} else if res := s.Mailer.Send(ctx, msg); !res.OK {
		s.Logger.Warn("⚠️ firm notification not delivered", zap.String("mandate_id", m.ID), zap.Error(res.Err))
	}
}

// ListMandates returns mandates newest first with optional filters.
func (s *MandateService) ListMandates(c *fiber.Ctx) error {
	ctx := c.UserContext()
	q := s.DB.WithContext(ctx).Model(&models.Mandate{})

	if raw := c.Query("status"); raw != "" {
		status, ok := models.ParseMandateStatus(raw)
		if !ok {
			return jsonError(c, fiber.StatusBadRequest, "Ungültiger Status")
		}
		q = q.Where("status = ?", status)
	}
	if pid := c.Query("partnerId"); pid != "" {
		q = q.Where("partner_id = ?", pid)
	}
	if term := strings.TrimSpace(c.Query("q")); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(vorname) LIKE ? OR LOWER(nachname) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		s.Logger.Error("❌ failed to count mandates", zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, msgInternal)
	}

	limit := parseBounded(c.Query("limit"), defaultListLimit, 1, maxListLimit)
	offset := parseBounded(c.Query("offset"), 0, 0, -1)

	var mandates []models.Mandate
	if err := q.Preload("Partner").Order("created_at DESC").Limit(limit).Offset(offset).Find(&mandates).Error; err != nil {
		s.Logger.Error("❌ failed to list mandates", zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, msgInternal)
	}

	if s.Reconciler != nil {
		s.Reconciler.ReconcileAll(ctx, mandates, listReconcileLimit)
	}

	return c.JSON(fiber.Map{
		"mandates": mandates,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetMandate returns a single mandate after checking a pending signature.
func (s *MandateService) GetMandate(c *fiber.Ctx) error {
	m, err := s.findMandate(c, c.Params("id"), true)
	if err != nil {
		return s.mandateLookupError(c, err)
	}

	if s.Reconciler != nil {
		if _, err := s.Reconciler.ReconcileIfPending(c.UserContext(), m); err != nil {
			s.Logger.Warn("⚠️ signature status check failed, showing stored state",
				zap.String("mandate_id", m.ID),
				zap.Error(err),
			)
		}
	}
	return c.JSON(m)
}

// UpdateStatus overwrites the admin status of a mandate.
func (s *MandateService) UpdateStatus(c *fiber.Ctx) error {
	var req StatusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, msgInvalidData)
	}
	status, ok := models.ParseMandateStatus(strings.TrimSpace(req.Status))
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, msgInvalidData)
	}

	m, err := s.findMandate(c, c.Params("id"), false)
	if err != nil {
		return s.mandateLookupError(c, err)
	}

	if err := s.DB.WithContext(c.UserContext()).Model(m).Update("status", status).Error; err != nil {
		s.Logger.Error("❌ failed to update mandate status", zap.String("mandate_id", m.ID), zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, msgInternal)
	}
	if m, err = s.findMandate(c, m.ID, false); err != nil {
		return s.mandateLookupError(c, err)
	}

	s.Logger.Info("🔄 mandate status changed",
		zap.String("mandate_id", m.ID),
		zap.String("status", string(status)),
		zap.Any("admin_id", c.Locals("admin_id")),
	)
	return c.JSON(fiber.Map{"success": true, "mandate": m})
}

// documentID returns the provider document of m or ErrNoDocument.
func documentID(m *models.Mandate) (string, error) {
	if m.ExternalDocumentID == nil || *m.ExternalDocumentID == "" {
		return "", ErrNoDocument
	}
	return *m.ExternalDocumentID, nil
}

// DownloadVollmacht streams the signed power of attorney, from the archive
// when a copy exists and from the provider otherwise.
func (s *MandateService) DownloadVollmacht(c *fiber.Ctx) error {
	m, err := s.findMandate(c, c.Params("id"), false)
	if err != nil {
		return s.mandateLookupError(c, err)
	}
	docID, err := documentID(m)
	if errors.Is(err, ErrNoDocument) {
		return jsonError(c, fiber.StatusNotFound, "Kein Dokument vorhanden")
	}

	ctx := c.UserContext()
	var (
		body        io.Reader
		contentType string
	)

	if m.ArchiveKey != nil && s.Archive != nil {
		rc, ct, err := s.Archive.Get(ctx, *m.ArchiveKey)
		if err == nil {
			body, contentType = rc, ct
		} else {
			s.Logger.Warn("⚠️ archived document unavailable, falling back to provider",
				zap.String("mandate_id", m.ID),
				zap.Error(err),
			)
		}
	}

	if body == nil {
		if s.ESign == nil {
			return jsonError(c, fiber.StatusInternalServerError, "Fehler beim Herunterladen der Vollmacht")
		}
		rc, ct, err := s.ESign.DownloadDocument(ctx, docID)
		if err != nil {
			s.Logger.Error("❌ failed to download document from provider",
				zap.String("mandate_id", m.ID),
				zap.Error(err),
			)
			return jsonError(c, fiber.StatusInternalServerError, "Fehler beim Herunterladen der Vollmacht")
		}
		body, contentType = rc, ct
	}

	if contentType == "" || contentType == "application/octet-stream" {
		contentType = "application/pdf"
	}
	filename := utils.AttachmentFilename("Vollmacht", m.Vorname, m.Nachname)
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.SendStream(body)
}

// SendReminder mails the client a link to the pending signing session.
func (s *MandateService) SendReminder(c *fiber.Ctx) error {
	m, err := s.findMandate(c, c.Params("id"), false)
	if err != nil {
		return s.mandateLookupError(c, err)
	}
	if m.SignedAt != nil {
		return jsonError(c, fiber.StatusBadRequest, "Vollmacht wurde bereits signiert")
	}
	docID, err := documentID(m)
	if errors.Is(err, ErrNoDocument) {
		return jsonError(c, fiber.StatusBadRequest, "Kein E-Sign-Dokument vorhanden. Bitte erstelle zuerst ein Dokument.")
	}

	ctx := c.UserContext()
	sessionID := ""
	if m.ExternalSessionID != nil {
		sessionID = *m.ExternalSessionID
	}
	if sessionID == "" {
		if s.ESign == nil {
			return jsonError(c, fiber.StatusInternalServerError, "Fehler beim Erstellen der Signing-Session")
		}
		session, err := s.ESign.CreateSession(ctx, docID, m.Email)
		if err != nil {
			s.Logger.Error("❌ failed to create signing session", zap.String("mandate_id", m.ID), zap.Error(err))
			return jsonError(c, fiber.StatusInternalServerError, "Fehler beim Erstellen der Signing-Session")
		}
		sessionID = session.ID
		if err := s.DB.WithContext(ctx).Model(m).Update("external_session_id", sessionID).Error; err != nil {
			s.Logger.Error("❌ failed to store signing session", zap.String("mandate_id", m.ID), zap.Error(err))
			return jsonError(c, fiber.StatusInternalServerError, msgInternal)
		}
	}

	msg, err := ReminderMail(m, SigningURL(s.PublicBaseURL, sessionID))
	if err != nil {
		s.Logger.Error("❌ failed to render reminder mail", zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, "Fehler beim Senden der E-Mail")
	}
	if res := s.Mailer.Send(ctx, msg); !res.OK {
		return jsonError(c, fiber.StatusInternalServerError, "Fehler beim Senden der E-Mail")
	}

	return c.JSON(fiber.Map{"success": true, "message": "Reminder-E-Mail erfolgreich gesendet"})
}

// OriginateDocument re-runs the e-sign workflow for a mandate, e.g. after
// the provider failed during intake.
func (s *MandateService) OriginateDocument(c *fiber.Ctx) error {
	if s.Workflow == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "E-Sign ist nicht konfiguriert")
	}
	m, err := s.findMandate(c, c.Params("id"), false)
	if err != nil {
		return s.mandateLookupError(c, err)
	}

	ctx := c.UserContext()
	out, err := s.Workflow.Originate(ctx, m)
	if errors.Is(err, ErrAlreadySigned) {
		return jsonError(c, fiber.StatusBadRequest, "Vollmacht wurde bereits signiert")
	}
	if err != nil {
		s.Logger.Error("❌ e-sign workflow failed", zap.String("mandate_id", m.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Fehler beim Erstellen des Dokuments",
			"cause": err.Error(),
		})
	}

	if out.Completed && s.Reconciler != nil {
		if _, err := s.Reconciler.MarkSigned(ctx, m.ID); err != nil {
			s.Logger.Error("❌ failed to record completed signature", zap.String("mandate_id", m.ID), zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"documentId": out.DocumentID,
		"sessionId":  out.SessionID,
		"completed":  out.Completed,
	})
}

// ESignCheck reports whether the provider integration is configured.
func (s *MandateService) ESignCheck(c *fiber.Ctx) error {
	info := s.ESignInfo
	status := "OK"
	if !info.APIKeyConfigured {
		status = "FEHLER: ESIGN_API_KEY nicht gesetzt"
	} else if !info.TemplateConfigured {
		status = "FEHLER: ESIGN_TEMPLATE_ID nicht gesetzt"
	}
	return c.JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"apiKeyConfigured":        info.APIKeyConfigured,
			"templateConfigured":      info.TemplateConfigured,
			"webhookSecretConfigured": info.WebhookSecretConfigured,
			"archiveEnabled":          info.ArchiveEnabled,
			"recipientRole":           info.RecipientRole,
			"apiUrl":                  info.APIURL,
			"publicBaseUrl":           s.PublicBaseURL,
		},
	})
}

func (s *MandateService) findMandate(c *fiber.Ctx, id string, withPartner bool) (*models.Mandate, error) {
	var m models.Mandate
	q := s.DB.WithContext(c.UserContext())
	if withPartner {
		q = q.Preload("Partner")
	}
	if err := q.First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMandateNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *MandateService) mandateLookupError(c *fiber.Ctx, err error) error {
	if errors.Is(err, ErrMandateNotFound) {
		return jsonError(c, fiber.StatusNotFound, msgMandateNotFound)
	}
	s.Logger.Error("❌ mandate lookup failed", zap.Error(err))
	return jsonError(c, fiber.StatusInternalServerError, msgInternal)
}

// parseBounded parses a query integer clamped to [lo, hi]; hi < 0 means unbounded.
func parseBounded(raw string, def, lo, hi int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n < lo {
		n = lo
	}
	if hi >= 0 && n > hi {
		n = hi
	}
	return n
}

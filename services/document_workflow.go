// services/document_workflow.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mandate-portal/models"
	"mandate-portal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Origination is what a workflow run leaves on the mandate.
type Origination struct {
	DocumentID string
	SessionID  string
	// Completed is set when the provider already reports the document signed.
	Completed bool
}

// DocumentWorkflow creates, sends and opens a signing session for a
// mandate's power of attorney.
type DocumentWorkflow struct {
	DB            *gorm.DB
	ESign         ESign
	TemplateID    string
	RecipientRole string
	ReadyPolicy   utils.RetryPolicy
	SessionPolicy utils.RetryPolicy
	Logger        *zap.Logger
}

func NewDocumentWorkflow(db *gorm.DB, esign ESign, templateID, role string, logger *zap.Logger) *DocumentWorkflow {
	return &DocumentWorkflow{
		DB:            db,
		ESign:         esign,
		TemplateID:    templateID,
		RecipientRole: role,
		ReadyPolicy:   utils.RetryPolicy{MaxAttempts: 10, Delay: time.Second},
		SessionPolicy: utils.RetryPolicy{MaxAttempts: 3, Delay: 2 * time.Second},
		Logger:        logger,
	}
}

// DocumentName is the provider-side title of a mandate's document.
func DocumentName(m *models.Mandate) string {
	return "Vollmacht - " + m.FullName()
}

// Originate runs the workflow for m. A stored document id is reused, so a
// rerun after a partial failure resumes instead of creating a duplicate.
func (w *DocumentWorkflow) Originate(ctx context.Context, m *models.Mandate) (*Origination, error) {
	if w == nil || w.ESign == nil {
		return nil, ErrESignDisabled
	}
	if m.SignedAt != nil {
		return nil, ErrAlreadySigned
	}

	docID, err := w.ensureDocument(ctx, m)
	if err != nil {
		return nil, err
	}
	out := &Origination{DocumentID: docID}

	var status string
	err = w.ReadyPolicy.Do(ctx, func(ctx context.Context, n int) (bool, error) {
		doc, err := w.ESign.GetDocumentStatus(ctx, docID)
		if err != nil {
			return false, err
		}
		status = doc.Status
		switch doc.Status {
		case DocumentStatusDraft, DocumentStatusSent, DocumentStatusCompleted:
			return true, nil
		}
		return false, fmt.Errorf("document %s still %q after attempt %d", docID, doc.Status, n)
	})
	if err != nil {
		if errors.Is(err, utils.ErrRetryExhausted) {
			return out, fmt.Errorf("%w: %w", ErrDocumentNotReady, err)
		}
		return out, err
	}

	if status == DocumentStatusCompleted {
		out.Completed = true
		return out, nil
	}

	if status == DocumentStatusDraft {
		if err := w.ESign.SendDocument(ctx, docID); err != nil {
			return out, err
		}
	}

	var sessionID string
	err = w.SessionPolicy.Do(ctx, func(ctx context.Context, n int) (bool, error) {
		session, err := w.ESign.CreateSession(ctx, docID, m.Email)
		if err != nil {
			w.Logger.Warn("⚠️ signing session attempt failed",
				zap.String("mandate_id", m.ID),
				zap.Int("attempt", n),
				zap.Error(err),
			)
			return false, err
		}
		sessionID = session.ID
		return true, nil
	})
	if err != nil {
		return out, err
	}

	if err := w.DB.WithContext(ctx).Model(&models.Mandate{}).Where("id = ?", m.ID).
		Update("external_session_id", sessionID).Error; err != nil {
		return out, fmt.Errorf("failed to store signing session: %w", err)
	}
	m.ExternalSessionID = &sessionID
	out.SessionID = sessionID

	w.Logger.Info("📄 power of attorney sent for signing",
		zap.String("mandate_id", m.ID),
		zap.String("document_id", docID),
	)
	return out, nil
}

func (w *DocumentWorkflow) ensureDocument(ctx context.Context, m *models.Mandate) (string, error) {
	if m.ExternalDocumentID != nil && *m.ExternalDocumentID != "" {
		return *m.ExternalDocumentID, nil
	}

	doc, err := w.ESign.CreateDocumentFromTemplate(ctx, CreateDocumentRequest{
		Name:         DocumentName(m),
		TemplateUUID: w.TemplateID,
		Recipients: []ESignRecipient{{
			Email:     m.Email,
			FirstName: m.Vorname,
			LastName:  m.Nachname,
			Role:      w.RecipientRole,
		}},
		Metadata: map[string]string{"mandate_id": m.ID},
	})
	if err != nil {
		return "", err
	}

	if err := w.DB.WithContext(ctx).Model(&models.Mandate{}).Where("id = ?", m.ID).
		Update("external_document_id", doc.ID).Error; err != nil {
		return "", fmt.Errorf("failed to store document id: %w", err)
	}
	m.ExternalDocumentID = &doc.ID
	return doc.ID, nil
}

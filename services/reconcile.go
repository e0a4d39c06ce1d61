// services/reconcile.go
package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"mandate-portal/models"
	"mandate-portal/utils"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DocumentStore archives signed PDFs. *utils.DocumentArchive implements it.
type DocumentStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Reconciler records provider-side signature completion on mandates.
// Webhooks, the admin read path and the background worker all go through it.
type Reconciler struct {
	DB            *gorm.DB
	ESign         ESign         // nil when the provider is not configured
	Archive       DocumentStore // nil when archiving is disabled
	PublicBaseURL string
	Clock         clockwork.Clock
	Logger        *zap.Logger
}

// SignedDocumentURL is the authenticated download route for a mandate's power of attorney.
func SignedDocumentURL(baseURL, mandateID string) string {
	return baseURL + "/api/admin/mandate/" + mandateID + "/vollmacht"
}

// MarkSigned stamps signedAt and the download URL once. Later calls are
// no-ops and report false, so the result is the same however often it runs.
func (r *Reconciler) MarkSigned(ctx context.Context, mandateID string) (bool, error) {
	now := r.Clock.Now().UTC()
	res := r.DB.WithContext(ctx).Model(&models.Mandate{}).
		Where("id = ? AND signed_at IS NULL", mandateID).
		Updates(map[string]any{
			"signed_at":           now,
			"signed_document_url": SignedDocumentURL(r.PublicBaseURL, mandateID),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark mandate %s signed: %w", mandateID, res.Error)
	}

	if res.RowsAffected == 0 {
		var count int64
		if err := r.DB.WithContext(ctx).Model(&models.Mandate{}).Where("id = ?", mandateID).Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, ErrMandateNotFound
		}
		return false, nil
	}

	r.Logger.Info("✍️ power of attorney signed", zap.String("mandate_id", mandateID))
	r.archive(ctx, mandateID)
	return true, nil
}

// MarkSignedByDocument resolves the mandate through its provider document id.
func (r *Reconciler) MarkSignedByDocument(ctx context.Context, documentID string) (bool, error) {
	var m models.Mandate
	if err := r.DB.WithContext(ctx).Select("id").Where("external_document_id = ?", documentID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrMandateNotFound
		}
		return false, err
	}
	return r.MarkSigned(ctx, m.ID)
}

// ReconcileIfPending asks the provider about a mandate that has a document
// but no recorded signature, and marks it signed on completion. m is
// refreshed in place when it changes.
func (r *Reconciler) ReconcileIfPending(ctx context.Context, m *models.Mandate) (bool, error) {
	if r.ESign == nil || !m.AwaitingSignature() {
		return false, nil
	}

	doc, err := r.ESign.GetDocumentStatus(ctx, *m.ExternalDocumentID)
	if err != nil {
		return false, err
	}
	if doc.Status != DocumentStatusCompleted {
		return false, nil
	}

	if _, err := r.MarkSigned(ctx, m.ID); err != nil {
		return false, err
	}

	var fresh models.Mandate
	if err := r.DB.WithContext(ctx).First(&fresh, "id = ?", m.ID).Error; err != nil {
		return false, err
	}
	m.SignedAt = fresh.SignedAt
	m.SignedDocumentURL = fresh.SignedDocumentURL
	m.ArchiveKey = fresh.ArchiveKey
	m.UpdatedAt = fresh.UpdatedAt
	return true, nil
}

// ReconcileAll runs ReconcileIfPending over up to limit pending mandates and
// returns how many were newly marked. Provider errors are logged and skipped.
func (r *Reconciler) ReconcileAll(ctx context.Context, mandates []models.Mandate, limit int) int {
	checked, marked := 0, 0
	for i := range mandates {
		if !mandates[i].AwaitingSignature() {
			continue
		}
		if limit > 0 && checked >= limit {
			break
		}
		checked++

		ok, err := r.ReconcileIfPending(ctx, &mandates[i])
		if err != nil {
			r.Logger.Warn("⚠️ signature status check failed",
				zap.String("mandate_id", mandates[i].ID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			marked++
		}
	}
	return marked
}

// PendingMandates lists mandates that wait for a signature, oldest first.
func (r *Reconciler) PendingMandates(ctx context.Context, limit int) ([]models.Mandate, error) {
	var mandates []models.Mandate
	q := r.DB.WithContext(ctx).
		Where("external_document_id IS NOT NULL AND external_document_id <> '' AND signed_at IS NULL").
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&mandates).Error; err != nil {
		return nil, err
	}
	return mandates, nil
}

func (r *Reconciler) archive(ctx context.Context, mandateID string) {
	if r.Archive == nil || r.ESign == nil {
		return
	}

	var m models.Mandate
	if err := r.DB.WithContext(ctx).First(&m, "id = ?", mandateID).Error; err != nil || m.ExternalDocumentID == nil {
		return
	}

	body, contentType, err := r.ESign.DownloadDocument(ctx, *m.ExternalDocumentID)
	if err != nil {
		r.Logger.Error("❌ failed to download signed document for archive", zap.String("mandate_id", mandateID), zap.Error(err))
		return
	}
	defer body.Close()

	key := utils.ArchiveKey(mandateID)
	if err := r.Archive.Put(ctx, key, body, contentType); err != nil {
		r.Logger.Error("❌ failed to archive signed document", zap.String("mandate_id", mandateID), zap.Error(err))
		return
	}

	if err := r.DB.WithContext(ctx).Model(&models.Mandate{}).Where("id = ?", mandateID).
		UpdateColumn("archive_key", key).Error; err != nil {
		r.Logger.Error("❌ failed to record archive key", zap.String("mandate_id", mandateID), zap.Error(err))
		return
	}
	r.Logger.Info("🗄️ signed document archived", zap.String("mandate_id", mandateID), zap.String("key", key))
}

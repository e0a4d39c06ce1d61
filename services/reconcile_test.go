package services

import (
	"context"
	"errors"
	"testing"

	"mandate-portal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withDocument(id string) func(m *models.Mandate) {
	return func(m *models.Mandate) { m.ExternalDocumentID = &id }
}

func TestMarkSignedIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	r := newTestReconciler(db, nil)
	m := seedMandate(t, db, withDocument("doc-1"))
	ctx := context.Background()

	marked, err := r.MarkSigned(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, marked)

	var first models.Mandate
	require.NoError(t, db.First(&first, "id = ?", m.ID).Error)
	require.NotNil(t, first.SignedAt)
	require.NotNil(t, first.SignedDocumentURL)
	assert.Equal(t, "https://meta-klage.de/api/admin/mandate/"+m.ID+"/vollmacht", *first.SignedDocumentURL)

	marked, err = r.MarkSigned(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, marked)

	var second models.Mandate
	require.NoError(t, db.First(&second, "id = ?", m.ID).Error)
	assert.True(t, first.SignedAt.Equal(*second.SignedAt))
}

func TestMarkSignedUnknownMandate(t *testing.T) {
	r := newTestReconciler(newTestDB(t), nil)
	_, err := r.MarkSigned(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrMandateNotFound)

	_, err = r.MarkSignedByDocument(context.Background(), "doc-missing")
	assert.ErrorIs(t, err, ErrMandateNotFound)
}

func TestMarkSignedArchivesDocument(t *testing.T) {
	db := newTestDB(t)
	store := &memoryStore{}
	r := newTestReconciler(db, &fakeESign{DownloadBytes: []byte("%PDF signed copy")})
	r.Archive = store
	m := seedMandate(t, db, withDocument("doc-2"))

	marked, err := r.MarkSignedByDocument(context.Background(), "doc-2")
	require.NoError(t, err)
	assert.True(t, marked)

	key := "vollmachten/" + m.ID + ".pdf"
	assert.Equal(t, []byte("%PDF signed copy"), store.objects[key])

	var stored models.Mandate
	require.NoError(t, db.First(&stored, "id = ?", m.ID).Error)
	require.NotNil(t, stored.ArchiveKey)
	assert.Equal(t, key, *stored.ArchiveKey)
}

func TestReconcileIfPending(t *testing.T) {
	ctx := context.Background()

	t.Run("completed document gets marked", func(t *testing.T) {
		db := newTestDB(t)
		r := newTestReconciler(db, &fakeESign{Statuses: []string{DocumentStatusCompleted}})
		m := seedMandate(t, db, withDocument("doc-3"))

		changed, err := r.ReconcileIfPending(ctx, m)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.NotNil(t, m.SignedAt)
		assert.NotNil(t, m.SignedDocumentURL)
	})

	t.Run("sent document stays pending", func(t *testing.T) {
		db := newTestDB(t)
		r := newTestReconciler(db, &fakeESign{Statuses: []string{DocumentStatusSent}})
		m := seedMandate(t, db, withDocument("doc-4"))

		changed, err := r.ReconcileIfPending(ctx, m)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Nil(t, m.SignedAt)
	})

	t.Run("provider error leaves state untouched", func(t *testing.T) {
		db := newTestDB(t)
		r := newTestReconciler(db, &fakeESign{StatusErr: errors.New("provider down")})
		m := seedMandate(t, db, withDocument("doc-5"))

		changed, err := r.ReconcileIfPending(ctx, m)
		assert.Error(t, err)
		assert.False(t, changed)

		var stored models.Mandate
		require.NoError(t, db.First(&stored, "id = ?", m.ID).Error)
		assert.Nil(t, stored.SignedAt)
	})

	t.Run("mandate without document is skipped", func(t *testing.T) {
		db := newTestDB(t)
		esign := &fakeESign{Statuses: []string{DocumentStatusCompleted}}
		r := newTestReconciler(db, esign)
		m := seedMandate(t, db, nil)

		changed, err := r.ReconcileIfPending(ctx, m)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Zero(t, esign.statusCalls)
	})

	t.Run("no provider configured", func(t *testing.T) {
		db := newTestDB(t)
		r := newTestReconciler(db, nil)
		m := seedMandate(t, db, withDocument("doc-6"))

		changed, err := r.ReconcileIfPending(ctx, m)
		require.NoError(t, err)
		assert.False(t, changed)
	})
}

func TestReconcileAllRespectsLimit(t *testing.T) {
	db := newTestDB(t)
	esign := &fakeESign{Statuses: []string{DocumentStatusCompleted}}
	r := newTestReconciler(db, esign)

	for _, id := range []string{"doc-a", "doc-b", "doc-c"} {
		seedMandate(t, db, withDocument(id))
	}
	seedMandate(t, db, nil)

	pending, err := r.PendingMandates(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	marked := r.ReconcileAll(context.Background(), pending, 2)
	assert.Equal(t, 2, marked)
	assert.Equal(t, 2, esign.statusCalls)

	pending, err = r.PendingMandates(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

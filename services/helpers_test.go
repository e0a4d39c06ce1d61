package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"mandate-portal/models"

	"github.com/glebarez/sqlite"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func seedMandate(t *testing.T, db *gorm.DB, mutate func(m *models.Mandate)) *models.Mandate {
	t.Helper()
	m := &models.Mandate{
		Vorname:               "Max",
		Nachname:              "Mustermann",
		Email:                 "max@example.de",
		Adresse:               "Musterstraße 1",
		PLZ:                   "10115",
		Wohnort:               "Berlin",
		Geburtsdatum:          time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		InstagramAccountDatum: timePtr(time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)),
		Versicherer:           strPtr("ARAG"),
	}
	if mutate != nil {
		mutate(m)
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func seedPartner(t *testing.T, db *gorm.DB, name, trackingID, email string, active bool) *models.Partner {
	t.Helper()
	p := &models.Partner{Name: name, TrackingID: trackingID, Active: true}
	if email != "" {
		p.Email = &email
	}
	require.NoError(t, db.Create(p).Error)
	if !active {
		require.NoError(t, db.Model(p).Update("active", false).Error)
		p.Active = false
	}
	return p
}

// recordingMailer keeps every message; Fail makes Send report an error.
type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	Fail bool
}

func (m *recordingMailer) Send(_ context.Context, msg Message) MailResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return MailResult{Err: errors.New("smtp down")}
	}
	m.sent = append(m.sent, msg)
	return MailResult{OK: true, MessageID: "msg-" + msg.Kind}
}

func (m *recordingMailer) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

// fakeESign scripts provider answers. Statuses are returned in order per
// document; the last one repeats.
type fakeESign struct {
	mu sync.Mutex

	Statuses      []string
	StatusErr     error
	CreateErr     error
	SendErr       error
	SessionFails  int
	DownloadErr   error
	DownloadBytes []byte

	created      []CreateDocumentRequest
	statusCalls  int
	sent         []string
	sessionCalls int
}

func (f *fakeESign) CreateDocumentFromTemplate(_ context.Context, req CreateDocumentRequest) (*ESignDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.created = append(f.created, req)
	return &ESignDocument{ID: "doc-" + req.Metadata["mandate_id"], Name: req.Name, Status: DocumentStatusUploaded}, nil
}

func (f *fakeESign) GetDocumentStatus(_ context.Context, id string) (*ESignDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.StatusErr != nil {
		return nil, f.StatusErr
	}
	status := DocumentStatusDraft
	if len(f.Statuses) > 0 {
		idx := f.statusCalls - 1
		if idx >= len(f.Statuses) {
			idx = len(f.Statuses) - 1
		}
		status = f.Statuses[idx]
	}
	return &ESignDocument{ID: id, Status: status}, nil
}

func (f *fakeESign) SendDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeESign) CreateSession(_ context.Context, id, _ string) (*ESignSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionCalls++
	if f.sessionCalls <= f.SessionFails {
		return nil, &ProviderError{Op: "create session", Status: 409, Body: "document not ready"}
	}
	return &ESignSession{ID: "sess-" + id}, nil
}

func (f *fakeESign) DownloadDocument(_ context.Context, _ string) (io.ReadCloser, string, error) {
	if f.DownloadErr != nil {
		return nil, "", f.DownloadErr
	}
	body := f.DownloadBytes
	if body == nil {
		body = []byte("%PDF-1.7 signed")
	}
	return io.NopCloser(bytes.NewReader(body)), "application/pdf", nil
}

// memoryStore is an in-memory DocumentStore.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memoryStore) Put(_ context.Context, key string, body io.Reader, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = data
	return nil
}

func (s *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, "", errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), "application/pdf", nil
}

func newTestReconciler(db *gorm.DB, esign ESign) *Reconciler {
	r := &Reconciler{
		DB:            db,
		PublicBaseURL: "https://meta-klage.de",
		Clock:         clockwork.NewRealClock(),
		Logger:        zap.NewNop(),
	}
	if esign != nil {
		r.ESign = esign
	}
	return r
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func jsonRequest(method, target string, body any) *http.Request {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func bytesReader(s string) io.Reader { return bytes.NewReader([]byte(s)) }

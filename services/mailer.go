// services/mailer.go
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// Message is one outbound e-mail.
type Message struct {
	To      string
	Subject string
	HTML    string
	// Kind labels the message in logs (confirmation, notification, ...).
	Kind string
}

// MailResult is handed back to every caller; sending never panics or aborts
// the surrounding request.
type MailResult struct {
	OK        bool
	MessageID string
	Err       error
}

// Mailer delivers transactional mail.
type Mailer interface {
	Send(ctx context.Context, msg Message) MailResult
}

// ResendMailer sends via the Resend API.
type ResendMailer struct {
	Client *resend.Client
	From   string
	Logger *zap.Logger
}

func NewResendMailer(apiKey, from string, httpClient *http.Client, logger *zap.Logger) *ResendMailer {
	return &ResendMailer{
		Client: resend.NewCustomClient(httpClient, apiKey),
		From:   from,
		Logger: logger,
	}
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) MailResult {
	if msg.To == "" {
		err := errors.New("mail has no recipient")
		m.Logger.Warn("📭 mail skipped", zap.String("kind", msg.Kind), zap.Error(err))
		return MailResult{Err: err}
	}

	resp, err := m.Client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		m.Logger.Error("❌ mail delivery failed",
			zap.String("kind", msg.Kind),
			zap.String("to", msg.To),
			zap.Error(err),
		)
		return MailResult{Err: fmt.Errorf("send %s mail: %w", msg.Kind, err)}
	}

	m.Logger.Info("📧 mail sent",
		zap.String("kind", msg.Kind),
		zap.String("to", msg.To),
		zap.String("message_id", resp.Id),
	)
	return MailResult{OK: true, MessageID: resp.Id}
}

// LogMailer stands in when no API key is configured: it only logs.
type LogMailer struct {
	Logger *zap.Logger
}

func (m *LogMailer) Send(_ context.Context, msg Message) MailResult {
	m.Logger.Info("📭 mail not sent (no mail provider configured)",
		zap.String("kind", msg.Kind),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return MailResult{OK: true}
}

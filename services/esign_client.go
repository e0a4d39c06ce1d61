// services/esign_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mandate-portal/utils"
)

// Provider document states.
const (
	DocumentStatusUploaded  = "document.uploaded"
	DocumentStatusDraft     = "document.draft"
	DocumentStatusSent      = "document.sent"
	DocumentStatusCompleted = "document.completed"
)

// ESign is the slice of the e-signature provider this service relies on.
type ESign interface {
	CreateDocumentFromTemplate(ctx context.Context, req CreateDocumentRequest) (*ESignDocument, error)
	GetDocumentStatus(ctx context.Context, documentID string) (*ESignDocument, error)
	SendDocument(ctx context.Context, documentID string) error
	CreateSession(ctx context.Context, documentID, recipientEmail string) (*ESignSession, error)
	DownloadDocument(ctx context.Context, documentID string) (io.ReadCloser, string, error)
}

type ESignRecipient struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type CreateDocumentRequest struct {
	Name         string            `json:"name"`
	TemplateUUID string            `json:"template_uuid"`
	Recipients   []ESignRecipient  `json:"recipients"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type ESignDocument struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type ESignSession struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProviderError is a non-2xx answer from the provider.
type ProviderError struct {
	Op     string
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("e-sign %s failed: %d - %s", e.Op, e.Status, e.Body)
}

// ESignClient is a thin HTTP wrapper around the provider's public API.
type ESignClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewESignClient(baseURL, apiKey string, timeout time.Duration) *ESignClient {
	return &ESignClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  utils.NewHTTPClient(timeout),
	}
}

func (c *ESignClient) CreateDocumentFromTemplate(ctx context.Context, req CreateDocumentRequest) (*ESignDocument, error) {
	var doc ESignDocument
	if err := c.do(ctx, "create document", http.MethodPost, "/documents", req, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *ESignClient) GetDocumentStatus(ctx context.Context, documentID string) (*ESignDocument, error) {
	var doc ESignDocument
	if err := c.do(ctx, "get document status", http.MethodGet, "/documents/"+documentID, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SendDocument moves the document to "sent" without any provider-side e-mail.
func (c *ESignClient) SendDocument(ctx context.Context, documentID string) error {
	body := map[string]any{"silent": true}
	return c.do(ctx, "send document", http.MethodPost, "/documents/"+documentID+"/send", body, nil)
}

func (c *ESignClient) CreateSession(ctx context.Context, documentID, recipientEmail string) (*ESignSession, error) {
	body := map[string]any{
		"recipient": recipientEmail,
		"lifetime":  int((7 * 24 * time.Hour).Seconds()),
	}
	var session ESignSession
	if err := c.do(ctx, "create session", http.MethodPost, "/documents/"+documentID+"/session", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// DownloadDocument streams the (signed) PDF. The caller closes the reader.
func (c *ESignClient) DownloadDocument(ctx context.Context, documentID string) (io.ReadCloser, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/documents/"+documentID+"/download", nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("e-sign download document: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", &ProviderError{Op: "download document", Status: resp.StatusCode, Body: string(body)}
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	return resp.Body, contentType, nil
}

func (c *ESignClient) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "API-Key "+c.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *ESignClient) do(ctx context.Context, op, method, path string, payload, out any) error {
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("e-sign %s: %w", op, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &ProviderError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("e-sign %s: failed to decode response: %w", op, err)
	}
	return nil
}

// Package mailer dispatches license keys to customers through the
// SendGrid v3 Mail Send API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/footbar/fulfillment/internal/config"
	"github.com/footbar/fulfillment/internal/fulfill"
	"github.com/footbar/fulfillment/internal/pkg/httpretry"
	"github.com/footbar/fulfillment/internal/pkg/logger"
)

// Mailer sends key-delivery emails via SendGrid.
type Mailer struct {
	apiKey    string
	baseURL   string
	fromEmail string
	fromName  string
	templates *TemplateStore
	client    httpretry.HTTPDoer
}

// New creates a SendGrid mailer.
func New(cfg config.SendGridConfig, templates *TemplateStore) *Mailer {
	return &Mailer{
		apiKey:    cfg.APIKey,
		baseURL:   cfg.BaseURL,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		templates: templates,
		client: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 2),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (m *Mailer) SetHTTPClient(client httpretry.HTTPDoer) {
	m.client = client
}

// SendKey renders the notification template and delivers the key. An
// error here aborts the remaining order upstream, so it must only be
// returned when the email truly did not go out.
func (m *Mailer) SendKey(ctx context.Context, n fulfill.Notification) error {
	if m.apiKey == "" {
		return fmt.Errorf("SendGrid API key not configured")
	}

	tplName := n.Template
	if tplName == "" {
		tplName = "activation"
	}
	bindings := map[string]any{
		"key": n.Key,
		"sku": n.Sku,
	}
	if n.Title != "" {
		bindings["title"] = n.Title
	}
	if n.OrderID != "" {
		bindings["order_id"] = n.OrderID
	}
	subject, html, err := m.templates.Render(tplName, n.Language, bindings)
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	// The dispatch id comes back on SendGrid event webhooks, which is the
	// only way to tie a bounce or block back to a specific key send.
	dispatchID := uuid.NewString()
	payload := map[string]interface{}{
		"personalizations": []map[string]interface{}{
			{
				"to": []map[string]string{{"email": n.Email}},
				"custom_args": map[string]string{
					"sku":         n.Sku,
					"order_id":    n.OrderID,
					"dispatch_id": dispatchID,
				},
			},
		},
		"from":    map[string]string{"email": m.fromEmail, "name": m.fromName},
		"subject": subject,
		"content": []map[string]string{{"type": "text/html", "value": html}},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", m.baseURL+"/mail/send", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("SendGrid error %d: %s", resp.StatusCode, string(body))
	}

	logger.Info("key notification sent",
		"email", n.Email,
		"sku", n.Sku,
		"key", logger.RedactKey(n.Key),
		"template", tplName,
		"language", n.Language,
		"dispatch_id", dispatchID)
	return nil
}

package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/footbar/fulfillment/internal/config"
	"github.com/footbar/fulfillment/internal/fulfill"
)

func TestRenderFrench(t *testing.T) {
	store := NewTemplateStore("fr")

	subject, html, err := store.Render("activation", "fr", map[string]any{
		"key": "AAAA-BBBB", "title": "Meteor", "order_id": "ord-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Votre clé d'activation", subject)
	assert.Contains(t, html, "AAAA-BBBB")
	assert.Contains(t, html, "pour Meteor")
	assert.Contains(t, html, "Référence commande : ord-1")
}

func TestRenderOmitsEmptyOrderID(t *testing.T) {
	store := NewTemplateStore("fr")

	_, html, err := store.Render("activation", "en", map[string]any{"key": "AAAA-BBBB"})
	require.NoError(t, err)
	assert.NotContains(t, html, "Order reference")
}

func TestRenderLanguageFallback(t *testing.T) {
	store := NewTemplateStore("fr")

	// No German template: falls back to the default language.
	subject, _, err := store.Render("activation", "de", map[string]any{"key": "K"})
	require.NoError(t, err)
	assert.Equal(t, "Votre clé d'activation", subject)
}

func TestRenderUnknownTemplate(t *testing.T) {
	store := NewTemplateStore("fr")
	_, _, err := store.Render("nonexistent", "fr", nil)
	assert.Error(t, err)
}

func TestLoadDirOverride(t *testing.T) {
	dir := t.TempDir()
	content := "Subject: Clé {{ sku }}\n<p>{{ key }}</p>"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "activation.fr.html"), []byte(content), 0644))

	store := NewTemplateStore("fr")
	require.NoError(t, store.LoadDir(dir))

	subject, html, err := store.Render("activation", "fr", map[string]any{
		"key": "AAAA", "sku": "METEOR-APP",
	})
	require.NoError(t, err)
	assert.Equal(t, "Clé METEOR-APP", subject)
	assert.Equal(t, "<p>AAAA</p>", html)
}

func TestLoadDirMissingIsFine(t *testing.T) {
	store := NewTemplateStore("fr")
	assert.NoError(t, store.LoadDir("/nonexistent/templates"))
}

func TestSendKey(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := New(config.SendGridConfig{
		APIKey: "sg-key", BaseURL: srv.URL,
		FromEmail: "help@footbar.com", FromName: "Footbar",
		TimeoutSeconds: 5,
	}, NewTemplateStore("fr"))
	m.SetHTTPClient(&http.Client{})

	err := m.SendKey(context.Background(), fulfill.Notification{
		Email: "jo@example.com", Language: "fr", Template: "activation",
		Sku: "METEOR-APP", Key: "AAAA-BBBB", OrderID: "ord-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "Votre clé d'activation", got["subject"])
	from := got["from"].(map[string]any)
	assert.Equal(t, "help@footbar.com", from["email"])
	content := got["content"].([]any)[0].(map[string]any)
	assert.Contains(t, content["value"], "AAAA-BBBB")
}

func TestSendKeyUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad request"}]}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	m := New(config.SendGridConfig{APIKey: "sg-key", BaseURL: srv.URL, TimeoutSeconds: 5},
		NewTemplateStore("fr"))
	m.SetHTTPClient(&http.Client{})

	err := m.SendKey(context.Background(), fulfill.Notification{
		Email: "jo@example.com", Key: "K",
	})
	assert.Error(t, err)
}

func TestSendKeyRequiresAPIKey(t *testing.T) {
	m := New(config.SendGridConfig{}, NewTemplateStore("fr"))
	err := m.SendKey(context.Background(), fulfill.Notification{Email: "jo@example.com"})
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"

storage:
  type: "local"
  local_path: "./test-data"

sendgrid:
  api_key: "test-api-key"
  from_email: "help@footbar.com"
  timeout_seconds: 45

decathlon:
  enabled: true
  base_url: "https://marketplace.decathlon.example"
  api_key: "deca-key"
  lookback_days: 3

fulfillment:
  default_language: "fr"
  routes:
    - sku: "METEOR-APP"
      pool: "meteor"
      template: "activation"
    - pattern: "METEOR-*"
      pool: "meteor"
      template: "activation"
  bundle_skus: ["METEOR-BUNDLE"]
  suppressed_with_bundle: ["METEOR-SUB-1Y"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "./test-data", cfg.Storage.LocalPath)
	assert.Equal(t, "test-api-key", cfg.SendGrid.APIKey)
	assert.Equal(t, 45, cfg.SendGrid.TimeoutSeconds)
	assert.True(t, cfg.Decathlon.Enabled)
	assert.Equal(t, 3, cfg.Decathlon.LookbackDays)
	require.Len(t, cfg.Fulfillment.Routes, 2)
	assert.Equal(t, "meteor", cfg.Fulfillment.Routes[0].Pool)
	assert.Equal(t, []string{"METEOR-BUNDLE"}, cfg.Fulfillment.BundleSkus)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
server: {}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "https://api.sendgrid.com/v3", cfg.SendGrid.BaseURL)
	assert.Equal(t, "help@footbar.com", cfg.SendGrid.FromEmail)
	assert.Equal(t, "fr", cfg.Fulfillment.DefaultLanguage)
	assert.Equal(t, 7, cfg.Decathlon.LookbackDays)
	assert.Equal(t, 30, cfg.Redis.LockTTLSeconds)
}

func TestLoadRouteValidation(t *testing.T) {
	path := writeConfig(t, `
fulfillment:
  routes:
    - pool: "meteor"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sku or pattern")
}

func TestLoadMissingPool(t *testing.T) {
	path := writeConfig(t, `
fulfillment:
  routes:
    - sku: "METEOR-APP"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool required")
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
sendgrid:
  api_key: "from-file"
`)

	t.Setenv("SENDGRID_API_KEY", "from-env")
	t.Setenv("STORAGE_S3_BUCKET", "footbar-fulfillment")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.SendGrid.APIKey)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "footbar-fulfillment", cfg.Storage.S3Bucket)
}

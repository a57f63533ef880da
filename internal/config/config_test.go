package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HossEz/stromtracker/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, ":8087", cfg.Server.Listen)
	assert.Equal(t, "15s", cfg.Server.ReadTimeout)
	assert.Equal(t, "30s", cfg.Server.WriteTimeout)
	assert.Equal(t, "https://www.hvakosterstrommen.no/api/v1/prices", cfg.Pricing.BaseURL)
	assert.Equal(t, "10s", cfg.Pricing.Timeout)
	assert.Equal(t, "Europe/Oslo", cfg.Pricing.Timezone)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "#strom", cfg.Alerts.Slack.Channel)
	assert.False(t, cfg.Alerts.Slack.Enabled)
	assert.False(t, cfg.Alerts.Webhook.Enabled)
	assert.NotEmpty(t, cfg.Storage.Path)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
storage:
  path: /tmp/strom-test.db
server:
  listen: ":9000"
pricing:
  timezone: UTC
alerts:
  slack:
    enabled: true
    webhook_url: https://hooks.slack.com/services/T/B/X
logging:
  level: debug
  format: text
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/strom-test.db", cfg.Storage.Path)
	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, "UTC", cfg.Pricing.Timezone)
	assert.True(t, cfg.Alerts.Slack.Enabled)
	assert.Equal(t, "https://hooks.slack.com/services/T/B/X", cfg.Alerts.Slack.WebhookURL)
	// Unset keys keep their defaults.
	assert.Equal(t, "15s", cfg.Server.ReadTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

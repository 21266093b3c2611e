package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CHAT_BOT_TOKEN", "bot-token")
	t.Setenv("TICKETING_API_URL", "https://tickets.example.com/api/")
	t.Setenv("TICKETING_CLIENT_ID", "client")
	t.Setenv("TICKETING_CLIENT_SECRET", "secret")
	t.Setenv("WEBHOOK_USERNAME", "hook")
	t.Setenv("WEBHOOK_PASSWORD", "hook-pass")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://tickets.example.com/api", cfg.Ticketing.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Sync.DedupWindow())
	assert.Equal(t, 60*time.Second, cfg.Sync.PollInterval())
	assert.Equal(t, 15*time.Second, cfg.Outbound.Timeout())
	assert.Equal(t, time.Second, cfg.Outbound.RetryBaseDelay())
	assert.Equal(t, 10*time.Second, cfg.Outbound.RateLimitFallback())
	assert.Equal(t, 3, cfg.Outbound.MaxRetries)
	assert.Equal(t, "memory", cfg.Sync.DedupBackend)
	assert.Empty(t, cfg.Sync.StatusWhitelist)
	assert.Zero(t, cfg.Sync.TrackingTTL())
	assert.Empty(t, cfg.Events.AMQPURL)
	assert.Equal(t, "ticket-bridge.events", cfg.Events.Exchange)
	assert.Equal(t, LoggerConfig{Level: "info", Format: "json", Service: "chat-ticket-bridge", Env: "development"}, cfg.Logger)
}

func TestLoadStatusWhitelist(t *testing.T) {
	setRequired(t)
	t.Setenv("SYNC_STATUS_WHITELIST", " Assigned , in progress,,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Assigned", "in progress"}, cfg.Sync.StatusWhitelist)
}

func TestValidateReportsMissingCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("CHAT_BOT_TOKEN", "")
	t.Setenv("WEBHOOK_PASSWORD", "")

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHAT_BOT_TOKEN")
	assert.Contains(t, err.Error(), "WEBHOOK_PASSWORD")
}

func TestValidateRedisBackendNeedsAddr(t *testing.T) {
	setRequired(t)
	t.Setenv("SYNC_DEDUP_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_DB", "zero")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadExplicitEnvFile(t *testing.T) {
	setRequired(t)
	t.Setenv("SYNC_ALIAS_FILE", "")
	require.NoError(t, os.Unsetenv("SYNC_ALIAS_FILE"))

	path := filepath.Join(t.TempDir(), "bridge.env")
	require.NoError(t, os.WriteFile(path, []byte("SYNC_ALIAS_FILE=/etc/bridge/aliases.yaml\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/etc/bridge/aliases.yaml", cfg.Sync.AliasFile)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

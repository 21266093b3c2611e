package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/ticket-bridge/internal/config"
)

func TestNewLoggerLevels(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "WARN", Format: "console", Service: "bridge", Env: "test"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	fallback, err := NewLogger(config.LoggerConfig{Level: "chatty"})
	require.NoError(t, err)
	assert.True(t, fallback.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, fallback.Core().Enabled(zapcore.DebugLevel))
}

func TestMetricsSnapshotIsACopy(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/health", "GET", 200, 3*time.Millisecond)
	m.RecordRequest("/health", "GET", 503, 4*time.Millisecond)
	m.RecordNotification("ticket_assigned")
	m.RecordSuppressed("duplicate_status")
	m.RecordError("/ticket/:ticketId", "GET", "NOT_FOUND")

	snap := m.Snapshot()
	snap.Notifications["ticket_assigned"] = 99

	again := m.Snapshot()
	assert.Equal(t, int64(1), again.Notifications["ticket_assigned"])
	assert.Equal(t, int64(1), again.Suppressed["duplicate_status"])
	assert.Len(t, again.Requests, 2)
	assert.Equal(t, int64(7), again.LatencyMs["/health|GET"])
	assert.Len(t, again.Errors, 1)

	var nilMetrics *Metrics
	nilMetrics.RecordSuppressed("x")
	assert.Empty(t, nilMetrics.Snapshot().Suppressed)
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	metrics := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), metrics))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req := httptest.NewRequest(fiber.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "abc")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Header.Get("X-Request-ID"))
	assert.Equal(t, int64(2), metrics.Snapshot().Requests["/ping|GET|200"])
}

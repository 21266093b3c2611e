package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/api/dto"
	apperrors "github.com/spec-kit/ticket-bridge/pkg/util"
)

// CacheWarmer refreshes the user directory snapshot.
type CacheWarmer interface {
	WarmUserCache(ctx context.Context) (int, error)
}

// PollControl starts the background poll loop.
type PollControl interface {
	Start() bool
	Running() bool
}

// InitializeHandler warms caches and starts background polling.
type InitializeHandler struct {
	users       CacheWarmer
	poller      PollControl
	pollDefault bool
	logger      *zap.Logger
}

// NewInitializeHandler constructs handler. pollDefault decides whether the
// poller is started when the request does not say.
func NewInitializeHandler(users CacheWarmer, poller PollControl, pollDefault bool, logger *zap.Logger) *InitializeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InitializeHandler{users: users, poller: poller, pollDefault: pollDefault, logger: logger}
}

// Initialize GET /initialize.
func (h *InitializeHandler) Initialize(c *fiber.Ctx) error {
	count, err := h.users.WarmUserCache(c.UserContext())
	if err != nil {
		return apperrors.NewUpstreamError("ticketing", err)
	}

	running := false
	if h.poller != nil {
		if c.QueryBool("poll", h.pollDefault) && h.poller.Start() {
			h.logger.Info("poller started from initialize")
		}
		running = h.poller.Running()
	}
	return c.JSON(dto.InitializeResponse{Status: "ok", UsersCached: count, PollerRunning: running})
}

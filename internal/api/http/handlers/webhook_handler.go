package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/api/dto"
	"github.com/spec-kit/ticket-bridge/internal/service"
	"github.com/spec-kit/ticket-bridge/internal/worker"
	apperrors "github.com/spec-kit/ticket-bridge/pkg/util"
)

const retryAfter = 5 * time.Second

// Intake accepts webhook deliveries for asynchronous processing.
type Intake interface {
	AcceptChatEvent(ev service.ChatEvent) error
	AcceptTicketEvent(ctx context.Context, payload map[string]any) (service.WebhookStatus, error)
}

// WebhookHandler serves the chat and ticketing webhooks.
type WebhookHandler struct {
	intake   Intake
	validate *validator.Validate
	logger   *zap.Logger
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(intake Intake, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{intake: intake, validate: validator.New(), logger: logger}
}

// ChatEvent POST /webhook/chat-event.
func (h *WebhookHandler) ChatEvent(c *fiber.Ctx) error {
	var req dto.ChatEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validate.Struct(req); err != nil {
		return apperrors.NewValidationError("invalid chat event", fieldErrors(err))
	}
	err := h.intake.AcceptChatEvent(service.ChatEvent{
		Resource:    req.Resource,
		Event:       req.Event,
		DataID:      req.Data.ID,
		RoomID:      req.Data.RoomID,
		PersonEmail: req.Data.PersonEmail,
	})
	if err != nil {
		return h.queueError(err)
	}
	return c.JSON(dto.WebhookResponse{Status: string(service.WebhookOK)})
}

// TicketEvent POST /webhook/ticket-event.
func (h *WebhookHandler) TicketEvent(c *fiber.Ctx) error {
	var payload map[string]any
	if err := c.App().Config().JSONDecoder(c.Body(), &payload); err != nil || payload == nil {
		return apperrors.NewValidationError("body must be a JSON object", nil)
	}
	status, err := h.intake.AcceptTicketEvent(c.UserContext(), payload)
	if err != nil {
		return h.queueError(err)
	}
	return c.JSON(dto.WebhookResponse{Status: string(status)})
}

// fieldErrors maps each failing field to the rule it broke.
func fieldErrors(err error) map[string]any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[fe.Namespace()] = fe.Tag()
	}
	return details
}

func (h *WebhookHandler) queueError(err error) error {
	if errors.Is(err, worker.ErrQueueFull) || errors.Is(err, worker.ErrPoolClosed) {
		h.logger.Warn("webhook rejected", zap.Error(err))
		return apperrors.NewBusy(err, retryAfter)
	}
	return apperrors.ToDomainError(err)
}

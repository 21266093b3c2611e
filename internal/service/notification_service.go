package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/events"
	"github.com/spec-kit/ticket-bridge/internal/observability"
)

// NotificationService turns bridge events into chat messages.
type NotificationService struct {
	dispatcher events.Dispatcher
	chat       ChatSender
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, chat ChatSender, metrics *observability.Metrics, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		chat:       chat,
		metrics:    metrics,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketLinked, n.handleTicketLinked)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketNoteAdded, n.handleTicketNoteAdded)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketCreatedPayload)
	text := fmt.Sprintf("✅ Ticket **%s** has been created for %s.", payload.DisplayID, payload.Requester)
	if payload.DisplayID != event.TicketID {
		text = fmt.Sprintf("✅ Ticket **%s** (id %s) has been created for %s.", payload.DisplayID, event.TicketID, payload.Requester)
	}
	if payload.Status != "" {
		text += fmt.Sprintf(" Status: **%s**.", payload.Status)
	}
	text += " Reply in this room to add a note."
	return n.send(ctx, event, text)
}

func (n *NotificationService) handleTicketLinked(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketLinkedPayload)
	text := fmt.Sprintf("🔗 Ticket **%s** is now followed in this room.", payload.DisplayID)
	if payload.Status != "" {
		text += fmt.Sprintf(" Current status: **%s**.", payload.Status)
	}
	return n.send(ctx, event, text)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketStatusChangedPayload)
	old := payload.OldStatus
	if old == "" {
		old = "unknown"
	}
	return n.send(ctx, event, fmt.Sprintf("🔄 Ticket **%s** status changed: %s → **%s**", event.TicketID, old, payload.NewStatus))
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketAssignedPayload)
	return n.send(ctx, event, fmt.Sprintf("👤 Ticket **%s** is assigned to **%s**", event.TicketID, payload.NewAssignee))
}

func (n *NotificationService) handleTicketNoteAdded(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketNoteAddedPayload)
	header := fmt.Sprintf("💬 New note on ticket **%s**", event.TicketID)
	if payload.Author != "" {
		header += " from " + payload.Author
	}
	return n.send(ctx, event, header+":\n\n"+quote(payload.Note))
}

func (n *NotificationService) send(ctx context.Context, event events.Event, text string) error {
	if err := n.chat.SendText(ctx, event.RoomID, text); err != nil {
		n.logger.Error("chat notification failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.String("room_id", event.RoomID),
			zap.Error(err))
		return err
	}
	n.metrics.RecordNotification(string(event.Type))
	n.logger.Debug("chat notification sent",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("room_id", event.RoomID))
	return nil
}

func quote(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

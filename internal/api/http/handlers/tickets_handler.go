package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bridge/internal/api/dto"
	"github.com/spec-kit/ticket-bridge/internal/service"
	"github.com/spec-kit/ticket-bridge/internal/ticketing"
	apperrors "github.com/spec-kit/ticket-bridge/pkg/util"
)

// TicketReader exposes tracked and live ticket views.
type TicketReader interface {
	RoomTickets(roomID string) []service.TicketView
	LiveTicket(ctx context.Context, ticketID string) (service.TicketView, error)
}

// TicketsHandler serves ticket lookups.
type TicketsHandler struct {
	tickets TicketReader
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets TicketReader) *TicketsHandler {
	return &TicketsHandler{tickets: tickets}
}

// RoomTickets GET /tickets/:roomId.
func (h *TicketsHandler) RoomTickets(c *fiber.Ctx) error {
	roomID := strings.TrimSpace(c.Params("roomId"))
	if roomID == "" {
		return apperrors.NewValidationError("roomId required", nil)
	}
	views := h.tickets.RoomTickets(roomID)
	items := make([]dto.TicketStateResponse, 0, len(views))
	for _, v := range views {
		items = append(items, ticketState(v))
	}
	return c.JSON(fiber.Map{"data": dto.RoomTicketsResponse{RoomID: roomID, Tickets: items}})
}

// LiveTicket GET /ticket/:ticketId.
func (h *TicketsHandler) LiveTicket(c *fiber.Ctx) error {
	ticketID := strings.TrimSpace(c.Params("ticketId"))
	if ticketID == "" {
		return apperrors.NewValidationError("ticketId required", nil)
	}
	view, err := h.tickets.LiveTicket(c.UserContext(), ticketID)
	if err != nil {
		if errors.Is(err, ticketing.ErrNotFound) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return apperrors.NewUpstreamError("ticketing", err)
	}
	return c.JSON(fiber.Map{"data": ticketState(view)})
}

func ticketState(v service.TicketView) dto.TicketStateResponse {
	resp := dto.TicketStateResponse{
		ID:       v.ID,
		RoomID:   v.RoomID,
		Status:   v.Status,
		Assignee: v.Assignee,
	}
	if !v.LastCheckedAt.IsZero() {
		checked := v.LastCheckedAt.UTC()
		resp.LastCheckedAt = &checked
	}
	return resp
}

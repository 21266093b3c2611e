package service

import (
	"context"

	"github.com/spec-kit/ticket-bridge/internal/domain"
	"github.com/spec-kit/ticket-bridge/internal/ticketing"
)

// ChatSender delivers messages to rooms.
type ChatSender interface {
	SendText(ctx context.Context, roomID, markdown string) error
	SendCard(ctx context.Context, roomID, fallback string, card map[string]any) error
}

// ChatAPI is the chat platform collaborator.
type ChatAPI interface {
	ChatSender
	GetMessage(ctx context.Context, messageID string) (domain.ChatMessage, error)
	GetFormSubmission(ctx context.Context, actionID string) (domain.FormSubmission, error)
}

// TicketingAPI is the ticketing system collaborator.
type TicketingAPI interface {
	StatusLookup
	BaseURL() string
	CreateTicket(ctx context.Context, in ticketing.CreateTicketInput) (domain.CreatedTicket, error)
	GetTicket(ctx context.Context, ticketID string) (map[string]any, error)
	AddNote(ctx context.Context, ticketID, text, author string) error
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// JobRunner executes work detached from the triggering request.
type JobRunner interface {
	Submit(name string, job func(ctx context.Context)) error
}

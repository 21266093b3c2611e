package dto

import (
	"time"
)

// ChatEventRequest is the chat platform webhook envelope.
type ChatEventRequest struct {
	ID       string        `json:"id"`
	Resource string        `json:"resource" validate:"required"`
	Event    string        `json:"event"`
	Data     ChatEventData `json:"data" validate:"required"`
}

// ChatEventData identifies the resource the event is about.
type ChatEventData struct {
	ID          string `json:"id" validate:"required"`
	RoomID      string `json:"roomId"`
	PersonEmail string `json:"personEmail" validate:"omitempty,email"`
}

// WebhookResponse is the synchronous answer to a webhook delivery.
type WebhookResponse struct {
	Status string `json:"status"`
}

// TicketStateResponse describes a tracked or live ticket.
type TicketStateResponse struct {
	ID            string     `json:"id"`
	RoomID        string     `json:"room_id,omitempty"`
	Status        string     `json:"status,omitempty"`
	Assignee      string     `json:"assignee,omitempty"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
}

// RoomTicketsResponse lists the tickets followed in a room.
type RoomTicketsResponse struct {
	RoomID  string                `json:"room_id"`
	Tickets []TicketStateResponse `json:"tickets"`
}

// InitializeResponse reports the warm-up result.
type InitializeResponse struct {
	Status        string `json:"status"`
	UsersCached   int    `json:"users_cached"`
	PollerRunning bool   `json:"poller_running"`
}

package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketLinked        EventType = "ticket_linked"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketNoteAdded     EventType = "ticket_note_added"
)

// AllEventTypes lists every event the bridge emits.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketLinked,
	EventTicketStatusChanged,
	EventTicketAssigned,
	EventTicketNoteAdded,
}

// Event is emitted by the bridge whenever a room should hear about a ticket.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	RoomID    string    `json:"room_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	DisplayID string `json:"display_id"`
	Status    string `json:"status,omitempty"`
	Requester string `json:"requester"`
}

// TicketLinkedPayload payload.
type TicketLinkedPayload struct {
	DisplayID string `json:"display_id"`
	Status    string `json:"status,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	OldAssignee string `json:"old_assignee,omitempty"`
	NewAssignee string `json:"new_assignee"`
}

// TicketNoteAddedPayload payload.
type TicketNoteAddedPayload struct {
	Author string `json:"author,omitempty"`
	Note   string `json:"note"`
}

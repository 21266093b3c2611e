package domain

import "time"

// TicketState is the last-known view of a ticket held by the bridge. Empty
// Status or Assignee means the value has not been observed yet.
type TicketState struct {
	ID            string
	RoomID        string
	Status        string
	Assignee      string
	LastCheckedAt time.Time
	// WebhookSeq counts webhook observations applied to the ticket.
	WebhookSeq uint64
}

// TicketUpdate is a partial update; nil fields are left unchanged.
type TicketUpdate struct {
	Status    *string
	Assignee  *string
	CheckedAt time.Time
	// FromWebhook advances WebhookSeq.
	FromWebhook bool
}

// CreatedTicket is what the ticketing system returns for a new ticket.
type CreatedTicket struct {
	ID     string
	Number string
	Status string
}

// DisplayID prefers the human-facing ticket number when the ticketing
// system assigns one.
func (t CreatedTicket) DisplayID() string {
	if t.Number != "" {
		return t.Number
	}
	return t.ID
}

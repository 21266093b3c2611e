package repository

import (
	"sync"
	"time"

	"github.com/spec-kit/ticket-bridge/internal/domain"
)

// CorrelationRepository associates chat rooms with tickets and keeps the
// last-known state of every tracked ticket.
type CorrelationRepository interface {
	// LinkTicketToRoom adds ticketID to room. A ticket already linked to a
	// room stays where it is; the return value reports whether it was linked here.
	LinkTicketToRoom(roomID, ticketID string) bool
	TicketsForRoom(roomID string) []string
	RoomForTicket(ticketID string) (string, bool)
	GetTicketState(ticketID string) (domain.TicketState, bool)
	UpsertTicketState(ticketID string, update domain.TicketUpdate) domain.TicketState
	TrackedTicketIDs() []string
	EvictUnchecked(before time.Time) []string
}

type memoryCorrelationRepository struct {
	mu      sync.RWMutex
	rooms   map[string][]string
	owner   map[string]string
	tickets map[string]*domain.TicketState
}

// NewCorrelationRepository returns an empty in-memory repository. State does
// not survive restarts.
func NewCorrelationRepository() CorrelationRepository {
	return &memoryCorrelationRepository{
		rooms:   make(map[string][]string),
		owner:   make(map[string]string),
		tickets: make(map[string]*domain.TicketState),
	}
}

func (r *memoryCorrelationRepository) LinkTicketToRoom(roomID, ticketID string) bool {
	if roomID == "" || ticketID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.owner[ticketID]; ok {
		return current == roomID
	}
	r.owner[ticketID] = roomID
	r.rooms[roomID] = append(r.rooms[roomID], ticketID)
	return true
}

func (r *memoryCorrelationRepository) TicketsForRoom(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.rooms[roomID]...)
}

func (r *memoryCorrelationRepository) RoomForTicket(ticketID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.owner[ticketID]
	return roomID, ok
}

func (r *memoryCorrelationRepository) GetTicketState(ticketID string) (domain.TicketState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.tickets[ticketID]
	if !ok {
		return domain.TicketState{}, false
	}
	out := *state
	out.RoomID = r.owner[ticketID]
	return out, true
}

func (r *memoryCorrelationRepository) UpsertTicketState(ticketID string, update domain.TicketUpdate) domain.TicketState {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.tickets[ticketID]
	if !ok {
		state = &domain.TicketState{ID: ticketID}
		r.tickets[ticketID] = state
	}
	if update.Status != nil {
		state.Status = *update.Status
	}
	if update.Assignee != nil {
		state.Assignee = *update.Assignee
	}
	if !update.CheckedAt.IsZero() {
		state.LastCheckedAt = update.CheckedAt
	}
	if update.FromWebhook {
		state.WebhookSeq++
	}
	out := *state
	out.RoomID = r.owner[ticketID]
	return out
}

func (r *memoryCorrelationRepository) TrackedTicketIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.tickets))
	for _, ticketIDs := range r.rooms {
		for _, id := range ticketIDs {
			if _, ok := r.tickets[id]; ok {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// EvictUnchecked forgets tickets whose last check is older than before,
// together with their room links. Rooms left without tickets are removed.
func (r *memoryCorrelationRepository) EvictUnchecked(before time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for id, state := range r.tickets {
		if state.LastCheckedAt.Before(before) {
			evicted = append(evicted, id)
			delete(r.tickets, id)
		}
	}
	for _, id := range evicted {
		roomID, ok := r.owner[id]
		if !ok {
			continue
		}
		delete(r.owner, id)
		remaining := r.rooms[roomID][:0]
		for _, other := range r.rooms[roomID] {
			if other != id {
				remaining = append(remaining, other)
			}
		}
		if len(remaining) == 0 {
			delete(r.rooms, roomID)
		} else {
			r.rooms[roomID] = remaining
		}
	}
	return evicted
}

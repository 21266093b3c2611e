package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/dedup"
	"github.com/spec-kit/ticket-bridge/internal/domain"
	"github.com/spec-kit/ticket-bridge/internal/events"
	"github.com/spec-kit/ticket-bridge/internal/observability"
	"github.com/spec-kit/ticket-bridge/internal/repository"
)

// Dedup kinds used by the reconciler.
const (
	KindStatus   = "status"
	KindAssignee = "assignee"
	KindNote     = "note"
)

// ReconcileOutcome summarizes what one observation did.
type ReconcileOutcome struct {
	Discarded       bool
	Stale           bool
	StatusChanged   bool
	AssigneeChanged bool
	Notified        []events.EventType
	Suppressed      []string
}

// Reconciler applies observations from webhooks and polls to the tracked
// ticket state and decides which changes the room hears about. All
// observations of one ticket are applied one at a time.
type Reconciler struct {
	store      repository.CorrelationRepository
	dedup      *dedup.Window
	resolver   *StatusResolver
	dispatcher events.Dispatcher
	whitelist  map[string]struct{}
	metrics    *observability.Metrics
	logger     *zap.Logger
	locks      *keyedMutex
	now        func() time.Time
}

// ReconcilerDependencies bundles collaborators for the reconciler.
type ReconcilerDependencies struct {
	Store           repository.CorrelationRepository
	Dedup           *dedup.Window
	Resolver        *StatusResolver
	Dispatcher      events.Dispatcher
	StatusWhitelist []string
	Metrics         *observability.Metrics
	Logger          *zap.Logger
}

// NewReconciler constructs the reconciler.
func NewReconciler(deps ReconcilerDependencies) *Reconciler {
	whitelist := make(map[string]struct{}, len(deps.StatusWhitelist))
	for _, s := range deps.StatusWhitelist {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			whitelist[s] = struct{}{}
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		store:      deps.Store,
		dedup:      deps.Dedup,
		resolver:   deps.Resolver,
		dispatcher: deps.Dispatcher,
		whitelist:  whitelist,
		metrics:    deps.Metrics,
		logger:     logger,
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
}

// Track records the initial state of a ticket that was just created or
// linked. No notification is emitted.
func (r *Reconciler) Track(ctx context.Context, ticketID, status, assignee string) domain.TicketState {
	unlock := r.locks.Lock(ticketID)
	defer unlock()

	update := domain.TicketUpdate{CheckedAt: r.now()}
	if status != "" {
		name := r.resolver.Resolve(ctx, status)
		update.Status = &name
	}
	if assignee != "" {
		update.Assignee = &assignee
	}
	return r.store.UpsertTicketState(ticketID, update)
}

// Reconcile applies obs. Observations for tickets without a room are logged
// and dropped.
func (r *Reconciler) Reconcile(ctx context.Context, obs domain.Observation) ReconcileOutcome {
	var out ReconcileOutcome
	log := r.logger.With(zap.String("ticket_id", obs.TicketID), zap.String("source", string(obs.Source)))

	if obs.TicketID == "" {
		out.Discarded = true
		return out
	}
	roomID, ok := r.store.RoomForTicket(obs.TicketID)
	if !ok {
		log.Warn("no room mapped for ticket, dropping observation")
		out.Discarded = true
		return out
	}

	unlock := r.locks.Lock(obs.TicketID)
	defer unlock()

	prev, tracked := r.store.GetTicketState(obs.TicketID)
	if !tracked {
		log.Info("tracking ticket on first observation")
		prev = domain.TicketState{ID: obs.TicketID}
	}
	// A webhook applied while the poll was fetching is newer than the poll.
	if obs.Source == domain.SourcePoll && prev.WebhookSeq != obs.WebhookSeq {
		log.Debug("poll result superseded by webhook, skipping")
		out.Stale = true
		return out
	}

	update := domain.TicketUpdate{CheckedAt: r.now(), FromWebhook: obs.Source == domain.SourceWebhook}
	var pending []events.Event

	if obs.Assignee != "" && obs.Assignee != prev.Assignee {
		assignee := obs.Assignee
		update.Assignee = &assignee
		out.AssigneeChanged = true
		if r.dedup.IsDuplicate(ctx, KindAssignee, obs.TicketID, assignee) {
			out.Suppressed = append(out.Suppressed, "duplicate_assignee")
		} else {
			pending = append(pending, r.event(events.EventTicketAssigned, obs.TicketID, roomID, events.TicketAssignedPayload{
				OldAssignee: prev.Assignee,
				NewAssignee: assignee,
			}))
		}
	}

	if obs.Status != "" && obs.Status != prev.Status {
		name := r.resolver.Resolve(ctx, obs.Status)
		if name != prev.Status {
			update.Status = &name
			out.StatusChanged = true
			switch {
			case !r.statusAllowed(name):
				out.Suppressed = append(out.Suppressed, "status_not_whitelisted")
			case r.dedup.IsDuplicate(ctx, KindStatus, obs.TicketID, name):
				out.Suppressed = append(out.Suppressed, "duplicate_status")
			default:
				pending = append(pending, r.event(events.EventTicketStatusChanged, obs.TicketID, roomID, events.TicketStatusChangedPayload{
					OldStatus: prev.Status,
					NewStatus: name,
				}))
			}
		}
	}

	r.store.UpsertTicketState(obs.TicketID, update)

	if note := strings.TrimSpace(obs.Note); note != "" && obs.Source == domain.SourceWebhook {
		if r.dedup.IsDuplicate(ctx, KindNote, obs.TicketID, note) {
			out.Suppressed = append(out.Suppressed, "duplicate_note")
		} else {
			pending = append(pending, r.event(events.EventTicketNoteAdded, obs.TicketID, roomID, events.TicketNoteAddedPayload{
				Author: obs.Author,
				Note:   note,
			}))
		}
	}

	for _, reason := range out.Suppressed {
		r.metrics.RecordSuppressed(reason)
	}
	for _, ev := range pending {
		if err := r.dispatcher.Publish(ctx, ev); err != nil {
			log.Error("notification failed", zap.String("event_type", string(ev.Type)), zap.Error(err))
			continue
		}
		out.Notified = append(out.Notified, ev.Type)
	}
	return out
}

func (r *Reconciler) statusAllowed(name string) bool {
	if len(r.whitelist) == 0 {
		return true
	}
	_, ok := r.whitelist[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func (r *Reconciler) event(typ events.EventType, ticketID, roomID string, payload any) events.Event {
	return events.Event{
		ID:        uuid.NewString(),
		Type:      typ,
		TicketID:  ticketID,
		RoomID:    roomID,
		Timestamp: r.now(),
		Payload:   payload,
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/chat"
	"github.com/spec-kit/ticket-bridge/internal/dedup"
	"github.com/spec-kit/ticket-bridge/internal/domain"
	"github.com/spec-kit/ticket-bridge/internal/events"
	"github.com/spec-kit/ticket-bridge/internal/normalize"
	"github.com/spec-kit/ticket-bridge/internal/repository"
	"github.com/spec-kit/ticket-bridge/internal/ticketing"
)

// ErrUserNotFound is returned when no directory user matches an email.
var ErrUserNotFound = errors.New("user not found")

// Chat event resources the bridge reacts to.
const (
	ResourceMessages          = "messages"
	ResourceAttachmentActions = "attachmentActions"

	kindWebhook = "webhook"
)

// WebhookStatus is the synchronous answer to a ticket webhook delivery.
type WebhookStatus string

const (
	WebhookOK        WebhookStatus = "ok"
	WebhookIgnore    WebhookStatus = "ignore"
	WebhookDuplicate WebhookStatus = "duplicate"
)

var (
	linkCommand = regexp.MustCompile(`(?i)^\s*(?:link|koppel)\s+(?:ticket\s*)?#?\s*([A-Za-z0-9][A-Za-z0-9_\-]*)\s*$`)
	ticketRef   = regexp.MustCompile(`(?i)(?:#\s*|\bticket\s+#?)([A-Za-z0-9_\-]*[0-9][A-Za-z0-9_\-]*)`)
)

// ChatEvent is the envelope of a chat platform webhook.
type ChatEvent struct {
	Resource    string
	Event       string
	DataID      string
	RoomID      string
	PersonEmail string
}

// TicketView is a ticket as reported over HTTP.
type TicketView struct {
	ID            string
	RoomID        string
	Status        string
	Assignee      string
	LastCheckedAt time.Time
}

// BridgeService owns the correlation store, dedup window and user cache and
// drives every flow between chat and ticketing.
type BridgeService struct {
	store       repository.CorrelationRepository
	dedup       *dedup.Window
	users       *repository.UserCache
	reconciler  *Reconciler
	resolver    *StatusResolver
	normalizer  *normalize.Normalizer
	ticketing   TicketingAPI
	chat        ChatAPI
	dispatcher  events.Dispatcher
	runner      JobRunner
	botEmail    string
	trackingTTL time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// BridgeDependencies bundles collaborators for the bridge.
type BridgeDependencies struct {
	Store       repository.CorrelationRepository
	Dedup       *dedup.Window
	Users       *repository.UserCache
	Reconciler  *Reconciler
	Resolver    *StatusResolver
	Normalizer  *normalize.Normalizer
	Ticketing   TicketingAPI
	Chat        ChatAPI
	Dispatcher  events.Dispatcher
	Runner      JobRunner
	BotEmail    string
	TrackingTTL time.Duration
	Logger      *zap.Logger
}

// NewBridgeService constructs the service.
func NewBridgeService(deps BridgeDependencies) *BridgeService {
	normalizer := deps.Normalizer
	if normalizer == nil {
		normalizer = normalize.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BridgeService{
		store:       deps.Store,
		dedup:       deps.Dedup,
		users:       deps.Users,
		reconciler:  deps.Reconciler,
		resolver:    deps.Resolver,
		normalizer:  normalizer,
		ticketing:   deps.Ticketing,
		chat:        deps.Chat,
		dispatcher:  deps.Dispatcher,
		runner:      deps.Runner,
		botEmail:    strings.ToLower(strings.TrimSpace(deps.BotEmail)),
		trackingTTL: deps.TrackingTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// AcceptChatEvent queues a chat event for processing and returns at once.
func (s *BridgeService) AcceptChatEvent(ev ChatEvent) error {
	return s.runner.Submit("chat_event", func(ctx context.Context) {
		s.ProcessChatEvent(ctx, ev)
	})
}

// AcceptTicketEvent normalizes a ticket webhook payload and queues the
// observation for reconciliation. Only a redelivered action id is answered
// as a duplicate; everything else reaches the reconciler, which keeps the
// stored state current and suppresses repeated notifications itself.
func (s *BridgeService) AcceptTicketEvent(ctx context.Context, payload map[string]any) (WebhookStatus, error) {
	obs := s.normalizer.Observation(payload, domain.SourceWebhook)
	if obs.TicketID == "" {
		s.logger.Info("ticket webhook without ticket id ignored")
		return WebhookIgnore, nil
	}
	replayable := obs.ActionID != ""
	if replayable && s.dedup.IsDuplicate(ctx, kindWebhook, obs.TicketID, obs.ActionID) {
		s.logger.Info("duplicate ticket webhook", zap.String("ticket_id", obs.TicketID), zap.String("action_id", obs.ActionID))
		return WebhookDuplicate, nil
	}
	err := s.runner.Submit("ticket_event", func(ctx context.Context) {
		s.reconciler.Reconcile(ctx, obs)
	})
	if err != nil {
		if replayable {
			s.dedup.Release(ctx, kindWebhook, obs.TicketID, obs.ActionID)
		}
		return "", err
	}
	return WebhookOK, nil
}

// ProcessChatEvent handles one chat event. Failures are reported to the
// room when someone is waiting on the answer and logged otherwise.
func (s *BridgeService) ProcessChatEvent(ctx context.Context, ev ChatEvent) {
	log := s.logger.With(zap.String("resource", ev.Resource), zap.String("data_id", ev.DataID))
	if ev.PersonEmail != "" && s.isBot(ev.PersonEmail) {
		return
	}
	switch ev.Resource {
	case ResourceMessages:
		msg, err := s.chat.GetMessage(ctx, ev.DataID)
		if err != nil {
			log.Error("fetch chat message failed", zap.Error(err))
			return
		}
		if s.isBot(msg.PersonEmail) {
			return
		}
		s.handleMessage(ctx, msg)
	case ResourceAttachmentActions:
		sub, err := s.chat.GetFormSubmission(ctx, ev.DataID)
		if err != nil {
			log.Error("fetch form submission failed", zap.Error(err))
			return
		}
		if sub.RoomID == "" {
			sub.RoomID = ev.RoomID
		}
		s.handleFormSubmission(ctx, sub)
	default:
		log.Debug("chat event ignored")
	}
}

func (s *BridgeService) handleMessage(ctx context.Context, msg domain.ChatMessage) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if m := linkCommand.FindStringSubmatch(text); m != nil {
		s.linkTicket(ctx, msg.RoomID, m[1])
		return
	}

	roomTickets := s.store.TicketsForRoom(msg.RoomID)
	if len(roomTickets) == 0 {
		s.sendForm(ctx, msg.RoomID)
		return
	}

	targets := roomTickets
	if refs := ticketRefs(text); len(refs) > 0 {
		targets = intersect(refs, roomTickets)
		if len(targets) == 0 {
			s.reply(ctx, msg.RoomID, fmt.Sprintf("⚠️ Ticket %s is not followed in this room. Use `link #<ticket>` to follow it.", strings.Join(refs, ", ")))
			return
		}
	}

	author := msg.PersonEmail
	if msg.PersonName != "" {
		author = msg.PersonName
	}
	var added, failed []string
	for _, ticketID := range targets {
		if err := s.ticketing.AddNote(ctx, ticketID, text, author); err != nil {
			s.logger.Error("add note failed", zap.String("ticket_id", ticketID), zap.String("room_id", msg.RoomID), zap.Error(err))
			failed = append(failed, ticketID)
			continue
		}
		added = append(added, ticketID)
	}
	if len(added) > 0 {
		s.reply(ctx, msg.RoomID, fmt.Sprintf("📝 Note added to ticket %s.", strings.Join(added, ", ")))
	}
	if len(failed) > 0 {
		s.reply(ctx, msg.RoomID, fmt.Sprintf("❌ Could not add the note to ticket %s. Please try again later.", strings.Join(failed, ", ")))
	}
}

func (s *BridgeService) handleFormSubmission(ctx context.Context, sub domain.FormSubmission) {
	email := firstNonEmpty(sub.Inputs[chat.InputEmail], sub.PersonEmail)
	description := firstNonEmpty(sub.Inputs[chat.InputDescription], sub.Inputs["description"])
	if email == "" || description == "" {
		s.reply(ctx, sub.RoomID, "⚠️ Please fill in both your email address and a description.")
		return
	}

	user, err := s.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Warn("no ticketing user for email", zap.String("email", email))
			s.reply(ctx, sub.RoomID, fmt.Sprintf("⚠️ No user was found for %s. Check the address and submit the form again.", email))
			return
		}
		s.logger.Error("user lookup failed", zap.String("email", email), zap.Error(err))
		s.reply(ctx, sub.RoomID, "❌ The ticketing system is unavailable. Please try again later.")
		return
	}

	subject := firstNonEmpty(sub.Inputs[chat.InputSubject], sub.Inputs["subject"], summarize(description))
	created, err := s.ticketing.CreateTicket(ctx, ticketing.CreateTicketInput{
		CallerID:    user.ID,
		Email:       email,
		Subject:     subject,
		Description: description,
	})
	if err != nil {
		s.logger.Error("create ticket failed", zap.String("room_id", sub.RoomID), zap.Error(err))
		s.reply(ctx, sub.RoomID, "❌ The ticket could not be created. Please try again later.")
		return
	}

	s.store.LinkTicketToRoom(sub.RoomID, created.ID)
	state := s.reconciler.Track(ctx, created.ID, created.Status, "")
	s.logger.Info("ticket created from chat", zap.String("ticket_id", created.ID), zap.String("room_id", sub.RoomID))
	s.publish(ctx, events.EventTicketCreated, created.ID, sub.RoomID, events.TicketCreatedPayload{
		DisplayID: created.DisplayID(),
		Status:    state.Status,
		Requester: firstNonEmpty(user.Name, email),
	})
}

func (s *BridgeService) linkTicket(ctx context.Context, roomID, ticketID string) {
	doc, err := s.ticketing.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, ticketing.ErrNotFound) {
			s.reply(ctx, roomID, fmt.Sprintf("⚠️ Ticket %s does not exist.", ticketID))
			return
		}
		s.logger.Error("ticket validation failed", zap.String("ticket_id", ticketID), zap.Error(err))
		s.reply(ctx, roomID, "❌ The ticketing system is unavailable. Please try again later.")
		return
	}
	if !s.store.LinkTicketToRoom(roomID, ticketID) {
		s.reply(ctx, roomID, fmt.Sprintf("⚠️ Ticket %s is already followed in another room.", ticketID))
		return
	}
	obs := s.normalizer.Observation(doc, domain.SourcePoll)
	state := s.reconciler.Track(ctx, ticketID, obs.Status, obs.Assignee)
	s.publish(ctx, events.EventTicketLinked, ticketID, roomID, events.TicketLinkedPayload{
		DisplayID: ticketID,
		Status:    state.Status,
	})
}

// FindUserByEmail resolves a directory user through the user cache.
func (s *BridgeService) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	users, err := s.directory(ctx)
	if err != nil {
		return domain.User{}, err
	}
	for _, u := range users {
		if u.MatchesEmail(email) {
			return u, nil
		}
	}
	return domain.User{}, ErrUserNotFound
}

// WarmUserCache refreshes the user snapshot and returns its size.
func (s *BridgeService) WarmUserCache(ctx context.Context) (int, error) {
	s.users.Invalidate()
	users, err := s.directory(ctx)
	if err != nil {
		return 0, err
	}
	return len(users), nil
}

func (s *BridgeService) directory(ctx context.Context) ([]domain.User, error) {
	key := s.ticketing.BaseURL()
	if users, ok := s.users.Get(key); ok {
		return users, nil
	}
	users, err := s.ticketing.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	s.users.Store(key, users)
	s.logger.Info("user cache refreshed", zap.Int("users", len(users)))
	return users, nil
}

// RoomTickets lists the tracked tickets of a room in creation order.
func (s *BridgeService) RoomTickets(roomID string) []TicketView {
	ids := s.store.TicketsForRoom(roomID)
	views := make([]TicketView, 0, len(ids))
	for _, id := range ids {
		view := TicketView{ID: id, RoomID: roomID}
		if state, ok := s.store.GetTicketState(id); ok {
			view.Status = state.Status
			view.Assignee = state.Assignee
			view.LastCheckedAt = state.LastCheckedAt
		}
		views = append(views, view)
	}
	return views
}

// LiveTicket fetches a ticket from the ticketing system for display.
func (s *BridgeService) LiveTicket(ctx context.Context, ticketID string) (TicketView, error) {
	doc, err := s.ticketing.GetTicket(ctx, ticketID)
	if err != nil {
		return TicketView{}, err
	}
	obs := s.normalizer.Observation(doc, domain.SourcePoll)
	view := TicketView{ID: ticketID, Assignee: obs.Assignee}
	if obs.Status != "" {
		view.Status = s.resolver.Resolve(ctx, obs.Status)
	}
	if roomID, ok := s.store.RoomForTicket(ticketID); ok {
		view.RoomID = roomID
	}
	return view, nil
}

// PollOnce re-derives the state of every tracked ticket and feeds it through
// the reconciler. Tickets that could not be observed for longer than the
// tracking TTL are forgotten when a TTL is configured.
func (s *BridgeService) PollOnce(ctx context.Context) {
	ids := s.store.TrackedTicketIDs()
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		before, _ := s.store.GetTicketState(id)
		doc, err := s.ticketing.GetTicket(ctx, id)
		if err != nil {
			s.logger.Warn("poll fetch failed", zap.String("ticket_id", id), zap.Error(err))
			continue
		}
		obs := s.normalizer.Observation(doc, domain.SourcePoll)
		obs.TicketID = id
		obs.Note = ""
		obs.WebhookSeq = before.WebhookSeq
		s.reconciler.Reconcile(ctx, obs)
	}
	if s.trackingTTL > 0 {
		if evicted := s.store.EvictUnchecked(s.now().Add(-s.trackingTTL)); len(evicted) > 0 {
			s.logger.Info("stopped tracking idle tickets", zap.Strings("ticket_ids", evicted))
		}
	}
	s.logger.Debug("poll cycle finished", zap.Int("tickets", len(ids)))
}

func (s *BridgeService) sendForm(ctx context.Context, roomID string) {
	if err := s.chat.SendCard(ctx, roomID, "Fill in the form to create a ticket.", chat.TicketFormCard()); err != nil {
		s.logger.Error("send ticket form failed", zap.String("room_id", roomID), zap.Error(err))
	}
}

func (s *BridgeService) reply(ctx context.Context, roomID, text string) {
	if err := s.chat.SendText(ctx, roomID, text); err != nil {
		s.logger.Error("chat reply failed", zap.String("room_id", roomID), zap.Error(err))
	}
}

func (s *BridgeService) publish(ctx context.Context, typ events.EventType, ticketID, roomID string, payload any) {
	err := s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      typ,
		TicketID:  ticketID,
		RoomID:    roomID,
		Timestamp: s.now(),
		Payload:   payload,
	})
	if err != nil {
		s.logger.Error("notification failed", zap.String("event_type", string(typ)), zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *BridgeService) isBot(email string) bool {
	return s.botEmail != "" && strings.EqualFold(strings.TrimSpace(email), s.botEmail)
}

func ticketRefs(text string) []string {
	var refs []string
	seen := map[string]struct{}{}
	for _, m := range ticketRef.FindAllStringSubmatch(text, -1) {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		refs = append(refs, m[1])
	}
	return refs
}

// intersect keeps the refs that are linked to the room, in room order.
func intersect(refs, roomTickets []string) []string {
	wanted := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		wanted[strings.ToLower(r)] = struct{}{}
	}
	var out []string
	for _, id := range roomTickets {
		if _, ok := wanted[strings.ToLower(id)]; ok {
			out = append(out, id)
		}
	}
	return out
}

func summarize(text string) string {
	line := strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
	const limit = 80
	if r := []rune(line); len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	return line
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

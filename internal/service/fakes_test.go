package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spec-kit/ticket-bridge/internal/dedup"
	"github.com/spec-kit/ticket-bridge/internal/domain"
	"github.com/spec-kit/ticket-bridge/internal/events"
	"github.com/spec-kit/ticket-bridge/internal/observability"
	"github.com/spec-kit/ticket-bridge/internal/repository"
	"github.com/spec-kit/ticket-bridge/internal/ticketing"
)

type sentMessage struct {
	RoomID string
	Text   string
	Card   bool
}

type fakeChat struct {
	mu          sync.Mutex
	sent        []sentMessage
	messages    map[string]domain.ChatMessage
	submissions map[string]domain.FormSubmission
	sendErr     error
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		messages:    map[string]domain.ChatMessage{},
		submissions: map[string]domain.FormSubmission{},
	}
}

func (c *fakeChat) SendText(_ context.Context, roomID, markdown string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, sentMessage{RoomID: roomID, Text: markdown})
	return nil
}

func (c *fakeChat) SendCard(_ context.Context, roomID, fallback string, _ map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentMessage{RoomID: roomID, Text: fallback, Card: true})
	return nil
}

func (c *fakeChat) GetMessage(_ context.Context, id string) (domain.ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg, ok := c.messages[id]
	if !ok {
		return domain.ChatMessage{}, fmt.Errorf("message %s not found", id)
	}
	return msg, nil
}

func (c *fakeChat) GetFormSubmission(_ context.Context, id string) (domain.FormSubmission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.submissions[id]
	if !ok {
		return domain.FormSubmission{}, fmt.Errorf("submission %s not found", id)
	}
	return sub, nil
}

func (c *fakeChat) Sent() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

type addedNote struct {
	TicketID string
	Text     string
	Author   string
}

type fakeTicketing struct {
	mu          sync.Mutex
	statuses    map[string]string
	statusErr   error
	statusCalls int
	tickets     map[string]map[string]any
	users       []domain.User
	listCalls   int
	created     []ticketing.CreateTicketInput
	createResp  domain.CreatedTicket
	notes       []addedNote
	noteErr     map[string]error
	// onGet runs after GetTicket has read the document, before it returns.
	onGet func(id string)
}

func newFakeTicketing() *fakeTicketing {
	return &fakeTicketing{
		statuses: map[string]string{},
		tickets:  map[string]map[string]any{},
		noteErr:  map[string]error{},
	}
}

func (f *fakeTicketing) BaseURL() string { return "https://tickets.example.com" }

func (f *fakeTicketing) GetStatus(_ context.Context, id string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	name, ok := f.statuses[id]
	if !ok {
		return nil, ticketing.ErrNotFound
	}
	return map[string]any{"id": id, "name": name}, nil
}

func (f *fakeTicketing) CreateTicket(_ context.Context, in ticketing.CreateTicketInput) (domain.CreatedTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	return f.createResp, nil
}

func (f *fakeTicketing) GetTicket(_ context.Context, id string) (map[string]any, error) {
	f.mu.Lock()
	doc, ok := f.tickets[id]
	hook := f.onGet
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("get ticket: %w", ticketing.ErrNotFound)
	}
	if hook != nil {
		hook(id)
	}
	return doc, nil
}

func (f *fakeTicketing) AddNote(_ context.Context, id, text, author string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.noteErr[id]; err != nil {
		return err
	}
	f.notes = append(f.notes, addedNote{TicketID: id, Text: text, Author: author})
	return nil
}

func (f *fakeTicketing) ListUsers(context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.users, nil
}

func (f *fakeTicketing) Notes() []addedNote {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]addedNote(nil), f.notes...)
}

// syncRunner runs jobs inline so tests observe their effects on return.
type syncRunner struct {
	err  error
	jobs []string
}

func (r *syncRunner) Submit(name string, job func(ctx context.Context)) error {
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, name)
	job(context.Background())
	return nil
}

var errQueueFull = errors.New("queue full")

type harness struct {
	store      repository.CorrelationRepository
	backend    *dedup.MemoryBackend
	chat       *fakeChat
	ticketing  *fakeTicketing
	runner     *syncRunner
	metrics    *observability.Metrics
	reconciler *Reconciler
	bridge     *BridgeService
}

func newHarness(whitelist ...string) *harness {
	h := &harness{
		store:     repository.NewCorrelationRepository(),
		backend:   dedup.NewMemoryBackend(),
		chat:      newFakeChat(),
		ticketing: newFakeTicketing(),
		runner:    &syncRunner{},
		metrics:   observability.NewMetrics(),
	}
	window := dedup.NewWindow(h.backend, dedup.DefaultWindow, nil)
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, h.chat, h.metrics, nil).RegisterHandlers()
	resolver := NewStatusResolver(h.ticketing, nil)
	h.reconciler = NewReconciler(ReconcilerDependencies{
		Store:           h.store,
		Dedup:           window,
		Resolver:        resolver,
		Dispatcher:      dispatcher,
		StatusWhitelist: whitelist,
		Metrics:         h.metrics,
	})
	h.bridge = NewBridgeService(BridgeDependencies{
		Store:      h.store,
		Dedup:      window,
		Users:      repository.NewUserCache(0),
		Reconciler: h.reconciler,
		Resolver:   resolver,
		Ticketing:  h.ticketing,
		Chat:       h.chat,
		Dispatcher: dispatcher,
		Runner:     h.runner,
		BotEmail:   "bot@webex.bot",
	})
	return h
}

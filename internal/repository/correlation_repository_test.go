package repository

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bridge/internal/domain"
)

func ptr(s string) *string { return &s }

func TestLinkPreservesInsertionOrder(t *testing.T) {
	repo := NewCorrelationRepository()
	require.True(t, repo.LinkTicketToRoom("R1", "42"))
	require.True(t, repo.LinkTicketToRoom("R1", "7"))
	require.True(t, repo.LinkTicketToRoom("R1", "100"))

	assert.Equal(t, []string{"42", "7", "100"}, repo.TicketsForRoom("R1"))
	assert.Empty(t, repo.TicketsForRoom("R2"))
}

func TestLinkFirstWriterWins(t *testing.T) {
	repo := NewCorrelationRepository()
	require.True(t, repo.LinkTicketToRoom("R1", "42"))
	assert.False(t, repo.LinkTicketToRoom("R2", "42"))
	assert.True(t, repo.LinkTicketToRoom("R1", "42"), "relinking to the owner is a no-op success")

	room, ok := repo.RoomForTicket("42")
	require.True(t, ok)
	assert.Equal(t, "R1", room)
	assert.Equal(t, []string{"42"}, repo.TicketsForRoom("R1"))
	assert.Empty(t, repo.TicketsForRoom("R2"))
}

func TestTicketsForRoomReturnsCopy(t *testing.T) {
	repo := NewCorrelationRepository()
	repo.LinkTicketToRoom("R1", "1")
	got := repo.TicketsForRoom("R1")
	got[0] = "mutated"
	assert.Equal(t, []string{"1"}, repo.TicketsForRoom("R1"))
}

func TestUpsertTicketStatePartial(t *testing.T) {
	repo := NewCorrelationRepository()
	repo.LinkTicketToRoom("R1", "42")

	_, ok := repo.GetTicketState("42")
	assert.False(t, ok)

	checked := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.UpsertTicketState("42", domain.TicketUpdate{Status: ptr("Open"), CheckedAt: checked})
	state := repo.UpsertTicketState("42", domain.TicketUpdate{Assignee: ptr("Ada")})

	assert.Equal(t, domain.TicketState{ID: "42", RoomID: "R1", Status: "Open", Assignee: "Ada", LastCheckedAt: checked}, state)

	got, ok := repo.GetTicketState("42")
	require.True(t, ok)
	assert.Equal(t, state, got)
}

func TestUpsertCountsWebhookUpdates(t *testing.T) {
	repo := NewCorrelationRepository()
	repo.UpsertTicketState("42", domain.TicketUpdate{Status: ptr("Open")})
	repo.UpsertTicketState("42", domain.TicketUpdate{Status: ptr("Closed"), FromWebhook: true})
	state := repo.UpsertTicketState("42", domain.TicketUpdate{FromWebhook: true})

	assert.Equal(t, uint64(2), state.WebhookSeq)
	assert.Equal(t, "Closed", state.Status)
}

func TestTrackedTicketIDsAndEviction(t *testing.T) {
	repo := NewCorrelationRepository()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := old.Add(48 * time.Hour)

	repo.LinkTicketToRoom("R1", "1")
	repo.LinkTicketToRoom("R1", "2")
	repo.LinkTicketToRoom("R2", "3")
	repo.UpsertTicketState("1", domain.TicketUpdate{CheckedAt: old})
	repo.UpsertTicketState("2", domain.TicketUpdate{CheckedAt: fresh})
	repo.UpsertTicketState("3", domain.TicketUpdate{CheckedAt: old})

	ids := repo.TrackedTicketIDs()
	sort.Strings(ids)
	assert.Equal(t, []string{"1", "2", "3"}, ids)

	evicted := repo.EvictUnchecked(old.Add(time.Hour))
	sort.Strings(evicted)
	assert.Equal(t, []string{"1", "3"}, evicted)
	assert.Equal(t, []string{"2"}, repo.TicketsForRoom("R1"))
	assert.Empty(t, repo.TicketsForRoom("R2"))
	_, ok := repo.RoomForTicket("3")
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	repo := NewCorrelationRepository()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			repo.LinkTicketToRoom("R1", id)
			repo.UpsertTicketState(id, domain.TicketUpdate{Status: ptr("Open"), CheckedAt: time.Now()})
			repo.TicketsForRoom("R1")
			repo.GetTicketState(id)
		}(i)
	}
	wg.Wait()
	assert.Len(t, repo.TicketsForRoom("R1"), 26)
}

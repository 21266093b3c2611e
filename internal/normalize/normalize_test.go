package normalize

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-bridge/internal/domain"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return payload
}

func TestObservationKeyConventionsAgree(t *testing.T) {
	n := Default()

	pascal := n.Observation(decode(t, `{"TicketID": "42", "StatusName": "Open"}`), domain.SourceWebhook)
	snake := n.Observation(decode(t, `{"ticket_id": "42", "status": "Open"}`), domain.SourceWebhook)

	if diff := cmp.Diff(snake, pascal); diff != "" {
		t.Fatalf("observations differ (-snake +pascal):\n%s", diff)
	}
	assert.Equal(t, "42", snake.TicketID)
	assert.Equal(t, "Open", snake.Status)
}

func TestLookupFirstAliasWins(t *testing.T) {
	n := New([]Alias{{FieldStatus, []string{"status", "Status"}}})

	got, ok := n.Lookup(map[string]any{"Status": "Closed", "status": "Open"}, FieldStatus)
	assert.True(t, ok)
	assert.Equal(t, "Open", got)

	reversed := New([]Alias{{FieldStatus, []string{"Status", "status"}}})
	got, _ = reversed.Lookup(map[string]any{"Status": "Closed", "status": "Open"}, FieldStatus)
	assert.Equal(t, "Closed", got)
}

func TestLookupSkipsBlankAndNull(t *testing.T) {
	n := Default()
	got, ok := n.Lookup(map[string]any{"status": "  ", "Status": nil, "state": "Assigned"}, FieldStatus)
	assert.True(t, ok)
	assert.Equal(t, "Assigned", got)
}

func TestAbsentFieldsAreNotAsserted(t *testing.T) {
	obs := Default().Observation(map[string]any{"ticket_id": "7"}, domain.SourcePoll)
	want := domain.Observation{TicketID: "7", Source: domain.SourcePoll}
	if diff := cmp.Diff(want, obs); diff != "" {
		t.Fatalf("unexpected observation (-want +got):\n%s", diff)
	}
}

func TestNumericValuesKeepIntegerForm(t *testing.T) {
	obs := Default().Observation(decode(t, `{"ticket_id": 1234, "status_id": 7}`), domain.SourceWebhook)
	assert.Equal(t, "1234", obs.TicketID)
	assert.Equal(t, "7", obs.Status)
}

func TestNestedObjectsResolveToNames(t *testing.T) {
	payload := decode(t, `{
		"id": "abc-1",
		"processingStatus": {"id": "9", "name": "In progress"},
		"operator": {"id": "op-1", "firstName": "Ada", "surName": "Lovelace"}
	}`)
	obs := Default().Observation(payload, domain.SourcePoll)
	assert.Equal(t, "abc-1", obs.TicketID)
	assert.Equal(t, "In progress", obs.Status)
	assert.Equal(t, "Ada Lovelace", obs.Assignee)
}

func TestAuthorFallsBackToNameParts(t *testing.T) {
	n := Default()

	author, ok := n.Author(map[string]any{"FirstName": "Grace", "LastName": "Hopper"})
	assert.True(t, ok)
	assert.Equal(t, "Grace Hopper", author)

	author, ok = n.Author(map[string]any{"last_name": "Hopper"})
	assert.True(t, ok)
	assert.Equal(t, "Hopper", author)

	author, ok = n.Author(map[string]any{"author": "Operator X", "first_name": "Grace"})
	assert.True(t, ok)
	assert.Equal(t, "Operator X", author)

	_, ok = n.Author(map[string]any{"note": "hi"})
	assert.False(t, ok)
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric("7"))
	assert.True(t, IsNumeric(" 12 "))
	assert.False(t, IsNumeric("Open"))
	assert.False(t, IsNumeric("-1"))
	assert.False(t, IsNumeric(""))
}

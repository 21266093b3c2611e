// Package normalize maps inbound payloads with drifting key names onto the
// canonical ticket fields.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/spec-kit/ticket-bridge/internal/domain"
)

// Field is a canonical field name.
type Field string

const (
	FieldTicketID  Field = "ticket_id"
	FieldNote      Field = "note"
	FieldStatus    Field = "status"
	FieldAssignee  Field = "assignee"
	FieldActionID  Field = "action_id"
	FieldAuthor    Field = "author"
	FieldFirstName Field = "first_name"
	FieldLastName  Field = "last_name"
)

// Alias lists the payload keys that may carry a canonical field, highest
// priority first.
type Alias struct {
	Field Field
	Keys  []string
}

// DefaultAliases is the alias table used for ticketing webhooks and polled
// ticket documents.
var DefaultAliases = []Alias{
	{FieldTicketID, []string{"ticket_id", "ticketId", "TicketID", "TicketId", "ticket_number", "TicketNumber", "id", "Id", "ID"}},
	{FieldNote, []string{"note", "comment", "Note", "Comment", "body", "Body", "memo", "Memo"}},
	{FieldStatus, []string{"status", "status_name", "state", "Status", "StatusName", "State", "status_id", "StatusID", "StatusId", "processingStatus"}},
	{FieldAssignee, []string{"assignee", "assigned_to", "assigned_agent", "operator", "owner", "Assignee", "AssignedTo", "AssignedAgent", "Operator", "Owner", "assignee_id", "AssigneeID"}},
	{FieldActionID, []string{"action_id", "actionId", "ActionID", "ActionId", "event_id", "EventID", "progress_id"}},
	{FieldAuthor, []string{"author", "created_by", "Author", "CreatedBy", "person", "Person"}},
	{FieldFirstName, []string{"first_name", "firstname", "firstName", "FirstName"}},
	{FieldLastName, []string{"last_name", "lastname", "surname", "lastName", "LastName", "Surname"}},
}

// nestedNameKeys are consulted when a field value is itself an object, as in
// {"status": {"id": "7", "name": "Open"}}.
var (
	nestedNameKeys = []string{"name", "Name", "display_name", "displayName", "dynamicName", "value"}
	nestedIDKeys   = []string{"id", "Id", "ID"}
)

// Normalizer extracts canonical fields using an ordered alias table.
type Normalizer struct {
	aliases map[Field][]string
}

// New builds a Normalizer. Later entries for the same field replace earlier ones.
func New(table []Alias) *Normalizer {
	aliases := make(map[Field][]string, len(table))
	for _, a := range table {
		aliases[a.Field] = append([]string(nil), a.Keys...)
	}
	return &Normalizer{aliases: aliases}
}

// Default returns a Normalizer over DefaultAliases.
func Default() *Normalizer {
	return New(DefaultAliases)
}

// Lookup returns the value of the first alias present in payload. A field
// whose value is null or blank counts as not present.
func (n *Normalizer) Lookup(payload map[string]any, field Field) (string, bool) {
	for _, key := range n.aliases[field] {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		if val, ok := Stringify(raw); ok {
			return val, true
		}
	}
	return "", false
}

// Author returns the direct author field, or "first last" when only the name
// parts are present.
func (n *Normalizer) Author(payload map[string]any) (string, bool) {
	if author, ok := n.Lookup(payload, FieldAuthor); ok {
		return author, true
	}
	first, _ := n.Lookup(payload, FieldFirstName)
	last, _ := n.Lookup(payload, FieldLastName)
	full := strings.TrimSpace(first + " " + last)
	return full, full != ""
}

// Observation builds a canonical observation from payload.
func (n *Normalizer) Observation(payload map[string]any, source domain.ObservationSource) domain.Observation {
	obs := domain.Observation{Source: source}
	obs.TicketID, _ = n.Lookup(payload, FieldTicketID)
	obs.Status, _ = n.Lookup(payload, FieldStatus)
	obs.Assignee, _ = n.Lookup(payload, FieldAssignee)
	obs.Note, _ = n.Lookup(payload, FieldNote)
	obs.ActionID, _ = n.Lookup(payload, FieldActionID)
	obs.Author, _ = n.Author(payload)
	return obs
}

// Stringify renders a decoded JSON value as a display string. Integral
// numbers are rendered without a fraction so ids survive float decoding.
func Stringify(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(val)
		return s, s != ""
	case json.Number:
		return val.String(), true
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10), true
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	case map[string]any:
		for _, key := range nestedNameKeys {
			if s, ok := Stringify(val[key]); ok {
				return s, true
			}
		}
		first, _ := Stringify(firstOf(val, "firstName", "firstname", "first_name"))
		last, _ := Stringify(firstOf(val, "surName", "lastName", "lastname", "last_name"))
		if full := strings.TrimSpace(first + " " + last); full != "" {
			return full, true
		}
		for _, key := range nestedIDKeys {
			if s, ok := Stringify(val[key]); ok {
				return s, true
			}
		}
		return "", false
	default:
		return "", false
	}
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// IsNumeric reports whether s is a plain non-negative integer, the form in
// which ticketing systems send status ids.
func IsNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

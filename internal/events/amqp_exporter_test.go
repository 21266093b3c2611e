package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedPublish struct {
	key string
	msg amqp091.Publishing
}

func newTestExporter(fail error) (*AMQPExporter, *[]capturedPublish) {
	var got []capturedPublish
	e := &AMQPExporter{exchange: "bridge", producer: "ticket-bridge", logger: zap.NewNop()}
	e.publish = func(_ context.Context, key string, msg amqp091.Publishing) error {
		got = append(got, capturedPublish{key: key, msg: msg})
		return fail
	}
	return e, &got
}

func TestExporterPublishesEnvelope(t *testing.T) {
	exporter, got := newTestExporter(nil)
	d := NewInMemoryDispatcher()
	exporter.Register(d)

	at := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	err := d.Publish(context.Background(), Event{
		ID:        "ev-1",
		Type:      EventTicketStatusChanged,
		TicketID:  "42",
		RoomID:    "R1",
		Timestamp: at,
		Payload:   TicketStatusChangedPayload{OldStatus: "Open", NewStatus: "Closed"},
	})
	require.NoError(t, err)
	require.Len(t, *got, 1)

	pub := (*got)[0]
	assert.Equal(t, "ticket_bridge.ticket_status_changed", pub.key)
	assert.Equal(t, "ev-1", pub.msg.MessageId)
	assert.Equal(t, "42", pub.msg.CorrelationId)
	assert.Equal(t, amqp091.Persistent, pub.msg.DeliveryMode)

	var env map[string]any
	require.NoError(t, json.Unmarshal(pub.msg.Body, &env))
	meta := env["meta"].(map[string]any)
	assert.Equal(t, "ticket_status_changed.v1", meta["type"])
	assert.Equal(t, "ticket-bridge", meta["producer"])
	data := env["data"].(map[string]any)
	assert.Equal(t, "R1", data["room_id"])
	assert.Equal(t, "Closed", data["payload"].(map[string]any)["new_status"])
}

func TestExporterFailureDoesNotFailPublish(t *testing.T) {
	exporter, got := newTestExporter(errors.New("broker down"))
	d := NewInMemoryDispatcher()
	exporter.Register(d)

	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketNoteAdded, TicketID: "42"}))
	require.Len(t, *got, 1)
	assert.NotEmpty(t, (*got)[0].msg.MessageId)
}

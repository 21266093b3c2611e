package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const routingKeyPrefix = "ticket_bridge."

// EnvelopeMeta describes an exported event.
type EnvelopeMeta struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Producer string    `json:"producer,omitempty"`
	Time     time.Time `json:"time"`
}

// Envelope is the message body written to the exchange.
type Envelope struct {
	Meta EnvelopeMeta `json:"meta"`
	Data Event        `json:"data"`
}

type publishFunc func(ctx context.Context, key string, msg amqp091.Publishing) error

// AMQPExporter mirrors bridge events onto a topic exchange for downstream
// consumers. Export failures are logged and never fail the chat notification.
type AMQPExporter struct {
	conn     *amqp091.Connection
	exchange string
	producer string
	logger   *zap.Logger
	publish  publishFunc
}

// NewAMQPExporter dials url and declares a durable topic exchange.
func NewAMQPExporter(url, exchange, producer string, logger *zap.Logger) (*AMQPExporter, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}

	e := &AMQPExporter{conn: conn, exchange: exchange, producer: producer, logger: logger}
	e.publish = e.publishOnChannel
	return e, nil
}

// Register subscribes the exporter to every bridge event.
func (e *AMQPExporter) Register(d Dispatcher) {
	for _, t := range AllEventTypes {
		d.Subscribe(t, e.handle)
	}
}

// Close closes the broker connection.
func (e *AMQPExporter) Close() error {
	if e == nil || e.conn == nil {
		return nil
	}
	return e.conn.Close()
}

func (e *AMQPExporter) handle(ctx context.Context, event Event) error {
	id := event.ID
	if id == "" {
		id = uuid.NewString()
	}
	at := event.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	body, err := json.Marshal(Envelope{
		Meta: EnvelopeMeta{ID: id, Type: string(event.Type) + ".v1", Producer: e.producer, Time: at.UTC()},
		Data: event,
	})
	if err != nil {
		e.logger.Error("event export encode failed", zap.String("event_type", string(event.Type)), zap.Error(err))
		return nil
	}

	key := routingKeyPrefix + string(event.Type)
	err = e.publish(ctx, key, amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     id,
		CorrelationId: event.TicketID,
		Timestamp:     at,
		Body:          body,
	})
	if err != nil {
		e.logger.Warn("event export failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
	return nil
}

func (e *AMQPExporter) publishOnChannel(ctx context.Context, key string, msg amqp091.Publishing) error {
	ch, err := e.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	return ch.PublishWithContext(ctx, e.exchange, key, false, false, msg)
}

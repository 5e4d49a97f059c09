// Package queue_publisher publishes committed floor changes to RabbitMQ.
// Failures are logged and never surface to the operation that produced
// the event; the inventory is the source of truth.
package queue_publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/floor-allocation/internal/floor"
	q "github.com/iliyamo/floor-allocation/internal/queue"
)

// Publisher implements floor.Notifier over the floor.events queue.
type Publisher struct {
	url     string
	timeout time.Duration
	log     *zap.Logger
}

// New returns a Publisher for the broker at url.
func New(url string, log *zap.Logger) *Publisher {
	return &Publisher{url: url, timeout: 3 * time.Second, log: log}
}

// Notify publishes the event in the background and logs any failure.
func (p *Publisher) Notify(ctx context.Context, ev floor.Event) {
	msg := q.NewFloorEvent(uuid.NewString(), ev)
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		if err := p.Publish(ctx, msg); err != nil {
			p.log.Warn("rabbitmq: publish floor event failed",
				zap.String("type", msg.Type), zap.String("event_id", msg.EventID), zap.Error(err))
		}
	}()
}

// Publish sends one persistent message to floor.events, declaring the
// queue first.
func (p *Publisher) Publish(ctx context.Context, event q.FloorEvent) error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.timeout)})
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		q.FloorEventsQueue, // name
		true,               // durable
		false,              // autoDelete
		false,              // exclusive
		false,              // noWait
		nil,                // args
	); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx,
		"",                 // default exchange
		q.FloorEventsQueue, // routing key = queue name
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.EventID,
			Type:         event.Type,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
}

// Package queue moves reservation lifecycle events over RabbitMQ.  The
// engine emits ReservationConfirmed, ReservationExpired,
// ReservationCancelled and WaitlistPromoted; external subscribers use
// them to send notifications or initiate payment capture.  Delivery is
// best-effort from the core's point of view: errors are logged and
// returned so callers can ignore them without interrupting a booking.
package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/table-reservation/internal/booking"
)

// eventsQueueName is the single durable queue carrying all lifecycle
// events; consumers dispatch on the event's Type field.
const eventsQueueName = "reservation.events"

// Publisher implements booking.EventPublisher against RabbitMQ.  Each
// publish dials its own short-lived connection; event volume is one
// message per state transition, so connection churn stays negligible
// and a broker outage never wedges a pooled channel.
type Publisher struct {
	url string
	log zerolog.Logger
}

// NewPublisher returns a Publisher for the given AMQP URL.
func NewPublisher(url string, log zerolog.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

// Publish sends the event to the reservation.events queue as a
// persistent JSON message.  The function never panics; any error is
// logged and returned so the caller can choose to ignore it.
func (p *Publisher) Publish(event booking.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn().Err(err).Msg("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn().Err(err).Msg("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		eventsQueueName, // name
		true,            // durable
		false,           // autoDelete
		false,           // exclusive
		false,           // noWait
		nil,             // args
	); err != nil {
		p.log.Warn().Err(err).Msg("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Msg("rabbitmq: marshal event failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    event.EventID,
		Type:         event.Type,
		Timestamp:    event.OccurredAt,
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",              // default exchange
		eventsQueueName, // routing key = queue name
		false,           // mandatory
		false,           // immediate
		pub,
	); err != nil {
		p.log.Warn().Err(err).Msg("rabbitmq: publish failed")
		return err
	}

	return nil
}

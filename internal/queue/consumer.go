package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/table-reservation/internal/booking"
)

// StartEventConsumer connects to RabbitMQ, declares the durable
// reservation.events queue and consumes it, writing each event as a
// structured log line.  It stands in for the external notification and
// payment subscribers, and doubles as an audit trail of every lifecycle
// transition.  The function runs a reconnect
// loop with exponential backoff and keeps running across broker
// restarts; processing errors reject the offending message without
// requeueing so a poison message cannot loop.
func StartEventConsumer(url string, log zerolog.Logger) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("event-consumer: dial failed")
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, log); err != nil {
			log.Warn().Err(err).Msg("event-consumer: consume loop ended; reconnecting")
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, log zerolog.Logger) error {
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("event-consumer: set QoS failed")
	}

	if _, err := ch.QueueDeclare(eventsQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(eventsQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := logEvent(d.Body, log); err != nil {
			log.Warn().Err(err).Msg("event-consumer: handle message failed")
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func logEvent(body []byte, log zerolog.Logger) error {
	var ev booking.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	log.Info().
		Str("event_id", ev.EventID).
		Str("type", ev.Type).
		Uint64("reservation_id", ev.ReservationID).
		Uint64("waitlist_entry_id", ev.WaitlistID).
		Uint64("restaurant_id", ev.RestaurantID).
		Uint64("table_id", ev.TableID).
		Uint64("user_id", ev.UserID).
		Uint32("party_size", ev.PartySize).
		Time("starts_at", ev.StartsAt).
		Time("ends_at", ev.EndsAt).
		Time("occurred_at", ev.OccurredAt).
		Msg("reservation event")
	return nil
}

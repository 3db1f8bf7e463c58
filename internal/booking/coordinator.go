package booking

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/table-reservation/internal/model"
)

// PaymentResult is the outcome reported by the external payment
// capability.  Gateway integration details stay outside the core.
type PaymentResult struct {
	Succeeded bool
	Ref       string // gateway reference for the attempt
}

// Coordinator is the entry point the API layer calls into.  It
// sequences engine operations and publishes the events each operation
// returns; it holds no business invariants of its own beyond that
// sequencing.  Callers receive the taxonomy errors unchanged: on
// ErrConflict the API layer may offer JoinWaitlist, on ErrTransient it
// may retry with backoff.
type Coordinator struct {
	engine    *Engine
	publisher EventPublisher // may be nil
	log       zerolog.Logger
}

// NewCoordinator constructs a Coordinator.  publisher may be nil; the
// coordinator then drops events.
func NewCoordinator(engine *Engine, publisher EventPublisher, log zerolog.Logger) *Coordinator {
	if engine == nil {
		panic("nil engine passed to NewCoordinator")
	}
	return &Coordinator{engine: engine, publisher: publisher, log: log}
}

// CreateReservation books the table and starts the payment hold.  On
// ErrConflict the caller may offer the diner the waitlist instead (see
// JoinWaitlist); the coordinator never enqueues on its own.
func (c *Coordinator) CreateReservation(ctx context.Context, req CreateRequest, now time.Time) (*model.Reservation, error) {
	res, events, err := c.engine.Create(ctx, req, now)
	if err != nil {
		return nil, err
	}
	c.publishAll(events)
	return res, nil
}

// ConfirmPayment applies the gateway outcome for a pending reservation.
// A successful result confirms the reservation; a failed one leaves it
// pending_payment — the diner may retry until the hold runs out, at
// which point the sweep expires it.
func (c *Coordinator) ConfirmPayment(ctx context.Context, reservationID uint64, payment PaymentResult, now time.Time) (*model.Reservation, error) {
	if !payment.Succeeded {
		c.log.Info().
			Uint64("reservation_id", reservationID).
			Str("payment_ref", payment.Ref).
			Msg("payment attempt failed; hold left in place")
		return c.engine.Get(ctx, reservationID)
	}
	res, events, err := c.engine.ConfirmPayment(ctx, reservationID, payment.Ref, now)
	if err != nil {
		return nil, err
	}
	c.publishAll(events)
	return res, nil
}

// CancelReservation cancels a pending or confirmed reservation.  The
// freed slot is offered to the waitlist before this returns.
func (c *Coordinator) CancelReservation(ctx context.Context, reservationID uint64, reason string, now time.Time) (*model.Reservation, error) {
	res, events, err := c.engine.Cancel(ctx, reservationID, reason, now)
	if err != nil {
		return nil, err
	}
	c.publishAll(events)
	return res, nil
}

// JoinWaitlist enqueues the requester for a slot that was full.
func (c *Coordinator) JoinWaitlist(ctx context.Context, req EnqueueRequest, now time.Time) (*model.WaitlistEntry, error) {
	return c.engine.Enqueue(ctx, req, now)
}

// CancelWaitlistEntry withdraws a waiting entry.
func (c *Coordinator) CancelWaitlistEntry(ctx context.Context, entryID uint64, now time.Time) error {
	return c.engine.CancelWaitlistEntry(ctx, entryID, now)
}

// AvailableTables lists the restaurant's free tables for the interval,
// sized for the party (rounded up to an even seat count), cheapest
// first.  Point-in-time information for the caller; CreateReservation
// remains the authoritative check.
func (c *Coordinator) AvailableTables(ctx context.Context, restaurantID uint64, iv model.Interval, partySize uint32) ([]model.Table, error) {
	return c.engine.AvailableTables(ctx, restaurantID, iv, partySize)
}

func (c *Coordinator) publishAll(events []Event) {
	if c.publisher == nil {
		return
	}
	for _, ev := range events {
		if err := c.publisher.Publish(ev); err != nil {
			c.log.Warn().Err(err).Str("event_type", ev.Type).Str("event_id", ev.EventID).Msg("event publish failed")
		}
	}
}

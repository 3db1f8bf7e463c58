package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/table-reservation/internal/model"
)

// Event type names as they appear on the wire.
const (
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationExpired   = "reservation.expired"
	EventReservationCancelled = "reservation.cancelled"
	EventWaitlistPromoted     = "waitlist.promoted"
)

// Event is a domain event produced by a successful state transition.
// Operations return the events they produced instead of firing side
// effects from persistence hooks, so the contract stays visible.  The
// EventID is a fresh uuid consumers can use as an idempotency key; the
// core does not depend on delivery succeeding.
type Event struct {
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	ReservationID uint64    `json:"reservation_id,omitempty"`
	WaitlistID    uint64    `json:"waitlist_entry_id,omitempty"`
	RestaurantID  uint64    `json:"restaurant_id"`
	TableID       uint64    `json:"table_id,omitempty"`
	UserID        uint64    `json:"user_id"`
	PartySize     uint32    `json:"party_size"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	HoldExpiresAt time.Time `json:"hold_expires_at,omitempty"`
	PriceCents    uint32    `json:"price_cents,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventPublisher delivers events to outbound collaborators (payment
// capture, notifications).  Implementations must not block the booking
// path for long; failures are logged by callers and never propagated as
// booking failures.
type EventPublisher interface {
	Publish(event Event) error
}

// reservationEvent builds an event describing the reservation's current
// state as of occurredAt.
func reservationEvent(typ string, r *model.Reservation, occurredAt time.Time) Event {
	ev := Event{
		EventID:       uuid.NewString(),
		Type:          typ,
		ReservationID: r.ID,
		RestaurantID:  r.RestaurantID,
		TableID:       r.TableID,
		UserID:        r.UserID,
		PartySize:     r.PartySize,
		StartsAt:      r.Interval.Start,
		EndsAt:        r.Interval.End,
		PriceCents:    r.PriceCents,
		Reason:        r.CancellationReason,
		OccurredAt:    occurredAt,
	}
	if r.HoldExpiresAt != nil {
		ev.HoldExpiresAt = *r.HoldExpiresAt
	}
	return ev
}

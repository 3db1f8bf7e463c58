package model

import "time"

// ReservationStatus enumerates the reservation lifecycle states.  Legal
// transitions are:
//
//	pending_payment -> confirmed | expired | cancelled
//	confirmed       -> cancelled | completed
//
// expired, cancelled and completed are terminal.  Every other transition
// is rejected with an invalid-state error.
type ReservationStatus string

const (
	ReservationPendingPayment ReservationStatus = "pending_payment"
	ReservationConfirmed      ReservationStatus = "confirmed"
	ReservationExpired        ReservationStatus = "expired"
	ReservationCancelled      ReservationStatus = "cancelled"
	ReservationCompleted      ReservationStatus = "completed"
)

// Active reports whether the status still occupies its table interval.
// Only pending_payment and confirmed reservations block other bookings.
func (s ReservationStatus) Active() bool {
	return s == ReservationPendingPayment || s == ReservationConfirmed
}

// Terminal reports whether no further transition is possible.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationExpired || s == ReservationCancelled || s == ReservationCompleted
}

// Reservation records a diner's hold on a table for a time interval.
// Reservations are never deleted; terminal rows are retained as history.
//
// Fields:
//  ID                 – primary key identifier.
//  TableID            – table being reserved.
//  RestaurantID       – restaurant owning the table (denormalised for
//                       waitlist lookups).
//  UserID             – diner who owns the reservation.
//  Interval           – requested half-open time range.
//  PartySize          – number of guests.
//  PriceCents         – party size x per-seat price, fixed at creation.
//  Status             – lifecycle state.
//  HoldExpiresAt      – payment deadline; set only while pending_payment.
//  PaymentRef         – external gateway reference once paid.
//  CancellationReason – free text recorded on cancellation.
//  WaitlistEntryID    – source waitlist entry when created by promotion.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
type Reservation struct {
	ID                 uint64            // reservations.id
	TableID            uint64            // reservations.table_id
	RestaurantID       uint64            // reservations.restaurant_id
	UserID             uint64            // reservations.user_id
	Interval           Interval          // reservations.starts_at / ends_at
	PartySize          uint32            // reservations.party_size
	PriceCents         uint32            // reservations.price_cents
	Status             ReservationStatus // reservations.status
	HoldExpiresAt      *time.Time        // reservations.hold_expires_at (nullable)
	PaymentRef         *string           // reservations.payment_ref (nullable)
	CancellationReason string            // reservations.cancellation_reason
	WaitlistEntryID    *uint64           // reservations.waitlist_entry_id (nullable)
	CreatedAt          time.Time         // reservations.created_at
	UpdatedAt          time.Time         // reservations.updated_at
}

// HoldExpired reports whether the payment deadline has passed.  A
// reservation without a deadline never expires this way.
func (r *Reservation) HoldExpired(now time.Time) bool {
	return r.HoldExpiresAt != nil && !now.Before(*r.HoldExpiresAt)
}

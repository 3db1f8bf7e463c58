package booking

import (
	"context"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
)

// The store interfaces below carry the atomicity contract of the engine.
// Every mutating method must be a single atomic storage operation:
// Create's availability check and insert run as one serialized unit (the
// MySQL implementation locks the table row), and each status transition
// is a compare-and-set on the current status so that two racing writers
// resolve to exactly one winner.  Implementations map infrastructure
// failures onto ErrTransient and report the documented sentinels
// otherwise.

// ReservationStore persists reservations and answers availability
// queries (the table availability index).
type ReservationStore interface {
	// Create inserts res as pending_payment after verifying, atomically
	// with the insert, that no active reservation overlaps res.Interval
	// on the same table (and, for VIP tables, that the table has no
	// active reservation that day).  Returns ErrConflict when the slot
	// is taken.  On success res.ID and timestamps are populated.
	Create(ctx context.Context, res *model.Reservation) error

	// Get returns the reservation or ErrNotFound.
	Get(ctx context.Context, id uint64) (*model.Reservation, error)

	// Confirm transitions pending_payment -> confirmed, clears the hold
	// deadline and records the payment reference, but only when the
	// hold deadline is still in the future at now.  Returns
	// ErrHoldExpired when the deadline has passed, ErrInvalidState when
	// the reservation is not pending, ErrNotFound when absent.
	Confirm(ctx context.Context, id uint64, paymentRef string, now time.Time) (*model.Reservation, error)

	// Cancel transitions pending_payment|confirmed -> cancelled and
	// records the reason.  Cancelling releases the table interval; the
	// release is implicit in the status no longer being active, so
	// repeating it on an already-cancelled row reports ErrInvalidState
	// without touching anything.
	Cancel(ctx context.Context, id uint64, reason string, now time.Time) (*model.Reservation, error)

	// Expire transitions pending_payment -> expired, but only when the
	// hold deadline is at or before now.  A reservation whose payment
	// landed first is left confirmed and ErrInvalidState is returned.
	Expire(ctx context.Context, id uint64, now time.Time) (*model.Reservation, error)

	// Complete transitions confirmed -> completed once the reservation
	// interval has ended at now.
	Complete(ctx context.Context, id uint64, now time.Time) (*model.Reservation, error)

	// IsAvailable reports whether the table has no active reservation
	// overlapping the interval.  Point-in-time answer only; Create is
	// the authoritative check.
	IsAvailable(ctx context.Context, tableID uint64, iv model.Interval) (bool, error)

	// ListExpiredHolds returns up to limit pending_payment reservations
	// whose hold deadline is at or before now, oldest deadline first.
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)

	// ListFinishedConfirmed returns up to limit confirmed reservations
	// whose interval ended at or before now, oldest first.
	ListFinishedConfirmed(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)

	// AuditOverlaps returns pairs of active reservations on the table
	// whose intervals overlap.  A non-empty result is an invariant
	// violation.
	AuditOverlaps(ctx context.Context, tableID uint64) ([][2]uint64, error)
}

// WaitlistStore persists waitlist entries.
type WaitlistStore interface {
	// Enqueue inserts entry as waiting.  Returns ErrConflict when the
	// requester already has a waiting entry for the same restaurant and
	// identical interval.  On success entry.ID and EnqueuedAt are
	// populated.
	Enqueue(ctx context.Context, entry *model.WaitlistEntry) error

	// Get returns the entry or ErrNotFound.
	Get(ctx context.Context, id uint64) (*model.WaitlistEntry, error)

	// ListWaiting returns all waiting entries for the restaurant in
	// strict FIFO order: enqueue time ascending, ties broken by
	// ascending ID.
	ListWaiting(ctx context.Context, restaurantID uint64) ([]model.WaitlistEntry, error)

	// MarkPromoted transitions waiting -> promoted and links the
	// created reservation.  Compare-and-set on the waiting status.
	MarkPromoted(ctx context.Context, id, reservationID uint64, now time.Time) error

	// MarkExpired transitions waiting -> expired.
	MarkExpired(ctx context.Context, id uint64, now time.Time) error

	// MarkCancelled transitions waiting -> cancelled.
	MarkCancelled(ctx context.Context, id uint64, now time.Time) error
}

// TableStore reads restaurant table inventory.  Table CRUD lives outside
// the engine.
type TableStore interface {
	// Get returns the table or ErrNotFound.
	Get(ctx context.Context, id uint64) (*model.Table, error)

	// ListWithCapacity returns the restaurant's tables seating at least
	// seats guests, cheapest seat price first, then smallest capacity.
	ListWithCapacity(ctx context.Context, restaurantID uint64, seats uint32) ([]model.Table, error)
}

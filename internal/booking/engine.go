package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/table-reservation/internal/model"
)

// TableLocker serialises booking work on one table across daemon
// instances.  The storage transaction remains the authoritative guard;
// the lock only narrows the window in which two instances contend for
// the same row locks.  Implementations that cannot acquire may return
// an error — the engine proceeds regardless.
type TableLocker interface {
	Lock(ctx context.Context, tableID uint64) (release func(), err error)
}

// Engine owns the reservation state machine and the waitlist lifecycle.
// Every operation takes the current time explicitly so behaviour is
// deterministic under test, performs exactly one atomic storage
// transition, and returns the domain events the transition produced.
// Callers publish the events after the operation returns.
type Engine struct {
	reservations ReservationStore
	waitlist     WaitlistStore
	tables       TableStore
	locks        TableLocker // may be nil

	holdDuration     time.Duration // payment window for direct bookings
	waitlistDuration time.Duration // payment window for promoted bookings

	log zerolog.Logger
}

// NewEngine constructs an Engine.  All stores must be non-nil; locks
// may be nil, in which case the engine runs on storage atomicity
// alone; hold durations must be positive.
func NewEngine(reservations ReservationStore, waitlist WaitlistStore, tables TableStore, locks TableLocker, holdDuration, waitlistDuration time.Duration, log zerolog.Logger) *Engine {
	if reservations == nil || waitlist == nil || tables == nil {
		panic("nil store passed to NewEngine")
	}
	if holdDuration <= 0 || waitlistDuration <= 0 {
		panic("non-positive hold duration passed to NewEngine")
	}
	return &Engine{
		reservations:     reservations,
		waitlist:         waitlist,
		tables:           tables,
		locks:            locks,
		holdDuration:     holdDuration,
		waitlistDuration: waitlistDuration,
		log:              log,
	}
}

// lockTable acquires the cross-instance lock for the table, returning a
// release closure.  Lock trouble is logged and ignored: the storage
// transaction closes the race on its own.
func (e *Engine) lockTable(ctx context.Context, tableID uint64) func() {
	if e.locks == nil {
		return func() {}
	}
	release, err := e.locks.Lock(ctx, tableID)
	if err != nil {
		e.log.Warn().Err(err).Uint64("table_id", tableID).Msg("table lock unavailable; relying on storage transaction")
		return func() {}
	}
	return release
}

// CreateRequest carries the inputs for a new direct booking.
type CreateRequest struct {
	TableID   uint64
	UserID    uint64
	Interval  model.Interval
	PartySize uint32
}

// Create books the table for the interval and returns a pending_payment
// reservation whose hold deadline is exactly now plus the configured
// hold duration.  It fails with ErrConflict when the slot is taken,
// ErrInvalidState when the party does not fit the table, ErrNotFound
// when the table does not exist.  Create emits no events: downstream
// collaborators only hear about a booking once payment settles it one
// way or the other.
func (e *Engine) Create(ctx context.Context, req CreateRequest, now time.Time) (*model.Reservation, []Event, error) {
	table, err := e.tables.Get(ctx, req.TableID)
	if err != nil {
		return nil, nil, fmt.Errorf("load table %d: %w", req.TableID, err)
	}
	if req.PartySize == 0 || !table.Fits(req.PartySize) {
		return nil, nil, fmt.Errorf("party of %d does not fit table %d (capacity %d): %w",
			req.PartySize, table.ID, table.Capacity, ErrInvalidState)
	}
	release := e.lockTable(ctx, req.TableID)
	defer release()
	res, err := e.createHeld(ctx, table, req.UserID, req.Interval, req.PartySize, nil, now, e.holdDuration)
	if err != nil {
		return nil, nil, err
	}
	return res, nil, nil
}

// createHeld inserts a pending_payment reservation with a hold deadline
// of now+hold.  Shared by direct bookings and waitlist promotion; entry
// is the source waitlist entry for promotions, nil otherwise.
func (e *Engine) createHeld(ctx context.Context, table *model.Table, userID uint64, iv model.Interval, partySize uint32, entryID *uint64, now time.Time, hold time.Duration) (*model.Reservation, error) {
	deadline := now.Add(hold)
	res := &model.Reservation{
		TableID:         table.ID,
		RestaurantID:    table.RestaurantID,
		UserID:          userID,
		Interval:        iv,
		PartySize:       partySize,
		PriceCents:      partySize * table.SeatPriceCents,
		Status:          model.ReservationPendingPayment,
		HoldExpiresAt:   &deadline,
		WaitlistEntryID: entryID,
	}
	if err := e.reservations.Create(ctx, res); err != nil {
		return nil, fmt.Errorf("create reservation on table %d for %s: %w", table.ID, iv, err)
	}
	return res, nil
}

// ConfirmPayment settles a successful payment: pending_payment becomes
// confirmed and the hold deadline is cleared.  It fails with
// ErrHoldExpired when now is not before the deadline (the reservation is
// left for the sweep to expire) and ErrInvalidState from any other
// state.  Emits ReservationConfirmed.
func (e *Engine) ConfirmPayment(ctx context.Context, id uint64, paymentRef string, now time.Time) (*model.Reservation, []Event, error) {
	res, err := e.reservations.Confirm(ctx, id, paymentRef, now)
	if err != nil {
		return nil, nil, fmt.Errorf("confirm reservation %d: %w", id, err)
	}
	return res, []Event{reservationEvent(EventReservationConfirmed, res, now)}, nil
}

// Cancel transitions a pending_payment or confirmed reservation to
// cancelled, recording the reason, then attempts to promote the next
// eligible waitlist entry onto the freed slot.  Promotion failures are
// logged, never propagated: the cancellation has already committed.
// Emits ReservationCancelled plus any promotion events.
func (e *Engine) Cancel(ctx context.Context, id uint64, reason string, now time.Time) (*model.Reservation, []Event, error) {
	res, err := e.reservations.Cancel(ctx, id, reason, now)
	if err != nil {
		return nil, nil, fmt.Errorf("cancel reservation %d: %w", id, err)
	}
	events := []Event{reservationEvent(EventReservationCancelled, res, now)}
	events = append(events, e.promoteFreedSlot(ctx, res, now)...)
	return res, events, nil
}

// Expire transitions a pending_payment reservation whose hold deadline
// has passed to expired, then attempts waitlist promotion for the freed
// slot.  A racing payment wins cleanly: the compare-and-set inside the
// store leaves a freshly confirmed reservation untouched and
// ErrInvalidState is returned.  Emits ReservationExpired plus any
// promotion events.
func (e *Engine) Expire(ctx context.Context, id uint64, now time.Time) (*model.Reservation, []Event, error) {
	res, err := e.reservations.Expire(ctx, id, now)
	if err != nil {
		return nil, nil, fmt.Errorf("expire reservation %d: %w", id, err)
	}
	events := []Event{reservationEvent(EventReservationExpired, res, now)}
	events = append(events, e.promoteFreedSlot(ctx, res, now)...)
	return res, events, nil
}

// Complete marks a confirmed reservation whose interval has ended as
// completed.  The slot it occupied is in the past, so no promotion is
// attempted and no event is emitted.
func (e *Engine) Complete(ctx context.Context, id uint64, now time.Time) (*model.Reservation, []Event, error) {
	res, err := e.reservations.Complete(ctx, id, now)
	if err != nil {
		return nil, nil, fmt.Errorf("complete reservation %d: %w", id, err)
	}
	return res, nil, nil
}

// Get returns the reservation by ID.
func (e *Engine) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	return e.reservations.Get(ctx, id)
}

// promoteFreedSlot runs waitlist promotion for the slot freed by res and
// returns the resulting events.  Errors are logged and swallowed; the
// freeing transition has already committed and the next cancellation or
// sweep run will retry the promotion.
func (e *Engine) promoteFreedSlot(ctx context.Context, res *model.Reservation, now time.Time) []Event {
	// A slot already in the past cannot be rebooked.
	if res.Interval.Elapsed(now) {
		return nil
	}
	promoted, events, err := e.PromoteNext(ctx, res.TableID, res.Interval, now)
	if err != nil {
		e.log.Error().Err(err).
			Uint64("table_id", res.TableID).
			Str("interval", res.Interval.String()).
			Msg("waitlist promotion after freed slot failed")
		return nil
	}
	if promoted != nil {
		e.log.Info().
			Uint64("reservation_id", promoted.ID).
			Uint64("table_id", promoted.TableID).
			Uint64("user_id", promoted.UserID).
			Msg("waitlist entry promoted onto freed slot")
	}
	return events
}

// errIsCallerFault reports taxonomy errors the sweep should count as
// clean skips rather than record failures.
func errIsCallerFault(err error) bool {
	return errors.Is(err, ErrInvalidState) || errors.Is(err, ErrNotFound)
}

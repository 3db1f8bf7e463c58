package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
)

// EnqueueRequest carries the inputs for joining a waitlist.
type EnqueueRequest struct {
	RestaurantID uint64
	UserID       uint64
	Interval     model.Interval
	PartySize    uint32
}

// Enqueue places the requester on the restaurant's waitlist.  The entry
// queues behind everything enqueued earlier; fairness is strict FIFO by
// enqueue time with no priority for party size or any other attribute.
// ErrConflict is returned when the requester already has a waiting entry
// for the identical slot.
func (e *Engine) Enqueue(ctx context.Context, req EnqueueRequest, now time.Time) (*model.WaitlistEntry, error) {
	if req.PartySize == 0 {
		return nil, fmt.Errorf("party size must be positive: %w", ErrInvalidState)
	}
	if req.Interval.Elapsed(now) {
		return nil, fmt.Errorf("requested interval %s already passed: %w", req.Interval, ErrInvalidState)
	}
	entry := &model.WaitlistEntry{
		RestaurantID: req.RestaurantID,
		UserID:       req.UserID,
		Interval:     req.Interval,
		PartySize:    req.PartySize,
		Status:       model.WaitlistWaiting,
		EnqueuedAt:   now,
	}
	if err := e.waitlist.Enqueue(ctx, entry); err != nil {
		return nil, fmt.Errorf("enqueue waitlist entry for restaurant %d: %w", req.RestaurantID, err)
	}
	return entry, nil
}

// CancelWaitlistEntry withdraws a waiting entry.  Valid only from
// waiting; promoted, expired and cancelled entries report
// ErrInvalidState.
func (e *Engine) CancelWaitlistEntry(ctx context.Context, id uint64, now time.Time) error {
	if err := e.waitlist.MarkCancelled(ctx, id, now); err != nil {
		return fmt.Errorf("cancel waitlist entry %d: %w", id, err)
	}
	return nil
}

// PromoteNext scans the waitlist of the freed table's restaurant in
// enqueue order and promotes the first entry whose interval is contained
// in the freed interval and whose party fits the freed table.  The
// promoted entry becomes a brand-new pending_payment reservation with a
// fresh (waitlist-length) hold: the diner must still pay, and if they do
// not the sweep expires the hold and the scan resumes on the entry
// behind them.  Entries whose interval has fully elapsed are marked
// expired and skipped.  A create conflict — the slot reclaimed by a
// concurrent booking — moves the scan to the next candidate.  Returns
// (nil, nil, nil) when nothing is eligible.
func (e *Engine) PromoteNext(ctx context.Context, tableID uint64, freed model.Interval, now time.Time) (*model.Reservation, []Event, error) {
	table, err := e.tables.Get(ctx, tableID)
	if err != nil {
		return nil, nil, fmt.Errorf("load freed table %d: %w", tableID, err)
	}
	release := e.lockTable(ctx, tableID)
	defer release()
	entries, err := e.waitlist.ListWaiting(ctx, table.RestaurantID)
	if err != nil {
		return nil, nil, fmt.Errorf("list waitlist for restaurant %d: %w", table.RestaurantID, err)
	}
	for i := range entries {
		entry := &entries[i]
		if entry.Interval.Elapsed(now) {
			if err := e.waitlist.MarkExpired(ctx, entry.ID, now); err != nil && !errIsCallerFault(err) {
				return nil, nil, fmt.Errorf("expire stale waitlist entry %d: %w", entry.ID, err)
			}
			continue
		}
		if !entry.EligibleFor(freed, table) {
			continue
		}
		res, err := e.createHeld(ctx, table, entry.UserID, entry.Interval, entry.PartySize, &entry.ID, now, e.waitlistDuration)
		if errors.Is(err, ErrConflict) {
			// Slot reclaimed by a concurrent path; keep scanning.
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if err := e.waitlist.MarkPromoted(ctx, entry.ID, res.ID, now); err != nil {
			// The entry left waiting concurrently (user cancelled).
			// Undo the reservation we just made and try the next
			// candidate so the slot is not stranded.
			if errIsCallerFault(err) {
				if _, cancelErr := e.reservations.Cancel(ctx, res.ID, "waitlist entry withdrawn during promotion", now); cancelErr != nil {
					e.log.Error().Err(cancelErr).
						Uint64("reservation_id", res.ID).
						Msg("rollback of orphaned promotion reservation failed")
				}
				continue
			}
			return nil, nil, fmt.Errorf("mark waitlist entry %d promoted: %w", entry.ID, err)
		}
		res.WaitlistEntryID = &entry.ID
		ev := reservationEvent(EventWaitlistPromoted, res, now)
		ev.WaitlistID = entry.ID
		return res, []Event{ev}, nil
	}
	return nil, nil, nil
}

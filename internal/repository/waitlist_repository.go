package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/table-reservation/internal/booking"
	"github.com/iliyamo/table-reservation/internal/model"
)

// WaitlistRepo implements booking.WaitlistStore on MySQL.  FIFO
// ordering comes straight from the enqueued_at column with the primary
// key as the deterministic tie-breaker; no position column is
// maintained.
type WaitlistRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewWaitlistRepo returns a WaitlistRepo bound to the given database.
func NewWaitlistRepo(db *sql.DB, timeout time.Duration) *WaitlistRepo {
	return &WaitlistRepo{db: db, timeout: timeout}
}

const waitlistColumns = `id, restaurant_id, user_id, starts_at, ends_at, party_size,
	status, reservation_id, enqueued_at, updated_at`

func scanWaitlistEntry(row interface{ Scan(...any) error }) (*model.WaitlistEntry, error) {
	var w model.WaitlistEntry
	var status string
	var reservationID sql.NullInt64
	err := row.Scan(
		&w.ID, &w.RestaurantID, &w.UserID,
		&w.Interval.Start, &w.Interval.End, &w.PartySize,
		&status, &reservationID, &w.EnqueuedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	w.Status = model.WaitlistStatus(status)
	if reservationID.Valid {
		id := uint64(reservationID.Int64)
		w.ReservationID = &id
	}
	w.Interval.Start = w.Interval.Start.UTC()
	w.Interval.End = w.Interval.End.UTC()
	return &w, nil
}

// Enqueue inserts the entry as waiting.  The duplicate guard (one live
// entry per requester for an identical slot) runs in the same
// transaction as the insert.
func (r *WaitlistRepo) Enqueue(ctx context.Context, entry *model.WaitlistEntry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return withTx(ctx, r.db, "waitlist enqueue", func(tx *sql.Tx) error {
		const dupQ = `SELECT COUNT(*) FROM waitlist_entries
		              WHERE user_id = ? AND restaurant_id = ?
		                AND starts_at = ? AND ends_at = ?
		                AND status = 'waiting'
		              FOR UPDATE`
		var dups int
		err := tx.QueryRowContext(ctx, dupQ,
			entry.UserID, entry.RestaurantID, entry.Interval.Start, entry.Interval.End,
		).Scan(&dups)
		if err != nil {
			return transient("waitlist enqueue: duplicate check", err)
		}
		if dups > 0 {
			return fmt.Errorf("user %d already waiting for %s at restaurant %d: %w",
				entry.UserID, entry.Interval, entry.RestaurantID, booking.ErrConflict)
		}
		const ins = `INSERT INTO waitlist_entries
			(restaurant_id, user_id, starts_at, ends_at, party_size, status, enqueued_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
		result, err := tx.ExecContext(ctx, ins,
			entry.RestaurantID, entry.UserID,
			entry.Interval.Start, entry.Interval.End, entry.PartySize,
			string(entry.Status), entry.EnqueuedAt,
		)
		if err != nil {
			return transient("waitlist enqueue: insert", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return transient("waitlist enqueue: last insert id", err)
		}
		entry.ID = uint64(id)
		created, err := scanWaitlistEntry(tx.QueryRowContext(ctx,
			`SELECT `+waitlistColumns+` FROM waitlist_entries WHERE id = ?`, entry.ID))
		if err != nil {
			return transient("waitlist enqueue: readback", err)
		}
		*entry = *created
		return nil
	})
}

// Get returns the entry or booking.ErrNotFound.
func (r *WaitlistRepo) Get(ctx context.Context, id uint64) (*model.WaitlistEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	w, err := scanWaitlistEntry(r.db.QueryRowContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries WHERE id = ?`, id))
	if err != nil {
		return nil, notFound("waitlist get", err)
	}
	return w, nil
}

// ListWaiting returns all waiting entries for the restaurant in strict
// FIFO order.
func (r *WaitlistRepo) ListWaiting(ctx context.Context, restaurantID uint64) ([]model.WaitlistEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	const q = `SELECT ` + waitlistColumns + ` FROM waitlist_entries
	           WHERE restaurant_id = ? AND status = 'waiting'
	           ORDER BY enqueued_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, restaurantID)
	if err != nil {
		return nil, transient("waitlist list", err)
	}
	defer rows.Close()
	entries := make([]model.WaitlistEntry, 0)
	for rows.Next() {
		w, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, transient("waitlist list: scan", err)
		}
		entries = append(entries, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("waitlist list: rows", err)
	}
	return entries, nil
}

// MarkPromoted performs the waiting -> promoted compare-and-set and
// links the reservation created by the promotion.
func (r *WaitlistRepo) MarkPromoted(ctx context.Context, id, reservationID uint64, now time.Time) error {
	return r.transition(ctx, id, model.WaitlistPromoted, &reservationID, now)
}

// MarkExpired performs the waiting -> expired compare-and-set.
func (r *WaitlistRepo) MarkExpired(ctx context.Context, id uint64, now time.Time) error {
	return r.transition(ctx, id, model.WaitlistExpired, nil, now)
}

// MarkCancelled performs the waiting -> cancelled compare-and-set.
func (r *WaitlistRepo) MarkCancelled(ctx context.Context, id uint64, now time.Time) error {
	return r.transition(ctx, id, model.WaitlistCancelled, nil, now)
}

func (r *WaitlistRepo) transition(ctx context.Context, id uint64, to model.WaitlistStatus, reservationID *uint64, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	const q = `UPDATE waitlist_entries
	           SET status = ?, reservation_id = COALESCE(?, reservation_id), updated_at = ?
	           WHERE id = ? AND status = 'waiting'`
	var resID any
	if reservationID != nil {
		resID = *reservationID
	}
	result, err := r.db.ExecContext(ctx, q, string(to), resID, now, id)
	if err != nil {
		return transient("waitlist transition", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return transient("waitlist transition: rows affected", err)
	}
	if affected == 0 {
		current, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("waitlist entry %d is %s: %w", id, current.Status, booking.ErrInvalidState)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/table-reservation/internal/booking"
	"github.com/iliyamo/table-reservation/internal/model"
)

// ReservationRepo implements booking.ReservationStore on MySQL.  It is
// the table availability index and the system's primary race closer:
// Create locks the table row before checking for overlapping active
// reservations, so two concurrent bookings for the same slot serialize
// and exactly one wins.
type ReservationRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewReservationRepo returns a ReservationRepo bound to the given
// database.  timeout bounds every storage operation; a timeout surfaces
// as booking.ErrTransient, never as silent success.
func NewReservationRepo(db *sql.DB, timeout time.Duration) *ReservationRepo {
	return &ReservationRepo{db: db, timeout: timeout}
}

const reservationColumns = `id, table_id, restaurant_id, user_id, starts_at, ends_at,
	party_size, price_cents, status, hold_expires_at, payment_ref,
	cancellation_reason, waitlist_entry_id, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var res model.Reservation
	var status string
	var holdExpires sql.NullTime
	var paymentRef sql.NullString
	var waitlistID sql.NullInt64
	err := row.Scan(
		&res.ID, &res.TableID, &res.RestaurantID, &res.UserID,
		&res.Interval.Start, &res.Interval.End,
		&res.PartySize, &res.PriceCents, &status, &holdExpires, &paymentRef,
		&res.CancellationReason, &waitlistID, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.Status = model.ReservationStatus(status)
	if holdExpires.Valid {
		t := holdExpires.Time.UTC()
		res.HoldExpiresAt = &t
	}
	if paymentRef.Valid {
		ref := paymentRef.String
		res.PaymentRef = &ref
	}
	if waitlistID.Valid {
		id := uint64(waitlistID.Int64)
		res.WaitlistEntryID = &id
	}
	res.Interval.Start = res.Interval.Start.UTC()
	res.Interval.End = res.Interval.End.UTC()
	return &res, nil
}

// Create inserts res as a new reservation after verifying availability
// inside the same transaction.  The SELECT ... FOR UPDATE on the table
// row serializes concurrent creates for one table; the overlap test is
// the canonical start1 < end2 AND start2 < end1 against active
// reservations.  VIP tables additionally admit only one active
// reservation per UTC calendar day.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return withTx(ctx, r.db, "reservation create", func(tx *sql.Tx) error {
		var tableType string
		err := tx.QueryRowContext(ctx,
			`SELECT table_type FROM tables WHERE id = ? FOR UPDATE`, res.TableID,
		).Scan(&tableType)
		if err != nil {
			return notFound("reservation create: lock table", err)
		}

		conflictQ := `SELECT COUNT(*) FROM reservations
		              WHERE table_id = ?
		                AND status IN ('pending_payment','confirmed')
		                AND starts_at < ? AND ends_at > ?`
		args := []any{res.TableID, res.Interval.End, res.Interval.Start}
		if model.TableType(tableType) == model.TableTypeVIP {
			// One active reservation per day, overlap or not.
			conflictQ = `SELECT COUNT(*) FROM reservations
			             WHERE table_id = ?
			               AND status IN ('pending_payment','confirmed')
			               AND DATE(starts_at) = DATE(?)`
			args = []any{res.TableID, res.Interval.Start}
		}
		var conflicts int
		if err := tx.QueryRowContext(ctx, conflictQ, args...).Scan(&conflicts); err != nil {
			return transient("reservation create: overlap check", err)
		}
		if conflicts > 0 {
			return fmt.Errorf("table %d busy for %s: %w", res.TableID, res.Interval, booking.ErrConflict)
		}

		const ins = `INSERT INTO reservations
			(table_id, restaurant_id, user_id, starts_at, ends_at, party_size,
			 price_cents, status, hold_expires_at, waitlist_entry_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		var waitlistID any
		if res.WaitlistEntryID != nil {
			waitlistID = *res.WaitlistEntryID
		}
		result, err := tx.ExecContext(ctx, ins,
			res.TableID, res.RestaurantID, res.UserID,
			res.Interval.Start, res.Interval.End, res.PartySize,
			res.PriceCents, string(res.Status), res.HoldExpiresAt, waitlistID,
		)
		if err != nil {
			return transient("reservation create: insert", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return transient("reservation create: last insert id", err)
		}
		res.ID = uint64(id)
		// Query back the row to populate database-assigned timestamps.
		created, err := scanReservation(tx.QueryRowContext(ctx,
			`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, res.ID))
		if err != nil {
			return transient("reservation create: readback", err)
		}
		*res = *created
		return nil
	})
}

// Get returns the reservation or booking.ErrNotFound.
func (r *ReservationRepo) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		return nil, notFound("reservation get", err)
	}
	return res, nil
}

// Confirm performs the pending_payment -> confirmed compare-and-set.
// The WHERE clause requires the hold deadline to still be in the future
// at now, so a confirm racing an expire resolves to exactly one winner.
func (r *ReservationRepo) Confirm(ctx context.Context, id uint64, paymentRef string, now time.Time) (*model.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	const q = `UPDATE reservations
	           SET status = 'confirmed', hold_expires_at = NULL, payment_ref = ?, updated_at = ?
	           WHERE id = ? AND status = 'pending_payment' AND hold_expires_at > ?`
	result, err := r.db.ExecContext(ctx, q, paymentRef, now, id, now)
	if err != nil {
		return nil, transient("reservation confirm", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, transient("reservation confirm: rows affected", err)
	}
	if affected == 0 {
		return nil, r.explainFailedTransition(ctx, id, now, true)
	}
	return r.Get(ctx, id)
}

// Cancel performs the {pending_payment,confirmed} -> cancelled
// compare-and-set.  Releasing an already-released interval is handled
// up the stack as ErrInvalidState; the row itself is untouched.
func (r *ReservationRepo) Cancel(ctx context.Context, id uint64, reason string, now time.Time) (*model.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	const q = `UPDATE reservations
	           SET status = 'cancelled', hold_expires_at = NULL, cancellation_reason = ?, updated_at = ?
	           WHERE id = ? AND status IN ('pending_payment','confirmed')`
	result, err := r.db.ExecContext(ctx, q, reason, now, id)
	if err != nil {
		return nil, transient("reservation cancel", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, transient("reservation cancel: rows affected", err)
	}
	if affected == 0 {
		return nil, r.explainFailedTransition(ctx, id, now, false)
	}
	return r.Get(ctx, id)
}

// Expire performs the pending_payment -> expired compare-and-set.  The
// deadline predicate mirrors Confirm's with the comparison reversed, so
// the two can never both succeed for one reservation.
func (r *ReservationRepo) Expire(ctx context.Context, id uint64, now time.Time) (*model.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	const q = `UPDATE reservations
	           SET status = 'expired', hold_expires_at = NULL, updated_at = ?
	           WHERE id = ? AND status = 'pending_payment' AND hold_expires_at <= ?`
	result, err := r.db.ExecContext(ctx, q, now, id, now)
	if err != nil {
		return nil, transient("reservation expire", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, transient("reservation expire: rows affected", err)
	}
	if affected == 0 {
		return nil, r.explainFailedTransition(ctx, id, now, false)
	}
	return r.Get(ctx, id)
}

// Complete performs the confirmed -> completed compare-and-set once the
// reservation interval has ended.
func (r *ReservationRepo) Complete(ctx context.Context, id uint64, now time.Time) (*model.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	const q = `UPDATE reservations
	           SET status = 'completed', updated_at = ?
	           WHERE id = ? AND status = 'confirmed' AND ends_at <= ?`
	result, err := r.db.ExecContext(ctx, q, now, id, now)
	if err != nil {
		return nil, transient("reservation complete", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, transient("reservation complete: rows affected", err)
	}
	if affected == 0 {
		return nil, r.explainFailedTransition(ctx, id, now, false)
	}
	return r.Get(ctx, id)
}

// explainFailedTransition distinguishes why a compare-and-set updated no
// rows: the reservation is missing, its hold already ran out (only
// meaningful for Confirm), or it simply is not in the required state.
func (r *ReservationRepo) explainFailedTransition(ctx context.Context, id uint64, now time.Time, confirming bool) error {
	res, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if confirming && res.Status == model.ReservationPendingPayment && res.HoldExpired(now) {
		return fmt.Errorf("reservation %d hold ended at %s: %w", id, res.HoldExpiresAt, booking.ErrHoldExpired)
	}
	return fmt.Errorf("reservation %d is %s: %w", id, res.Status, booking.ErrInvalidState)
}

// IsAvailable reports whether the table has no active reservation
// overlapping the interval.  Advisory; Create re-checks under lock.
func (r *ReservationRepo) IsAvailable(ctx context.Context, tableID uint64, iv model.Interval) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	const q = `SELECT COUNT(*) FROM reservations
	           WHERE table_id = ?
	             AND status IN ('pending_payment','confirmed')
	             AND starts_at < ? AND ends_at > ?`
	var conflicts int
	if err := r.db.QueryRowContext(ctx, q, tableID, iv.End, iv.Start).Scan(&conflicts); err != nil {
		return false, transient("availability check", err)
	}
	return conflicts == 0, nil
}

// ListExpiredHolds returns pending reservations whose deadline is at or
// before now, oldest deadline first, bounded by limit.
func (r *ReservationRepo) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE status = 'pending_payment' AND hold_expires_at <= ?
	           ORDER BY hold_expires_at ASC, id ASC
	           LIMIT ?`
	return r.list(ctx, "list expired holds", q, now, limit)
}

// ListFinishedConfirmed returns confirmed reservations whose interval
// has ended at now, oldest first, bounded by limit.
func (r *ReservationRepo) ListFinishedConfirmed(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE status = 'confirmed' AND ends_at <= ?
	           ORDER BY ends_at ASC, id ASC
	           LIMIT ?`
	return r.list(ctx, "list finished confirmed", q, now, limit)
}

func (r *ReservationRepo) list(ctx context.Context, op, query string, now time.Time, limit int) ([]model.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, transient(op, err)
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, transient(op+": scan", err)
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, transient(op+": rows", err)
	}
	return out, nil
}

// AuditOverlaps self-joins the table's active reservations and returns
// every overlapping pair.  Any result means the primary invariant has
// been violated.
func (r *ReservationRepo) AuditOverlaps(ctx context.Context, tableID uint64) ([][2]uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	const q = `SELECT a.id, b.id FROM reservations a
	           JOIN reservations b
	             ON a.table_id = b.table_id AND a.id < b.id
	           WHERE a.table_id = ?
	             AND a.status IN ('pending_payment','confirmed')
	             AND b.status IN ('pending_payment','confirmed')
	             AND a.starts_at < b.ends_at AND b.starts_at < a.ends_at`
	rows, err := r.db.QueryContext(ctx, q, tableID)
	if err != nil {
		return nil, transient("overlap audit", err)
	}
	defer rows.Close()
	var pairs [][2]uint64
	for rows.Next() {
		var a, b uint64
		if err := rows.Scan(&a, &b); err != nil {
			return nil, transient("overlap audit: scan", err)
		}
		pairs = append(pairs, [2]uint64{a, b})
	}
	if err := rows.Err(); err != nil {
		return nil, transient("overlap audit: rows", err)
	}
	return pairs, nil
}

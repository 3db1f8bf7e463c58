// Package repository implements the booking store interfaces on MySQL.
// Repositories run their critical sections inside transactions: the
// availability check and insert of Create execute under a SELECT ... FOR
// UPDATE lock on the table row, and every status transition is a single
// compare-and-set UPDATE, so concurrent writers resolve to exactly one
// winner.  All timestamps are stored as DATETIME(6) in UTC; sub-second
// precision keeps overlap and deadline comparisons exact.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/table-reservation/internal/booking"
)

// transient wraps an unexpected database error so callers can match it
// with errors.Is(err, booking.ErrTransient) and retry with backoff.
func transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, booking.ErrTransient, err)
}

// notFound translates sql.ErrNoRows into the taxonomy; other errors are
// transient.
func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, booking.ErrNotFound)
	}
	return transient(op, err)
}

// withTx runs fn inside a transaction, rolling back on error.  Every
// repository entry point that needs multi-statement atomicity goes
// through here so the commit/rollback discipline lives in one place.
func withTx(ctx context.Context, db *sql.DB, op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return transient(op+": begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return transient(op+": commit", err)
	}
	committed = true
	return nil
}

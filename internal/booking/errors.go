// Package booking implements the reservation lifecycle engine: the
// state machine governing a reservation from creation through payment,
// hold expiration, cancellation and waitlist promotion, plus the
// periodic sweep that expires stale holds.  Storage and event delivery
// are injected; the package itself holds no ambient state and never
// reads the wall clock — callers pass now explicitly.
package booking

import "errors"

// Sentinel errors forming the caller-facing taxonomy.  Higher layers
// distinguish outcomes with errors.Is; operations wrap these with %w to
// add context.
var (
	// ErrConflict is returned when the requested table interval is
	// unavailable.  Recoverable: the caller may retry another slot or
	// join the waitlist.  This layer never retries on its own.
	ErrConflict = errors.New("conflict: table interval unavailable")

	// ErrInvalidState is returned when a transition is requested from a
	// state that does not permit it.  Caller error, not retried.
	ErrInvalidState = errors.New("invalid state for requested transition")

	// ErrNotFound is returned when a referenced reservation, waitlist
	// entry or table does not exist.
	ErrNotFound = errors.New("not found")

	// ErrHoldExpired is returned by payment confirmation when the hold
	// deadline has already passed.  The reservation stays pending until
	// the sweep expires it.
	ErrHoldExpired = errors.New("payment hold expired")

	// ErrTransient marks storage or timeout failures.  Safe to retry
	// with backoff at the caller; never silently treated as success.
	ErrTransient = errors.New("transient storage failure")

	// ErrInvariant marks a detected invariant violation, such as two
	// overlapping confirmed reservations on one table.  It is logged
	// loudly and surfaced to operators, never silently repaired.
	ErrInvariant = errors.New("invariant violation")
)

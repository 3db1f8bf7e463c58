package booking

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// sweepBatchSize bounds how many rows a single Run drains per query.  A
// run that hits the bound simply leaves the rest for the next period.
const sweepBatchSize = 500

// SweepResult summarises one sweep run.
type SweepResult struct {
	Expired   int // holds transitioned pending_payment -> expired
	Completed int // reservations transitioned confirmed -> completed
	Promoted  int // waitlist entries promoted onto freed slots
	Failed    int // records skipped because their transition errored
}

// Sweep expires stale payment holds and completes finished
// reservations.  It is a pure batch operation: an external driver calls
// Run with the current time on a fixed period.  Run is idempotent and
// safe to race with itself — every transition it performs is a
// compare-and-set, so a second concurrent run finds nothing left to do.
// A missed or delayed run only widens the effective hold window.
type Sweep struct {
	engine       *Engine
	reservations ReservationStore
	publisher    EventPublisher // may be nil
	log          zerolog.Logger
}

// NewSweep constructs a Sweep over the engine's reservation store.
// publisher may be nil when no broker is configured.
func NewSweep(engine *Engine, reservations ReservationStore, publisher EventPublisher, log zerolog.Logger) *Sweep {
	if engine == nil || reservations == nil {
		panic("nil dependency passed to NewSweep")
	}
	return &Sweep{engine: engine, reservations: reservations, publisher: publisher, log: log}
}

// Run processes every pending_payment reservation whose hold deadline is
// at or before now, then every confirmed reservation whose interval has
// ended.  One bad record never fails the batch: per-record errors are
// counted and logged, and the scan continues.  Records another writer
// got to first (payment landing just before expiry, a concurrent sweep)
// are clean skips, not failures.
func (s *Sweep) Run(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	stale, err := s.reservations.ListExpiredHolds(ctx, now, sweepBatchSize)
	if err != nil {
		return result, err
	}
	touched := make(map[uint64]struct{})
	for i := range stale {
		res := &stale[i]
		_, events, err := s.engine.Expire(ctx, res.ID, now)
		if err != nil {
			if errIsCallerFault(err) {
				continue
			}
			result.Failed++
			s.log.Error().Err(err).Uint64("reservation_id", res.ID).Msg("sweep failed to expire hold")
			continue
		}
		result.Expired++
		touched[res.TableID] = struct{}{}
		for _, ev := range events {
			if ev.Type == EventWaitlistPromoted {
				result.Promoted++
			}
			s.publish(ev)
		}
	}

	finished, err := s.reservations.ListFinishedConfirmed(ctx, now, sweepBatchSize)
	if err != nil {
		return result, err
	}
	for i := range finished {
		res := &finished[i]
		if _, _, err := s.engine.Complete(ctx, res.ID, now); err != nil {
			if errIsCallerFault(err) {
				continue
			}
			result.Failed++
			s.log.Error().Err(err).Uint64("reservation_id", res.ID).Msg("sweep failed to complete reservation")
			continue
		}
		result.Completed++
	}

	s.auditTables(ctx, touched)

	s.log.Info().
		Int("expired", result.Expired).
		Int("completed", result.Completed).
		Int("promoted", result.Promoted).
		Int("failed", result.Failed).
		Time("now", now).
		Msg("sweep run finished")
	return result, nil
}

// auditTables checks every table the run touched for overlapping active
// reservations.  A hit is an invariant violation: it is logged loudly
// for operators and never silently repaired.
func (s *Sweep) auditTables(ctx context.Context, tableIDs map[uint64]struct{}) {
	for tableID := range tableIDs {
		pairs, err := s.reservations.AuditOverlaps(ctx, tableID)
		if err != nil {
			s.log.Warn().Err(err).Uint64("table_id", tableID).Msg("overlap audit failed")
			continue
		}
		for _, pair := range pairs {
			s.log.Error().
				Uint64("table_id", tableID).
				Uint64("reservation_a", pair[0]).
				Uint64("reservation_b", pair[1]).
				Str("error", ErrInvariant.Error()).
				Msg("overlapping active reservations detected")
		}
	}
}

func (s *Sweep) publish(ev Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ev); err != nil {
		s.log.Warn().Err(err).Str("event_type", ev.Type).Str("event_id", ev.EventID).Msg("event publish failed")
	}
}

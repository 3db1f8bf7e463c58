package model

import (
	"fmt"
	"time"
)

// Interval is a half-open time range [Start, End) requested by a
// reservation or waitlist entry.  Both endpoints are stored in UTC with
// sub-second precision; availability and deadline comparisons depend on
// that precision being preserved end to end.
type Interval struct {
	Start time.Time // inclusive
	End   time.Time // exclusive
}

// NewInterval builds an Interval after normalising both endpoints to UTC.
// It returns an error when the range is empty or inverted.
func NewInterval(start, end time.Time) (Interval, error) {
	start = start.UTC()
	end = end.UTC()
	if !end.After(start) {
		return Interval{}, fmt.Errorf("interval end %s must be after start %s", end, start)
	}
	return Interval{Start: start, End: end}, nil
}

// Overlaps reports whether two half-open intervals share any instant.
// Two ranges overlap exactly when start1 < end2 AND start2 < end1; ranges
// that merely touch at an endpoint do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether other lies entirely within iv.  An interval
// contains itself.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// Elapsed reports whether the interval has fully passed at the given
// instant, i.e. nothing of it remains bookable.
func (iv Interval) Elapsed(now time.Time) bool {
	return !iv.End.After(now)
}

// Duration returns the length of the interval.
func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// String renders the interval for logs and error messages.
func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
}

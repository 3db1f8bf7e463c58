package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustInterval(t *testing.T, start, end time.Time) Interval {
	t.Helper()
	iv, err := NewInterval(start, end)
	require.NoError(t, err)
	return iv
}

func TestNewIntervalNormalisesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	start := time.Date(2026, 3, 14, 21, 0, 0, 0, loc)
	end := time.Date(2026, 3, 14, 22, 30, 0, 0, loc)

	iv := mustInterval(t, start, end)
	assert.Equal(t, time.UTC, iv.Start.Location())
	assert.Equal(t, time.UTC, iv.End.Location())
	assert.True(t, iv.Start.Equal(start))
	assert.Equal(t, 90*time.Minute, iv.Duration())
}

func TestNewIntervalRejectsEmptyAndInverted(t *testing.T) {
	at := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	_, err := NewInterval(at, at)
	assert.Error(t, err)
	_, err = NewInterval(at, at.Add(-time.Hour))
	assert.Error(t, err)
}

func TestOverlaps(t *testing.T) {
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	iv := func(h1, h2 int) Interval {
		return mustInterval(t, day.Add(time.Duration(h1)*time.Hour), day.Add(time.Duration(h2)*time.Hour))
	}

	a := iv(18, 20)
	assert.True(t, a.Overlaps(iv(19, 21)), "partial overlap")
	assert.True(t, a.Overlaps(iv(18, 20)), "identical range")
	assert.True(t, a.Overlaps(iv(17, 21)), "containing range")
	assert.True(t, a.Overlaps(iv(19, 19+1)), "contained range")
	assert.False(t, a.Overlaps(iv(20, 22)), "touching at the end is not overlap")
	assert.False(t, a.Overlaps(iv(16, 18)), "touching at the start is not overlap")
	assert.False(t, a.Overlaps(iv(21, 22)), "disjoint")
}

func TestContains(t *testing.T) {
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	outer := mustInterval(t, day.Add(18*time.Hour), day.Add(21*time.Hour))

	assert.True(t, outer.Contains(outer), "an interval contains itself")
	assert.True(t, outer.Contains(mustInterval(t, day.Add(19*time.Hour), day.Add(20*time.Hour))))
	assert.False(t, outer.Contains(mustInterval(t, day.Add(17*time.Hour), day.Add(20*time.Hour))))
	assert.False(t, outer.Contains(mustInterval(t, day.Add(20*time.Hour), day.Add(22*time.Hour))))
}

func TestElapsedIsExclusiveOfEnd(t *testing.T) {
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	iv := mustInterval(t, day.Add(18*time.Hour), day.Add(19*time.Hour))

	assert.False(t, iv.Elapsed(day.Add(18*time.Hour+59*time.Minute)))
	assert.True(t, iv.Elapsed(iv.End), "an interval is over the instant it ends")
	assert.True(t, iv.Elapsed(iv.End.Add(time.Second)))
}

func TestRoundUpToEven(t *testing.T) {
	assert.Equal(t, uint32(2), RoundUpToEven(1))
	assert.Equal(t, uint32(2), RoundUpToEven(2))
	assert.Equal(t, uint32(4), RoundUpToEven(3))
	assert.Equal(t, uint32(8), RoundUpToEven(8))
}

func TestReservationStatusHelpers(t *testing.T) {
	for status, active := range map[ReservationStatus]bool{
		ReservationPendingPayment: true,
		ReservationConfirmed:      true,
		ReservationExpired:        false,
		ReservationCancelled:      false,
		ReservationCompleted:      false,
	} {
		assert.Equal(t, active, status.Active(), "status %s", status)
		assert.Equal(t, !active, status.Terminal(), "status %s", status)
	}
}

func TestHoldExpired(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 15, 0, 0, time.UTC)
	deadline := now
	r := Reservation{Status: ReservationPendingPayment, HoldExpiresAt: &deadline}

	assert.False(t, r.HoldExpired(now.Add(-time.Second)))
	assert.True(t, r.HoldExpired(now), "the deadline instant itself is too late")

	r.HoldExpiresAt = nil
	assert.False(t, r.HoldExpired(now), "no hold, nothing to expire")
}

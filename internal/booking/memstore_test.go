package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
)

// memStore is an in-memory implementation of the three store
// interfaces.  One mutex covers every method, which gives the same
// atomicity the MySQL repositories get from transactions and row locks
// and makes the concurrency properties of the engine testable without a
// database.
type memStore struct {
	mu           sync.Mutex
	tables       map[uint64]model.Table
	reservations map[uint64]*model.Reservation
	waitlist     map[uint64]*model.WaitlistEntry
	nextResID    uint64
	nextWaitID   uint64

	// expireErr injects a per-reservation failure into Expire, used to
	// prove the sweep isolates bad records.
	expireErr map[uint64]error
}

func newMemStore(tables ...model.Table) *memStore {
	s := &memStore{
		tables:       make(map[uint64]model.Table),
		reservations: make(map[uint64]*model.Reservation),
		waitlist:     make(map[uint64]*model.WaitlistEntry),
		expireErr:    make(map[uint64]error),
	}
	for _, t := range tables {
		s.tables[t.ID] = t
	}
	return s
}

func copyReservation(r *model.Reservation) *model.Reservation {
	cp := *r
	if r.HoldExpiresAt != nil {
		t := *r.HoldExpiresAt
		cp.HoldExpiresAt = &t
	}
	if r.PaymentRef != nil {
		ref := *r.PaymentRef
		cp.PaymentRef = &ref
	}
	if r.WaitlistEntryID != nil {
		id := *r.WaitlistEntryID
		cp.WaitlistEntryID = &id
	}
	return &cp
}

func copyEntry(w *model.WaitlistEntry) *model.WaitlistEntry {
	cp := *w
	if w.ReservationID != nil {
		id := *w.ReservationID
		cp.ReservationID = &id
	}
	return &cp
}

// sameUTCDay mirrors the repository's DATE(starts_at) comparison.
func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// ReservationStore

func (s *memStore) Create(_ context.Context, res *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, ok := s.tables[res.TableID]
	if !ok {
		return fmt.Errorf("table %d: %w", res.TableID, ErrNotFound)
	}
	for _, other := range s.reservations {
		if other.TableID != res.TableID || !other.Status.Active() {
			continue
		}
		if table.Type == model.TableTypeVIP && sameUTCDay(other.Interval.Start, res.Interval.Start) {
			return fmt.Errorf("vip table %d already booked that day: %w", res.TableID, ErrConflict)
		}
		if other.Interval.Overlaps(res.Interval) {
			return fmt.Errorf("table %d busy for %s: %w", res.TableID, res.Interval, ErrConflict)
		}
	}
	s.nextResID++
	res.ID = s.nextResID
	res.CreatedAt = time.Now().UTC()
	res.UpdatedAt = res.CreatedAt
	s.reservations[res.ID] = copyReservation(res)
	return nil
}

func (s *memStore) Get(_ context.Context, id uint64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	return copyReservation(res), nil
}

func (s *memStore) Confirm(_ context.Context, id uint64, paymentRef string, now time.Time) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	if res.Status != model.ReservationPendingPayment {
		return nil, fmt.Errorf("reservation %d is %s: %w", id, res.Status, ErrInvalidState)
	}
	if res.HoldExpired(now) {
		return nil, fmt.Errorf("reservation %d hold ended: %w", id, ErrHoldExpired)
	}
	res.Status = model.ReservationConfirmed
	res.HoldExpiresAt = nil
	res.PaymentRef = &paymentRef
	res.UpdatedAt = now
	return copyReservation(res), nil
}

func (s *memStore) Cancel(_ context.Context, id uint64, reason string, now time.Time) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	if !res.Status.Active() {
		return nil, fmt.Errorf("reservation %d is %s: %w", id, res.Status, ErrInvalidState)
	}
	res.Status = model.ReservationCancelled
	res.HoldExpiresAt = nil
	res.CancellationReason = reason
	res.UpdatedAt = now
	return copyReservation(res), nil
}

func (s *memStore) Expire(_ context.Context, id uint64, now time.Time) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.expireErr[id]; ok {
		return nil, err
	}
	res, ok := s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	if res.Status != model.ReservationPendingPayment || !res.HoldExpired(now) {
		return nil, fmt.Errorf("reservation %d is %s: %w", id, res.Status, ErrInvalidState)
	}
	res.Status = model.ReservationExpired
	res.HoldExpiresAt = nil
	res.UpdatedAt = now
	return copyReservation(res), nil
}

func (s *memStore) Complete(_ context.Context, id uint64, now time.Time) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	if res.Status != model.ReservationConfirmed || !res.Interval.Elapsed(now) {
		return nil, fmt.Errorf("reservation %d is %s: %w", id, res.Status, ErrInvalidState)
	}
	res.Status = model.ReservationCompleted
	res.UpdatedAt = now
	return copyReservation(res), nil
}

func (s *memStore) IsAvailable(_ context.Context, tableID uint64, iv model.Interval) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range s.reservations {
		if res.TableID == tableID && res.Status.Active() && res.Interval.Overlaps(iv) {
			return false, nil
		}
	}
	return true, nil
}

func (s *memStore) ListExpiredHolds(_ context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, res := range s.reservations {
		if res.Status == model.ReservationPendingPayment && res.HoldExpired(now) {
			out = append(out, *copyReservation(res))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.HoldExpiresAt.Equal(*b.HoldExpiresAt) {
			return a.HoldExpiresAt.Before(*b.HoldExpiresAt)
		}
		return a.ID < b.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ListFinishedConfirmed(_ context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, res := range s.reservations {
		if res.Status == model.ReservationConfirmed && res.Interval.Elapsed(now) {
			out = append(out, *copyReservation(res))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Interval.End.Equal(b.Interval.End) {
			return a.Interval.End.Before(b.Interval.End)
		}
		return a.ID < b.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) AuditOverlaps(_ context.Context, tableID uint64) ([][2]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []*model.Reservation
	for _, res := range s.reservations {
		if res.TableID == tableID && res.Status.Active() {
			active = append(active, res)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	var pairs [][2]uint64
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			if active[i].Interval.Overlaps(active[j].Interval) {
				pairs = append(pairs, [2]uint64{active[i].ID, active[j].ID})
			}
		}
	}
	return pairs, nil
}

// WaitlistStore

func (s *memStore) Enqueue(_ context.Context, entry *model.WaitlistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.waitlist {
		if other.UserID == entry.UserID && other.RestaurantID == entry.RestaurantID &&
			other.Status == model.WaitlistWaiting &&
			other.Interval.Start.Equal(entry.Interval.Start) && other.Interval.End.Equal(entry.Interval.End) {
			return fmt.Errorf("duplicate waitlist entry: %w", ErrConflict)
		}
	}
	s.nextWaitID++
	entry.ID = s.nextWaitID
	entry.UpdatedAt = entry.EnqueuedAt
	s.waitlist[entry.ID] = copyEntry(entry)
	return nil
}

func (s *memStore) GetEntry(_ context.Context, id uint64) (*model.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.waitlist[id]
	if !ok {
		return nil, fmt.Errorf("waitlist entry %d: %w", id, ErrNotFound)
	}
	return copyEntry(w), nil
}

func (s *memStore) ListWaiting(_ context.Context, restaurantID uint64) ([]model.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WaitlistEntry
	for _, w := range s.waitlist {
		if w.RestaurantID == restaurantID && w.Status == model.WaitlistWaiting {
			out = append(out, *copyEntry(w))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.EnqueuedAt.Equal(b.EnqueuedAt) {
			return a.EnqueuedAt.Before(b.EnqueuedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *memStore) MarkPromoted(_ context.Context, id, reservationID uint64, now time.Time) error {
	return s.transitionEntry(id, model.WaitlistPromoted, &reservationID, now)
}

func (s *memStore) MarkExpired(_ context.Context, id uint64, now time.Time) error {
	return s.transitionEntry(id, model.WaitlistExpired, nil, now)
}

func (s *memStore) MarkCancelled(_ context.Context, id uint64, now time.Time) error {
	return s.transitionEntry(id, model.WaitlistCancelled, nil, now)
}

func (s *memStore) transitionEntry(id uint64, to model.WaitlistStatus, reservationID *uint64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.waitlist[id]
	if !ok {
		return fmt.Errorf("waitlist entry %d: %w", id, ErrNotFound)
	}
	if w.Status != model.WaitlistWaiting {
		return fmt.Errorf("waitlist entry %d is %s: %w", id, w.Status, ErrInvalidState)
	}
	w.Status = to
	if reservationID != nil {
		w.ReservationID = reservationID
	}
	w.UpdatedAt = now
	return nil
}

// The interfaces all declare Get, so the waitlist and table views are
// thin adapters over the shared state.

type memWaitlistView struct{ *memStore }

func (v memWaitlistView) Get(ctx context.Context, id uint64) (*model.WaitlistEntry, error) {
	return v.GetEntry(ctx, id)
}

type memTableView struct{ *memStore }

func (v memTableView) Get(ctx context.Context, id uint64) (*model.Table, error) {
	return v.GetTable(ctx, id)
}

// stores returns the three interface views backed by the same state.
func (s *memStore) stores() (ReservationStore, WaitlistStore, TableStore) {
	return s, memWaitlistView{s}, memTableView{s}
}

// TableStore

func (s *memStore) GetTable(_ context.Context, id uint64) (*model.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[id]
	if !ok {
		return nil, fmt.Errorf("table %d: %w", id, ErrNotFound)
	}
	cp := t
	return &cp, nil
}

func (s *memStore) ListWithCapacity(_ context.Context, restaurantID uint64, seats uint32) ([]model.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Table
	for _, t := range s.tables {
		if t.RestaurantID == restaurantID && t.Capacity >= seats {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SeatPriceCents != b.SeatPriceCents {
			return a.SeatPriceCents < b.SeatPriceCents
		}
		if a.Capacity != b.Capacity {
			return a.Capacity < b.Capacity
		}
		return a.ID < b.ID
	})
	return out, nil
}

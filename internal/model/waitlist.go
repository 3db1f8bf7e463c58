package model

import "time"

// WaitlistStatus enumerates waitlist entry lifecycle states.  An entry is
// created waiting and leaves that state exactly once: promoted into a new
// reservation, expired because its interval passed unserved, or cancelled
// by the requester.
type WaitlistStatus string

const (
	WaitlistWaiting   WaitlistStatus = "waiting"
	WaitlistPromoted  WaitlistStatus = "promoted"
	WaitlistExpired   WaitlistStatus = "expired"
	WaitlistCancelled WaitlistStatus = "cancelled"
)

// WaitlistEntry queues a diner for a restaurant slot that was full at
// booking time.  Entries are served strictly first-in first-out by
// enqueue time, ties broken by ascending ID; no attribute grants
// priority.
//
// Fields:
//  ID            – primary key identifier.
//  RestaurantID  – restaurant the diner is waiting for.
//  UserID        – requester.
//  Interval      – desired half-open time range.
//  PartySize     – number of guests.
//  Status        – lifecycle state.
//  ReservationID – reservation created by promotion, when promoted.
//  EnqueuedAt    – FIFO ordering key.
//  UpdatedAt     – last update timestamp.
type WaitlistEntry struct {
	ID            uint64         // waitlist_entries.id
	RestaurantID  uint64         // waitlist_entries.restaurant_id
	UserID        uint64         // waitlist_entries.user_id
	Interval      Interval       // waitlist_entries.starts_at / ends_at
	PartySize     uint32         // waitlist_entries.party_size
	Status        WaitlistStatus // waitlist_entries.status
	ReservationID *uint64        // waitlist_entries.reservation_id (nullable)
	EnqueuedAt    time.Time      // waitlist_entries.enqueued_at
	UpdatedAt     time.Time      // waitlist_entries.updated_at
}

// EligibleFor reports whether the entry could take over the freed slot:
// its interval must be contained in the freed interval and its party must
// fit the freed table.
func (w *WaitlistEntry) EligibleFor(freed Interval, table *Table) bool {
	return freed.Contains(w.Interval) && table.Fits(w.PartySize)
}

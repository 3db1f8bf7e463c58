package model

import "time"

// TableType distinguishes ordinary tables from VIP tables.  VIP tables
// carry an extra booking restriction: at most one active reservation per
// calendar day, regardless of time overlap.
type TableType string

const (
	TableTypeStandard TableType = "STANDARD"
	TableTypeVIP      TableType = "VIP"
)

// Table is a bookable unit of restaurant inventory.  Capacity edits and
// table CRUD are an external concern; the lifecycle engine only reads
// tables.
//
// Fields:
//  ID             – primary key identifier.
//  RestaurantID   – restaurant owning the table.
//  Capacity       – number of seats.
//  Type           – STANDARD or VIP.
//  SeatPriceCents – per-seat price used to price reservations.
//  CreatedAt      – creation timestamp.
type Table struct {
	ID             uint64    // tables.id
	RestaurantID   uint64    // tables.restaurant_id
	Capacity       uint32    // tables.capacity
	Type           TableType // tables.table_type
	SeatPriceCents uint32    // tables.seat_price_cents
	CreatedAt      time.Time // tables.created_at
}

// Fits reports whether a party of the given size can be seated.
func (t *Table) Fits(partySize uint32) bool { return partySize <= t.Capacity }

// RoundUpToEven rounds a party size up to the next even seat count.  Table
// search uses the rounded value so odd parties are offered tables with a
// spare seat rather than an exact squeeze.
func RoundUpToEven(partySize uint32) uint32 {
	if partySize%2 == 0 {
		return partySize
	}
	return partySize + 1
}

package booking

import (
	"context"
	"fmt"

	"github.com/iliyamo/table-reservation/internal/model"
)

// AvailableTables returns the restaurant's tables that can seat the
// party and have no active reservation overlapping the interval.  The
// party size is rounded up to an even seat count so odd parties get a
// spare seat; ordering (cheapest seat price, then smallest capacity)
// comes from the table store.
func (e *Engine) AvailableTables(ctx context.Context, restaurantID uint64, iv model.Interval, partySize uint32) ([]model.Table, error) {
	if partySize == 0 {
		return nil, fmt.Errorf("party size must be positive: %w", ErrInvalidState)
	}
	seats := model.RoundUpToEven(partySize)
	tables, err := e.tables.ListWithCapacity(ctx, restaurantID, seats)
	if err != nil {
		return nil, fmt.Errorf("list tables for restaurant %d: %w", restaurantID, err)
	}
	available := make([]model.Table, 0, len(tables))
	for _, table := range tables {
		free, err := e.reservations.IsAvailable(ctx, table.ID, iv)
		if err != nil {
			return nil, fmt.Errorf("check availability of table %d: %w", table.ID, err)
		}
		if free {
			available = append(available, table)
		}
	}
	return available, nil
}

// IsAvailable answers whether one specific table is free for the
// interval right now.  Advisory only; Create is the atomic check.
func (e *Engine) IsAvailable(ctx context.Context, tableID uint64, iv model.Interval) (bool, error) {
	return e.reservations.IsAvailable(ctx, tableID, iv)
}

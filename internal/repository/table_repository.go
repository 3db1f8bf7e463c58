package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
)

// TableRepo provides read access to restaurant tables.  Table CRUD is
// performed by an external system; the lifecycle engine only consumes
// the inventory.
type TableRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewTableRepo returns a TableRepo bound to the given database.
func NewTableRepo(db *sql.DB, timeout time.Duration) *TableRepo {
	return &TableRepo{db: db, timeout: timeout}
}

const tableColumns = `id, restaurant_id, capacity, table_type, seat_price_cents, created_at`

func scanTable(row interface{ Scan(...any) error }) (*model.Table, error) {
	var t model.Table
	var typ string
	if err := row.Scan(&t.ID, &t.RestaurantID, &t.Capacity, &typ, &t.SeatPriceCents, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Type = model.TableType(typ)
	return &t, nil
}

// Get returns the table or booking.ErrNotFound.
func (r *TableRepo) Get(ctx context.Context, id uint64) (*model.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	row := r.db.QueryRowContext(ctx, `SELECT `+tableColumns+` FROM tables WHERE id = ?`, id)
	t, err := scanTable(row)
	if err != nil {
		return nil, notFound("table get", err)
	}
	return t, nil
}

// ListWithCapacity returns the restaurant's tables seating at least the
// given number of guests, ordered by seat price then capacity so the
// cheapest adequate table comes first.
func (r *TableRepo) ListWithCapacity(ctx context.Context, restaurantID uint64, seats uint32) ([]model.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	const q = `SELECT ` + tableColumns + `
	           FROM tables
	           WHERE restaurant_id = ? AND capacity >= ?
	           ORDER BY seat_price_cents ASC, capacity ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, restaurantID, seats)
	if err != nil {
		return nil, transient("table list", err)
	}
	defer rows.Close()
	tables := make([]model.Table, 0)
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, transient("table list scan", err)
		}
		tables = append(tables, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("table list rows", err)
	}
	return tables, nil
}

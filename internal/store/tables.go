package store

import (
	"context"

	"resto-ops-services/internal/lifecycle"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const tableColumns = `id, number, zone, capacity, status, current_order_id, current_reservation_id, awaiting_order, version, updated_at`

func scanTable(row pgx.Row) (lifecycle.Table, error) {
	var (
		t             lifecycle.Table
		status        string
		orderID       pgtype.Int8
		reservationID pgtype.Int8
	)
	if err := row.Scan(&t.ID, &t.Number, &t.Zone, &t.Capacity, &status, &orderID, &reservationID, &t.AwaitingOrder, &t.Version, &t.UpdatedAt); err != nil {
		return lifecycle.Table{}, err
	}
	t.Status = lifecycle.TableStatus(status)
	t.CurrentOrderID = int8Ptr(orderID)
	t.CurrentReservationID = int8Ptr(reservationID)
	return t, nil
}

func (s *Store) ListTables(ctx context.Context) ([]lifecycle.Table, error) {
	rows, err := s.q.Query(ctx, `select `+tableColumns+` from restaurant_tables order by zone, number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := make([]lifecycle.Table, 0)
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (s *Store) GetTable(ctx context.Context, id int64) (lifecycle.Table, error) {
	t, err := scanTable(s.q.QueryRow(ctx, `select `+tableColumns+` from restaurant_tables where id = $1`, id))
	if err != nil {
		return lifecycle.Table{}, notFoundOr(err, "Table not found")
	}
	return t, nil
}

func (s *Store) UpdateTable(ctx context.Context, table lifecycle.Table) error {
	tag, err := s.q.Exec(ctx, `
		update restaurant_tables
		set status = $1,
			current_order_id = $2,
			current_reservation_id = $3,
			awaiting_order = $4,
			version = $5,
			updated_at = $6
		where id = $7 and version = $8
	`,
		string(table.Status),
		table.CurrentOrderID,
		table.CurrentReservationID,
		table.AwaitingOrder,
		table.Version,
		s.now(),
		table.ID,
		table.Version-1,
	)
	if err != nil {
		return err
	}
	return staleWrite(tag, "Table", table.ID, table.Version-1)
}

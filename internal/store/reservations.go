package store

import (
	"context"

	"resto-ops-services/internal/lifecycle"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const reservationColumns = `id, reservation_number, customer_id, table_id, reservation_date, reservation_time,
	party_size, status, reject_reason, version, updated_by, created_at, updated_at`

func scanReservation(row pgx.Row) (lifecycle.Reservation, error) {
	var (
		r            lifecycle.Reservation
		customerID   pgtype.Int8
		tableID      pgtype.Int8
		status       string
		rejectReason pgtype.Text
		updatedBy    pgtype.Text
	)
	err := row.Scan(&r.ID, &r.ReservationNumber, &customerID, &tableID, &r.Date, &r.Time,
		&r.PartySize, &status, &rejectReason, &r.Version, &updatedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return lifecycle.Reservation{}, err
	}
	r.CustomerID = int8Ptr(customerID)
	r.TableID = int8Ptr(tableID)
	r.Status = lifecycle.ReservationStatus(status)
	r.RejectReason = textPtr(rejectReason)
	r.UpdatedBy = textPtr(updatedBy)
	return r, nil
}

func (s *Store) GetReservation(ctx context.Context, id int64) (lifecycle.Reservation, error) {
	r, err := scanReservation(s.q.QueryRow(ctx, `select `+reservationColumns+` from reservations where id = $1`, id))
	if err != nil {
		return lifecycle.Reservation{}, notFoundOr(err, "Reservation not found")
	}
	return r, nil
}

func (s *Store) CreateReservation(ctx context.Context, res lifecycle.Reservation) (lifecycle.Reservation, error) {
	out := res
	if out.ReservationNumber == "" {
		number, err := s.nextNumber(ctx, "reservations", "reservation_number", "RSV")
		if err != nil {
			return lifecycle.Reservation{}, err
		}
		out.ReservationNumber = number
	}

	now := s.now()
	err := s.q.QueryRow(ctx, `
		insert into reservations (
			reservation_number, customer_id, table_id, reservation_date, reservation_time,
			party_size, status, version, updated_by, created_at, updated_at
		) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		returning id, created_at, updated_at
	`,
		out.ReservationNumber,
		out.CustomerID,
		out.TableID,
		out.Date,
		out.Time,
		out.PartySize,
		string(out.Status),
		out.Version,
		out.UpdatedBy,
		now,
	).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return lifecycle.Reservation{}, err
	}
	return out, nil
}

func (s *Store) UpdateReservation(ctx context.Context, res lifecycle.Reservation) error {
	tag, err := s.q.Exec(ctx, `
		update reservations
		set status = $1,
			table_id = $2,
			reject_reason = $3,
			updated_by = $4,
			version = $5,
			updated_at = $6
		where id = $7 and version = $8
	`, string(res.Status), res.TableID, res.RejectReason, res.UpdatedBy, res.Version, s.now(), res.ID, res.Version-1)
	if err != nil {
		return err
	}
	return staleWrite(tag, "Reservation", res.ID, res.Version-1)
}

// ListSlotReservations returns the reservations sharing a table and slot,
// terminal ones included; callers filter with lifecycle.CheckSlot.
func (s *Store) ListSlotReservations(ctx context.Context, tableID int64, date, clock string) ([]lifecycle.Reservation, error) {
	rows, err := s.q.Query(ctx, `
		select `+reservationColumns+`
		from reservations
		where table_id = $1 and reservation_date = $2 and reservation_time = $3
		order by id
	`, tableID, date, clock)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]lifecycle.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

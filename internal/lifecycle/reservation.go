package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"resto-ops-services/internal/apperror"
)

type NewReservationInput struct {
	ReservationNumber string
	CustomerID        *int64
	TableID           *int64
	Date              string
	Time              string
	PartySize         int
}

func NewReservation(in NewReservationInput) (Reservation, error) {
	date := strings.TrimSpace(in.Date)
	clock := strings.TrimSpace(in.Time)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return Reservation{}, apperror.ValidationFailed("Reservation date must be YYYY-MM-DD", map[string]any{"field": "date"})
	}
	if _, err := time.Parse("15:04", clock); err != nil {
		return Reservation{}, apperror.ValidationFailed("Reservation time must be HH:MM", map[string]any{"field": "time"})
	}
	if in.PartySize <= 0 {
		return Reservation{}, apperror.ValidationFailed("Party size must be positive", map[string]any{"field": "partySize"})
	}
	return Reservation{
		ReservationNumber: strings.TrimSpace(in.ReservationNumber),
		CustomerID:        in.CustomerID,
		TableID:           in.TableID,
		Date:              date,
		Time:              clock,
		PartySize:         in.PartySize,
		Status:            ReservationPending,
	}, nil
}

// ConfirmReservation accepts a pending reservation for the given table. The
// party size is checked again because the assigned table may have changed
// since the request was made.
func ConfirmReservation(res Reservation, table Table, actor Actor) (ReservationResult, error) {
	if res.Status != ReservationPending {
		return ReservationResult{}, reservationPrecondition(res, "confirmed", ReservationPending)
	}
	if err := checkCapacity(res, table); err != nil {
		return ReservationResult{}, err
	}
	out := stamp(res, ReservationConfirmed, actor)
	out.TableID = int64Ptr(table.ID)
	return ReservationResult{Reservation: out, Effects: []SideEffect{reservationNotice(out)}}, nil
}

// RejectReservation cancels a pending or confirmed reservation. The reason is
// kept verbatim and never validated here.
func RejectReservation(res Reservation, reason string, actor Actor) (ReservationResult, error) {
	if res.Status != ReservationPending && res.Status != ReservationConfirmed {
		return ReservationResult{}, reservationPrecondition(res, "rejected", ReservationPending, ReservationConfirmed)
	}
	wasConfirmed := res.Status == ReservationConfirmed
	out := stamp(res, ReservationCancelled, actor)
	out.RejectReason = stringPtr(reason)

	effects := []SideEffect{reservationNotice(out)}
	if wasConfirmed && out.TableID != nil {
		effects = append(effects, SideEffect{Kind: EffectSuggestTableRelease, ReservationID: int64Ptr(out.ID), TableID: int64Ptr(*out.TableID), Status: string(out.Status)})
	}
	return ReservationResult{Reservation: out, Effects: effects}, nil
}

// ActivateReservation seats an arriving party. The table becomes occupied with
// no order yet; AwaitingOrder flags that window until AttachOrder runs.
func ActivateReservation(res Reservation, table Table, actor Actor) (ReservationResult, error) {
	if res.Status != ReservationConfirmed {
		return ReservationResult{}, reservationPrecondition(res, "activated", ReservationConfirmed)
	}
	switch table.Status {
	case TableAvailable:
	case TableReserved:
		if table.CurrentReservationID == nil || *table.CurrentReservationID != res.ID {
			return ReservationResult{}, apperror.TableNotAvailable(
				fmt.Sprintf("Table %s is held for another reservation", tableLabel(table)),
				map[string]any{"tableId": table.ID, "reservationId": res.ID})
		}
	default:
		return ReservationResult{}, apperror.TableNotAvailable(
			fmt.Sprintf("Table %s is %s", tableLabel(table), table.Status),
			map[string]any{"tableId": table.ID, "status": string(table.Status)})
	}
	if err := checkCapacity(res, table); err != nil {
		return ReservationResult{}, err
	}

	out := stamp(res, ReservationActive, actor)
	out.TableID = int64Ptr(table.ID)

	seated := table
	seated.Status = TableOccupied
	seated.CurrentOrderID = nil
	seated.CurrentReservationID = nil
	seated.AwaitingOrder = true
	seated.Version = table.Version + 1

	effects := []SideEffect{
		reservationNotice(out),
		{Kind: EffectAwaitOrder, ReservationID: int64Ptr(out.ID), TableID: int64Ptr(table.ID)},
	}
	return ReservationResult{Reservation: out, Table: &seated, Effects: effects}, nil
}

func CompleteReservation(res Reservation, actor Actor) (ReservationResult, error) {
	if res.Status != ReservationActive {
		return ReservationResult{}, reservationPrecondition(res, "completed", ReservationActive)
	}
	out := stamp(res, ReservationCompleted, actor)
	effects := []SideEffect{reservationNotice(out)}
	if out.TableID != nil {
		effects = append(effects, SideEffect{Kind: EffectSuggestTableRelease, ReservationID: int64Ptr(out.ID), TableID: int64Ptr(*out.TableID), Status: string(out.Status)})
	}
	return ReservationResult{Reservation: out, Effects: effects}, nil
}

func MarkNoShow(res Reservation, actor Actor) (ReservationResult, error) {
	if res.Status != ReservationPending && res.Status != ReservationConfirmed {
		return ReservationResult{}, reservationPrecondition(res, "marked as no-show", ReservationPending, ReservationConfirmed)
	}
	wasConfirmed := res.Status == ReservationConfirmed
	out := stamp(res, ReservationNoShow, actor)
	effects := []SideEffect{reservationNotice(out)}
	if wasConfirmed && out.TableID != nil {
		effects = append(effects, SideEffect{Kind: EffectSuggestTableRelease, ReservationID: int64Ptr(out.ID), TableID: int64Ptr(*out.TableID), Status: string(out.Status)})
	}
	return ReservationResult{Reservation: out, Effects: effects}, nil
}

// CheckSlot rejects a candidate whose table/date/time slot is already held by
// another non-terminal reservation.
func CheckSlot(candidate Reservation, existing []Reservation) error {
	if candidate.TableID == nil {
		return nil
	}
	for _, other := range existing {
		if other.ID == candidate.ID && candidate.ID != 0 {
			continue
		}
		if other.Status.IsTerminal() || other.TableID == nil {
			continue
		}
		if *other.TableID == *candidate.TableID && other.Date == candidate.Date && other.Time == candidate.Time {
			return apperror.PreconditionFailed("Table already has a reservation for this slot", map[string]any{
				"tableId":       *candidate.TableID,
				"date":          candidate.Date,
				"time":          candidate.Time,
				"reservationId": other.ID,
			})
		}
	}
	return nil
}

func checkCapacity(res Reservation, table Table) error {
	if res.PartySize > table.Capacity {
		return apperror.PartySizeExceedsCapacity(
			fmt.Sprintf("Party of %d does not fit table %s (capacity %d)", res.PartySize, tableLabel(table), table.Capacity),
			map[string]any{"partySize": res.PartySize, "capacity": table.Capacity, "tableId": table.ID})
	}
	return nil
}

func reservationPrecondition(res Reservation, action string, allowed ...ReservationStatus) error {
	names := make([]string, 0, len(allowed))
	for _, s := range allowed {
		names = append(names, string(s))
	}
	return apperror.PreconditionFailed(
		fmt.Sprintf("Reservation is %s and cannot be %s", res.Status, action),
		map[string]any{"reservationId": res.ID, "status": string(res.Status), "allowed": names})
}

func stamp(res Reservation, status ReservationStatus, actor Actor) Reservation {
	out := res
	out.Status = status
	out.Version = res.Version + 1
	if actor.ID != "" {
		out.UpdatedBy = stringPtr(actor.ID)
	}
	return out
}

func reservationNotice(res Reservation) SideEffect {
	return SideEffect{Kind: EffectNotifyCustomer, ReservationID: int64Ptr(res.ID), Status: string(res.Status)}
}

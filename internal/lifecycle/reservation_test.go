package lifecycle

import (
	"errors"
	"testing"

	"resto-ops-services/internal/apperror"
)

func pendingReservation(partySize int) Reservation {
	return Reservation{ID: 11, Date: "2026-10-20", Time: "19:30", PartySize: partySize, Status: ReservationPending}
}

func TestConfirmReservationCapacityGuard(t *testing.T) {
	table := freeTable()
	_, err := ConfirmReservation(pendingReservation(6), table, Actor{})
	if !errors.Is(err, apperror.ErrPartySizeExceedsCapacity) {
		t.Fatalf("expected PARTY_SIZE_EXCEEDS_CAPACITY, got %v", err)
	}

	res, err := ConfirmReservation(pendingReservation(4), table, Actor{ID: "admin-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reservation.Status != ReservationConfirmed || *res.Reservation.TableID != table.ID {
		t.Fatalf("expected confirmed on table %d, got %+v", table.ID, res.Reservation)
	}
	if !HasEffect(res.Effects, EffectNotifyCustomer) {
		t.Fatalf("confirmation should notify the customer")
	}

	if _, err := ConfirmReservation(res.Reservation, table, Actor{}); !errors.Is(err, apperror.ErrPreconditionFailed) {
		t.Fatalf("confirming twice should fail with PRECONDITION_FAILED, got %v", err)
	}
}

func TestRejectReservation(t *testing.T) {
	res, err := RejectReservation(pendingReservation(2), "kitchen closed", Actor{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reservation.Status != ReservationCancelled || *res.Reservation.RejectReason != "kitchen closed" {
		t.Fatalf("unexpected result %+v", res.Reservation)
	}

	confirmed, _ := ConfirmReservation(pendingReservation(2), freeTable(), Actor{})
	rejected, err := RejectReservation(confirmed.Reservation, "", Actor{})
	if err != nil {
		t.Fatalf("reason is opaque to the engine: %v", err)
	}
	if !HasEffect(rejected.Effects, EffectSuggestTableRelease) {
		t.Fatalf("rejecting a confirmed reservation should suggest releasing its table")
	}

	for _, status := range []ReservationStatus{ReservationActive, ReservationCompleted, ReservationCancelled, ReservationNoShow} {
		r := pendingReservation(2)
		r.Status = status
		if _, err := RejectReservation(r, "x", Actor{}); !errors.Is(err, apperror.ErrPreconditionFailed) {
			t.Fatalf("%s: expected PRECONDITION_FAILED, got %v", status, err)
		}
	}
}

func TestActivateReservation(t *testing.T) {
	confirmed, _ := ConfirmReservation(pendingReservation(3), freeTable(), Actor{})

	res, err := ActivateReservation(confirmed.Reservation, freeTable(), Actor{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reservation.Status != ReservationActive {
		t.Fatalf("expected active, got %s", res.Reservation.Status)
	}
	if res.Table == nil || res.Table.Status != TableOccupied || res.Table.CurrentOrderID != nil || !res.Table.AwaitingOrder {
		t.Fatalf("expected occupied table awaiting an order, got %+v", res.Table)
	}
	if !HasEffect(res.Effects, EffectAwaitOrder) {
		t.Fatalf("activation should announce the pending order")
	}

	held, _ := HoldTable(freeTable(), confirmed.Reservation.ID)
	if _, err := ActivateReservation(confirmed.Reservation, held.Table, Actor{}); err != nil {
		t.Fatalf("table held for this reservation should activate: %v", err)
	}

	otherHold, _ := HoldTable(freeTable(), 999)
	if _, err := ActivateReservation(confirmed.Reservation, otherHold.Table, Actor{}); !errors.Is(err, apperror.ErrTableNotAvailable) {
		t.Fatalf("expected TABLE_NOT_AVAILABLE for another hold, got %v", err)
	}

	busy, _ := OccupyTable(freeTable(), 5)
	if _, err := ActivateReservation(confirmed.Reservation, busy.Table, Actor{}); !errors.Is(err, apperror.ErrTableNotAvailable) {
		t.Fatalf("expected TABLE_NOT_AVAILABLE for occupied table, got %v", err)
	}

	small := freeTable()
	small.Capacity = 2
	if _, err := ActivateReservation(confirmed.Reservation, small, Actor{}); !errors.Is(err, apperror.ErrPartySizeExceedsCapacity) {
		t.Fatalf("expected PARTY_SIZE_EXCEEDS_CAPACITY, got %v", err)
	}

	if _, err := ActivateReservation(pendingReservation(2), freeTable(), Actor{}); !errors.Is(err, apperror.ErrPreconditionFailed) {
		t.Fatalf("pending reservations cannot be activated, got %v", err)
	}
}

func TestCompleteAndNoShow(t *testing.T) {
	confirmed, _ := ConfirmReservation(pendingReservation(2), freeTable(), Actor{})
	active, _ := ActivateReservation(confirmed.Reservation, freeTable(), Actor{})

	done, err := CompleteReservation(active.Reservation, Actor{})
	if err != nil || done.Reservation.Status != ReservationCompleted {
		t.Fatalf("expected completed, got %+v %v", done.Reservation, err)
	}
	if _, err := CompleteReservation(confirmed.Reservation, Actor{}); !errors.Is(err, apperror.ErrPreconditionFailed) {
		t.Fatalf("only active reservations complete")
	}

	noShow, err := MarkNoShow(confirmed.Reservation, Actor{})
	if err != nil || noShow.Reservation.Status != ReservationNoShow {
		t.Fatalf("expected no_show, got %+v %v", noShow.Reservation, err)
	}
	if _, err := MarkNoShow(active.Reservation, Actor{}); !errors.Is(err, apperror.ErrPreconditionFailed) {
		t.Fatalf("active reservations cannot be no-shows")
	}
}

func TestCheckSlot(t *testing.T) {
	tableID := int64(5)
	candidate := pendingReservation(2)
	candidate.ID = 0
	candidate.TableID = &tableID

	taken := pendingReservation(2)
	taken.ID = 20
	taken.TableID = &tableID
	taken.Status = ReservationConfirmed

	if err := CheckSlot(candidate, []Reservation{taken}); !errors.Is(err, apperror.ErrPreconditionFailed) {
		t.Fatalf("expected slot conflict, got %v", err)
	}

	taken.Status = ReservationCancelled
	if err := CheckSlot(candidate, []Reservation{taken}); err != nil {
		t.Fatalf("terminal reservations free the slot: %v", err)
	}

	taken.Status = ReservationPending
	taken.Time = "21:00"
	if err := CheckSlot(candidate, []Reservation{taken}); err != nil {
		t.Fatalf("different time is a different slot: %v", err)
	}

	candidate.ID = 20
	taken.Time = candidate.Time
	if err := CheckSlot(candidate, []Reservation{taken}); err != nil {
		t.Fatalf("a reservation does not conflict with itself: %v", err)
	}
}

func TestNewReservation(t *testing.T) {
	res, err := NewReservation(NewReservationInput{Date: "2026-10-20", Time: "19:30", PartySize: 2})
	if err != nil || res.Status != ReservationPending {
		t.Fatalf("expected pending reservation, got %+v %v", res, err)
	}
	bad := []NewReservationInput{
		{Date: "20/10/2026", Time: "19:30", PartySize: 2},
		{Date: "2026-10-20", Time: "7pm", PartySize: 2},
		{Date: "2026-10-20", Time: "19:30", PartySize: 0},
	}
	for _, in := range bad {
		if _, err := NewReservation(in); !errors.Is(err, apperror.ErrValidationFailed) {
			t.Fatalf("expected VALIDATION_FAILED for %+v, got %v", in, err)
		}
	}
}

package lifecycle

import (
	"fmt"

	"resto-ops-services/internal/apperror"
)

// OccupyTable seats an order at an available table.
func OccupyTable(table Table, orderID int64) (TableResult, error) {
	if table.Status != TableAvailable {
		return TableResult{}, apperror.TableNotAvailable(
			fmt.Sprintf("Table %s is %s", tableLabel(table), table.Status),
			map[string]any{"tableId": table.ID, "status": string(table.Status)})
	}
	if orderID <= 0 {
		return TableResult{}, apperror.ValidationFailed("Order ID is required", map[string]any{"field": "orderId"})
	}
	out := table
	out.Status = TableOccupied
	out.CurrentOrderID = int64Ptr(orderID)
	out.CurrentReservationID = nil
	out.AwaitingOrder = false
	out.Version = table.Version + 1
	return TableResult{Table: out}, nil
}

// ReleaseTable frees an occupied table, or force-releases a reserved one.
func ReleaseTable(table Table) (TableResult, error) {
	if table.Status != TableOccupied && table.Status != TableReserved {
		return TableResult{}, apperror.PreconditionFailed(
			fmt.Sprintf("Table %s cannot be released while %s", tableLabel(table), table.Status),
			map[string]any{"tableId": table.ID, "status": string(table.Status)})
	}
	return TableResult{Table: cleared(table, TableAvailable)}, nil
}

// StartCleaning moves a vacated table into the manual cleaning state.
func StartCleaning(table Table) (TableResult, error) {
	if table.Status != TableOccupied {
		return TableResult{}, apperror.PreconditionFailed(
			fmt.Sprintf("Only occupied tables can be sent to cleaning, table %s is %s", tableLabel(table), table.Status),
			map[string]any{"tableId": table.ID, "status": string(table.Status)})
	}
	return TableResult{Table: cleared(table, TableCleaning)}, nil
}

func FinishCleaning(table Table) (TableResult, error) {
	if table.Status != TableCleaning {
		return TableResult{}, apperror.PreconditionFailed(
			fmt.Sprintf("Table %s is not being cleaned", tableLabel(table)),
			map[string]any{"tableId": table.ID, "status": string(table.Status)})
	}
	return TableResult{Table: cleared(table, TableAvailable)}, nil
}

// HoldTable reserves an available table for a confirmed reservation.
func HoldTable(table Table, reservationID int64) (TableResult, error) {
	if table.Status != TableAvailable {
		return TableResult{}, apperror.TableNotAvailable(
			fmt.Sprintf("Table %s is %s", tableLabel(table), table.Status),
			map[string]any{"tableId": table.ID, "status": string(table.Status)})
	}
	out := table
	out.Status = TableReserved
	out.CurrentReservationID = int64Ptr(reservationID)
	out.CurrentOrderID = nil
	out.Version = table.Version + 1
	return TableResult{Table: out}, nil
}

// AttachOrder closes the post-activation window by linking the first order to
// a table that was occupied through a reservation.
func AttachOrder(table Table, orderID int64) (TableResult, error) {
	if table.Status != TableOccupied || table.CurrentOrderID != nil {
		return TableResult{}, apperror.PreconditionFailed(
			fmt.Sprintf("Table %s is not waiting for an order", tableLabel(table)),
			map[string]any{"tableId": table.ID, "status": string(table.Status)})
	}
	out := table
	out.CurrentOrderID = int64Ptr(orderID)
	out.AwaitingOrder = false
	out.Version = table.Version + 1
	return TableResult{Table: out}, nil
}

// CheckTable reports the first violated status/reference invariant, if any.
func CheckTable(table Table) error {
	fail := func(msg string) error {
		return apperror.PreconditionFailed(msg, map[string]any{"tableId": table.ID, "status": string(table.Status)})
	}
	switch table.Status {
	case TableOccupied:
		if table.CurrentOrderID == nil && !table.AwaitingOrder {
			return fail("Occupied table has no order")
		}
	case TableReserved:
		if table.CurrentReservationID == nil {
			return fail("Reserved table has no reservation")
		}
		if table.CurrentOrderID != nil {
			return fail("Reserved table cannot hold an order")
		}
	case TableAvailable, TableCleaning:
		if table.CurrentOrderID != nil || table.CurrentReservationID != nil {
			return fail(fmt.Sprintf("Table %s cannot keep references", table.Status))
		}
	default:
		return fail(fmt.Sprintf("Unknown table status %q", table.Status))
	}
	if table.Capacity <= 0 {
		return fail("Table capacity must be positive")
	}
	return nil
}

func cleared(table Table, status TableStatus) Table {
	out := table
	out.Status = status
	out.CurrentOrderID = nil
	out.CurrentReservationID = nil
	out.AwaitingOrder = false
	out.Version = table.Version + 1
	return out
}

func tableLabel(t Table) string {
	if t.Number != "" {
		return t.Number
	}
	return fmt.Sprint(t.ID)
}

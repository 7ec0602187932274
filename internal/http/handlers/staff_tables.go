package handlers

import (
	"context"
	"net/http"

	"resto-ops-services/internal/apperror"
	"resto-ops-services/internal/lifecycle"
	"resto-ops-services/internal/metrics"
	"resto-ops-services/internal/store"
	"resto-ops-services/pkg/response"
)

func (h *Handler) StaffTablesList(w http.ResponseWriter, r *http.Request) {
	tables, err := h.Repo.ListTables(r.Context())
	if err != nil {
		h.fail(w, r, err, "list tables")
		return
	}

	counts := map[lifecycle.TableStatus]int{
		lifecycle.TableAvailable: 0,
		lifecycle.TableOccupied:  0,
		lifecycle.TableReserved:  0,
		lifecycle.TableCleaning:  0,
	}
	for _, t := range tables {
		counts[t.Status]++
	}
	response.Success(w, map[string]any{
		"tables": tables,
		"counts": counts,
	})
}

// StaffTableOccupy seats an open dine-in order at the available table it was
// placed for.
func (h *Handler) StaffTableOccupy(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		OrderID int64 `json:"orderId"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	h.mutateTable(w, r, "occupy", func(ctx context.Context, repo store.Repository, table lifecycle.Table) (lifecycle.TableResult, error) {
		if payload.OrderID > 0 {
			order, err := repo.GetOrder(ctx, payload.OrderID)
			if err != nil {
				return lifecycle.TableResult{}, err
			}
			if order.OrderType != lifecycle.OrderTypeDineIn {
				return lifecycle.TableResult{}, apperror.ValidationFailed("Only dine-in orders can occupy a table", map[string]any{"orderId": order.ID})
			}
			if order.Status.IsTerminal() {
				return lifecycle.TableResult{}, apperror.PreconditionFailed("Order is already "+string(order.Status), map[string]any{
					"orderId": order.ID,
					"status":  string(order.Status),
				})
			}
			if order.TableID == nil || *order.TableID != table.ID {
				return lifecycle.TableResult{}, apperror.PreconditionFailed("Order belongs to a different table", map[string]any{
					"orderId": order.ID,
					"tableId": table.ID,
				})
			}
		}
		return lifecycle.OccupyTable(table, payload.OrderID)
	})
}

func (h *Handler) StaffTableRelease(w http.ResponseWriter, r *http.Request) {
	h.mutateTable(w, r, "release", func(_ context.Context, _ store.Repository, table lifecycle.Table) (lifecycle.TableResult, error) {
		return lifecycle.ReleaseTable(table)
	})
}

func (h *Handler) StaffTableCleaning(w http.ResponseWriter, r *http.Request) {
	h.mutateTable(w, r, "start_cleaning", func(_ context.Context, _ store.Repository, table lifecycle.Table) (lifecycle.TableResult, error) {
		return lifecycle.StartCleaning(table)
	})
}

func (h *Handler) StaffTableAvailable(w http.ResponseWriter, r *http.Request) {
	h.mutateTable(w, r, "finish_cleaning", func(_ context.Context, _ store.Repository, table lifecycle.Table) (lifecycle.TableResult, error) {
		return lifecycle.FinishCleaning(table)
	})
}

// StaffTableHold reserves an available table for the confirmed reservation
// that was assigned to it.
func (h *Handler) StaffTableHold(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ReservationID int64 `json:"reservationId"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	if payload.ReservationID <= 0 {
		response.AppError(w, apperror.ValidationFailed("Reservation ID is required", map[string]any{"field": "reservationId"}))
		return
	}
	h.mutateTable(w, r, "hold", func(ctx context.Context, repo store.Repository, table lifecycle.Table) (lifecycle.TableResult, error) {
		res, err := repo.GetReservation(ctx, payload.ReservationID)
		if err != nil {
			return lifecycle.TableResult{}, err
		}
		if res.Status != lifecycle.ReservationConfirmed {
			return lifecycle.TableResult{}, apperror.PreconditionFailed("Only confirmed reservations can hold a table", map[string]any{
				"reservationId": res.ID,
				"status":        string(res.Status),
			})
		}
		if res.TableID == nil || *res.TableID != table.ID {
			return lifecycle.TableResult{}, apperror.PreconditionFailed("Reservation is assigned to a different table", map[string]any{
				"reservationId": res.ID,
				"tableId":       table.ID,
			})
		}
		return lifecycle.HoldTable(table, res.ID)
	})
}

type tableMutation func(ctx context.Context, repo store.Repository, table lifecycle.Table) (lifecycle.TableResult, error)

// mutateTable loads the table, applies fn and writes the result under the
// table's version inside one transaction.
func (h *Handler) mutateTable(w http.ResponseWriter, r *http.Request, operation string, fn tableMutation) {
	ctx := r.Context()
	tableID, ok := pathID(w, r, "tableId", "Table ID")
	if !ok {
		return
	}

	var result lifecycle.TableResult
	err := h.Repo.InTx(ctx, func(ctx context.Context, repo store.Repository) error {
		table, txErr := repo.GetTable(ctx, tableID)
		if txErr != nil {
			return txErr
		}
		result, txErr = fn(ctx, repo, table)
		if txErr != nil {
			return txErr
		}
		if txErr = lifecycle.CheckTable(result.Table); txErr != nil {
			return txErr
		}
		return repo.UpdateTable(ctx, result.Table)
	})
	metrics.RecordLifecycle("table", operation, string(lifecycle.OutcomeApplied), err)
	if err != nil {
		h.fail(w, r, err, operation+" table")
		return
	}

	h.publish(ctx, r, result.Effects)
	response.Success(w, map[string]any{"table": result.Table})
}

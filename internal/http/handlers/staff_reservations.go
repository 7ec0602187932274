package handlers

import (
	"context"
	"net/http"
	"strings"

	"resto-ops-services/internal/apperror"
	"resto-ops-services/internal/lifecycle"
	"resto-ops-services/internal/metrics"
	"resto-ops-services/internal/store"
	"resto-ops-services/pkg/response"
)

// StaffReservationCreate books a pending reservation. When a table is named,
// the slot must be free of other live reservations for that table.
func (h *Handler) StaffReservationCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload struct {
		CustomerID *int64 `json:"customerId"`
		TableID    *int64 `json:"tableId"`
		Date       string `json:"date"`
		Time       string `json:"time"`
		PartySize  int    `json:"partySize"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}

	draft, err := lifecycle.NewReservation(lifecycle.NewReservationInput{
		CustomerID: payload.CustomerID,
		TableID:    payload.TableID,
		Date:       payload.Date,
		Time:       payload.Time,
		PartySize:  payload.PartySize,
	})
	if err != nil {
		metrics.RecordLifecycle("reservation", "create", "", err)
		response.AppError(w, err)
		return
	}
	if actor := actorFrom(r); actor.ID != "" {
		draft.UpdatedBy = &actor.ID
	}

	var created lifecycle.Reservation
	err = h.Repo.InTx(ctx, func(ctx context.Context, repo store.Repository) error {
		if draft.TableID != nil {
			if _, txErr := repo.GetTable(ctx, *draft.TableID); txErr != nil {
				return txErr
			}
			if txErr := checkSlot(ctx, repo, draft, *draft.TableID); txErr != nil {
				return txErr
			}
		}
		var txErr error
		created, txErr = repo.CreateReservation(ctx, draft)
		return txErr
	})
	metrics.RecordLifecycle("reservation", "create", string(lifecycle.OutcomeApplied), err)
	if err != nil {
		h.fail(w, r, err, "create reservation")
		return
	}

	response.Created(w, "Reservation created", map[string]any{"reservation": created})
}

func (h *Handler) StaffReservationGet(w http.ResponseWriter, r *http.Request) {
	reservationID, ok := pathID(w, r, "reservationId", "Reservation ID")
	if !ok {
		return
	}
	res, err := h.Repo.GetReservation(r.Context(), reservationID)
	if err != nil {
		h.fail(w, r, err, "load reservation")
		return
	}
	response.Success(w, map[string]any{"reservation": res})
}

// StaffReservationConfirm accepts a pending reservation for a table, either
// the one in the body or the one requested at booking time.
func (h *Handler) StaffReservationConfirm(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TableID *int64 `json:"tableId"`
		Version *int64 `json:"version"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	h.mutateReservation(w, r, "confirm", payload.Version, func(ctx context.Context, repo store.Repository, res lifecycle.Reservation, actor lifecycle.Actor) (lifecycle.ReservationResult, error) {
		table, err := reservationTable(ctx, repo, res, payload.TableID)
		if err != nil {
			return lifecycle.ReservationResult{}, err
		}
		if err := checkSlot(ctx, repo, res, table.ID); err != nil {
			return lifecycle.ReservationResult{}, err
		}
		return lifecycle.ConfirmReservation(res, table, actor)
	})
}

// StaffReservationReject cancels a reservation. Staff must give a reason; it
// is passed to the customer notification unchanged.
func (h *Handler) StaffReservationReject(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reason  string `json:"reason"`
		Version *int64 `json:"version"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	if strings.TrimSpace(payload.Reason) == "" {
		response.AppError(w, apperror.ValidationFailed("Reason is required", map[string]any{"field": "reason"}))
		return
	}
	h.mutateReservation(w, r, "reject", payload.Version, func(_ context.Context, _ store.Repository, res lifecycle.Reservation, actor lifecycle.Actor) (lifecycle.ReservationResult, error) {
		return lifecycle.RejectReservation(res, payload.Reason, actor)
	})
}

// StaffReservationActivate seats an arriving party. The table is occupied
// with no order until the first dine-in order is placed at it.
func (h *Handler) StaffReservationActivate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TableID *int64 `json:"tableId"`
		Version *int64 `json:"version"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	h.mutateReservation(w, r, "activate", payload.Version, func(ctx context.Context, repo store.Repository, res lifecycle.Reservation, actor lifecycle.Actor) (lifecycle.ReservationResult, error) {
		table, err := reservationTable(ctx, repo, res, payload.TableID)
		if err != nil {
			return lifecycle.ReservationResult{}, err
		}
		result, err := lifecycle.ActivateReservation(res, table, actor)
		if err != nil {
			return lifecycle.ReservationResult{}, err
		}
		if res.TableID != nil && *res.TableID != table.ID {
			released, err := releaseHeldTable(ctx, repo, res, *res.TableID)
			if err != nil {
				return lifecycle.ReservationResult{}, err
			}
			result.Effects = append(result.Effects, released...)
		}
		return result, nil
	})
}

// releaseHeldTable frees the table a reservation was holding when the party is
// seated elsewhere. A table held for a different reservation is left alone.
func releaseHeldTable(ctx context.Context, repo store.Repository, res lifecycle.Reservation, tableID int64) ([]lifecycle.SideEffect, error) {
	held, err := repo.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if held.Status != lifecycle.TableReserved || held.CurrentReservationID == nil || *held.CurrentReservationID != res.ID {
		return nil, nil
	}
	freed, err := lifecycle.ReleaseTable(held)
	if err != nil {
		return nil, err
	}
	if err := repo.UpdateTable(ctx, freed.Table); err != nil {
		return nil, err
	}
	return freed.Effects, nil
}

func (h *Handler) StaffReservationComplete(w http.ResponseWriter, r *http.Request) {
	h.mutateReservation(w, r, "complete", nil, func(_ context.Context, _ store.Repository, res lifecycle.Reservation, actor lifecycle.Actor) (lifecycle.ReservationResult, error) {
		return lifecycle.CompleteReservation(res, actor)
	})
}

func (h *Handler) StaffReservationNoShow(w http.ResponseWriter, r *http.Request) {
	h.mutateReservation(w, r, "no_show", nil, func(_ context.Context, _ store.Repository, res lifecycle.Reservation, actor lifecycle.Actor) (lifecycle.ReservationResult, error) {
		return lifecycle.MarkNoShow(res, actor)
	})
}

type reservationMutation func(ctx context.Context, repo store.Repository, res lifecycle.Reservation, actor lifecycle.Actor) (lifecycle.ReservationResult, error)

func (h *Handler) mutateReservation(w http.ResponseWriter, r *http.Request, operation string, expectedVersion *int64, fn reservationMutation) {
	ctx := r.Context()
	reservationID, ok := pathID(w, r, "reservationId", "Reservation ID")
	if !ok {
		return
	}

	var result lifecycle.ReservationResult
	err := h.Repo.InTx(ctx, func(ctx context.Context, repo store.Repository) error {
		res, txErr := repo.GetReservation(ctx, reservationID)
		if txErr != nil {
			return txErr
		}
		if txErr = checkVersion("Reservation", reservationID, expectedVersion, res.Version); txErr != nil {
			return txErr
		}
		result, txErr = fn(ctx, repo, res, actorFrom(r))
		if txErr != nil {
			return txErr
		}
		if txErr = repo.UpdateReservation(ctx, result.Reservation); txErr != nil {
			return txErr
		}
		if result.Table != nil {
			return repo.UpdateTable(ctx, *result.Table)
		}
		return nil
	})
	metrics.RecordLifecycle("reservation", operation, string(lifecycle.OutcomeApplied), err)
	if err != nil {
		h.fail(w, r, err, operation+" reservation")
		return
	}

	h.publish(ctx, r, result.Effects)
	response.Success(w, map[string]any{
		"reservation": result.Reservation,
		"table":       result.Table,
		"effects":     effectsOrEmpty(result.Effects),
	})
}

func reservationTable(ctx context.Context, repo store.Repository, res lifecycle.Reservation, override *int64) (lifecycle.Table, error) {
	tableID := res.TableID
	if override != nil {
		tableID = override
	}
	if tableID == nil {
		return lifecycle.Table{}, apperror.ValidationFailed("Table ID is required", map[string]any{"field": "tableId"})
	}
	return repo.GetTable(ctx, *tableID)
}

func checkSlot(ctx context.Context, repo store.Repository, res lifecycle.Reservation, tableID int64) error {
	existing, err := repo.ListSlotReservations(ctx, tableID, res.Date, res.Time)
	if err != nil {
		return err
	}
	candidate := res
	candidate.TableID = &tableID
	return lifecycle.CheckSlot(candidate, existing)
}

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

type orderItemPayload struct {
	MenuItemID int64   `json:"menuItemId"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	Notes      *string `json:"notes"`
}

type orderCreatePayload struct {
	OrderType    string             `json:"orderType"`
	TableID      *int64             `json:"tableId"`
	CustomerID   *int64             `json:"customerId"`
	Items        []orderItemPayload `json:"items"`
	DeliveryCost float64            `json:"deliveryCost"`
}

// StaffOrderCreate places a new order. A dine-in order seats itself at its
// table in the same transaction: an available table is occupied, and a table
// seated through a reservation gets the order attached.
func (h *Handler) StaffOrderCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload orderCreatePayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	orderType, ok := lifecycle.ParseOrderType(payload.OrderType)
	if !ok {
		response.AppError(w, apperror.ValidationFailed("Order type must be dine_in, delivery or takeout", map[string]any{"field": "orderType"}))
		return
	}

	items := make([]lifecycle.OrderItem, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, lifecycle.OrderItem{
			MenuItemID: item.MenuItemID,
			Name:       strings.TrimSpace(item.Name),
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Notes:      item.Notes,
		})
	}

	actor := actorFrom(r)
	draft, err := lifecycle.NewOrder(lifecycle.NewOrderInput{
		OrderType:    orderType,
		TableID:      payload.TableID,
		CustomerID:   payload.CustomerID,
		Items:        items,
		DeliveryCost: payload.DeliveryCost,
	})
	if err != nil {
		metrics.RecordLifecycle("order", "create", "", err)
		response.AppError(w, err)
		return
	}
	if actor.ID != "" {
		draft.UpdatedBy = &actor.ID
	}

	var (
		created lifecycle.Order
		seated  *lifecycle.Table
	)
	err = h.Repo.InTx(ctx, func(ctx context.Context, repo store.Repository) error {
		var txErr error
		created, txErr = repo.CreateOrder(ctx, draft)
		if txErr != nil {
			return txErr
		}
		if created.OrderType != lifecycle.OrderTypeDineIn {
			return nil
		}

		table, txErr := repo.GetTable(ctx, *created.TableID)
		if txErr != nil {
			return txErr
		}
		var res lifecycle.TableResult
		if table.Status == lifecycle.TableOccupied && table.AwaitingOrder {
			res, txErr = lifecycle.AttachOrder(table, created.ID)
		} else {
			res, txErr = lifecycle.OccupyTable(table, created.ID)
		}
		if txErr != nil {
			return txErr
		}
		if txErr = repo.UpdateTable(ctx, res.Table); txErr != nil {
			return txErr
		}
		seated = &res.Table
		return nil
	})
	metrics.RecordLifecycle("order", "create", string(lifecycle.OutcomeApplied), err)
	if err != nil {
		h.fail(w, r, err, "create order")
		return
	}

	h.publish(ctx, r, []lifecycle.SideEffect{{Kind: lifecycle.EffectNotifyCustomer, OrderID: &created.ID, Status: string(created.Status)}})

	response.Created(w, "Order created", map[string]any{
		"order": created,
		"table": seated,
	})
}

func (h *Handler) StaffOrderGet(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderId", "Order ID")
	if !ok {
		return
	}
	order, err := h.Repo.GetOrder(r.Context(), orderID)
	if err != nil {
		h.fail(w, r, err, "load order")
		return
	}
	response.Success(w, map[string]any{
		"order":   order,
		"summary": lifecycle.SummarizeItems(order.Items),
	})
}

// StaffOrderUpdateStatus moves an order one step forward, or cancels it.
// Repeating the current status is a no-op and publishes nothing.
func (h *Handler) StaffOrderUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := pathID(w, r, "orderId", "Order ID")
	if !ok {
		return
	}

	var payload struct {
		Status  string  `json:"status"`
		Reason  string  `json:"reason"`
		Version *int64  `json:"version"`
		Note    *string `json:"note"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	if strings.TrimSpace(payload.Status) == "" {
		response.AppError(w, apperror.ValidationFailed("Status is required", map[string]any{"field": "status"}))
		return
	}
	target, known := lifecycle.ParseOrderStatus(payload.Status)
	if !known {
		target = lifecycle.OrderStatus(payload.Status)
	}
	reason := payload.Reason
	if reason == "" && payload.Note != nil {
		reason = *payload.Note
	}

	var result lifecycle.OrderResult
	err := h.Repo.InTx(ctx, func(ctx context.Context, repo store.Repository) error {
		order, txErr := repo.GetOrder(ctx, orderID)
		if txErr != nil {
			return txErr
		}
		if txErr = checkVersion("Order", orderID, payload.Version, order.Version); txErr != nil {
			return txErr
		}
		result, txErr = lifecycle.TransitionOrderWithReason(order, target, actorFrom(r), reason)
		if txErr != nil {
			return txErr
		}
		if result.Outcome == lifecycle.OutcomeNoOp {
			return nil
		}
		return repo.UpdateOrder(ctx, result.Order)
	})
	metrics.RecordLifecycle("order", "transition", string(result.Outcome), err)
	if err != nil {
		h.fail(w, r, err, "update order status")
		return
	}

	h.publish(ctx, r, result.Effects)

	message := "Order status updated"
	if result.Outcome == lifecycle.OutcomeNoOp {
		message = "Order status unchanged"
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
		"data": map[string]any{
			"order":   result.Order,
			"outcome": result.Outcome,
			"effects": effectsOrEmpty(result.Effects),
		},
	})
}

// StaffOrderItemUpdateStatus advances one line and reports the order status
// the lines now suggest. The order itself is not moved.
func (h *Handler) StaffOrderItemUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := pathID(w, r, "orderId", "Order ID")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemId", "Item ID")
	if !ok {
		return
	}

	var payload struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	if strings.TrimSpace(payload.Status) == "" {
		response.AppError(w, apperror.ValidationFailed("Status is required", map[string]any{"field": "status"}))
		return
	}
	target, known := lifecycle.ParseItemStatus(payload.Status)
	if !known {
		target = lifecycle.ItemStatus(payload.Status)
	}

	var (
		result lifecycle.ItemResult
		order  lifecycle.Order
	)
	err := h.Repo.InTx(ctx, func(ctx context.Context, repo store.Repository) error {
		var txErr error
		order, txErr = repo.GetOrder(ctx, orderID)
		if txErr != nil {
			return txErr
		}
		if order.Status.IsTerminal() {
			return apperror.PreconditionFailed("Order is already "+string(order.Status), map[string]any{"orderId": orderID})
		}

		idx := -1
		for i, item := range order.Items {
			if item.ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apperror.NotFound("Order item not found")
		}

		from := order.Items[idx].Status
		result, txErr = lifecycle.TransitionItem(order.Items[idx], target)
		if txErr != nil {
			return txErr
		}
		order.Items[idx] = result.Item
		if result.Outcome == lifecycle.OutcomeNoOp {
			return nil
		}
		return repo.UpdateOrderItem(ctx, orderID, result.Item, from)
	})
	metrics.RecordLifecycle("order_item", "transition", string(result.Outcome), err)
	if err != nil {
		h.fail(w, r, err, "update item status")
		return
	}

	response.Success(w, map[string]any{
		"item":    result.Item,
		"outcome": result.Outcome,
		"summary": lifecycle.SummarizeItems(order.Items),
	})
}

func effectsOrEmpty(effects []lifecycle.SideEffect) []lifecycle.SideEffect {
	if effects == nil {
		return []lifecycle.SideEffect{}
	}
	return effects
}

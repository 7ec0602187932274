package lifecycle

import (
	"fmt"
	"math"
	"strings"

	"resto-ops-services/internal/apperror"
)

// TransitionOrder moves order one step along the canonical sequence or to
// cancelled. Re-requesting the current status is a NoOp, not an error.
func TransitionOrder(order Order, target OrderStatus, actor Actor) (OrderResult, error) {
	return TransitionOrderWithReason(order, target, actor, "")
}

// TransitionOrderWithReason is TransitionOrder with a cancellation note. The
// reason is stored as-is and only when the target is cancelled.
func TransitionOrderWithReason(order Order, target OrderStatus, actor Actor, reason string) (OrderResult, error) {
	details := map[string]any{"from": string(order.Status), "to": string(target)}

	if !target.Valid() {
		return OrderResult{}, apperror.InvalidTransition(fmt.Sprintf("Unknown order status %q", target), details)
	}
	if !order.Status.Valid() {
		return OrderResult{}, apperror.InvalidTransition(fmt.Sprintf("Order has unknown status %q", order.Status), details)
	}
	if target == order.Status {
		return OrderResult{Order: order.clone(), Outcome: OutcomeNoOp}, nil
	}
	if order.Status.IsTerminal() {
		return OrderResult{}, apperror.InvalidTransition("Order is already "+string(order.Status), details)
	}

	if target != OrderCancelled {
		next, ok := order.Status.Successor()
		if !ok || next != target {
			return OrderResult{}, apperror.InvalidTransition(
				fmt.Sprintf("Cannot transition order from %s to %s", order.Status, target), details)
		}
	}

	updated := order.clone()
	updated.Status = target
	updated.Version = order.Version + 1
	if actor.ID != "" {
		updated.UpdatedBy = stringPtr(actor.ID)
	}
	if target == OrderCancelled {
		if trimmed := strings.TrimSpace(reason); trimmed != "" {
			updated.CancelReason = stringPtr(trimmed)
		}
	}

	return OrderResult{Order: updated, Outcome: OutcomeApplied, Effects: orderEffects(updated)}, nil
}

func orderEffects(o Order) []SideEffect {
	effects := make([]SideEffect, 0, 3)
	if o.Status == OrderConfirmed {
		effects = append(effects, SideEffect{Kind: EffectNotifyKitchen, OrderID: int64Ptr(o.ID), TableID: o.TableID, Status: string(o.Status)})
	}
	effects = append(effects, SideEffect{Kind: EffectNotifyCustomer, OrderID: int64Ptr(o.ID), Status: string(o.Status)})
	if o.Status.IsTerminal() && o.OrderType == OrderTypeDineIn && o.TableID != nil {
		// Staff decide; the table is never freed automatically.
		effects = append(effects, SideEffect{Kind: EffectSuggestTableRelease, OrderID: int64Ptr(o.ID), TableID: int64Ptr(*o.TableID), Status: string(o.Status)})
	}
	return effects
}

type NewOrderInput struct {
	OrderNumber  string
	OrderType    OrderType
	TableID      *int64
	CustomerID   *int64
	Items        []OrderItem
	DeliveryCost float64
}

// NewOrder builds a pending order from intake data, pricing it and resetting
// every line to pending.
func NewOrder(in NewOrderInput) (Order, error) {
	items := make([]OrderItem, len(in.Items))
	copy(items, in.Items)
	for i := range items {
		items[i].Status = ItemPending
	}

	order := Order{
		OrderNumber:  strings.TrimSpace(in.OrderNumber),
		OrderType:    in.OrderType,
		Status:       OrderPending,
		TableID:      in.TableID,
		CustomerID:   in.CustomerID,
		Items:        items,
		DeliveryCost: roundMoney(in.DeliveryCost),
	}
	order.Subtotal = itemsSubtotal(items)
	order.Total = roundMoney(order.Subtotal + order.DeliveryCost)

	if err := ValidateOrder(order); err != nil {
		return Order{}, err
	}
	return order, nil
}

// ValidateOrder checks the structural invariants of an order record.
func ValidateOrder(o Order) error {
	if !o.OrderType.Valid() {
		return apperror.ValidationFailed("Order type must be dine_in, delivery or takeout", map[string]any{"field": "orderType"})
	}
	if len(o.Items) == 0 {
		return apperror.ValidationFailed("Order must contain at least one item", map[string]any{"field": "items"})
	}
	for i, item := range o.Items {
		if item.Quantity <= 0 {
			return apperror.ValidationFailed("Item quantity must be positive", map[string]any{"field": "items", "index": i})
		}
		if item.UnitPrice < 0 {
			return apperror.ValidationFailed("Item price cannot be negative", map[string]any{"field": "items", "index": i})
		}
	}
	if o.OrderType == OrderTypeDineIn && o.TableID == nil {
		return apperror.ValidationFailed("Dine-in orders require a table", map[string]any{"field": "tableId"})
	}
	if o.OrderType != OrderTypeDineIn && o.TableID != nil {
		return apperror.ValidationFailed("Only dine-in orders can reference a table", map[string]any{"field": "tableId"})
	}
	if o.DeliveryCost < 0 || (o.OrderType != OrderTypeDelivery && o.DeliveryCost != 0) {
		return apperror.ValidationFailed("Delivery cost only applies to delivery orders", map[string]any{"field": "deliveryCost"})
	}
	if !moneyEqual(o.Subtotal, itemsSubtotal(o.Items)) {
		return apperror.ValidationFailed("Subtotal does not match items", map[string]any{"field": "subtotal"})
	}
	if !moneyEqual(o.Total, o.Subtotal+o.DeliveryCost) {
		return apperror.ValidationFailed("Total must equal subtotal plus delivery cost", map[string]any{"field": "total"})
	}
	return nil
}

func itemsSubtotal(items []OrderItem) float64 {
	sum := 0.0
	for _, item := range items {
		sum += item.LineTotal()
	}
	return roundMoney(sum)
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

func moneyEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}

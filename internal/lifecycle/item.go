package lifecycle

import (
	"fmt"

	"resto-ops-services/internal/apperror"
)

// TransitionItem advances a single order line. Lines move independently of the
// order status.
func TransitionItem(item OrderItem, target ItemStatus) (ItemResult, error) {
	details := map[string]any{"itemId": item.ID, "from": string(item.Status), "to": string(target)}
	if !target.Valid() {
		return ItemResult{}, apperror.InvalidTransition(fmt.Sprintf("Unknown item status %q", target), details)
	}
	if target == item.Status {
		return ItemResult{Item: item, Outcome: OutcomeNoOp}, nil
	}
	next, ok := item.Status.Successor()
	if !ok || next != target {
		return ItemResult{}, apperror.InvalidTransition(
			fmt.Sprintf("Cannot transition item from %s to %s", item.Status, target), details)
	}
	item.Status = target
	return ItemResult{Item: item, Outcome: OutcomeApplied}, nil
}

// ItemSummary is the kitchen's view of an order's lines.
type ItemSummary struct {
	Counts    map[ItemStatus]int `json:"counts"`
	Total     int                `json:"total"`
	AllReady  bool               `json:"allReady"`
	AllServed bool               `json:"allServed"`
	// SuggestedOrderStatus is advisory; the order only moves on an explicit
	// TransitionOrder call.
	SuggestedOrderStatus *OrderStatus `json:"suggestedOrderStatus"`
}

func SummarizeItems(items []OrderItem) ItemSummary {
	summary := ItemSummary{Counts: make(map[ItemStatus]int, len(itemSequence)), Total: len(items)}
	for _, s := range itemSequence {
		summary.Counts[s] = 0
	}
	for _, item := range items {
		summary.Counts[item.Status]++
	}
	if summary.Total == 0 {
		return summary
	}

	readyOrServed := summary.Counts[ItemReady] + summary.Counts[ItemServed]
	summary.AllReady = readyOrServed == summary.Total
	summary.AllServed = summary.Counts[ItemServed] == summary.Total

	switch {
	case summary.AllReady:
		s := OrderReady
		summary.SuggestedOrderStatus = &s
	case summary.Counts[ItemPreparing] > 0 || readyOrServed > 0:
		s := OrderPreparing
		summary.SuggestedOrderStatus = &s
	}
	return summary
}

package lifecycle

type EffectKind string

const (
	EffectNotifyKitchen       EffectKind = "NOTIFY_KITCHEN"
	EffectNotifyCustomer      EffectKind = "NOTIFY_CUSTOMER"
	EffectSuggestTableRelease EffectKind = "SUGGEST_TABLE_RELEASE"
	EffectAwaitOrder          EffectKind = "AWAIT_ORDER"
)

// SideEffect is a follow-up instruction for the caller. The engine never
// performs it.
type SideEffect struct {
	Kind          EffectKind `json:"kind"`
	OrderID       *int64     `json:"orderId,omitempty"`
	TableID       *int64     `json:"tableId,omitempty"`
	ReservationID *int64     `json:"reservationId,omitempty"`
	Status        string     `json:"status,omitempty"`
}

// RoutingKey is the event name the service publishes the effect under.
func (e SideEffect) RoutingKey() string {
	switch e.Kind {
	case EffectNotifyKitchen:
		return "kitchen.order.confirmed"
	case EffectSuggestTableRelease:
		return "table.release.suggested"
	case EffectAwaitOrder:
		return "table.order.awaited"
	case EffectNotifyCustomer:
		if e.ReservationID != nil && e.OrderID == nil {
			return "reservation.status.updated"
		}
		return "order.status.updated"
	}
	return "lifecycle.effect"
}

func HasEffect(effects []SideEffect, kind EffectKind) bool {
	for _, e := range effects {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

package lifecycle

import "strings"

type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeDelivery OrderType = "delivery"
	OrderTypeTakeout  OrderType = "takeout"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeDelivery, OrderTypeTakeout:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderDelivered OrderStatus = "delivered"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// orderSequence is the canonical forward path. Cancelled sits outside it.
var orderSequence = []OrderStatus{
	OrderPending,
	OrderConfirmed,
	OrderPreparing,
	OrderReady,
	OrderDelivered,
	OrderCompleted,
}

func (s OrderStatus) Valid() bool {
	if s == OrderCancelled {
		return true
	}
	for _, v := range orderSequence {
		if v == s {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// Successor returns the next status in the canonical sequence. ok is false for
// terminal statuses and unknown values.
func (s OrderStatus) Successor() (OrderStatus, bool) {
	for i, v := range orderSequence {
		if v == s && i+1 < len(orderSequence) {
			return orderSequence[i+1], true
		}
	}
	return "", false
}

// ActiveOrderStatuses lists the non-terminal statuses, oldest stage first.
func ActiveOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderPending, OrderConfirmed, OrderPreparing, OrderReady, OrderDelivered}
}

type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemPreparing ItemStatus = "preparing"
	ItemReady     ItemStatus = "ready"
	ItemServed    ItemStatus = "served"
)

var itemSequence = []ItemStatus{ItemPending, ItemPreparing, ItemReady, ItemServed}

func (s ItemStatus) Valid() bool {
	for _, v := range itemSequence {
		if v == s {
			return true
		}
	}
	return false
}

func (s ItemStatus) Successor() (ItemStatus, bool) {
	for i, v := range itemSequence {
		if v == s && i+1 < len(itemSequence) {
			return itemSequence[i+1], true
		}
	}
	return "", false
}

type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
	TableReserved  TableStatus = "reserved"
	TableCleaning  TableStatus = "cleaning"
)

func (s TableStatus) Valid() bool {
	switch s {
	case TableAvailable, TableOccupied, TableReserved, TableCleaning:
		return true
	}
	return false
}

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationActive    ReservationStatus = "active"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationNoShow    ReservationStatus = "no_show"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationActive,
		ReservationCompleted, ReservationCancelled, ReservationNoShow:
		return true
	}
	return false
}

func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case ReservationCompleted, ReservationCancelled, ReservationNoShow:
		return true
	}
	return false
}

// ParseOrderStatus accepts any casing and surrounding whitespace, the way the
// dashboards send it.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

func ParseItemStatus(raw string) (ItemStatus, bool) {
	s := ItemStatus(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

func ParseOrderType(raw string) (OrderType, bool) {
	t := OrderType(strings.ToLower(strings.TrimSpace(raw)))
	return t, t.Valid()
}

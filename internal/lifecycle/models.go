package lifecycle

import "time"

// Actor identifies who requested a transition. It is recorded, not enforced:
// role checks belong to the HTTP layer.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type OrderItem struct {
	ID         int64      `json:"id"`
	MenuItemID int64      `json:"menuItemId"`
	Name       string     `json:"name"`
	Quantity   int        `json:"quantity"`
	UnitPrice  float64    `json:"unitPrice"`
	Notes      *string    `json:"notes"`
	Status     ItemStatus `json:"status"`
}

func (i OrderItem) LineTotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

type Order struct {
	ID           int64       `json:"id"`
	OrderNumber  string      `json:"orderNumber"`
	OrderType    OrderType   `json:"orderType"`
	Status       OrderStatus `json:"status"`
	TableID      *int64      `json:"tableId"`
	CustomerID   *int64      `json:"customerId"`
	Items        []OrderItem `json:"items"`
	Subtotal     float64     `json:"subtotal"`
	DeliveryCost float64     `json:"deliveryCost"`
	Total        float64     `json:"total"`
	CancelReason *string     `json:"cancelReason"`
	Version      int64       `json:"version"`
	UpdatedBy    *string     `json:"updatedBy"`
	PlacedAt     time.Time   `json:"placedAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func (o Order) clone() Order {
	out := o
	if o.Items != nil {
		out.Items = make([]OrderItem, len(o.Items))
		copy(out.Items, o.Items)
	}
	return out
}

type Table struct {
	ID                   int64       `json:"id"`
	Number               string      `json:"number"`
	Zone                 string      `json:"zone"`
	Capacity             int         `json:"capacity"`
	Status               TableStatus `json:"status"`
	CurrentOrderID       *int64      `json:"currentOrderId"`
	CurrentReservationID *int64      `json:"currentReservationId"`
	// AwaitingOrder marks the window between reservation activation and the
	// first order being attached.
	AwaitingOrder bool      `json:"awaitingOrder"`
	Version       int64     `json:"version"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Reservation struct {
	ID                int64             `json:"id"`
	ReservationNumber string            `json:"reservationNumber"`
	CustomerID        *int64            `json:"customerId"`
	TableID           *int64            `json:"tableId"`
	Date              string            `json:"date"`
	Time              string            `json:"time"`
	PartySize         int               `json:"partySize"`
	Status            ReservationStatus `json:"status"`
	RejectReason      *string           `json:"rejectReason"`
	Version           int64             `json:"version"`
	UpdatedBy         *string           `json:"updatedBy"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeNoOp    Outcome = "noop"
)

type OrderResult struct {
	Order   Order
	Outcome Outcome
	Effects []SideEffect
}

type TableResult struct {
	Table   Table
	Effects []SideEffect
}

type ReservationResult struct {
	Reservation Reservation
	Table       *Table
	Effects     []SideEffect
}

type ItemResult struct {
	Item    OrderItem
	Outcome Outcome
}

func int64Ptr(v int64) *int64 {
	return &v
}

func stringPtr(v string) *string {
	return &v
}

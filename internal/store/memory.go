package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"resto-ops-services/internal/apperror"
	"resto-ops-services/internal/chat"
	"resto-ops-services/internal/lifecycle"
)

// Memory is an in-process Repository with the same optimistic write rules as
// Store. InTx applies the staged state only when fn succeeds.
type Memory struct {
	mu sync.Mutex
	st *memState
}

type memState struct {
	now          func() time.Time
	seq          int64
	orders       map[int64]lifecycle.Order
	tables       map[int64]lifecycle.Table
	reservations map[int64]lifecycle.Reservation
	sessions     map[string]chat.Session
}

func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{st: &memState{
		now:          now,
		orders:       map[int64]lifecycle.Order{},
		tables:       map[int64]lifecycle.Table{},
		reservations: map[int64]lifecycle.Reservation{},
		sessions:     map[string]chat.Session{},
	}}
}

// SeedTable stores t as-is, assigning an ID when it has none.
func (m *Memory) SeedTable(t lifecycle.Table) lifecycle.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == 0 {
		t.ID = m.st.nextID()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = m.st.now()
	}
	m.st.tables[t.ID] = t
	return t
}

func (m *Memory) InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := m.st.clone()
	if err := fn(ctx, &memTx{st: staged}); err != nil {
		return err
	}
	m.st = staged
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) view() *memTx { return &memTx{st: m.st} }

func (m *Memory) GetOrder(ctx context.Context, id int64) (lifecycle.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().GetOrder(ctx, id)
}

func (m *Memory) CreateOrder(ctx context.Context, order lifecycle.Order) (lifecycle.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().CreateOrder(ctx, order)
}

func (m *Memory) UpdateOrder(ctx context.Context, order lifecycle.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().UpdateOrder(ctx, order)
}

func (m *Memory) UpdateOrderItem(ctx context.Context, orderID int64, item lifecycle.OrderItem, from lifecycle.ItemStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().UpdateOrderItem(ctx, orderID, item, from)
}

func (m *Memory) ListTables(ctx context.Context) ([]lifecycle.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().ListTables(ctx)
}

func (m *Memory) GetTable(ctx context.Context, id int64) (lifecycle.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().GetTable(ctx, id)
}

func (m *Memory) UpdateTable(ctx context.Context, table lifecycle.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().UpdateTable(ctx, table)
}

func (m *Memory) GetReservation(ctx context.Context, id int64) (lifecycle.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().GetReservation(ctx, id)
}

func (m *Memory) CreateReservation(ctx context.Context, res lifecycle.Reservation) (lifecycle.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().CreateReservation(ctx, res)
}

func (m *Memory) UpdateReservation(ctx context.Context, res lifecycle.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().UpdateReservation(ctx, res)
}

func (m *Memory) ListSlotReservations(ctx context.Context, tableID int64, date, clock string) ([]lifecycle.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().ListSlotReservations(ctx, tableID, date, clock)
}

func (m *Memory) GetChatSession(ctx context.Context, id string) (chat.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().GetChatSession(ctx, id)
}

func (m *Memory) SaveChatSession(ctx context.Context, s chat.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().SaveChatSession(ctx, s)
}

func (st *memState) nextID() int64 {
	st.seq++
	return st.seq
}

func (st *memState) clone() *memState {
	out := &memState{
		now:          st.now,
		seq:          st.seq,
		orders:       make(map[int64]lifecycle.Order, len(st.orders)),
		tables:       make(map[int64]lifecycle.Table, len(st.tables)),
		reservations: make(map[int64]lifecycle.Reservation, len(st.reservations)),
		sessions:     make(map[string]chat.Session, len(st.sessions)),
	}
	for k, v := range st.orders {
		out.orders[k] = copyOrder(v)
	}
	for k, v := range st.tables {
		out.tables[k] = v
	}
	for k, v := range st.reservations {
		out.reservations[k] = v
	}
	for k, v := range st.sessions {
		out.sessions[k] = v
	}
	return out
}

func copyOrder(o lifecycle.Order) lifecycle.Order {
	out := o
	out.Items = append([]lifecycle.OrderItem(nil), o.Items...)
	return out
}

// memTx operates on a state without locking; the owning Memory holds the lock.
type memTx struct {
	st *memState
}

func (t *memTx) InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return fn(ctx, t)
}

func (t *memTx) Ping(context.Context) error { return nil }

func (t *memTx) GetOrder(_ context.Context, id int64) (lifecycle.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return lifecycle.Order{}, apperror.NotFound("Order not found")
	}
	return copyOrder(o), nil
}

func (t *memTx) CreateOrder(_ context.Context, order lifecycle.Order) (lifecycle.Order, error) {
	out := copyOrder(order)
	out.ID = t.st.nextID()
	if out.OrderNumber == "" {
		out.OrderNumber = fmt.Sprintf("ORD-%s-%04d", t.st.now().Format("20060102"), out.ID)
	}
	out.PlacedAt = t.st.now()
	out.UpdatedAt = out.PlacedAt
	for i := range out.Items {
		out.Items[i].ID = t.st.nextID()
	}
	t.st.orders[out.ID] = out
	return copyOrder(out), nil
}

func (t *memTx) UpdateOrder(_ context.Context, order lifecycle.Order) error {
	current, ok := t.st.orders[order.ID]
	if !ok || current.Version != order.Version-1 {
		return apperror.PreconditionFailed("Order was modified by another request, reload and retry", map[string]any{"id": order.ID, "version": order.Version - 1})
	}
	current.Status = order.Status
	current.CancelReason = order.CancelReason
	current.UpdatedBy = order.UpdatedBy
	current.Version = order.Version
	current.UpdatedAt = t.st.now()
	t.st.orders[order.ID] = current
	return nil
}

func (t *memTx) UpdateOrderItem(_ context.Context, orderID int64, item lifecycle.OrderItem, from lifecycle.ItemStatus) error {
	order, ok := t.st.orders[orderID]
	if ok {
		for i := range order.Items {
			if order.Items[i].ID == item.ID && order.Items[i].Status == from {
				order.Items[i].Status = item.Status
				t.st.orders[orderID] = order
				return nil
			}
		}
	}
	return apperror.PreconditionFailed("Order item was modified by another request, reload and retry", map[string]any{
		"orderId": orderID,
		"itemId":  item.ID,
		"status":  string(from),
	})
}

func (t *memTx) ListTables(context.Context) ([]lifecycle.Table, error) {
	out := make([]lifecycle.Table, 0, len(t.st.tables))
	for _, table := range t.st.tables {
		out = append(out, table)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Zone != out[j].Zone {
			return out[i].Zone < out[j].Zone
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (t *memTx) GetTable(_ context.Context, id int64) (lifecycle.Table, error) {
	table, ok := t.st.tables[id]
	if !ok {
		return lifecycle.Table{}, apperror.NotFound("Table not found")
	}
	return table, nil
}

func (t *memTx) UpdateTable(_ context.Context, table lifecycle.Table) error {
	current, ok := t.st.tables[table.ID]
	if !ok || current.Version != table.Version-1 {
		return apperror.PreconditionFailed("Table was modified by another request, reload and retry", map[string]any{"id": table.ID, "version": table.Version - 1})
	}
	table.UpdatedAt = t.st.now()
	t.st.tables[table.ID] = table
	return nil
}

func (t *memTx) GetReservation(_ context.Context, id int64) (lifecycle.Reservation, error) {
	res, ok := t.st.reservations[id]
	if !ok {
		return lifecycle.Reservation{}, apperror.NotFound("Reservation not found")
	}
	return res, nil
}

func (t *memTx) CreateReservation(_ context.Context, res lifecycle.Reservation) (lifecycle.Reservation, error) {
	out := res
	out.ID = t.st.nextID()
	if out.ReservationNumber == "" {
		out.ReservationNumber = fmt.Sprintf("RSV-%s-%04d", t.st.now().Format("20060102"), out.ID)
	}
	out.CreatedAt = t.st.now()
	out.UpdatedAt = out.CreatedAt
	t.st.reservations[out.ID] = out
	return out, nil
}

func (t *memTx) UpdateReservation(_ context.Context, res lifecycle.Reservation) error {
	current, ok := t.st.reservations[res.ID]
	if !ok || current.Version != res.Version-1 {
		return apperror.PreconditionFailed("Reservation was modified by another request, reload and retry", map[string]any{"id": res.ID, "version": res.Version - 1})
	}
	res.CreatedAt = current.CreatedAt
	res.UpdatedAt = t.st.now()
	t.st.reservations[res.ID] = res
	return nil
}

func (t *memTx) ListSlotReservations(_ context.Context, tableID int64, date, clock string) ([]lifecycle.Reservation, error) {
	out := make([]lifecycle.Reservation, 0)
	for _, res := range t.st.reservations {
		if res.TableID != nil && *res.TableID == tableID && res.Date == date && res.Time == clock {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) GetChatSession(_ context.Context, id string) (chat.Session, error) {
	s, ok := t.st.sessions[id]
	if !ok {
		return chat.Session{}, apperror.NotFound("Chat session not found")
	}
	return s, nil
}

func (t *memTx) SaveChatSession(_ context.Context, s chat.Session) error {
	if current, ok := t.st.sessions[s.ID]; ok {
		s.CreatedAt = current.CreatedAt
	}
	t.st.sessions[s.ID] = s
	return nil
}

package store

import (
	"context"

	"resto-ops-services/internal/apperror"
	"resto-ops-services/internal/lifecycle"

	"github.com/jackc/pgx/v5/pgtype"
)

func (s *Store) GetOrder(ctx context.Context, id int64) (lifecycle.Order, error) {
	var (
		o            lifecycle.Order
		orderType    string
		status       string
		tableID      pgtype.Int8
		customerID   pgtype.Int8
		cancelReason pgtype.Text
		updatedBy    pgtype.Text
		subtotal     pgtype.Numeric
		deliveryCost pgtype.Numeric
		total        pgtype.Numeric
	)
	query := `
		select id, order_number, order_type, status, table_id, customer_id,
			subtotal, delivery_cost, total,
			cancel_reason, version, updated_by, placed_at, updated_at
		from orders
		where id = $1
	`
	err := s.q.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.OrderNumber, &orderType, &status, &tableID, &customerID,
		&subtotal, &deliveryCost, &total,
		&cancelReason, &o.Version, &updatedBy, &o.PlacedAt, &o.UpdatedAt,
	)
	if err != nil {
		return lifecycle.Order{}, notFoundOr(err, "Order not found")
	}
	o.OrderType = lifecycle.OrderType(orderType)
	o.Status = lifecycle.OrderStatus(status)
	o.TableID = int8Ptr(tableID)
	o.CustomerID = int8Ptr(customerID)
	o.CancelReason = textPtr(cancelReason)
	o.UpdatedBy = textPtr(updatedBy)
	o.Subtotal = numericFloat(subtotal)
	o.DeliveryCost = numericFloat(deliveryCost)
	o.Total = numericFloat(total)

	items, err := s.orderItems(ctx, id)
	if err != nil {
		return lifecycle.Order{}, err
	}
	o.Items = items
	return o, nil
}

func (s *Store) orderItems(ctx context.Context, orderID int64) ([]lifecycle.OrderItem, error) {
	rows, err := s.q.Query(ctx, `
		select id, menu_item_id, name, quantity, unit_price, notes, status
		from order_items
		where order_id = $1
		order by id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]lifecycle.OrderItem, 0)
	for rows.Next() {
		var (
			item   lifecycle.OrderItem
			notes  pgtype.Text
			status string
			price  pgtype.Numeric
		)
		if err := rows.Scan(&item.ID, &item.MenuItemID, &item.Name, &item.Quantity, &price, &notes, &status); err != nil {
			return nil, err
		}
		item.UnitPrice = numericFloat(price)
		item.Notes = textPtr(notes)
		item.Status = lifecycle.ItemStatus(status)
		items = append(items, item)
	}
	return items, rows.Err()
}

// CreateOrder inserts the order with its lines and returns it with generated
// IDs. An empty order number is filled in.
func (s *Store) CreateOrder(ctx context.Context, order lifecycle.Order) (lifecycle.Order, error) {
	out := order
	if out.OrderNumber == "" {
		number, err := s.nextNumber(ctx, "orders", "order_number", "ORD")
		if err != nil {
			return lifecycle.Order{}, err
		}
		out.OrderNumber = number
	}

	now := s.now()
	err := s.q.QueryRow(ctx, `
		insert into orders (
			order_number, order_type, status, table_id, customer_id,
			subtotal, delivery_cost, total, version, updated_by, placed_at, updated_at
		) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		returning id, placed_at, updated_at
	`,
		out.OrderNumber,
		string(out.OrderType),
		string(out.Status),
		out.TableID,
		out.CustomerID,
		out.Subtotal,
		out.DeliveryCost,
		out.Total,
		out.Version,
		out.UpdatedBy,
		now,
	).Scan(&out.ID, &out.PlacedAt, &out.UpdatedAt)
	if err != nil {
		return lifecycle.Order{}, err
	}

	out.Items = make([]lifecycle.OrderItem, len(order.Items))
	for i, item := range order.Items {
		if err := s.q.QueryRow(ctx, `
			insert into order_items (order_id, menu_item_id, name, quantity, unit_price, notes, status)
			values ($1, $2, $3, $4, $5, $6, $7)
			returning id
		`, out.ID, item.MenuItemID, item.Name, item.Quantity, item.UnitPrice, item.Notes, string(item.Status)).Scan(&item.ID); err != nil {
			return lifecycle.Order{}, err
		}
		out.Items[i] = item
	}
	return out, nil
}

// UpdateOrder persists status, reason and actor. order.Version is the new
// version; the stored row must still be at order.Version-1.
func (s *Store) UpdateOrder(ctx context.Context, order lifecycle.Order) error {
	tag, err := s.q.Exec(ctx, `
		update orders
		set status = $1,
			cancel_reason = $2,
			updated_by = $3,
			version = $4,
			updated_at = $5
		where id = $6 and version = $7
	`, string(order.Status), order.CancelReason, order.UpdatedBy, order.Version, s.now(), order.ID, order.Version-1)
	if err != nil {
		return err
	}
	return staleWrite(tag, "Order", order.ID, order.Version-1)
}

// UpdateOrderItem moves one line from the given status. Lines carry no
// version, so the previous status is the precondition.
func (s *Store) UpdateOrderItem(ctx context.Context, orderID int64, item lifecycle.OrderItem, from lifecycle.ItemStatus) error {
	tag, err := s.q.Exec(ctx, `
		update order_items set status = $1
		where id = $2 and order_id = $3 and status = $4
	`, string(item.Status), item.ID, orderID, string(from))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return apperror.PreconditionFailed("Order item was modified by another request, reload and retry", map[string]any{
		"orderId": orderID,
		"itemId":  item.ID,
		"status":  string(from),
	})
}

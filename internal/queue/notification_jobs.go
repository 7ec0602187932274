package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"resto-ops-services/internal/lifecycle"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	NotificationJobsExchange = "resto.notification_jobs"
	NotificationJobsQueue    = "resto.notification_jobs.process"
	NotificationJobsDLQ      = "resto.notification_jobs.dlq"
	NotificationJobsRK       = "process"

	KitchenTicketsExchange = "resto.kitchen_tickets"
	KitchenTicketsQueue    = "resto.kitchen_tickets.print"
	KitchenTicketsDLQ      = "resto.kitchen_tickets.dlq"
	KitchenTicketsRK       = "print"

	deadRK = "dead"
)

// EventLookup resolves the records an event refers to. store.Repository
// satisfies it.
type EventLookup interface {
	GetOrder(ctx context.Context, id int64) (lifecycle.Order, error)
	GetReservation(ctx context.Context, id int64) (lifecycle.Reservation, error)
}

func EnsureNotificationJobsTopology(ctx context.Context, qc *Client) error {
	return ensureJobsTopology(qc, NotificationJobsExchange, NotificationJobsQueue, NotificationJobsDLQ, NotificationJobsRK)
}

func EnsureKitchenTicketsTopology(ctx context.Context, qc *Client) error {
	return ensureJobsTopology(qc, KitchenTicketsExchange, KitchenTicketsQueue, KitchenTicketsDLQ, KitchenTicketsRK)
}

// ensureJobsTopology declares a direct exchange with a work queue whose
// rejected messages dead-letter into dlq.
func ensureJobsTopology(qc *Client, exchange, queueName, dlq, rk string) error {
	if qc == nil {
		return nil
	}
	if err := qc.EnsureExchangeKind(exchange, "direct"); err != nil {
		return err
	}
	if _, err := qc.EnsureQueue(dlq); err != nil {
		return err
	}
	if err := qc.BindQueue(dlq, exchange, deadRK); err != nil {
		return err
	}
	_, err := qc.EnsureQueueWithArgs(queueName, amqp.Table{
		"x-dead-letter-exchange":    exchange,
		"x-dead-letter-routing-key": deadRK,
	})
	if err != nil {
		return err
	}
	return qc.BindQueue(queueName, exchange, rk)
}

// ProcessEventToJobs translates one side-effect event into jobs for the
// external dispatcher: kitchen tickets for confirmed orders, customer status
// notifications, and staff prompts to release a table.
func ProcessEventToJobs(ctx context.Context, lookup EventLookup, pub Publisher, body []byte) error {
	if lookup == nil || pub == nil {
		return nil
	}

	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return Permanent(err)
	}
	if strings.TrimSpace(string(evt.Kind)) == "" {
		// unknown envelope
		return nil
	}

	createdAt := time.Now().UTC().Format(time.RFC3339)
	job := func(kind string, payload map[string]any) map[string]any {
		return map[string]any{
			"kind":      kind,
			"payload":   payload,
			"requestId": evt.RequestID,
			"createdAt": createdAt,
			"attempt":   1,
		}
	}

	switch evt.Kind {
	case lifecycle.EffectNotifyKitchen:
		if evt.OrderID == nil {
			return Permanent(fmt.Errorf("%s event without order id", evt.Kind))
		}
		order, err := lookup.GetOrder(ctx, *evt.OrderID)
		if err != nil {
			return err
		}
		lines := make([]map[string]any, 0, len(order.Items))
		for _, item := range order.Items {
			lines = append(lines, map[string]any{
				"name":     item.Name,
				"quantity": item.Quantity,
				"notes":    item.Notes,
			})
		}
		return pub.PublishJSON(ctx, KitchenTicketsExchange, KitchenTicketsRK, job("kitchen.ticket", map[string]any{
			"orderId":     order.ID,
			"orderNumber": order.OrderNumber,
			"orderType":   string(order.OrderType),
			"tableId":     order.TableID,
			"items":       lines,
		}))

	case lifecycle.EffectNotifyCustomer:
		if evt.OrderID != nil {
			order, err := lookup.GetOrder(ctx, *evt.OrderID)
			if err != nil {
				return err
			}
			if order.CustomerID == nil {
				return nil
			}
			return pub.PublishJSON(ctx, NotificationJobsExchange, NotificationJobsRK, job("customer.order_status", map[string]any{
				"customerId":  fmt.Sprintf("%d", *order.CustomerID),
				"orderNumber": order.OrderNumber,
				"orderType":   string(order.OrderType),
				"status":      customerOrderStatus(evt.Status),
			}))
		}
		if evt.ReservationID != nil {
			res, err := lookup.GetReservation(ctx, *evt.ReservationID)
			if err != nil {
				return err
			}
			if res.CustomerID == nil {
				return nil
			}
			return pub.PublishJSON(ctx, NotificationJobsExchange, NotificationJobsRK, job("customer.reservation_status", map[string]any{
				"customerId":        fmt.Sprintf("%d", *res.CustomerID),
				"reservationNumber": res.ReservationNumber,
				"date":              res.Date,
				"time":              res.Time,
				"partySize":         res.PartySize,
				"status":            evt.Status,
				"reason":            res.RejectReason,
			}))
		}
		return Permanent(fmt.Errorf("%s event without subject", evt.Kind))

	case lifecycle.EffectSuggestTableRelease:
		if evt.TableID == nil {
			return Permanent(fmt.Errorf("%s event without table id", evt.Kind))
		}
		return pub.PublishJSON(ctx, NotificationJobsExchange, NotificationJobsRK, job("staff.table_release", map[string]any{
			"tableId":       *evt.TableID,
			"orderId":       evt.OrderID,
			"reservationId": evt.ReservationID,
			"status":        evt.Status,
		}))
	}

	// AWAIT_ORDER and future kinds have no dispatcher job.
	return nil
}

// customerOrderStatus collapses internal statuses into the ones customers see.
func customerOrderStatus(status string) string {
	switch lifecycle.OrderStatus(strings.ToLower(strings.TrimSpace(status))) {
	case lifecycle.OrderPending:
		return "RECEIVED"
	case lifecycle.OrderConfirmed, lifecycle.OrderPreparing:
		return "PREPARING"
	case lifecycle.OrderReady:
		return "READY"
	case lifecycle.OrderDelivered:
		return "DELIVERED"
	case lifecycle.OrderCompleted:
		return "COMPLETED"
	case lifecycle.OrderCancelled:
		return "CANCELLED"
	default:
		return ""
	}
}

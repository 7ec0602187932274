package queue

import (
	"context"
	"time"

	"resto-ops-services/internal/lifecycle"
	"resto-ops-services/internal/metrics"

	"go.uber.org/zap"
)

const (
	EventsExchange = "resto.events"
	EventsQueue    = "resto.notifications"
)

// eventBindings routes every side-effect family to the translator queue. '#'
// matches multi-segment keys like 'order.status.updated'.
var eventBindings = []string{"order.#", "reservation.#", "kitchen.#", "table.#"}

// Event is the envelope published for each engine side effect.
type Event struct {
	Type          string               `json:"type"`
	Kind          lifecycle.EffectKind `json:"kind"`
	OrderID       *int64               `json:"orderId,omitempty"`
	TableID       *int64               `json:"tableId,omitempty"`
	ReservationID *int64               `json:"reservationId,omitempty"`
	Status        string               `json:"status,omitempty"`
	ActorID       string               `json:"actorId,omitempty"`
	RequestID     string               `json:"requestId,omitempty"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

func NewEvent(effect lifecycle.SideEffect, actor lifecycle.Actor, requestID string, at time.Time) Event {
	return Event{
		Type:          effect.RoutingKey(),
		Kind:          effect.Kind,
		OrderID:       effect.OrderID,
		TableID:       effect.TableID,
		ReservationID: effect.ReservationID,
		Status:        effect.Status,
		ActorID:       actor.ID,
		RequestID:     requestID,
		OccurredAt:    at.UTC(),
	}
}

func EnsureEventsTopology(ctx context.Context, qc *Client) error {
	if qc == nil {
		return nil
	}
	if err := qc.EnsureExchange(EventsExchange); err != nil {
		return err
	}
	if _, err := qc.EnsureQueue(EventsQueue); err != nil {
		return err
	}
	for _, key := range eventBindings {
		if err := qc.BindQueue(EventsQueue, EventsExchange, key); err != nil {
			return err
		}
	}
	return nil
}

// PublishEffects publishes effects after the owning transaction committed.
// Broker failures are logged and counted but never fail the request: the
// state change already happened.
func PublishEffects(ctx context.Context, pub Publisher, logger *zap.Logger, effects []lifecycle.SideEffect, actor lifecycle.Actor, requestID string) {
	if pub == nil || len(effects) == 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now()
	for _, effect := range effects {
		event := NewEvent(effect, actor, requestID, now)
		err := pub.PublishJSON(ctx, EventsExchange, event.Type, event)
		metrics.RecordEvent(event.Type, err)
		if err != nil {
			logger.Warn("event publish failed",
				zap.String("routingKey", event.Type),
				zap.String("requestId", requestID),
				zap.Error(err),
			)
		}
	}
}

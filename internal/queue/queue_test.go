package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"resto-ops-services/internal/lifecycle"
	"resto-ops-services/internal/store"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange   string
	routingKey string
	payload    map[string]any
}

type fakePublisher struct {
	messages []published
	err      error
}

func (f *fakePublisher) PublishJSON(_ context.Context, exchange, routingKey string, payload any) error {
	if f.err != nil {
		return f.err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	f.messages = append(f.messages, published{exchange: exchange, routingKey: routingKey, payload: decoded})
	return nil
}

func int64Ptr(v int64) *int64 { return &v }

func eventBody(t *testing.T, effect lifecycle.SideEffect) []byte {
	t.Helper()
	raw, err := json.Marshal(NewEvent(effect, lifecycle.Actor{ID: "w-1"}, "req-1", time.Now()))
	require.NoError(t, err)
	return raw
}

func seedOrder(t *testing.T, repo *store.Memory, customerID *int64) lifecycle.Order {
	t.Helper()
	order, err := repo.CreateOrder(context.Background(), lifecycle.Order{
		OrderType:  lifecycle.OrderTypeTakeout,
		Status:     lifecycle.OrderConfirmed,
		CustomerID: customerID,
		Items:      []lifecycle.OrderItem{{MenuItemID: 3, Name: "Bandeja paisa", Quantity: 1, UnitPrice: 32000}},
	})
	require.NoError(t, err)
	return order
}

func TestPublishEffectsRoutesByKind(t *testing.T) {
	pub := &fakePublisher{}
	effects := []lifecycle.SideEffect{
		{Kind: lifecycle.EffectNotifyKitchen, OrderID: int64Ptr(1), Status: "confirmed"},
		{Kind: lifecycle.EffectNotifyCustomer, OrderID: int64Ptr(1), Status: "confirmed"},
		{Kind: lifecycle.EffectNotifyCustomer, ReservationID: int64Ptr(4), Status: "confirmed"},
	}
	PublishEffects(context.Background(), pub, nil, effects, lifecycle.Actor{ID: "w-1"}, "req-1")

	require.Len(t, pub.messages, 3)
	assert.Equal(t, EventsExchange, pub.messages[0].exchange)
	assert.Equal(t, "kitchen.order.confirmed", pub.messages[0].routingKey)
	assert.Equal(t, "order.status.updated", pub.messages[1].routingKey)
	assert.Equal(t, "reservation.status.updated", pub.messages[2].routingKey)
	assert.Equal(t, "w-1", pub.messages[0].payload["actorId"])
}

func TestPublishEffectsSwallowsBrokerErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	assert.NotPanics(t, func() {
		PublishEffects(context.Background(), pub, nil, []lifecycle.SideEffect{{Kind: lifecycle.EffectNotifyCustomer, OrderID: int64Ptr(1)}}, lifecycle.Actor{}, "")
	})
}

func TestProcessEventToJobs(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemory(nil)
	order := seedOrder(t, repo, int64Ptr(77))

	t.Run("kitchen ticket", func(t *testing.T) {
		pub := &fakePublisher{}
		err := ProcessEventToJobs(ctx, repo, pub, eventBody(t, lifecycle.SideEffect{Kind: lifecycle.EffectNotifyKitchen, OrderID: int64Ptr(order.ID)}))
		require.NoError(t, err)
		require.Len(t, pub.messages, 1)
		assert.Equal(t, KitchenTicketsExchange, pub.messages[0].exchange)
		assert.Equal(t, "kitchen.ticket", pub.messages[0].payload["kind"])
	})

	t.Run("customer order status", func(t *testing.T) {
		pub := &fakePublisher{}
		err := ProcessEventToJobs(ctx, repo, pub, eventBody(t, lifecycle.SideEffect{Kind: lifecycle.EffectNotifyCustomer, OrderID: int64Ptr(order.ID), Status: "preparing"}))
		require.NoError(t, err)
		require.Len(t, pub.messages, 1)
		payload := pub.messages[0].payload["payload"].(map[string]any)
		assert.Equal(t, "PREPARING", payload["status"])
		assert.Equal(t, "77", payload["customerId"])
	})

	t.Run("walk-in order has nobody to notify", func(t *testing.T) {
		walkIn := seedOrder(t, repo, nil)
		pub := &fakePublisher{}
		err := ProcessEventToJobs(ctx, repo, pub, eventBody(t, lifecycle.SideEffect{Kind: lifecycle.EffectNotifyCustomer, OrderID: int64Ptr(walkIn.ID), Status: "ready"}))
		require.NoError(t, err)
		assert.Empty(t, pub.messages)
	})

	t.Run("table release prompt", func(t *testing.T) {
		pub := &fakePublisher{}
		err := ProcessEventToJobs(ctx, repo, pub, eventBody(t, lifecycle.SideEffect{Kind: lifecycle.EffectSuggestTableRelease, OrderID: int64Ptr(order.ID), TableID: int64Ptr(5), Status: "completed"}))
		require.NoError(t, err)
		require.Len(t, pub.messages, 1)
		assert.Equal(t, "staff.table_release", pub.messages[0].payload["kind"])
	})

	t.Run("malformed body is permanent", func(t *testing.T) {
		err := ProcessEventToJobs(ctx, repo, &fakePublisher{}, []byte("{"))
		assert.True(t, IsPermanent(err))
	})

	t.Run("missing order is retried", func(t *testing.T) {
		err := ProcessEventToJobs(ctx, repo, &fakePublisher{}, eventBody(t, lifecycle.SideEffect{Kind: lifecycle.EffectNotifyKitchen, OrderID: int64Ptr(999)}))
		require.Error(t, err)
		assert.False(t, IsPermanent(err))
	})
}

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, 0, getRetryCount(nil))
	assert.Equal(t, 3, getRetryCount(amqp.Table{"x-retry-count": int32(3)}))
	assert.Equal(t, 4, getRetryCount(amqp.Table{"x-retry-count": int64(4)}))
	assert.Equal(t, 0, getRetryCount(amqp.Table{"x-retry-count": "2"}))
}

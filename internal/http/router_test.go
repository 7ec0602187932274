package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"resto-ops-services/internal/auth"
	"resto-ops-services/internal/chat"
	"resto-ops-services/internal/config"
	"resto-ops-services/internal/http/handlers"
	"resto-ops-services/internal/lifecycle"
	"resto-ops-services/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

var testNow = time.Date(2026, 10, 14, 18, 30, 0, 0, time.UTC)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) PublishJSON(_ context.Context, _ string, routingKey string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
	repo    *store.Memory
	pub     *recordingPublisher
	token   string
}

func newTestAPI(t *testing.T, chatClient *chat.Client) *testAPI {
	t.Helper()
	clock := func() time.Time { return testNow }
	repo := store.NewMemory(clock)
	pub := &recordingPublisher{}
	cfg := config.Config{Env: "test", JWTSecret: testSecret}

	h := &handlers.Handler{
		Repo:       repo,
		Logger:     zap.NewNop(),
		Config:     cfg,
		Queue:      pub,
		Chat:       chat.Default(),
		ChatClient: chatClient,
		Now:        clock,
	}
	token, err := auth.IssueAccessToken("staff-1", auth.RoleWaiter, testSecret, time.Hour)
	require.NoError(t, err)

	return &testAPI{t: t, handler: Routes(h, cfg), repo: repo, pub: pub, token: token}
}

func (a *testAPI) seedTable(number string, capacity int) lifecycle.Table {
	return a.repo.SeedTable(lifecycle.Table{Number: number, Zone: "main", Capacity: capacity, Status: lifecycle.TableAvailable})
}

type apiResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *testAPI) call(method, path string, body any) (int, apiResponse) {
	return a.callAs(a.token, method, path, body)
}

func (a *testAPI) callAs(token, method, path string, body any) (int, apiResponse) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var out apiResponse
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec.Code, out
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	return out
}

type orderEnvelope struct {
	Order   lifecycle.Order        `json:"order"`
	Table   *lifecycle.Table       `json:"table"`
	Outcome lifecycle.Outcome      `json:"outcome"`
	Effects []lifecycle.SideEffect `json:"effects"`
}

type reservationEnvelope struct {
	Reservation lifecycle.Reservation `json:"reservation"`
	Table       *lifecycle.Table      `json:"table"`
}

func dineIn(tableID int64) map[string]any {
	return map[string]any{
		"orderType": "dine_in",
		"tableId":   tableID,
		"items": []map[string]any{
			{"menuItemId": 1, "name": "Bandeja paisa", "quantity": 2, "unitPrice": 32000},
		},
	}
}

func takeout() map[string]any {
	return map[string]any{
		"orderType": "takeout",
		"items": []map[string]any{
			{"menuItemId": 7, "name": "Empanada", "quantity": 3, "unitPrice": 4500},
		},
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestStaffRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t, nil)
	table := api.seedTable("T1", 4)

	status, resp := api.callAs("", http.MethodGet, "/api/tables", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", resp.Error)

	kitchen, err := auth.IssueAccessToken("cook-1", auth.RoleKitchen, testSecret, time.Hour)
	require.NoError(t, err)
	status, resp = api.callAs(kitchen, http.MethodPost, fmt.Sprintf("/api/tables/%d/release", table.ID), nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", resp.Error)

	status, _ = api.callAs(kitchen, http.MethodGet, "/api/tables", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestDineInOrderOccupiesTable(t *testing.T) {
	api := newTestAPI(t, nil)
	table := api.seedTable("T1", 4)

	status, resp := api.call(http.MethodPost, "/api/orders", dineIn(table.ID))
	require.Equal(t, http.StatusCreated, status, resp.Message)
	created := decodeData[orderEnvelope](t, resp)
	assert.Equal(t, lifecycle.OrderPending, created.Order.Status)
	assert.Equal(t, 64000.0, created.Order.Total)
	assert.Equal(t, "staff-1", *created.Order.UpdatedBy)
	require.NotNil(t, created.Table)
	assert.Equal(t, lifecycle.TableOccupied, created.Table.Status)
	require.NotNil(t, created.Table.CurrentOrderID)
	assert.Equal(t, created.Order.ID, *created.Table.CurrentOrderID)
	assert.Equal(t, []string{"order.status.updated"}, api.pub.published())

	status, resp = api.call(http.MethodPost, "/api/orders", dineIn(table.ID))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "TABLE_NOT_AVAILABLE", resp.Error)

	stored, err := api.repo.GetTable(context.Background(), table.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Order.ID, *stored.CurrentOrderID)
}

func TestOrderCreateValidation(t *testing.T) {
	api := newTestAPI(t, nil)

	cases := []struct {
		name string
		body map[string]any
	}{
		{name: "unknown type", body: map[string]any{"orderType": "drive_thru", "items": takeout()["items"]}},
		{name: "no items", body: map[string]any{"orderType": "takeout"}},
		{name: "dine in without table", body: map[string]any{"orderType": "dine_in", "items": takeout()["items"]}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, resp := api.call(http.MethodPost, "/api/orders", tc.body)
			if status != http.StatusBadRequest || resp.Error != "VALIDATION_FAILED" {
				t.Fatalf("expected 400 VALIDATION_FAILED, got %d %s", status, resp.Error)
			}
		})
	}
}

func TestOrderStatusUpdates(t *testing.T) {
	api := newTestAPI(t, nil)

	status, resp := api.call(http.MethodPost, "/api/orders", takeout())
	require.Equal(t, http.StatusCreated, status, resp.Message)
	order := decodeData[orderEnvelope](t, resp).Order
	path := fmt.Sprintf("/api/orders/%d/status", order.ID)

	status, resp = api.call(http.MethodPatch, path, map[string]any{"status": "ready"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "INVALID_TRANSITION", resp.Error)

	status, resp = api.call(http.MethodPatch, path, map[string]any{"status": "confirmed", "version": order.Version})
	require.Equal(t, http.StatusOK, status, resp.Message)
	confirmed := decodeData[orderEnvelope](t, resp)
	assert.Equal(t, lifecycle.OutcomeApplied, confirmed.Outcome)
	assert.Equal(t, order.Version+1, confirmed.Order.Version)
	assert.True(t, lifecycle.HasEffect(confirmed.Effects, lifecycle.EffectNotifyKitchen))

	status, resp = api.call(http.MethodPatch, path, map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Order status unchanged", resp.Message)
	noop := decodeData[orderEnvelope](t, resp)
	assert.Equal(t, lifecycle.OutcomeNoOp, noop.Outcome)
	assert.Empty(t, noop.Effects)
	assert.Equal(t, confirmed.Order.Version, noop.Order.Version)

	status, resp = api.call(http.MethodPatch, path, map[string]any{"status": "preparing", "version": order.Version})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "PRECONDITION_FAILED", resp.Error)

	status, resp = api.call(http.MethodPatch, path, map[string]any{"status": "cancelled", "reason": "customer left"})
	require.Equal(t, http.StatusOK, status)
	cancelled := decodeData[orderEnvelope](t, resp).Order
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "customer left", *cancelled.CancelReason)
}

func TestOrderItemStatus(t *testing.T) {
	api := newTestAPI(t, nil)

	status, resp := api.call(http.MethodPost, "/api/orders", takeout())
	require.Equal(t, http.StatusCreated, status)
	order := decodeData[orderEnvelope](t, resp).Order
	require.Len(t, order.Items, 1)
	itemPath := fmt.Sprintf("/api/orders/%d/items/%d/status", order.ID, order.Items[0].ID)

	status, resp = api.call(http.MethodPatch, itemPath, map[string]any{"status": "ready"})
	assert.Equal(t, http.StatusUnprocessableEntity, status, resp.Message)

	status, resp = api.call(http.MethodPatch, itemPath, map[string]any{"status": "preparing"})
	require.Equal(t, http.StatusOK, status, resp.Message)
	body := decodeData[struct {
		Item    lifecycle.OrderItem   `json:"item"`
		Summary lifecycle.ItemSummary `json:"summary"`
	}](t, resp)
	assert.Equal(t, lifecycle.ItemPreparing, body.Item.Status)
	assert.False(t, body.Summary.AllReady)

	status, _ = api.call(http.MethodPatch, fmt.Sprintf("/api/orders/%d/items/999/status", order.ID), map[string]any{"status": "preparing"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestReservationCapacityAndReject(t *testing.T) {
	api := newTestAPI(t, nil)
	table := api.seedTable("T2", 4)

	status, resp := api.call(http.MethodPost, "/api/reservations", map[string]any{
		"date": "2026-10-20", "time": "19:00", "partySize": 6,
	})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	res := decodeData[reservationEnvelope](t, resp).Reservation
	assert.Equal(t, lifecycle.ReservationPending, res.Status)

	status, resp = api.call(http.MethodPost, fmt.Sprintf("/api/reservations/%d/confirm", res.ID), map[string]any{"tableId": table.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "PARTY_SIZE_EXCEEDS_CAPACITY", resp.Error)

	rejectPath := fmt.Sprintf("/api/reservations/%d/reject", res.ID)
	status, resp = api.call(http.MethodPost, rejectPath, map[string]any{"reason": "  "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", resp.Error)

	status, resp = api.call(http.MethodPost, rejectPath, map[string]any{"reason": "Sin mesas para 6"})
	require.Equal(t, http.StatusOK, status, resp.Message)
	rejected := decodeData[reservationEnvelope](t, resp).Reservation
	assert.Equal(t, lifecycle.ReservationCancelled, rejected.Status)
	assert.Equal(t, "Sin mesas para 6", *rejected.RejectReason)
}

func TestReservationSlotConflict(t *testing.T) {
	api := newTestAPI(t, nil)
	table := api.seedTable("T3", 4)
	booking := map[string]any{"tableId": table.ID, "date": "2026-10-20", "time": "20:00", "partySize": 2}

	status, resp := api.call(http.MethodPost, "/api/reservations", booking)
	require.Equal(t, http.StatusCreated, status, resp.Message)

	status, resp = api.call(http.MethodPost, "/api/reservations", booking)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "PRECONDITION_FAILED", resp.Error)

	booking["time"] = "21:00"
	status, resp = api.call(http.MethodPost, "/api/reservations", booking)
	assert.Equal(t, http.StatusCreated, status, resp.Message)
}

func TestActivatedReservationAcceptsFirstOrder(t *testing.T) {
	api := newTestAPI(t, nil)
	table := api.seedTable("T4", 4)

	status, resp := api.call(http.MethodPost, "/api/reservations", map[string]any{
		"tableId": table.ID, "date": "2026-10-14", "time": "19:00", "partySize": 3,
	})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	res := decodeData[reservationEnvelope](t, resp).Reservation

	status, resp = api.call(http.MethodPost, fmt.Sprintf("/api/reservations/%d/confirm", res.ID), nil)
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, resp = api.call(http.MethodPost, fmt.Sprintf("/api/tables/%d/hold", table.ID), map[string]any{"reservationId": res.ID})
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, resp = api.call(http.MethodPost, fmt.Sprintf("/api/reservations/%d/activate", res.ID), nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	activated := decodeData[reservationEnvelope](t, resp)
	assert.Equal(t, lifecycle.ReservationActive, activated.Reservation.Status)
	require.NotNil(t, activated.Table)
	assert.Equal(t, lifecycle.TableOccupied, activated.Table.Status)
	assert.True(t, activated.Table.AwaitingOrder)
	assert.Nil(t, activated.Table.CurrentOrderID)

	status, resp = api.call(http.MethodPost, "/api/orders", dineIn(table.ID))
	require.Equal(t, http.StatusCreated, status, resp.Message)
	created := decodeData[orderEnvelope](t, resp)
	require.NotNil(t, created.Table)
	assert.False(t, created.Table.AwaitingOrder)
	assert.Equal(t, created.Order.ID, *created.Table.CurrentOrderID)

	assert.Contains(t, api.pub.published(), "table.order.awaited")
}

func TestTableCleaningCycle(t *testing.T) {
	api := newTestAPI(t, nil)
	table := api.seedTable("T5", 2)

	status, resp := api.call(http.MethodPost, "/api/orders", dineIn(table.ID))
	require.Equal(t, http.StatusCreated, status, resp.Message)

	for _, step := range []struct {
		action string
		want   lifecycle.TableStatus
	}{
		{action: "cleaning", want: lifecycle.TableCleaning},
		{action: "available", want: lifecycle.TableAvailable},
	} {
		status, resp = api.call(http.MethodPost, fmt.Sprintf("/api/tables/%d/%s", table.ID, step.action), nil)
		require.Equal(t, http.StatusOK, status, "%s: %s", step.action, resp.Message)
		got := decodeData[struct {
			Table lifecycle.Table `json:"table"`
		}](t, resp).Table
		assert.Equal(t, step.want, got.Status, step.action)
	}

	status, resp = api.call(http.MethodPost, fmt.Sprintf("/api/tables/%d/release", table.ID), nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "PRECONDITION_FAILED", resp.Error)
}

func TestChatValidate(t *testing.T) {
	api := newTestAPI(t, nil)

	cases := []struct {
		level int
		input string
		valid bool
	}{
		{level: 1, input: "300 123 4567", valid: true},
		{level: 5, input: "25", valid: false},
		{level: 7, input: "SI", valid: true},
		{level: 99, input: "anything", valid: true},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("level %d %q", tc.level, tc.input), func(t *testing.T) {
			status, resp := api.callAs("", http.MethodPost, "/api/chat/validate", map[string]any{"level": tc.level, "input": tc.input})
			require.Equal(t, http.StatusOK, status)
			got := decodeData[chat.Validation](t, resp)
			assert.Equal(t, tc.valid, got.Valid)
			if !tc.valid {
				assert.NotNil(t, got.ErrorMsg)
			}
		})
	}
}

func TestChatSessionMessages(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SessionID string `json:"sessionId"`
			Level     int    `json:"level"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(chat.Reply{SessionID: req.SessionID, Reply: "Bienvenido, ¿cuál es tu celular?", Level: req.Level + 1})
	}))
	t.Cleanup(backend.Close)

	api := newTestAPI(t, chat.NewClient(backend.URL, time.Second, nil, nil))

	status, resp := api.callAs("", http.MethodPost, "/api/chat/sessions", nil)
	require.Equal(t, http.StatusCreated, status, resp.Message)
	created := decodeData[struct {
		Session chat.Session `json:"session"`
	}](t, resp).Session
	messagesPath := "/api/chat/sessions/" + created.ID + "/messages"

	status, resp = api.callAs("", http.MethodPost, messagesPath, map[string]any{"message": "hola"})
	require.Equal(t, http.StatusOK, status, resp.Message)
	step := decodeData[struct {
		Session chat.Session `json:"session"`
		Reply   string       `json:"reply"`
	}](t, resp)
	assert.Equal(t, 1, step.Session.CurrentLevel)
	assert.Equal(t, "Bienvenido, ¿cuál es tu celular?", step.Reply)

	status, resp = api.callAs("", http.MethodPost, messagesPath, map[string]any{"message": "123"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", resp.Error)

	stored, err := api.repo.GetChatSession(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentLevel)

	status, _ = api.callAs("", http.MethodGet, "/api/chat/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestChatMessageWithoutBackend(t *testing.T) {
	api := newTestAPI(t, nil)

	status, resp := api.callAs("", http.MethodPost, "/api/chat/sessions", nil)
	require.Equal(t, http.StatusCreated, status)
	id := decodeData[struct {
		Session chat.Session `json:"session"`
	}](t, resp).Session.ID

	status, resp = api.callAs("", http.MethodPost, "/api/chat/sessions/"+id+"/messages", map[string]any{"message": "hola"})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "UPSTREAM_FAILED", resp.Error)
}

func TestActivateOnOtherTableReleasesHold(t *testing.T) {
	api := newTestAPI(t, nil)
	held := api.seedTable("A1", 4)
	other := api.seedTable("B1", 4)

	status, resp := api.call(http.MethodPost, "/api/reservations", map[string]any{
		"tableId": held.ID, "date": "2026-10-14", "time": "20:30", "partySize": 4,
	})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	res := decodeData[reservationEnvelope](t, resp).Reservation

	status, resp = api.call(http.MethodPost, fmt.Sprintf("/api/reservations/%d/confirm", res.ID), nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	status, resp = api.call(http.MethodPost, fmt.Sprintf("/api/tables/%d/hold", held.ID), map[string]any{"reservationId": res.ID})
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, resp = api.call(http.MethodPost, fmt.Sprintf("/api/reservations/%d/activate", res.ID), map[string]any{"tableId": other.ID})
	require.Equal(t, http.StatusOK, status, resp.Message)
	activated := decodeData[reservationEnvelope](t, resp)
	require.NotNil(t, activated.Reservation.TableID)
	assert.Equal(t, other.ID, *activated.Reservation.TableID)
	assert.Equal(t, lifecycle.TableOccupied, activated.Table.Status)

	freed, err := api.repo.GetTable(context.Background(), held.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.TableAvailable, freed.Status)
	assert.Nil(t, freed.CurrentReservationID)
	require.NoError(t, lifecycle.CheckTable(freed))
}

func TestOccupyRequiresOpenOrderForThatTable(t *testing.T) {
	api := newTestAPI(t, nil)
	home := api.seedTable("C1", 4)
	elsewhere := api.seedTable("C2", 4)

	status, resp := api.call(http.MethodPost, "/api/orders", dineIn(home.ID))
	require.Equal(t, http.StatusCreated, status, resp.Message)
	order := decodeData[orderEnvelope](t, resp).Order

	status, resp = api.call(http.MethodPost, fmt.Sprintf("/api/tables/%d/occupy", elsewhere.ID), map[string]any{"orderId": order.ID})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "PRECONDITION_FAILED", resp.Error)
	stored, err := api.repo.GetTable(context.Background(), elsewhere.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.TableAvailable, stored.Status)

	status, resp = api.call(http.MethodPost, fmt.Sprintf("/api/tables/%d/release", home.ID), nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	status, resp = api.call(http.MethodPost, fmt.Sprintf("/api/tables/%d/occupy", home.ID), map[string]any{"orderId": order.ID})
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, resp = api.call(http.MethodPatch, fmt.Sprintf("/api/orders/%d/status", order.ID), map[string]any{"status": "cancelled"})
	require.Equal(t, http.StatusOK, status, resp.Message)
	status, resp = api.call(http.MethodPost, fmt.Sprintf("/api/tables/%d/release", home.ID), nil)
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, resp = api.call(http.MethodPost, fmt.Sprintf("/api/tables/%d/occupy", home.ID), map[string]any{"orderId": order.ID})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "PRECONDITION_FAILED", resp.Error)
}

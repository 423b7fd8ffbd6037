package http_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "orderflow/internal/adapters/in/http"
	"orderflow/internal/adapters/out/eventbus"
	"orderflow/internal/adapters/out/memory"
	"orderflow/internal/adapters/out/notify/inapp"
	"orderflow/internal/core/application/coordinator"
	"orderflow/internal/core/application/notifications"
	"orderflow/internal/core/application/realtime"
	"orderflow/internal/core/application/usecases/commands"
	"orderflow/internal/core/application/usecases/queries"
	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

type storeUoWFactory struct {
	store *memory.Store
}

func (f storeUoWFactory) Create() commands.OrderUoW {
	return f.store.Create()
}

type api struct {
	e     *echo.Echo
	board *inapp.Board
}

func newAPI(t *testing.T) api {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	hub := eventbus.NewHub(eventbus.WithLogger(logger))
	t.Cleanup(hub.Close)
	store := memory.NewStore(memory.WithPublisher(hub))
	factory := storeUoWFactory{store: store}
	estimator, err := services.NewWaitTimeEstimator(services.DefaultEstimatorConfig())
	require.NoError(t, err)
	view := services.NewActiveView(time.Hour)

	coord := coordinator.New(coordinator.Handlers{
		CreateOrder:       commands.NewCreateOrderCommandHandler(factory, nil),
		RequestTransition: commands.NewRequestTransitionCommandHandler(factory, nil),
		ClaimOrder:        commands.NewClaimOrderCommandHandler(factory, nil),
		AssignRider:       commands.NewAssignRiderCommandHandler(factory, nil),
		CancelOrder:       commands.NewCancelOrderCommandHandler(factory, nil),
		GetOrder:          queries.NewGetOrderQueryHandler(store),
		GetActiveOrders:   queries.NewGetActiveOrdersQueryHandler(store, view, nil),
		GetOrderHistory:   queries.NewGetOrderHistoryQueryHandler(store, store),
		GetWaitEstimate:   queries.NewGetWaitEstimateQueryHandler(store, estimator, nil, 0),
	}, nil, time.Second)

	board := inapp.NewBoard(10)
	feed := realtime.NewFeed(hub, store, view, nil, logger)
	doc, err := httpadapter.LoadSpec(t.Context())
	require.NoError(t, err)

	e, err := httpadapter.NewEcho(httpadapter.NewServer(coord, feed, board), doc, secret, logger)
	require.NoError(t, err)
	return api{e: e, board: board}
}

func token(t *testing.T, role actor.Role, id kernel.UUID) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, httpadapter.Claims{
		Role: role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(secret)
	require.NoError(t, err)
	return signed
}

func (a api) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var newOrderBody = httpadapter.NewOrder{
	CustomerContact: "+15550100",
	PaymentMethod:   "card",
	PaymentStatus:   "paid",
	Items:           []httpadapter.NewItem{{Name: "Margherita", Quantity: 2, UnitPrice: 1150}},
}

type staff struct {
	reception, kitchen, admin string
}

func newStaff(t *testing.T) staff {
	return staff{
		reception: token(t, actor.RoleReception, kernel.NewUUID()),
		kitchen:   token(t, actor.RoleKitchen, kernel.NewUUID()),
		admin:     token(t, actor.RoleAdmin, kernel.NewUUID()),
	}
}

func (a api) place(t *testing.T, s staff) httpadapter.Order {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/orders", s.reception, newOrderBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[httpadapter.Order](t, rec)
}

func (a api) transition(t *testing.T, id fmt.Stringer, bearer, status string) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, http.MethodPost, "/api/v1/orders/"+id.String()+"/transitions", bearer,
		httpadapter.TransitionRequest{Status: status})
}

func (a api) ready(t *testing.T, s staff) httpadapter.Order {
	t.Helper()
	placed := a.place(t, s)
	require.Equal(t, http.StatusOK, a.transition(t, placed.Id, s.kitchen, "preparing").Code)
	rec := a.transition(t, placed.Id, s.kitchen, "ready_for_pickup")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[httpadapter.TransitionResponse](t, rec).Order
}

func TestServer_Health(t *testing.T) {
	rec := newAPI(t).do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Healthy", rec.Body.String())
}

func TestServer_CreateOrder(t *testing.T) {
	t.Run("should place an order in status new", func(t *testing.T) {
		a := newAPI(t)

		created := a.place(t, newStaff(t))

		assert.Equal(t, "new", created.Status)
		assert.Equal(t, int64(1), created.Number)
		assert.Equal(t, int64(2300), created.Total)
		assert.Equal(t, []string{"preparing", "cancelled"}, created.AllowedTargets)
	})

	t.Run("should reject a request without a token", func(t *testing.T) {
		rec := newAPI(t).do(t, http.MethodPost, "/api/v1/orders", "", newOrderBody)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, httpadapter.Claims{
			Role:             "admin",
			RegisteredClaims: jwt.RegisteredClaims{Subject: kernel.NewUUID().String()},
		}).SignedString([]byte("other"))
		require.NoError(t, err)

		rec := newAPI(t).do(t, http.MethodPost, "/api/v1/orders", forged, newOrderBody)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("should forbid the kitchen from placing orders", func(t *testing.T) {
		rec := newAPI(t).do(t, http.MethodPost, "/api/v1/orders", newStaff(t).kitchen, newOrderBody)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("should reject a body that breaks the schema", func(t *testing.T) {
		body := newOrderBody
		body.Items = nil

		rec := newAPI(t).do(t, http.MethodPost, "/api/v1/orders", newStaff(t).reception, body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, http.StatusBadRequest, decode[httpadapter.Error](t, rec).Code)
	})
}

func TestServer_Lifecycle(t *testing.T) {
	a := newAPI(t)
	s := newStaff(t)
	riderA := kernel.NewUUID()
	tokenA := token(t, actor.RoleRider, riderA)
	tokenB := token(t, actor.RoleRider, kernel.NewUUID())
	ready := a.ready(t, s)

	rec := a.do(t, http.MethodPost, "/api/v1/orders/"+ready.Id.String()+"/claim", tokenA, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	won := decode[httpadapter.ClaimResponse](t, rec)
	assert.Equal(t, "claimed", won.Outcome)
	require.NotNil(t, won.Order)
	require.NotNil(t, won.Order.RiderId)
	assert.Equal(t, riderA.String(), won.Order.RiderId.String())

	rec = a.do(t, http.MethodPost, "/api/v1/orders/"+ready.Id.String()+"/claim", tokenB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lost := decode[httpadapter.ClaimResponse](t, rec)
	assert.Equal(t, "already_claimed", lost.Outcome)
	assert.Equal(t, "order was just claimed by someone else", lost.Message)

	rec = a.transition(t, ready.Id, tokenB, "delivered")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.transition(t, ready.Id, tokenA, "arrived")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	delivered := decode[httpadapter.TransitionResponse](t, rec)
	assert.True(t, delivered.Changed)
	assert.Equal(t, "delivered", delivered.Order.Status)
	assert.Equal(t, "out_for_delivery", delivered.Previous)
	assert.NotNil(t, delivered.Order.DeliveredAt)

	rec = a.transition(t, ready.Id, tokenA, "delivered")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[httpadapter.TransitionResponse](t, rec).Changed)

	rec = a.do(t, http.MethodGet, "/api/v1/orders/"+ready.Id.String()+"/history", s.reception, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]httpadapter.HistoryEntry](t, rec)
	require.Len(t, entries, 5)
	assert.Empty(t, entries[0].From)
	assert.Equal(t, "new", entries[0].To)
	assert.Equal(t, "delivered", entries[4].To)

	rec = a.do(t, http.MethodGet, "/api/v1/orders/"+ready.Id.String()+"/history", s.kitchen, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_TransitionErrors(t *testing.T) {
	a := newAPI(t)
	s := newStaff(t)
	placed := a.place(t, s)
	rider := token(t, actor.RoleRider, kernel.NewUUID())

	t.Run("should report a skipped status as a conflict", func(t *testing.T) {
		rec := a.transition(t, placed.Id, s.kitchen, "ready_for_pickup")

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("should forbid a rider from cancelling", func(t *testing.T) {
		require.Equal(t, http.StatusOK, a.transition(t, placed.Id, s.kitchen, "preparing").Code)

		rec := a.do(t, http.MethodPost, "/api/v1/orders/"+placed.Id.String()+"/cancellation", rider,
			httpadapter.CancellationRequest{Reason: "customer called"})

		assert.Equal(t, http.StatusForbidden, rec.Code)
		got := a.do(t, http.MethodGet, "/api/v1/orders/"+placed.Id.String(), s.admin, nil)
		assert.Equal(t, "preparing", decode[httpadapter.Order](t, got).Status)
	})

	t.Run("should reject an unknown status", func(t *testing.T) {
		rec := a.transition(t, placed.Id, s.kitchen, "eaten")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should report a missing order", func(t *testing.T) {
		rec := a.transition(t, kernel.NewUUID(), s.kitchen, "preparing")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("should reject a malformed order id", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/v1/orders/not-a-uuid", s.admin, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should cancel with a reason", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/api/v1/orders/"+placed.Id.String()+"/cancellation", s.reception,
			httpadapter.CancellationRequest{Reason: "customer called"})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		cancelled := decode[httpadapter.TransitionResponse](t, rec)
		assert.Equal(t, "cancelled", cancelled.Order.Status)
		assert.Equal(t, "customer called", cancelled.Order.CancelReason)
	})
}

func TestServer_AssignRider(t *testing.T) {
	a := newAPI(t)
	s := newStaff(t)
	ready := a.ready(t, s)
	riderID := kernel.NewUUID()

	rec := a.do(t, http.MethodPost, "/api/v1/orders/"+ready.Id.String()+"/assignment", s.reception,
		httpadapter.AssignmentRequest{RiderId: riderID.Bytes()})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/orders/"+ready.Id.String()+"/assignment", s.admin,
		httpadapter.AssignmentRequest{RiderId: riderID.Bytes()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assigned := decode[httpadapter.ClaimResponse](t, rec)
	assert.Equal(t, "claimed", assigned.Outcome)
	assert.Equal(t, "out_for_delivery", assigned.Order.Status)
}

func TestServer_ActiveOrders(t *testing.T) {
	a := newAPI(t)
	s := newStaff(t)
	a.place(t, s)
	a.ready(t, s)
	rider := token(t, actor.RoleRider, kernel.NewUUID())

	rec := a.do(t, http.MethodGet, "/api/v1/orders/active", s.reception, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]httpadapter.Order](t, rec), 2)

	rec = a.do(t, http.MethodGet, "/api/v1/orders/active", rider, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	visible := decode[[]httpadapter.Order](t, rec)
	require.Len(t, visible, 1)
	assert.Equal(t, "ready_for_pickup", visible[0].Status)
}

func TestServer_Estimate(t *testing.T) {
	a := newAPI(t)
	a.place(t, newStaff(t))

	rec := a.do(t, http.MethodGet, "/api/v1/estimate", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	estimate := decode[httpadapter.Estimate](t, rec)
	assert.Equal(t, 1, estimate.OrdersAhead)
	assert.Equal(t, "low", estimate.Confidence)
	assert.Positive(t, estimate.Minutes)
}

func TestServer_Notices(t *testing.T) {
	a := newAPI(t)
	s := newStaff(t)
	require.NoError(t, a.board.Post(t.Context(), ports.Notice{
		Key:         "k1",
		Audience:    notifications.StaffAudience,
		OrderID:     kernel.NewUUID(),
		OrderNumber: 3,
		Text:        "Order #3 accepted by the kitchen",
		CreatedAt:   time.Now().UTC(),
	}))

	rec := a.do(t, http.MethodGet, "/api/v1/notices?limit=5", s.kitchen, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notices := decode[[]httpadapter.Notice](t, rec)
	require.Len(t, notices, 1)
	assert.Equal(t, int64(3), notices[0].OrderNumber)

	rec = a.do(t, http.MethodGet, "/api/v1/notices?limit=0", s.kitchen, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/notices", token(t, actor.RoleRider, kernel.NewUUID()), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_StreamOrder(t *testing.T) {
	a := newAPI(t)
	s := newStaff(t)
	placed := a.place(t, s)
	srv := httptest.NewServer(a.e)
	t.Cleanup(srv.Close)

	url := srv.URL + "/api/v1/orders/" + placed.Id.String() + "/events?access_token=" + s.reception
	resp, err := srv.Client().Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get(echo.HeaderContentType))

	events := make(chan string, 8)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
				events <- name
			}
		}
	}()

	next := func() string {
		select {
		case name := <-events:
			return name
		case <-time.After(2 * time.Second):
			t.Fatal("no event received")
			return ""
		}
	}

	assert.Equal(t, "snapshot", next())
	require.Equal(t, http.StatusOK, a.transition(t, placed.Id, s.kitchen, "preparing").Code)
	assert.Equal(t, "change", next())
}

package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// Wire types of openapi.yaml.

type NewItem struct {
	Name       string   `json:"name"`
	Quantity   int      `json:"quantity"`
	UnitPrice  int64    `json:"unitPrice"`
	Selections []string `json:"selections,omitempty"`
}

type NewOrder struct {
	CustomerContact string    `json:"customerContact,omitempty"`
	PaymentMethod   string    `json:"paymentMethod"`
	PaymentStatus   string    `json:"paymentStatus"`
	Items           []NewItem `json:"items"`
}

type Item struct {
	Name       string   `json:"name"`
	Quantity   int      `json:"quantity"`
	UnitPrice  int64    `json:"unitPrice"`
	Selections []string `json:"selections"`
}

type Order struct {
	Id              openapi_types.UUID  `json:"id"`
	Number          int64               `json:"number"`
	Status          string              `json:"status"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	PreparingAt     *time.Time          `json:"preparingAt,omitempty"`
	ReadyAt         *time.Time          `json:"readyAt,omitempty"`
	AssignedAt      *time.Time          `json:"assignedAt,omitempty"`
	DeliveredAt     *time.Time          `json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time          `json:"cancelledAt,omitempty"`
	RiderId         *openapi_types.UUID `json:"riderId,omitempty"`
	CancelReason    string              `json:"cancelReason,omitempty"`
	PaymentMethod   string              `json:"paymentMethod,omitempty"`
	PaymentStatus   string              `json:"paymentStatus,omitempty"`
	CustomerContact string              `json:"customerContact,omitempty"`
	Items           []Item              `json:"items"`
	Total           int64               `json:"total"`
	Version         int64               `json:"version"`
	AllowedTargets  []string            `json:"allowedTargets"`
}

type TransitionRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type TransitionResponse struct {
	Order    Order  `json:"order"`
	Previous string `json:"previous,omitempty"`
	Changed  bool   `json:"changed"`
}

type AssignmentRequest struct {
	RiderId openapi_types.UUID `json:"riderId"`
}

type CancellationRequest struct {
	Reason string `json:"reason"`
}

type ClaimResponse struct {
	Outcome string `json:"outcome"`
	Message string `json:"message"`
	Order   *Order `json:"order,omitempty"`
}

type HistoryEntry struct {
	From       string              `json:"from,omitempty"`
	To         string              `json:"to"`
	ActorRole  string              `json:"actorRole"`
	ActorId    *openapi_types.UUID `json:"actorId,omitempty"`
	Reason     string              `json:"reason,omitempty"`
	OccurredAt time.Time           `json:"occurredAt"`
}

type Estimate struct {
	Minutes            int       `json:"minutes"`
	OrdersAhead        int       `json:"ordersAhead"`
	AveragePrepSeconds int       `json:"averagePrepSeconds"`
	Confidence         string    `json:"confidence"`
	SampleSize         int       `json:"sampleSize"`
	ComputedAt         time.Time `json:"computedAt"`
}

type Notice struct {
	Key         string             `json:"key"`
	OrderId     openapi_types.UUID `json:"orderId"`
	OrderNumber int64              `json:"orderNumber"`
	Text        string             `json:"text"`
	CreatedAt   time.Time          `json:"createdAt"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type GetNoticesParams struct {
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

// ServerInterface is one method per operation of openapi.yaml.
type ServerInterface interface {
	CreateOrder(ctx echo.Context) error
	GetActiveOrders(ctx echo.Context) error
	StreamDashboard(ctx echo.Context) error
	GetOrder(ctx echo.Context, orderId openapi_types.UUID) error
	RequestTransition(ctx echo.Context, orderId openapi_types.UUID) error
	ClaimOrder(ctx echo.Context, orderId openapi_types.UUID) error
	AssignRider(ctx echo.Context, orderId openapi_types.UUID) error
	CancelOrder(ctx echo.Context, orderId openapi_types.UUID) error
	GetOrderHistory(ctx echo.Context, orderId openapi_types.UUID) error
	StreamOrder(ctx echo.Context, orderId openapi_types.UUID) error
	GetEstimate(ctx echo.Context) error
	GetNotices(ctx echo.Context, params GetNoticesParams) error
}

// ServerInterfaceWrapper binds path and query parameters before calling the handler.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func bindOrderID(ctx echo.Context) (openapi_types.UUID, error) {
	var orderId openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "orderId", ctx.Param("orderId"), &orderId,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return orderId, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter orderId: %s", err))
	}
	return orderId, nil
}

func (w *ServerInterfaceWrapper) CreateOrder(ctx echo.Context) error {
	return w.Handler.CreateOrder(ctx)
}

func (w *ServerInterfaceWrapper) GetActiveOrders(ctx echo.Context) error {
	return w.Handler.GetActiveOrders(ctx)
}

func (w *ServerInterfaceWrapper) StreamDashboard(ctx echo.Context) error {
	return w.Handler.StreamDashboard(ctx)
}

func (w *ServerInterfaceWrapper) GetOrder(ctx echo.Context) error {
	orderId, err := bindOrderID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.GetOrder(ctx, orderId)
}

func (w *ServerInterfaceWrapper) RequestTransition(ctx echo.Context) error {
	orderId, err := bindOrderID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.RequestTransition(ctx, orderId)
}

func (w *ServerInterfaceWrapper) ClaimOrder(ctx echo.Context) error {
	orderId, err := bindOrderID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.ClaimOrder(ctx, orderId)
}

func (w *ServerInterfaceWrapper) AssignRider(ctx echo.Context) error {
	orderId, err := bindOrderID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.AssignRider(ctx, orderId)
}

func (w *ServerInterfaceWrapper) CancelOrder(ctx echo.Context) error {
	orderId, err := bindOrderID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.CancelOrder(ctx, orderId)
}

func (w *ServerInterfaceWrapper) GetOrderHistory(ctx echo.Context) error {
	orderId, err := bindOrderID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.GetOrderHistory(ctx, orderId)
}

func (w *ServerInterfaceWrapper) StreamOrder(ctx echo.Context) error {
	orderId, err := bindOrderID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.StreamOrder(ctx, orderId)
}

func (w *ServerInterfaceWrapper) GetEstimate(ctx echo.Context) error {
	return w.Handler.GetEstimate(ctx)
}

func (w *ServerInterfaceWrapper) GetNotices(ctx echo.Context) error {
	var params GetNoticesParams
	if err := runtime.BindQueryParameter("form", true, false, "limit", ctx.QueryParams(), &params.Limit); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter limit: %s", err))
	}
	return w.Handler.GetNotices(ctx, params)
}

// EchoRouter is satisfied by both *echo.Echo and *echo.Group.
type EchoRouter interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// RegisterHandlersWithBaseURL mounts every operation under baseURL.
func RegisterHandlersWithBaseURL(router EchoRouter, si ServerInterface, baseURL string) {
	w := ServerInterfaceWrapper{Handler: si}

	router.POST(baseURL+"/orders", w.CreateOrder)
	router.GET(baseURL+"/orders/active", w.GetActiveOrders)
	router.GET(baseURL+"/orders/events", w.StreamDashboard)
	router.GET(baseURL+"/orders/:orderId", w.GetOrder)
	router.POST(baseURL+"/orders/:orderId/transitions", w.RequestTransition)
	router.POST(baseURL+"/orders/:orderId/claim", w.ClaimOrder)
	router.POST(baseURL+"/orders/:orderId/assignment", w.AssignRider)
	router.POST(baseURL+"/orders/:orderId/cancellation", w.CancelOrder)
	router.GET(baseURL+"/orders/:orderId/history", w.GetOrderHistory)
	router.GET(baseURL+"/orders/:orderId/events", w.StreamOrder)
	router.GET(baseURL+"/estimate", w.GetEstimate)
	router.GET(baseURL+"/notices", w.GetNotices)
}

// Package http exposes the order lifecycle over REST and server-sent events. Operations,
// parameters and bodies follow the embedded openapi.yaml.
package http

import (
	"net/http"
	"time"

	"orderflow/internal/core/application/coordinator"
	"orderflow/internal/core/application/notifications"
	"orderflow/internal/core/application/realtime"
	"orderflow/internal/core/application/usecases/commands"
	"orderflow/internal/core/application/usecases/queries"
	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/core/domain/model/history"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/errs"

	"github.com/labstack/echo/v4"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

const defaultNoticeLimit = 50

// Server implements ServerInterface on top of the coordinator.
type Server struct {
	coordinator coordinator.Service
	feed        *realtime.Feed
	notices     ports.NoticeBoard
	heartbeat   time.Duration
}

func NewServer(coord coordinator.Service, feed *realtime.Feed, notices ports.NoticeBoard) *Server {
	return &Server{
		coordinator: coord,
		feed:        feed,
		notices:     notices,
		heartbeat:   15 * time.Second,
	}
}

// CreateOrder handles POST /api/v1/orders - places an order in status new.
func (s *Server) CreateOrder(ctx echo.Context) error {
	by, err := requireRole(ctx, actor.RoleReception, actor.RoleAdmin)
	if err != nil {
		return err
	}

	var body NewOrder
	if err = ctx.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	items := make([]order.Item, 0, len(body.Items))
	for _, it := range body.Items {
		item, err := order.NewItem(it.Name, it.Quantity, it.UnitPrice, it.Selections)
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	payment, err := order.NewPayment(order.PaymentMethod(body.PaymentMethod), order.PaymentStatus(body.PaymentStatus))
	if err != nil {
		return err
	}

	cmd, err := commands.NewCreateOrderCommand(kernel.NewUUID(), body.CustomerContact, payment, items)
	if err != nil {
		return err
	}
	placed, err := s.coordinator.CreateOrder(ctx.Request().Context(), cmd)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, toOrder(respond(placed, by)))
}

// GetActiveOrders handles GET /api/v1/orders/active - the caller's dashboard.
func (s *Server) GetActiveOrders(ctx echo.Context) error {
	viewer, err := actorFrom(ctx)
	if err != nil {
		return err
	}
	query, err := queries.NewGetActiveOrdersQuery(viewer)
	if err != nil {
		return err
	}

	orders, err := s.coordinator.ActiveOrders(ctx.Request().Context(), query)
	if err != nil {
		return err
	}

	response := make([]Order, len(orders))
	for i, o := range orders {
		response[i] = toOrder(o)
	}
	return ctx.JSON(http.StatusOK, response)
}

// GetOrder handles GET /api/v1/orders/{orderId}.
func (s *Server) GetOrder(ctx echo.Context, orderId openapi_types.UUID) error {
	viewer, err := actorFrom(ctx)
	if err != nil {
		return err
	}
	id, err := kernel.UUIDFromBytes(orderId[:])
	if err != nil {
		return err
	}
	query, err := queries.NewGetOrderQuery(id, viewer)
	if err != nil {
		return err
	}

	resp, err := s.coordinator.GetOrder(ctx.Request().Context(), query)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, toOrder(resp))
}

// RequestTransition handles POST /api/v1/orders/{orderId}/transitions. A rider asking for
// out_for_delivery claims the order; losing that race is a 409.
func (s *Server) RequestTransition(ctx echo.Context, orderId openapi_types.UUID) error {
	by, err := actorFrom(ctx)
	if err != nil {
		return err
	}

	var body TransitionRequest
	if err = ctx.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	target, err := order.ParseStatus(body.Status)
	if err != nil {
		return err
	}
	id, err := kernel.UUIDFromBytes(orderId[:])
	if err != nil {
		return err
	}

	var result commands.TransitionResult
	if target == order.Cancelled {
		cmd, cmdErr := commands.NewCancelOrderCommand(id, by, body.Reason)
		if cmdErr != nil {
			return cmdErr
		}
		result, err = s.coordinator.Cancel(ctx.Request().Context(), cmd)
	} else {
		cmd, cmdErr := commands.NewRequestTransitionCommand(id, target, by, body.Reason)
		if cmdErr != nil {
			return cmdErr
		}
		result, err = s.coordinator.RequestTransition(ctx.Request().Context(), cmd)
	}
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, toTransitionResponse(result, by))
}

// ClaimOrder handles POST /api/v1/orders/{orderId}/claim. Losing the race is a normal
// outcome, reported with 200.
func (s *Server) ClaimOrder(ctx echo.Context, orderId openapi_types.UUID) error {
	rider, err := actorFrom(ctx)
	if err != nil {
		return err
	}
	id, err := kernel.UUIDFromBytes(orderId[:])
	if err != nil {
		return err
	}
	cmd, err := commands.NewClaimOrderCommand(id, rider)
	if err != nil {
		return err
	}

	result, err := s.coordinator.Claim(ctx.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return s.claimResponse(ctx, id, result, rider)
}

// AssignRider handles POST /api/v1/orders/{orderId}/assignment.
func (s *Server) AssignRider(ctx echo.Context, orderId openapi_types.UUID) error {
	by, err := actorFrom(ctx)
	if err != nil {
		return err
	}

	var body AssignmentRequest
	if err = ctx.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	id, err := kernel.UUIDFromBytes(orderId[:])
	if err != nil {
		return err
	}
	riderID, err := kernel.UUIDFromBytes(body.RiderId[:])
	if err != nil {
		return err
	}
	cmd, err := commands.NewAssignRiderCommand(id, riderID, by)
	if err != nil {
		return err
	}

	result, err := s.coordinator.AssignRider(ctx.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return s.claimResponse(ctx, id, result, by)
}

// CancelOrder handles POST /api/v1/orders/{orderId}/cancellation.
func (s *Server) CancelOrder(ctx echo.Context, orderId openapi_types.UUID) error {
	by, err := actorFrom(ctx)
	if err != nil {
		return err
	}

	var body CancellationRequest
	if err = ctx.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	id, err := kernel.UUIDFromBytes(orderId[:])
	if err != nil {
		return err
	}
	cmd, err := commands.NewCancelOrderCommand(id, by, body.Reason)
	if err != nil {
		return err
	}

	result, err := s.coordinator.Cancel(ctx.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, toTransitionResponse(result, by))
}

// GetOrderHistory handles GET /api/v1/orders/{orderId}/history.
func (s *Server) GetOrderHistory(ctx echo.Context, orderId openapi_types.UUID) error {
	viewer, err := actorFrom(ctx)
	if err != nil {
		return err
	}
	id, err := kernel.UUIDFromBytes(orderId[:])
	if err != nil {
		return err
	}
	query, err := queries.NewGetOrderHistoryQuery(id, viewer)
	if err != nil {
		return err
	}

	entries, err := s.coordinator.OrderHistory(ctx.Request().Context(), query)
	if err != nil {
		return err
	}

	response := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		response[i] = toHistoryEntry(e)
	}
	return ctx.JSON(http.StatusOK, response)
}

// GetEstimate handles GET /api/v1/estimate. It needs no token: kiosks show it before ordering.
func (s *Server) GetEstimate(ctx echo.Context) error {
	estimate, err := s.coordinator.GetEstimate(ctx.Request().Context(), queries.NewGetWaitEstimateQuery())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, toEstimate(estimate))
}

// GetNotices handles GET /api/v1/notices - the staff notice board.
func (s *Server) GetNotices(ctx echo.Context, params GetNoticesParams) error {
	if _, err := requireRole(ctx, actor.RoleReception, actor.RoleKitchen, actor.RoleAdmin); err != nil {
		return err
	}

	if s.notices == nil {
		return ctx.JSON(http.StatusOK, []Notice{})
	}

	limit := defaultNoticeLimit
	if params.Limit != nil {
		limit = *params.Limit
	}
	notices, err := s.notices.Recent(ctx.Request().Context(), notifications.StaffAudience, limit)
	if err != nil {
		return err
	}

	response := make([]Notice, len(notices))
	for i, n := range notices {
		response[i] = Notice{
			Key:         n.Key,
			OrderId:     n.OrderID.Bytes(),
			OrderNumber: n.OrderNumber,
			Text:        n.Text,
			CreatedAt:   n.CreatedAt,
		}
	}
	return ctx.JSON(http.StatusOK, response)
}

func (s *Server) claimResponse(ctx echo.Context, orderID kernel.UUID, result commands.ClaimResult, viewer actor.Actor) error {
	if result.Outcome == commands.ClaimOutcomeNotFound {
		return errs.NewObjectNotFoundError("orderID", orderID.String())
	}

	response := ClaimResponse{Outcome: string(result.Outcome), Message: claimMessage(result.Outcome)}
	if result.Order != nil {
		o := toOrder(respond(result.Order, viewer))
		response.Order = &o
	}
	return ctx.JSON(http.StatusOK, response)
}

func claimMessage(outcome commands.ClaimOutcome) string {
	switch outcome {
	case commands.ClaimOutcomeClaimed:
		return "order claimed"
	case commands.ClaimOutcomeAlreadyClaimed:
		return commands.ErrOrderAlreadyClaimed.Error()
	default:
		return commands.ErrOrderNotClaimable.Error()
	}
}

var transitions = services.NewTransitionValidator()

func respond(o *order.Order, viewer actor.Actor) queries.OrderResponse {
	return queries.NewOrderResponse(o, transitions.AllowedTargets(o.Status(), viewer.Role()))
}

func toTransitionResponse(result commands.TransitionResult, viewer actor.Actor) TransitionResponse {
	response := TransitionResponse{
		Order:   toOrder(respond(result.Order, viewer)),
		Changed: result.Changed,
	}
	if result.Changed {
		response.Previous = result.Previous.String()
	}
	return response
}

func toOrder(o queries.OrderResponse) Order {
	items := make([]Item, len(o.Items))
	for i, it := range o.Items {
		selections := it.Selections
		if selections == nil {
			selections = []string{}
		}
		items[i] = Item{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice, Selections: selections}
	}
	allowed := make([]string, len(o.AllowedTargets))
	for i, target := range o.AllowedTargets {
		allowed[i] = target.String()
	}

	response := Order{
		Id:              o.ID.Bytes(),
		Number:          o.Number,
		Status:          o.Status.String(),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		PreparingAt:     o.Milestones.PreparingAt,
		ReadyAt:         o.Milestones.ReadyAt,
		AssignedAt:      o.Milestones.AssignedAt,
		DeliveredAt:     o.Milestones.DeliveredAt,
		CancelledAt:     o.Milestones.CancelledAt,
		CancelReason:    o.CancelReason,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		CustomerContact: o.CustomerContact,
		Items:           items,
		Total:           o.Total,
		Version:         o.Version,
		AllowedTargets:  allowed,
	}
	if o.RiderID != nil {
		riderID := openapi_types.UUID(o.RiderID.Bytes())
		response.RiderId = &riderID
	}
	return response
}

func toHistoryEntry(e history.Entry) HistoryEntry {
	entry := HistoryEntry{
		To:         e.To.String(),
		ActorRole:  e.ActorRole,
		Reason:     e.Reason,
		OccurredAt: e.OccurredAt,
	}
	if e.From != order.Unknown {
		entry.From = e.From.String()
	}
	if e.ActorID != nil {
		actorID := openapi_types.UUID(e.ActorID.Bytes())
		entry.ActorId = &actorID
	}
	return entry
}

func toEstimate(e services.WaitEstimate) Estimate {
	return Estimate{
		Minutes:            e.Minutes,
		OrdersAhead:        e.OrdersAhead,
		AveragePrepSeconds: int(e.AveragePrep / time.Second),
		Confidence:         string(e.Confidence),
		SampleSize:         e.SampleSize,
		ComputedAt:         e.ComputedAt,
	}
}

var _ ServerInterface = (*Server)(nil)

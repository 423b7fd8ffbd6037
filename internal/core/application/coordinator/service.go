// Package coordinator is the single entry point for order lifecycle operations. It routes
// each request to its command or query handler, bounds store calls by a timeout and hands
// successful changes to the notification dispatcher. It never pushes to dashboards; they
// observe committed changes through the event bus.
package coordinator

import (
	"context"

	"orderflow/internal/core/application/usecases/commands"
	"orderflow/internal/core/application/usecases/queries"
	"orderflow/internal/core/domain/model/history"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"
)

// Service is the operation set exposed to transports.
type Service interface {
	CreateOrder(ctx context.Context, cmd commands.CreateOrderCommand) (*order.Order, error)

	// RequestTransition moves an order to the requested status. A rider asking for
	// out_for_delivery is treated as a claim; losing that claim is returned as
	// commands.ErrOrderAlreadyClaimed or commands.ErrOrderNotClaimable.
	RequestTransition(ctx context.Context, cmd commands.RequestTransitionCommand) (commands.TransitionResult, error)

	Claim(ctx context.Context, cmd commands.ClaimOrderCommand) (commands.ClaimResult, error)
	AssignRider(ctx context.Context, cmd commands.AssignRiderCommand) (commands.ClaimResult, error)
	Cancel(ctx context.Context, cmd commands.CancelOrderCommand) (commands.TransitionResult, error)

	GetOrder(ctx context.Context, query queries.GetOrderQuery) (queries.OrderResponse, error)
	ActiveOrders(ctx context.Context, query queries.GetActiveOrdersQuery) ([]queries.OrderResponse, error)
	OrderHistory(ctx context.Context, query queries.GetOrderHistoryQuery) ([]history.Entry, error)
	GetEstimate(ctx context.Context, query queries.GetWaitEstimateQuery) (services.WaitEstimate, error)
}

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderflow/internal/core/application/usecases/commands"
	"orderflow/internal/core/application/usecases/queries"
	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/core/domain/model/history"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
)

// Notifier accepts committed changes for best-effort notification. It must not block.
type Notifier interface {
	Notify(ctx context.Context, change ports.OrderChange) bool
}

// Handlers groups the use case handlers the coordinator routes to.
type Handlers struct {
	CreateOrder       commands.CreateOrderCommandHandler
	RequestTransition commands.RequestTransitionCommandHandler
	ClaimOrder        commands.ClaimOrderCommandHandler
	AssignRider       commands.AssignRiderCommandHandler
	CancelOrder       commands.CancelOrderCommandHandler

	GetOrder        queries.GetOrderQueryHandler
	GetActiveOrders queries.GetActiveOrdersQueryHandler
	GetOrderHistory queries.GetOrderHistoryQueryHandler
	GetWaitEstimate queries.GetWaitEstimateQueryHandler
}

type Coordinator struct {
	h            Handlers
	notifier     Notifier
	storeTimeout time.Duration
}

// New builds the coordinator. A zero storeTimeout leaves store calls bounded only by the caller.
func New(h Handlers, notifier Notifier, storeTimeout time.Duration) *Coordinator {
	return &Coordinator{h: h, notifier: notifier, storeTimeout: storeTimeout}
}

func (c *Coordinator) CreateOrder(ctx context.Context, cmd commands.CreateOrderCommand) (*order.Order, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	placed, err := c.h.CreateOrder.Handle(ctx, cmd)
	if err != nil {
		return nil, storeError(err)
	}
	return placed, nil
}

func (c *Coordinator) RequestTransition(
	ctx context.Context,
	cmd commands.RequestTransitionCommand,
) (commands.TransitionResult, error) {
	if cmd.Validate() == nil && cmd.Target() == order.OutForDelivery && cmd.Actor().Role() == actor.RoleRider {
		return c.claimAsTransition(ctx, cmd)
	}

	boundCtx, cancel := c.bound(ctx)
	defer cancel()

	result, err := c.h.RequestTransition.Handle(boundCtx, cmd)
	if err != nil {
		return commands.TransitionResult{}, storeError(err)
	}
	c.notify(ctx, result.Changed, result.Order, result.Previous)
	return result, nil
}

func (c *Coordinator) claimAsTransition(
	ctx context.Context,
	cmd commands.RequestTransitionCommand,
) (commands.TransitionResult, error) {
	claim, err := commands.NewClaimOrderCommand(cmd.OrderID(), cmd.Actor())
	if err != nil {
		return commands.TransitionResult{}, err
	}

	result, err := c.Claim(ctx, claim)
	if err != nil {
		return commands.TransitionResult{}, err
	}
	if err = result.Err(cmd.OrderID()); err != nil {
		return commands.TransitionResult{}, err
	}

	previous := order.ReadyForPickup
	if !result.Changed {
		previous = result.Order.Status()
	}
	return commands.TransitionResult{Order: result.Order, Previous: previous, Changed: result.Changed}, nil
}

func (c *Coordinator) Claim(ctx context.Context, cmd commands.ClaimOrderCommand) (commands.ClaimResult, error) {
	boundCtx, cancel := c.bound(ctx)
	defer cancel()

	result, err := c.h.ClaimOrder.Handle(boundCtx, cmd)
	if err != nil {
		return commands.ClaimResult{}, storeError(err)
	}
	c.notify(ctx, result.Changed, result.Order, order.ReadyForPickup)
	return result, nil
}

func (c *Coordinator) AssignRider(ctx context.Context, cmd commands.AssignRiderCommand) (commands.ClaimResult, error) {
	boundCtx, cancel := c.bound(ctx)
	defer cancel()

	result, err := c.h.AssignRider.Handle(boundCtx, cmd)
	if err != nil {
		return commands.ClaimResult{}, storeError(err)
	}
	c.notify(ctx, result.Changed, result.Order, order.ReadyForPickup)
	return result, nil
}

func (c *Coordinator) Cancel(ctx context.Context, cmd commands.CancelOrderCommand) (commands.TransitionResult, error) {
	boundCtx, cancel := c.bound(ctx)
	defer cancel()

	result, err := c.h.CancelOrder.Handle(boundCtx, cmd)
	if err != nil {
		return commands.TransitionResult{}, storeError(err)
	}
	c.notify(ctx, result.Changed, result.Order, result.Previous)
	return result, nil
}

func (c *Coordinator) GetOrder(ctx context.Context, query queries.GetOrderQuery) (queries.OrderResponse, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	resp, err := c.h.GetOrder.Handle(ctx, query)
	return resp, storeError(err)
}

func (c *Coordinator) ActiveOrders(ctx context.Context, query queries.GetActiveOrdersQuery) ([]queries.OrderResponse, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	resp, err := c.h.GetActiveOrders.Handle(ctx, query)
	return resp, storeError(err)
}

func (c *Coordinator) OrderHistory(ctx context.Context, query queries.GetOrderHistoryQuery) ([]history.Entry, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	entries, err := c.h.GetOrderHistory.Handle(ctx, query)
	return entries, storeError(err)
}

func (c *Coordinator) GetEstimate(ctx context.Context, query queries.GetWaitEstimateQuery) (services.WaitEstimate, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	return c.h.GetWaitEstimate.Handle(ctx, query)
}

func (c *Coordinator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.storeTimeout)
}

// notify runs after the write committed; it uses the caller's context only for logging.
func (c *Coordinator) notify(ctx context.Context, changed bool, o *order.Order, previous order.Status) {
	if !changed || o == nil || c.notifier == nil {
		return
	}
	c.notifier.Notify(ctx, ports.OrderChange{Order: o, Previous: previous})
}

// storeError maps a timeout to ErrStoreUnavailable so callers know the call is safe to retry.
func storeError(err error) error {
	if err == nil || errors.Is(err, ports.ErrStoreUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ports.ErrStoreUnavailable, err)
	}
	return err
}

var _ Service = (*Coordinator)(nil)

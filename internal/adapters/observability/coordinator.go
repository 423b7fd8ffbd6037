package observability

import (
	"context"
	"log/slog"

	"orderflow/internal/core/application/coordinator"
	"orderflow/internal/core/application/usecases/commands"
	"orderflow/internal/core/application/usecases/queries"
	"orderflow/internal/core/domain/model/history"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "orderflow/internal/adapters/observability/coordinator"

// Coordinator decorates a coordinator.Service with tracing, logging and metrics.
type Coordinator struct {
	inner   coordinator.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics coordinatorMetrics
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithTracer(tr trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tr
	}
}

func WithMeter(m metric.Meter) Option {
	return func(c *Coordinator) {
		c.metrics = newCoordinatorMetrics(m)
	}
}

func NewCoordinator(inner coordinator.Service, opts ...Option) *Coordinator {
	c := &Coordinator{
		inner:   inner,
		logger:  slog.Default(),
		metrics: newCoordinatorMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.tracer == nil {
		c.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	c.logger = c.logger.With("component", "coordinator")
	return c
}

func (c *Coordinator) CreateOrder(ctx context.Context, cmd commands.CreateOrderCommand) (*order.Order, error) {
	ctx, span := c.tracer.Start(ctx, "Coordinator.CreateOrder",
		trace.WithAttributes(attribute.String("order.id", cmd.OrderID().String())))
	defer span.End()

	placed, err := c.inner.CreateOrder(ctx, cmd)
	if err != nil {
		return nil, c.fail(ctx, span, err, "failed to place order", slog.String("order_id", cmd.OrderID().String()))
	}
	c.metrics.recordTransition(ctx, order.New, "placed")
	span.SetAttributes(attribute.Int64("order.number", placed.Number()))
	c.logger.LogAttrs(ctx, slog.LevelInfo, "order placed",
		slog.String("order_id", placed.ID().String()), slog.Int64("number", placed.Number()))
	return placed, nil
}

func (c *Coordinator) RequestTransition(
	ctx context.Context,
	cmd commands.RequestTransitionCommand,
) (commands.TransitionResult, error) {
	attrs := []slog.Attr{
		slog.String("order_id", cmd.OrderID().String()),
		slog.String("target", cmd.Target().String()),
		slog.String("actor_role", cmd.Actor().Role().String()),
	}
	ctx, span := c.tracer.Start(ctx, "Coordinator.RequestTransition", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID().String()),
		attribute.String("order.target", cmd.Target().String()),
		attribute.String("actor.role", cmd.Actor().Role().String()),
	))
	defer span.End()

	result, err := c.inner.RequestTransition(ctx, cmd)
	if err != nil {
		c.metrics.recordTransition(ctx, cmd.Target(), "rejected")
		return result, c.fail(ctx, span, err, "transition rejected", attrs...)
	}
	c.recordTransition(ctx, span, cmd.Target(), result, attrs)
	return result, nil
}

func (c *Coordinator) Claim(ctx context.Context, cmd commands.ClaimOrderCommand) (commands.ClaimResult, error) {
	ctx, span := c.tracer.Start(ctx, "Coordinator.Claim", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID().String()),
		attribute.String("rider.id", cmd.Rider().ID().String()),
	))
	defer span.End()

	result, err := c.inner.Claim(ctx, cmd)
	if err != nil {
		return result, c.fail(ctx, span, err, "claim failed", slog.String("order_id", cmd.OrderID().String()))
	}
	c.recordClaim(ctx, span, result, cmd.OrderID().String())
	return result, nil
}

func (c *Coordinator) AssignRider(ctx context.Context, cmd commands.AssignRiderCommand) (commands.ClaimResult, error) {
	ctx, span := c.tracer.Start(ctx, "Coordinator.AssignRider", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID().String()),
		attribute.String("rider.id", cmd.RiderID().String()),
	))
	defer span.End()

	result, err := c.inner.AssignRider(ctx, cmd)
	if err != nil {
		return result, c.fail(ctx, span, err, "rider assignment failed", slog.String("order_id", cmd.OrderID().String()))
	}
	c.recordClaim(ctx, span, result, cmd.OrderID().String())
	return result, nil
}

func (c *Coordinator) Cancel(ctx context.Context, cmd commands.CancelOrderCommand) (commands.TransitionResult, error) {
	attrs := []slog.Attr{
		slog.String("order_id", cmd.OrderID().String()),
		slog.String("target", order.Cancelled.String()),
		slog.String("actor_role", cmd.Actor().Role().String()),
	}
	ctx, span := c.tracer.Start(ctx, "Coordinator.Cancel", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID().String()),
		attribute.String("actor.role", cmd.Actor().Role().String()),
	))
	defer span.End()

	result, err := c.inner.Cancel(ctx, cmd)
	if err != nil {
		c.metrics.recordTransition(ctx, order.Cancelled, "rejected")
		return result, c.fail(ctx, span, err, "cancellation rejected", attrs...)
	}
	c.recordTransition(ctx, span, order.Cancelled, result, append(attrs, slog.String("reason", cmd.Reason())))
	return result, nil
}

func (c *Coordinator) GetOrder(ctx context.Context, query queries.GetOrderQuery) (queries.OrderResponse, error) {
	ctx, span := c.tracer.Start(ctx, "Coordinator.GetOrder",
		trace.WithAttributes(attribute.String("order.id", query.OrderID().String())))
	defer span.End()

	resp, err := c.inner.GetOrder(ctx, query)
	if err != nil {
		return resp, c.fail(ctx, span, err, "failed to load order", slog.String("order_id", query.OrderID().String()))
	}
	return resp, nil
}

func (c *Coordinator) ActiveOrders(ctx context.Context, query queries.GetActiveOrdersQuery) ([]queries.OrderResponse, error) {
	ctx, span := c.tracer.Start(ctx, "Coordinator.ActiveOrders",
		trace.WithAttributes(attribute.String("actor.role", query.Viewer().Role().String())))
	defer span.End()

	resp, err := c.inner.ActiveOrders(ctx, query)
	if err != nil {
		return nil, c.fail(ctx, span, err, "failed to load active orders")
	}
	span.SetAttributes(attribute.Int("orders.count", len(resp)))
	return resp, nil
}

func (c *Coordinator) OrderHistory(ctx context.Context, query queries.GetOrderHistoryQuery) ([]history.Entry, error) {
	ctx, span := c.tracer.Start(ctx, "Coordinator.OrderHistory")
	defer span.End()

	entries, err := c.inner.OrderHistory(ctx, query)
	if err != nil {
		return nil, c.fail(ctx, span, err, "failed to load order history")
	}
	span.SetAttributes(attribute.Int("history.count", len(entries)))
	return entries, nil
}

func (c *Coordinator) GetEstimate(ctx context.Context, query queries.GetWaitEstimateQuery) (services.WaitEstimate, error) {
	ctx, span := c.tracer.Start(ctx, "Coordinator.GetEstimate")
	defer span.End()

	estimate, err := c.inner.GetEstimate(ctx, query)
	if err != nil {
		return estimate, c.fail(ctx, span, err, "failed to compute wait estimate")
	}
	span.SetAttributes(
		attribute.Int("estimate.minutes", estimate.Minutes),
		attribute.String("estimate.confidence", string(estimate.Confidence)),
	)
	return estimate, nil
}

func (c *Coordinator) recordTransition(
	ctx context.Context,
	span trace.Span,
	target order.Status,
	result commands.TransitionResult,
	attrs []slog.Attr,
) {
	if !result.Changed {
		c.metrics.recordTransition(ctx, target, "unchanged")
		c.logger.LogAttrs(ctx, slog.LevelDebug, "transition already applied", attrs...)
		return
	}
	c.metrics.recordTransition(ctx, target, "updated")
	span.SetAttributes(
		attribute.String("order.previous", result.Previous.String()),
	)
	if result.Order != nil {
		span.SetAttributes(attribute.Int64("order.version", result.Order.Version()))
	}
	c.logger.LogAttrs(ctx, slog.LevelInfo, "order status changed",
		append(attrs, slog.String("previous", result.Previous.String()))...)
}

func (c *Coordinator) recordClaim(ctx context.Context, span trace.Span, result commands.ClaimResult, orderID string) {
	c.metrics.recordClaim(ctx, result.Outcome)
	span.SetAttributes(attribute.String("claim.outcome", string(result.Outcome)))
	if result.Changed {
		c.metrics.recordTransition(ctx, order.OutForDelivery, "updated")
	}
	c.logger.LogAttrs(ctx, slog.LevelInfo, "claim resolved",
		slog.String("order_id", orderID), slog.String("outcome", string(result.Outcome)))
}

func (c *Coordinator) fail(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.LogAttrs(ctx, slog.LevelWarn, msg, append(attrs, slog.String("error", err.Error()))...)
	return err
}

type coordinatorMetrics struct {
	transitions metric.Int64Counter
	claims      metric.Int64Counter
}

func newCoordinatorMetrics(m metric.Meter) coordinatorMetrics {
	if m == nil {
		return coordinatorMetrics{}
	}
	transitions, _ := m.Int64Counter("orders.transitions",
		metric.WithDescription("Status change requests by target status and result"))
	claims, _ := m.Int64Counter("orders.claims",
		metric.WithDescription("Claims and rider assignments by outcome"))
	return coordinatorMetrics{transitions: transitions, claims: claims}
}

func (m coordinatorMetrics) recordTransition(ctx context.Context, target order.Status, result string) {
	if m.transitions != nil {
		m.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("order.status", target.String()),
			attribute.String("result", result),
		))
	}
}

func (m coordinatorMetrics) recordClaim(ctx context.Context, outcome commands.ClaimOutcome) {
	if m.claims != nil {
		m.claims.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
	}
}

var _ coordinator.Service = (*Coordinator)(nil)

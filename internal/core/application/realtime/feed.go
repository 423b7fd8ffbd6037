// Package realtime turns event bus changes into per-viewer streams: an initial snapshot,
// then every change the viewer may see, in commit order per order, without duplicates.
// After a bus resync a fresh snapshot replaces whatever the viewer had.
package realtime

import (
	"context"
	"log/slog"
	"sync"

	"orderflow/internal/core/application/usecases/queries"
	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
)

type EventKind string

const (
	// EventSnapshot replaces the viewer's whole view.
	EventSnapshot EventKind = "snapshot"

	// EventChange updates one order. Visible is false when the order left the view.
	EventChange EventKind = "change"
)

type Event struct {
	Kind     EventKind
	Orders   []queries.OrderResponse
	Order    *queries.OrderResponse
	Previous order.Status
	Visible  bool
}

// Feed opens streams for dashboards and single-order watchers.
type Feed struct {
	bus       ports.EventBus
	reader    ports.OrderReader
	view      services.ActiveView
	validator services.TransitionValidator
	clock     kernel.Clock
	buffer    int
	logger    *slog.Logger
}

func NewFeed(
	bus ports.EventBus,
	reader ports.OrderReader,
	view services.ActiveView,
	clock kernel.Clock,
	logger *slog.Logger,
) *Feed {
	if clock == nil {
		clock = kernel.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		bus:       bus,
		reader:    reader,
		view:      view,
		validator: services.NewTransitionValidator(),
		clock:     clock,
		buffer:    64,
		logger:    logger.With("component", "realtime-feed"),
	}
}

// SubscribeToOrder streams one order. The first event is a snapshot holding just that order;
// a missing order is reported as errs.ErrObjectNotFound.
func (f *Feed) SubscribeToOrder(ctx context.Context, viewer actor.Actor, orderID kernel.UUID) (*Stream, error) {
	if err := viewer.Validate(); err != nil {
		return nil, err
	}

	scope := orderScope{feed: f, viewer: viewer, orderID: orderID}
	return f.open(ctx, viewer, ports.SubscriptionFilter{OrderID: &orderID}, scope)
}

// SubscribeToDashboard streams the active view of viewer's role.
func (f *Feed) SubscribeToDashboard(ctx context.Context, viewer actor.Actor) (*Stream, error) {
	if err := viewer.Validate(); err != nil {
		return nil, err
	}

	scope := dashboardScope{feed: f, viewer: viewer}
	return f.open(ctx, viewer, ports.SubscriptionFilter{Statuses: f.view.Statuses(viewer.Role())}, scope)
}

// open subscribes before reading the snapshot so nothing committed in between is lost.
// Changes that are already part of the snapshot are dropped by version.
func (f *Feed) open(ctx context.Context, viewer actor.Actor, filter ports.SubscriptionFilter, scope scope) (*Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	s := &Stream{
		events: make(chan Event, f.buffer),
		cancel: cancel,
		ctx:    streamCtx,
	}
	h := &streamHandler{
		feed:     f,
		viewer:   viewer,
		scope:    scope,
		stream:   s,
		versions: make(map[kernel.UUID]int64),
		inView:   make(map[kernel.UUID]bool),
	}

	h.mu.Lock()
	sub, err := f.bus.Subscribe(streamCtx, filter, h)
	if err != nil {
		h.mu.Unlock()
		cancel()
		return nil, err
	}
	s.sub = sub

	err = h.snapshotLocked(streamCtx)
	h.mu.Unlock()
	if err != nil {
		s.Close()
		return nil, err
	}

	go func() {
		<-streamCtx.Done()
		s.Close()
	}()

	return s, nil
}

func (f *Feed) respond(o *order.Order, viewer actor.Actor) queries.OrderResponse {
	return queries.NewOrderResponse(o, f.validator.AllowedTargets(o.Status(), viewer.Role()))
}

// Stream is one viewer's live view. Events is closed after Close or when the
// context passed to the Feed is done.
type Stream struct {
	events chan Event
	sub    ports.Subscription
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	sendMu    sync.Mutex
	closed    bool
}

func (s *Stream) Events() <-chan Event {
	return s.events
}

func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.sub != nil {
			s.sub.Unsubscribe()
		}
		s.sendMu.Lock()
		s.closed = true
		close(s.events)
		s.sendMu.Unlock()
	})
}

// send blocks while the consumer is behind, until the stream closes.
func (s *Stream) send(e Event) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.events <- e:
		return true
	case <-s.ctx.Done():
		return false
	}
}

type scope interface {
	load(ctx context.Context) ([]*order.Order, error)
	visible(o *order.Order) bool
}

type orderScope struct {
	feed    *Feed
	viewer  actor.Actor
	orderID kernel.UUID
}

func (s orderScope) load(ctx context.Context) ([]*order.Order, error) {
	o, err := s.feed.reader.Get(ctx, s.orderID)
	if err != nil {
		return nil, err
	}
	return []*order.Order{o}, nil
}

func (s orderScope) visible(o *order.Order) bool {
	return o.ID().IsEqual(s.orderID)
}

type dashboardScope struct {
	feed   *Feed
	viewer actor.Actor
}

func (s dashboardScope) load(ctx context.Context) ([]*order.Order, error) {
	orders, err := s.feed.reader.Query(ctx, s.feed.view.Filter(s.viewer.Role(), s.feed.clock.Now()))
	if err != nil {
		return nil, err
	}
	visible := orders[:0]
	for _, o := range orders {
		if s.feed.view.Visible(o, s.viewer) {
			visible = append(visible, o)
		}
	}
	return visible, nil
}

func (s dashboardScope) visible(o *order.Order) bool {
	return s.feed.view.Visible(o, s.viewer)
}

// streamHandler receives bus callbacks for one stream. The bus never calls it
// concurrently; mu only orders the initial snapshot against early changes.
type streamHandler struct {
	feed   *Feed
	viewer actor.Actor
	scope  scope
	stream *Stream

	mu       sync.Mutex
	versions map[kernel.UUID]int64
	inView   map[kernel.UUID]bool
}

func (h *streamHandler) OnChange(_ context.Context, change ports.OrderChange) {
	h.mu.Lock()
	defer h.mu.Unlock()

	o := change.Order
	if o == nil {
		return
	}
	if last, seen := h.versions[o.ID()]; seen && o.Version() <= last {
		return
	}

	visible := h.scope.visible(o)
	if !visible && !h.inView[o.ID()] {
		return
	}
	h.versions[o.ID()] = o.Version()
	h.inView[o.ID()] = visible

	resp := h.feed.respond(o, h.viewer)
	h.stream.send(Event{Kind: EventChange, Order: &resp, Previous: change.Previous, Visible: visible})
}

func (h *streamHandler) OnResync(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.snapshotLocked(h.stream.ctx); err != nil {
		h.feed.logger.WarnContext(ctx, "resync read failed, closing stream", "viewer", h.viewer.String(), "error", err)
		go h.stream.Close()
	}
}

func (h *streamHandler) snapshotLocked(ctx context.Context) error {
	orders, err := h.scope.load(ctx)
	if err != nil {
		return err
	}

	clear(h.inView)
	responses := make([]queries.OrderResponse, 0, len(orders))
	for _, o := range orders {
		if last := h.versions[o.ID()]; o.Version() > last {
			h.versions[o.ID()] = o.Version()
		}
		h.inView[o.ID()] = true
		responses = append(responses, h.feed.respond(o, h.viewer))
	}

	h.stream.send(Event{Kind: EventSnapshot, Orders: responses})
	return nil
}

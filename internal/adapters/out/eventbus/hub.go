// Package eventbus is the in-process side of the order change bus. Change sources (the
// memory store, the PostgreSQL listener, the poller) publish into a Hub, and the Hub fans
// each change out to every matching subscription.
//
// Every subscription owns a bounded FIFO queue drained by a single goroutine, so handler
// calls for one subscription are never concurrent and keep the order the source published
// them in. Publish never blocks: when a subscriber falls behind and its queue overflows,
// the change is dropped and the subscriber gets OnResync once the queue drains, after
// which it re-reads its view.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"orderflow/internal/core/ports"
)

const defaultQueueSize = 128

type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
	closed bool

	queueSize int
	logger    *slog.Logger
}

type Option func(*Hub)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithQueueSize sets the per-subscription queue length.
func WithQueueSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.queueSize = size
		}
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:      make(map[uint64]*subscription),
		queueSize: defaultQueueSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "eventbus")
	return h
}

// Subscribe registers handler for changes matching filter. The subscription ends when ctx
// is done or Unsubscribe is called.
func (h *Hub) Subscribe(ctx context.Context, filter ports.SubscriptionFilter, handler ports.ChangeHandler) (ports.Subscription, error) {
	if handler == nil {
		return nil, ports.ErrBusUnavailable
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ports.ErrBusUnavailable
	}
	h.nextID++
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		id:      h.nextID,
		hub:     h,
		filter:  filter,
		handler: handler,
		queue:   make(chan delivery, h.queueSize),
		ctx:     subCtx,
		cancel:  cancel,
	}
	h.subs[sub.id] = sub
	h.mu.Unlock()

	go sub.run()
	return sub, nil
}

// Publish hands a committed change to every matching subscription.
func (h *Hub) Publish(_ context.Context, change ports.OrderChange) {
	if change.Order == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.filter.Matches(change) {
			sub.enqueue(delivery{change: change})
		}
	}
}

// Resync tells every subscription that changes may have been missed.
func (h *Hub) Resync(_ context.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		sub.enqueue(delivery{resync: true})
	}
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends all subscriptions and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

type delivery struct {
	change ports.OrderChange
	resync bool
}

type subscription struct {
	id      uint64
	hub     *Hub
	filter  ports.SubscriptionFilter
	handler ports.ChangeHandler
	queue   chan delivery

	// overflowed is set when a delivery was dropped; the worker answers it with one OnResync.
	overflowed atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func (s *subscription) enqueue(d delivery) {
	select {
	case s.queue <- d:
	default:
		if !s.overflowed.Swap(true) {
			s.hub.logger.Warn("subscriber queue overflow, scheduling resync", "subscription", s.id)
		}
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.ctx.Done():
			s.hub.remove(s.id)
			return
		case d := <-s.queue:
			if s.ctx.Err() != nil {
				continue
			}
			if d.resync {
				s.overflowed.Store(false)
				s.handler.OnResync(s.ctx)
			} else {
				s.handler.OnChange(s.ctx, d.change)
			}
			if s.overflowed.Swap(false) {
				s.handler.OnResync(s.ctx)
			}
		}
	}
}

// Unsubscribe stops deliveries. A handler call already running is not interrupted.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		s.hub.remove(s.id)
	})
}

var (
	_ ports.EventBus        = (*Hub)(nil)
	_ ports.ChangePublisher = (*Hub)(nil)
)

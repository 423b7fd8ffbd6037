// Package notifications sends best-effort customer messages, rider pushes and staff notices
// after committed order changes. Nothing here can fail or delay an order operation: jobs are
// queued without blocking, retried with exponential backoff, and dropped with a log entry
// when they cannot be delivered.
package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/ports"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var ErrDispatcherStopped = errors.New("notification dispatcher is stopped")

type Config struct {
	Workers         int
	QueueSize       int
	InitialInterval time.Duration
	MaxElapsed      time.Duration
	AttemptTimeout  time.Duration
	// DrainTimeout bounds Stop. Retries still running when it expires are cancelled.
	DrainTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:         4,
		QueueSize:       256,
		InitialInterval: 200 * time.Millisecond,
		MaxElapsed:      30 * time.Second,
		AttemptTimeout:  5 * time.Second,
		DrainTimeout:    5 * time.Second,
	}
}

// Dispatcher fans committed changes out to the configured providers through a bounded
// queue and a fixed worker pool.
//
// Example:
//
//	d := notifications.NewDispatcher(cfg,
//	    notifications.WithMessageSender(publisher),
//	    notifications.WithPushSender(publisher),
//	    notifications.WithNoticeBoard(board),
//	    notifications.WithLogger(logger),
//	)
//	d.Start(ctx)
//	defer d.Stop()
//
//	d.Notify(ctx, ports.OrderChange{Order: updated, Previous: order.Preparing})
type Dispatcher struct {
	cfg      Config
	messages ports.MessageSender
	pushes   ports.PushSender
	notices  ports.NoticeBoard
	clock    kernel.Clock
	logger   *slog.Logger
	metrics  dispatcherMetrics

	mu      sync.RWMutex
	queue   chan ports.OrderChange
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Option func(*Dispatcher)

func WithMessageSender(s ports.MessageSender) Option {
	return func(d *Dispatcher) {
		d.messages = s
	}
}

func WithPushSender(s ports.PushSender) Option {
	return func(d *Dispatcher) {
		d.pushes = s
	}
}

func WithNoticeBoard(b ports.NoticeBoard) Option {
	return func(d *Dispatcher) {
		d.notices = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMeter(m metric.Meter) Option {
	return func(d *Dispatcher) {
		d.metrics = newDispatcherMetrics(m)
	}
}

func WithClock(c kernel.Clock) Option {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

func NewDispatcher(cfg Config, opts ...Option) *Dispatcher {
	defaults := DefaultConfig()
	if cfg.Workers < 1 {
		cfg.Workers = defaults.Workers
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaults.InitialInterval
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = defaults.MaxElapsed
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaults.AttemptTimeout
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaults.DrainTimeout
	}

	d := &Dispatcher{
		cfg:     cfg,
		clock:   kernel.SystemClock{},
		logger:  slog.Default(),
		queue:   make(chan ports.OrderChange, cfg.QueueSize),
		metrics: newDispatcherMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.logger = d.logger.With("component", "notification-dispatcher")
	return d
}

// Start launches the workers. Sends use ctx, not the context of the request that
// caused the change, so they outlive the request.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for change := range d.queue {
				d.deliver(ctx, change)
			}
		}()
	}
	d.logger.InfoContext(ctx, "notification dispatcher started", "workers", d.cfg.Workers, "queue_size", d.cfg.QueueSize)
}

// Stop drains the queued jobs and waits for the workers for at most DrainTimeout.
// After that, pending retries are cancelled and Stop returns once every worker
// has observed the cancellation.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(d.cfg.DrainTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		d.logger.Warn("notification drain timed out, cancelling pending retries", "timeout", d.cfg.DrainTimeout)
	}
	if d.cancel != nil {
		d.cancel()
	}
	<-done
}

// Notify queues change without blocking. A full queue or a stopped dispatcher drops
// the job with a warning and returns false.
func (d *Dispatcher) Notify(ctx context.Context, change ports.OrderChange) bool {
	if change.Order == nil {
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.logger.WarnContext(ctx, "notification dropped", "order_id", change.Order.ID().String(), "error", ErrDispatcherStopped)
		return false
	}

	select {
	case d.queue <- change:
		return true
	default:
		d.metrics.recordDropped(ctx)
		d.logger.WarnContext(ctx, "notification queue full, dropping job",
			"order_id", change.Order.ID().String(),
			"status", change.Order.Status().String(),
		)
		return false
	}
}

func (d *Dispatcher) deliver(ctx context.Context, change ports.OrderChange) {
	plan := PlanFor(change, d.clock.Now())

	if plan.Message != nil && d.messages != nil {
		msg := *plan.Message
		d.send(ctx, "message", msg.Key, func(ctx context.Context) error {
			return d.messages.SendMessage(ctx, msg)
		})
	}
	if plan.Push != nil && d.pushes != nil {
		push := *plan.Push
		d.send(ctx, "push", push.Key, func(ctx context.Context) error {
			return d.pushes.SendPush(ctx, push)
		})
	}
	if plan.Notice != nil && d.notices != nil {
		notice := *plan.Notice
		d.send(ctx, "notice", notice.Key, func(ctx context.Context) error {
			return d.notices.Post(ctx, notice)
		})
	}
}

func (d *Dispatcher) send(ctx context.Context, channel, key string, op func(context.Context) error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.cfg.InitialInterval
	policy.MaxElapsedTime = d.cfg.MaxElapsed

	attempts := 0
	err := backoff.RetryNotify(
		func() error {
			attempts++
			attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
			defer cancel()
			return op(attemptCtx)
		},
		backoff.WithContext(policy, ctx),
		func(err error, wait time.Duration) {
			d.logger.DebugContext(ctx, "notification attempt failed",
				"channel", channel, "key", key, "retry_in", wait, "error", err)
		},
	)
	if err != nil {
		d.metrics.recordFailed(ctx, channel)
		d.logger.ErrorContext(ctx, "notification failed",
			"channel", channel, "key", key, "attempts", attempts, "error", err)
		return
	}
	d.metrics.recordSent(ctx, channel)
}

type dispatcherMetrics struct {
	sent    metric.Int64Counter
	failed  metric.Int64Counter
	dropped metric.Int64Counter
}

func newDispatcherMetrics(m metric.Meter) dispatcherMetrics {
	if m == nil {
		return dispatcherMetrics{}
	}
	sent, _ := m.Int64Counter("notifications.sent", metric.WithDescription("Notifications delivered to a provider"))
	failed, _ := m.Int64Counter("notifications.failed", metric.WithDescription("Notifications given up after retries"))
	dropped, _ := m.Int64Counter("notifications.dropped", metric.WithDescription("Notifications dropped on a full queue"))
	return dispatcherMetrics{sent: sent, failed: failed, dropped: dropped}
}

func (m dispatcherMetrics) recordSent(ctx context.Context, channel string) {
	if m.sent != nil {
		m.sent.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
	}
}

func (m dispatcherMetrics) recordFailed(ctx context.Context, channel string) {
	if m.failed != nil {
		m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
	}
}

func (m dispatcherMetrics) recordDropped(ctx context.Context) {
	if m.dropped != nil {
		m.dropped.Add(ctx, 1)
	}
}

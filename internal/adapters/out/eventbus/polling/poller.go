// Package polling is the fallback change source for stores without notifications. On
// every tick it reads the orders updated since the previous tick and publishes those
// whose version it has not seen yet.
package polling

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/ports"

	"github.com/robfig/cron/v3"
)

// overlap re-reads a short window before the last tick so writes committed with a slightly
// older updated_at than the newest row already seen are not missed.
const overlap = 2 * time.Second

type seen struct {
	version   int64
	status    order.Status
	updatedAt time.Time
}

// Poller publishes changes found by periodic reads.
type Poller struct {
	reader    ports.OrderReader
	publisher ports.ChangePublisher
	clock     kernel.Clock
	interval  time.Duration
	cron      *cron.Cron
	logger    *slog.Logger

	mu      sync.Mutex
	since   time.Time
	seen    map[kernel.UUID]seen
	primed  bool
	failing bool
}

func NewPoller(
	reader ports.OrderReader,
	publisher ports.ChangePublisher,
	interval time.Duration,
	clock kernel.Clock,
	logger *slog.Logger,
) *Poller {
	if clock == nil {
		clock = kernel.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		reader:    reader,
		publisher: publisher,
		clock:     clock,
		interval:  interval,
		cron:      cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:    logger.With("component", "polling_event_source"),
		since:     clock.Now(),
		seen:      make(map[kernel.UUID]seen),
	}
}

// Start schedules Poll every interval.
func (p *Poller) Start() error {
	_, err := p.cron.AddFunc("@every "+p.interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.interval)
		defer cancel()
		p.Poll(ctx)
	})
	if err != nil {
		return err
	}

	p.cron.Start()
	p.logger.InfoContext(context.Background(), "Polling event source started", "interval", p.interval)
	return nil
}

func (p *Poller) Stop() {
	<-p.cron.Stop().Done()
	p.logger.InfoContext(context.Background(), "Polling event source stopped")
}

// Poll runs one read. After a failed read the next successful one also asks subscribers
// to resync, since changes may have been skipped while the store was unreachable.
func (p *Poller) Poll(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.primed {
		if err := p.prime(ctx); err != nil {
			p.fail(ctx, err)
			return
		}
	}

	from := p.since.Add(-overlap)
	orders, err := p.reader.Query(ctx, order.Filter{UpdatedSince: &from, Sort: order.SortByUpdatedAsc})
	if err != nil {
		p.fail(ctx, err)
		return
	}

	for _, o := range orders {
		last, ok := p.seen[o.ID()]
		if ok && last.version >= o.Version() {
			continue
		}
		previous := order.Unknown
		if ok {
			previous = last.status
		}
		p.seen[o.ID()] = seen{version: o.Version(), status: o.Status(), updatedAt: o.UpdatedAt()}
		if o.UpdatedAt().After(p.since) {
			p.since = o.UpdatedAt()
		}
		p.publisher.Publish(ctx, ports.OrderChange{Order: o, Previous: previous})
	}

	if p.failing {
		p.failing = false
		p.logger.InfoContext(ctx, "Polling recovered, resyncing subscribers")
		p.publisher.Resync(ctx)
	}

	p.prune(from)
}

// prime records the active orders that existed before the poller started so their first
// change carries the status they leave. Orders written since then are left for the read.
func (p *Poller) prime(ctx context.Context) error {
	active, err := p.reader.Query(ctx, order.Filter{Statuses: order.ActiveStatuses()})
	if err != nil {
		return err
	}
	for _, o := range active {
		if !o.UpdatedAt().Before(p.since) {
			continue
		}
		p.seen[o.ID()] = seen{version: o.Version(), status: o.Status(), updatedAt: o.UpdatedAt()}
	}
	p.primed = true
	return nil
}

func (p *Poller) fail(ctx context.Context, err error) {
	if !p.failing {
		p.logger.ErrorContext(ctx, "Polling read failed", "error", err)
	}
	p.failing = true
}

// prune forgets finished orders that fall outside the next read window. Active orders are
// kept so a change after a long quiet period still reports the status it left.
func (p *Poller) prune(before time.Time) {
	for id, s := range p.seen {
		if s.status.IsTerminal() && s.updatedAt.Before(before) {
			delete(p.seen, id)
		}
	}
}

// Tracked reports how many orders the poller remembers.
func (p *Poller) Tracked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

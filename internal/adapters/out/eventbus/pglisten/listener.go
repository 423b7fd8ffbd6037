// Package pglisten turns PostgreSQL notifications into order changes. A trigger on the
// orders table sends one notification per committed write on the order_changes channel;
// the listener re-reads the order and publishes it to the bus. A dropped connection
// cannot tell which notifications were lost, so after every reconnect subscribers are
// asked to resync.
package pglisten

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/errs"

	"github.com/lib/pq"
)

// Channel is the notification channel written by the notify_order_change trigger.
const Channel = "order_changes"

// Payload is the JSON body of one notification.
type Payload struct {
	ID       string `json:"id"`
	Version  int64  `json:"version"`
	Status   string `json:"status"`
	Previous string `json:"previous"`
}

type Config struct {
	DSN                  string
	MinReconnectInterval time.Duration
	MaxReconnectInterval time.Duration
	// PingInterval is how long the connection may stay silent before it is checked.
	PingInterval time.Duration
}

func DefaultConfig(dsn string) Config {
	return Config{
		DSN:                  dsn,
		MinReconnectInterval: time.Second,
		MaxReconnectInterval: 30 * time.Second,
		PingInterval:         90 * time.Second,
	}
}

type Listener struct {
	cfg       Config
	reader    ports.OrderReader
	publisher ports.ChangePublisher
	logger    *slog.Logger
}

func NewListener(cfg Config, reader ports.OrderReader, publisher ports.ChangePublisher, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		cfg:       cfg,
		reader:    reader,
		publisher: publisher,
		logger:    logger.With("component", "pglisten"),
	}
}

// Run listens until ctx is done. It returns an error only when the first LISTEN fails.
func (l *Listener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.cfg.DSN, l.cfg.MinReconnectInterval, l.cfg.MaxReconnectInterval,
		func(event pq.ListenerEventType, err error) {
			l.onEvent(ctx, event, err)
		})
	defer func() {
		_ = listener.Close()
	}()

	if err := listener.Listen(Channel); err != nil {
		return fmt.Errorf("listen on %s: %w", Channel, err)
	}
	l.logger.InfoContext(ctx, "listening for order changes", "channel", Channel)

	ping := time.NewTicker(l.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil {
				// pq sends nil after re-establishing the connection.
				continue
			}
			l.handle(ctx, n.Extra)
		case <-ping.C:
			go func() {
				if err := listener.Ping(); err != nil {
					l.logger.WarnContext(ctx, "listener ping failed", "error", err)
				}
			}()
		}
	}
}

func (l *Listener) onEvent(ctx context.Context, event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventConnected:
		l.logger.InfoContext(ctx, "listener connected")
	case pq.ListenerEventDisconnected:
		l.logger.WarnContext(ctx, "listener disconnected", "error", err)
	case pq.ListenerEventReconnected:
		l.logger.InfoContext(ctx, "listener reconnected, resyncing subscribers")
		l.publisher.Resync(ctx)
	case pq.ListenerEventConnectionAttemptFailed:
		l.logger.WarnContext(ctx, "listener connection attempt failed", "error", err)
	}
}

func (l *Listener) handle(ctx context.Context, raw string) {
	change, err := l.Resolve(ctx, raw)
	if err != nil {
		if errors.Is(err, errs.ErrObjectNotFound) {
			return
		}
		// The change is lost for this process; a resync makes subscribers re-read.
		l.logger.ErrorContext(ctx, "failed to resolve order change", "payload", raw, "error", err)
		l.publisher.Resync(ctx)
		return
	}
	l.publisher.Publish(ctx, change)
}

// Resolve parses a notification payload and reads the order it points at. The order may
// already be newer than the notified version; the payload's previous status then no
// longer describes the row read back, so it is reported as unknown.
func (l *Listener) Resolve(ctx context.Context, raw string) (ports.OrderChange, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return ports.OrderChange{}, errs.NewValueIsInvalidErrorWithCause("notification payload", err)
	}
	id, err := kernel.UUIDFromString(p.ID)
	if err != nil {
		return ports.OrderChange{}, err
	}

	previous := order.Unknown
	if p.Previous != "" {
		if previous, err = order.ParseStatus(p.Previous); err != nil {
			return ports.OrderChange{}, err
		}
	}

	o, err := l.reader.Get(ctx, id)
	if err != nil {
		return ports.OrderChange{}, err
	}
	if o.Version() != p.Version {
		previous = order.Unknown
	}
	return ports.OrderChange{Order: o, Previous: previous}, nil
}

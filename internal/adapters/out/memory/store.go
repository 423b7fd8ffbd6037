// Package memory is an in-process order store for local runs and tests. A unit of work holds
// the store-wide lock from Begin to Commit or Rollback, so every transaction is serializable
// and a conditional write can never interleave with another writer. Committed changes are
// published to an optional ChangePublisher before the lock is released, so a subscriber sees
// one order's changes in commit order.
package memory

import (
	"context"
	"fmt"
	"slices"

	"orderflow/internal/core/domain/model/history"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/errs"
)

type Store struct {
	sem       chan struct{}
	orders    map[kernel.UUID]*order.Order
	history   map[kernel.UUID][]history.Entry
	lastNum   int64
	publisher ports.ChangePublisher
}

type Option func(*Store)

// WithPublisher feeds committed changes to a bus.
func WithPublisher(p ports.ChangePublisher) Option {
	return func(s *Store) {
		s.publisher = p
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		sem:     make(chan struct{}, 1),
		orders:  make(map[kernel.UUID]*order.Order),
		history: make(map[kernel.UUID][]history.Entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a unit of work on the store.
func (s *Store) Create() ports.UnitOfWork {
	return &UnitOfWork{store: s}
}

func (s *Store) lock(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ports.ErrStoreUnavailable, ctx.Err())
	}
}

func (s *Store) unlock() {
	<-s.sem
}

// Get reads outside any transaction.
func (s *Store) Get(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	return s.get(id, nil)
}

func (s *Store) Query(ctx context.Context, filter order.Filter) ([]*order.Order, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	return s.query(filter, nil), nil
}

func (s *Store) Count(ctx context.Context, filter order.Filter) (int, error) {
	if err := s.lock(ctx); err != nil {
		return 0, err
	}
	defer s.unlock()
	return len(s.match(filter, nil)), nil
}

// ListByOrder reads committed history outside any transaction.
func (s *Store) ListByOrder(ctx context.Context, orderID kernel.UUID) ([]history.Entry, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	return slices.Clone(s.history[orderID]), nil
}

// Append outside a transaction commits immediately.
func (s *Store) Append(ctx context.Context, entry history.Entry) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	s.history[entry.OrderID] = append(s.history[entry.OrderID], entry)
	return nil
}

func (s *Store) get(id kernel.UUID, staged map[kernel.UUID]*order.Order) (*order.Order, error) {
	if o, ok := staged[id]; ok {
		return o.Clone(), nil
	}
	if o, ok := s.orders[id]; ok {
		return o.Clone(), nil
	}
	return nil, errs.NewObjectNotFoundError("orderID", id)
}

func (s *Store) match(filter order.Filter, staged map[kernel.UUID]*order.Order) []*order.Order {
	result := make([]*order.Order, 0)
	for id, o := range s.orders {
		if st, ok := staged[id]; ok {
			o = st
		}
		if filter.Matches(o) {
			result = append(result, o.Clone())
		}
	}
	for id, o := range staged {
		if _, stored := s.orders[id]; !stored && filter.Matches(o) {
			result = append(result, o.Clone())
		}
	}
	return result
}

func (s *Store) query(filter order.Filter, staged map[kernel.UUID]*order.Order) []*order.Order {
	return filter.SortAndLimit(s.match(filter, staged))
}

var (
	_ ports.UnitOfWorkFactory = (*Store)(nil)
	_ ports.OrderReader       = (*Store)(nil)
	_ ports.HistoryRepository = (*Store)(nil)
)

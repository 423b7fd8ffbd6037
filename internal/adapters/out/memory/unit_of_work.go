package memory

import (
	"context"
	"slices"

	"orderflow/internal/core/domain/model/history"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/errs"
)

// UnitOfWork stages writes while holding the store lock. Repositories obtained before Begin
// read and write the store directly, one call at a time.
type UnitOfWork struct {
	store *Store

	active   bool
	staged   map[kernel.UUID]*order.Order
	entries  []history.Entry
	changes  []ports.OrderChange
	reserved int64
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.active {
		return nil
	}
	if err := u.store.lock(ctx); err != nil {
		return err
	}
	u.active = true
	u.staged = make(map[kernel.UUID]*order.Order)
	u.entries = nil
	u.changes = nil
	u.reserved = 0
	return nil
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	if !u.active {
		return ports.ErrNoTransaction
	}

	s := u.store
	for id, o := range u.staged {
		s.orders[id] = o
	}
	for _, e := range u.entries {
		s.history[e.OrderID] = append(s.history[e.OrderID], e)
	}
	if u.reserved > s.lastNum {
		s.lastNum = u.reserved
	}
	changes := u.changes
	u.reset()

	// Publishing under the lock keeps per-order commit order; Publish must not block.
	if s.publisher != nil {
		for _, change := range changes {
			s.publisher.Publish(ctx, change)
		}
	}
	s.unlock()
	return nil
}

func (u *UnitOfWork) Rollback(_ context.Context) error {
	if !u.active {
		return ports.ErrNoTransaction
	}
	u.reset()
	u.store.unlock()
	return nil
}

func (u *UnitOfWork) reset() {
	u.active = false
	u.staged = nil
	u.entries = nil
	u.changes = nil
	u.reserved = 0
}

func (u *UnitOfWork) OrderRepository() ports.OrderRepository {
	if !u.active {
		return autoCommitOrders{store: u.store}
	}
	return &txOrders{uow: u}
}

func (u *UnitOfWork) HistoryRepository() ports.HistoryRepository {
	if !u.active {
		return u.store
	}
	return &txHistory{uow: u}
}

type txOrders struct {
	uow *UnitOfWork
}

func (r *txOrders) Get(_ context.Context, id kernel.UUID) (*order.Order, error) {
	return r.uow.store.get(id, r.uow.staged)
}

func (r *txOrders) Query(_ context.Context, filter order.Filter) ([]*order.Order, error) {
	return r.uow.store.query(filter, r.uow.staged), nil
}

func (r *txOrders) Count(_ context.Context, filter order.Filter) (int, error) {
	return len(r.uow.store.match(filter, r.uow.staged)), nil
}

func (r *txOrders) Add(_ context.Context, o *order.Order) error {
	if err := o.Validate(); err != nil {
		return err
	}
	u := r.uow
	if _, exists := u.store.orders[o.ID()]; exists {
		return errs.NewValueIsInvalidError("order id already exists")
	}
	if _, exists := u.staged[o.ID()]; exists {
		return errs.NewValueIsInvalidError("order id already exists")
	}

	stored := o.Clone()
	u.staged[o.ID()] = stored
	u.changes = append(u.changes, ports.OrderChange{Order: stored.Clone(), Previous: order.Unknown})
	return nil
}

func (r *txOrders) NextNumber(_ context.Context) (int64, error) {
	u := r.uow
	next := max(u.store.lastNum, u.reserved) + 1
	u.reserved = next
	return next, nil
}

func (r *txOrders) ConditionalUpdate(
	_ context.Context,
	id kernel.UUID,
	predicate order.Predicate,
	change order.Change,
) (bool, error) {
	if err := change.Validate(); err != nil {
		return false, err
	}

	u := r.uow
	current, err := u.store.get(id, u.staged)
	if err != nil {
		return false, nil //nolint:nilerr // a missing order does not match
	}
	if !current.Matches(predicate) {
		return false, nil
	}

	previous := current.Status()
	if err = current.Apply(change); err != nil {
		return false, err
	}
	u.staged[id] = current
	u.changes = append(u.changes, ports.OrderChange{Order: current.Clone(), Previous: previous})
	return true, nil
}

type txHistory struct {
	uow *UnitOfWork
}

func (r *txHistory) Append(_ context.Context, entry history.Entry) error {
	r.uow.entries = append(r.uow.entries, entry)
	return nil
}

func (r *txHistory) ListByOrder(_ context.Context, orderID kernel.UUID) ([]history.Entry, error) {
	entries := slices.Clone(r.uow.store.history[orderID])
	for _, e := range r.uow.entries {
		if e.OrderID.IsEqual(orderID) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// autoCommitOrders runs each write in its own transaction.
type autoCommitOrders struct {
	store *Store
}

func (r autoCommitOrders) Get(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	return r.store.Get(ctx, id)
}

func (r autoCommitOrders) Query(ctx context.Context, filter order.Filter) ([]*order.Order, error) {
	return r.store.Query(ctx, filter)
}

func (r autoCommitOrders) Count(ctx context.Context, filter order.Filter) (int, error) {
	return r.store.Count(ctx, filter)
}

func (r autoCommitOrders) Add(ctx context.Context, o *order.Order) error {
	return r.inTx(ctx, func(repo ports.OrderRepository) error {
		return repo.Add(ctx, o)
	})
}

func (r autoCommitOrders) NextNumber(ctx context.Context) (int64, error) {
	var next int64
	err := r.inTx(ctx, func(repo ports.OrderRepository) error {
		var err error
		next, err = repo.NextNumber(ctx)
		return err
	})
	return next, err
}

func (r autoCommitOrders) ConditionalUpdate(
	ctx context.Context,
	id kernel.UUID,
	predicate order.Predicate,
	change order.Change,
) (bool, error) {
	var matched bool
	err := r.inTx(ctx, func(repo ports.OrderRepository) error {
		var err error
		matched, err = repo.ConditionalUpdate(ctx, id, predicate, change)
		return err
	})
	return matched, err
}

func (r autoCommitOrders) inTx(ctx context.Context, fn func(ports.OrderRepository) error) error {
	uow := r.store.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	if err := fn(uow.OrderRepository()); err != nil {
		_ = uow.Rollback(ctx)
		return err
	}
	return uow.Commit(ctx)
}

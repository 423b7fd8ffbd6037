package ports

import (
	"context"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
)

// OrderReader is the read side of the order store, used by queries, the estimator and event sources.
type OrderReader interface {
	// Get returns the order or an errs.ObjectNotFoundError.
	Get(ctx context.Context, id kernel.UUID) (*order.Order, error)

	// Query returns the orders matching the filter, sorted and limited as it requests.
	Query(ctx context.Context, filter order.Filter) ([]*order.Order, error)

	// Count returns how many orders match the filter. Sort and Limit are ignored.
	Count(ctx context.Context, filter order.Filter) (int, error)
}

// OrderRepository is the persistence contract for order aggregates.
//
// Orders are never updated by writing a whole aggregate back. The only mutation is
// ConditionalUpdate, which applies a Change in one atomic step only where the Predicate
// still holds, so two writers racing on the same order cannot both win.
type OrderRepository interface {
	OrderReader

	// Add persists a newly placed order.
	Add(ctx context.Context, aggregate *order.Order) error

	// NextNumber reserves the next display number.
	NextNumber(ctx context.Context) (int64, error)

	// ConditionalUpdate applies change to the order with id if predicate holds.
	// It reports whether a row was changed. A missing order is reported as not matched.
	//
	// Implementations must:
	//   - set the milestone column of change.Status only when it is empty
	//   - set rider_id only when it is empty
	//   - increment version by one
	ConditionalUpdate(ctx context.Context, id kernel.UUID, predicate order.Predicate, change order.Change) (bool, error)
}

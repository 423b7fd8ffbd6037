package ports

import (
	"context"
	"slices"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
)

// OrderChange is one committed write as seen by subscribers.
// Previous is Unknown when the source cannot tell (for example a newly placed order).
type OrderChange struct {
	Order    *order.Order
	Previous order.Status
}

// ChangeHandler receives changes for one subscription. Calls for a subscription are
// never concurrent and arrive in commit order per order.
type ChangeHandler interface {
	// OnChange may be called more than once for the same version; compare Order.Version() to drop repeats.
	OnChange(ctx context.Context, change OrderChange)

	// OnResync tells the subscriber that changes may have been missed and it must re-read its view.
	OnResync(ctx context.Context)
}

// SubscriptionFilter selects the changes a subscriber wants. Zero fields do not filter.
type SubscriptionFilter struct {
	OrderID *kernel.UUID

	// Statuses matches a change whose new or previous status is listed, so
	// subscribers also see orders leaving their view.
	Statuses []order.Status
}

func (f SubscriptionFilter) Matches(change OrderChange) bool {
	if change.Order == nil {
		return false
	}
	if f.OrderID != nil && !change.Order.ID().IsEqual(*f.OrderID) {
		return false
	}
	if len(f.Statuses) > 0 &&
		!slices.Contains(f.Statuses, change.Order.Status()) &&
		!slices.Contains(f.Statuses, change.Previous) {
		return false
	}
	return true
}

// Subscription is a live registration on the bus.
type Subscription interface {
	Unsubscribe()
}

// EventBus delivers every committed order change to all live matching subscriptions,
// at least once and in per-order commit order.
type EventBus interface {
	Subscribe(ctx context.Context, filter SubscriptionFilter, handler ChangeHandler) (Subscription, error)
}

// ChangePublisher is the input side of a bus, fed by change sources.
type ChangePublisher interface {
	Publish(ctx context.Context, change OrderChange)
	Resync(ctx context.Context)
}

package services

import (
	"time"

	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/core/domain/model/order"
)

// ActiveView decides which orders each role sees on its dashboard.
//
//	kitchen     new, preparing
//	reception   every active order plus recently finished ones
//	rider       unclaimed ready orders and its own deliveries
//	admin       same as reception
//
// Finished orders stay visible to reception and admin for Retention after their last change.
type ActiveView struct {
	Retention time.Duration
}

func NewActiveView(retention time.Duration) ActiveView {
	if retention < 0 {
		retention = 0
	}
	return ActiveView{Retention: retention}
}

// Statuses lists the statuses role can ever see, terminal ones included.
// Streams use it to decide which changes to forward.
func (v ActiveView) Statuses(role actor.Role) []order.Status {
	switch role {
	case actor.RoleKitchen:
		return []order.Status{order.New, order.Preparing}
	case actor.RoleRider:
		return []order.Status{order.ReadyForPickup, order.OutForDelivery, order.Delivered}
	case actor.RoleReception, actor.RoleAdmin:
		return order.AllStatuses()
	default:
		return nil
	}
}

// Filter is the store read for role's dashboard at now. Rider results still need Visible
// to drop other riders' deliveries. Callers validate the role first.
func (v ActiveView) Filter(role actor.Role, now time.Time) order.Filter {
	f := order.Filter{Sort: order.SortByCreatedAsc}
	switch role {
	case actor.RoleKitchen:
		f.Statuses = []order.Status{order.New, order.Preparing}
	case actor.RoleRider:
		f.Statuses = []order.Status{order.ReadyForPickup, order.OutForDelivery}
	case actor.RoleReception, actor.RoleAdmin:
		f.Statuses = order.ActiveStatuses()
		if v.Retention > 0 {
			since := now.Add(-v.Retention)
			f.TerminalSince = &since
		}
	}
	return f
}

// Visible reports whether viewer may see o on its dashboard. It does not apply the retention window.
func (v ActiveView) Visible(o *order.Order, viewer actor.Actor) bool {
	switch viewer.Role() {
	case actor.RoleKitchen:
		return o.Status() == order.New || o.Status() == order.Preparing
	case actor.RoleRider:
		if o.Status() == order.ReadyForPickup {
			return o.RiderID() == nil
		}
		return (o.Status() == order.OutForDelivery || o.Status() == order.Delivered) && o.IsHeldBy(viewer.ID())
	case actor.RoleReception, actor.RoleAdmin:
		return true
	default:
		return false
	}
}

package order

import (
	"cmp"
	"slices"
	"time"
)

// SortOrder selects the ordering of a filtered read.
type SortOrder int

const (
	// SortByCreatedAsc lists the oldest orders first, as the kitchen queue does.
	SortByCreatedAsc SortOrder = iota

	// SortByReadyDesc lists the most recently readied orders first.
	SortByReadyDesc

	// SortByUpdatedAsc lists orders in change order.
	SortByUpdatedAsc
)

// Filter narrows a read of the order store. Zero fields do not filter.
type Filter struct {
	// Statuses restricts to the listed statuses.
	Statuses []Status

	// TerminalSince additionally admits Delivered and Cancelled orders updated at or after it.
	TerminalSince *time.Time

	// ReadySince restricts to orders whose ready milestone is at or after it.
	ReadySince *time.Time

	// UpdatedSince restricts to orders changed at or after it.
	UpdatedSince *time.Time

	Limit int
	Sort  SortOrder
}

// Matches applies the filter to one order. Limit and Sort are ignored here.
func (f Filter) Matches(o *Order) bool {
	statusOK := len(f.Statuses) == 0 || slices.Contains(f.Statuses, o.status)
	if !statusOK && f.TerminalSince != nil && o.status.IsTerminal() {
		statusOK = !o.updatedAt.Before(*f.TerminalSince)
	}
	if !statusOK {
		return false
	}

	if f.ReadySince != nil {
		if o.milestones.ReadyAt == nil || o.milestones.ReadyAt.Before(*f.ReadySince) {
			return false
		}
	}
	if f.UpdatedSince != nil && o.updatedAt.Before(*f.UpdatedSince) {
		return false
	}
	return true
}

// SortAndLimit orders a result set the way the SQL store does and trims it to Limit.
func (f Filter) SortAndLimit(orders []*Order) []*Order {
	slices.SortStableFunc(orders, func(a, b *Order) int {
		switch f.Sort {
		case SortByReadyDesc:
			return compareTimes(b.milestones.ReadyAt, a.milestones.ReadyAt)
		case SortByUpdatedAsc:
			return a.updatedAt.Compare(b.updatedAt)
		default:
			if c := a.createdAt.Compare(b.createdAt); c != 0 {
				return c
			}
			return cmp.Compare(a.number, b.number)
		}
	})
	if f.Limit > 0 && len(orders) > f.Limit {
		orders = orders[:f.Limit]
	}
	return orders
}

func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

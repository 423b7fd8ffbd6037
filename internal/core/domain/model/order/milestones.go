package order

import "time"

// Milestones records the first time an order reached each status after New.
// A set milestone is never overwritten.
type Milestones struct {
	PreparingAt *time.Time
	ReadyAt     *time.Time
	AssignedAt  *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
}

// At returns the milestone recorded for status, or nil.
func (m Milestones) At(status Status) *time.Time {
	if field := m.field(status); field != nil {
		return *field
	}
	return nil
}

// mark sets the milestone for status unless it is already set.
func (m *Milestones) mark(status Status, at time.Time) {
	field := m.field(status)
	if field == nil || *field != nil {
		return
	}
	stamp := at
	*field = &stamp
}

func (m *Milestones) field(status Status) **time.Time {
	//nolint:exhaustive // New has no milestone; created_at covers it
	switch status {
	case Preparing:
		return &m.PreparingAt
	case ReadyForPickup:
		return &m.ReadyAt
	case OutForDelivery:
		return &m.AssignedAt
	case Delivered:
		return &m.DeliveredAt
	case Cancelled:
		return &m.CancelledAt
	default:
		return nil
	}
}

// MilestoneColumn names the storage column that holds the milestone for status.
func MilestoneColumn(status Status) (string, bool) {
	//nolint:exhaustive // New has no milestone
	switch status {
	case Preparing:
		return "preparing_at", true
	case ReadyForPickup:
		return "ready_at", true
	case OutForDelivery:
		return "assigned_at", true
	case Delivered:
		return "delivered_at", true
	case Cancelled:
		return "cancelled_at", true
	default:
		return "", false
	}
}

func (m Milestones) clone() Milestones {
	cp := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := *t
		return &v
	}
	return Milestones{
		PreparingAt: cp(m.PreparingAt),
		ReadyAt:     cp(m.ReadyAt),
		AssignedAt:  cp(m.AssignedAt),
		DeliveredAt: cp(m.DeliveredAt),
		CancelledAt: cp(m.CancelledAt),
	}
}

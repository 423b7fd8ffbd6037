package order

import (
	"strings"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/pkg/errs"
)

// Predicate guards a conditional write. The write happens only when the stored order
// is in Status and, when requested, has no rider or has exactly RiderID.
type Predicate struct {
	Status          Status
	RiderUnassigned bool
	RiderID         *kernel.UUID
}

// Change is the column set of a conditional write.
type Change struct {
	Status       Status
	RiderID      *kernel.UUID
	CancelReason string
	At           time.Time
}

// TransitionTo describes a plain status move.
func TransitionTo(target Status, at time.Time) Change {
	return Change{Status: target, At: at}
}

// ClaimBy describes a rider taking a ready order.
func ClaimBy(riderID kernel.UUID, at time.Time) Change {
	return Change{Status: OutForDelivery, RiderID: &riderID, At: at}
}

// CancelWith describes a cancellation.
func CancelWith(reason string, at time.Time) Change {
	return Change{Status: Cancelled, CancelReason: strings.TrimSpace(reason), At: at}
}

// Validate checks the change is well formed. It does not look at any order.
func (c Change) Validate() error {
	if err := c.Status.Validate(); err != nil {
		return err
	}
	if c.Status == New {
		return errs.NewValueIsInvalidError("change status new")
	}
	if c.At.IsZero() {
		return errs.NewValueIsRequiredError("change time")
	}
	if c.RiderID != nil {
		if err := c.RiderID.Validate(); err != nil {
			return err
		}
	}
	if c.Status == Cancelled && c.CancelReason == "" {
		return errs.NewValueIsRequiredError("cancel reason")
	}
	return nil
}

package order

import (
	"fmt"
	"strings"

	"orderflow/internal/pkg/errs"
)

// Status is the lifecycle position of an order.
//
// Forward chain (one edge at a time):
//
//	New ──> Preparing ──> ReadyForPickup ──> OutForDelivery ──> Delivered
//	 │          │               │                   │
//	 └──────────┴───────────────┴───────────────────┴──> Cancelled
//
// Delivered and Cancelled are terminal. The numeric order of the forward
// statuses is their rank along the chain; Cancelled sits outside it.
type Status int

const (
	// Unknown catches uninitialized values and never appears on a stored order.
	Unknown Status = iota

	// New is the status set by the placement flow.
	New

	// Preparing means the kitchen has accepted the order.
	Preparing

	// ReadyForPickup means the order is packed and claimable by a rider.
	ReadyForPickup

	// OutForDelivery means a rider holds the order.
	OutForDelivery

	// Delivered is terminal.
	Delivered

	// Cancelled is terminal and reachable from any non-terminal status.
	Cancelled
)

// arrivedAlias is the name the legacy four-stage dashboards used for Delivered.
const arrivedAlias = "arrived"

func getStatusNames() map[Status]string {
	return map[Status]string{
		Unknown:        "unknown",
		New:            "new",
		Preparing:      "preparing",
		ReadyForPickup: "ready_for_pickup",
		OutForDelivery: "out_for_delivery",
		Delivered:      "delivered",
		Cancelled:      "cancelled",
	}
}

// AllStatuses lists every valid status in chain order followed by Cancelled.
func AllStatuses() []Status {
	return []Status{New, Preparing, ReadyForPickup, OutForDelivery, Delivered, Cancelled}
}

// ActiveStatuses lists the non-terminal statuses.
func ActiveStatuses() []Status {
	return []Status{New, Preparing, ReadyForPickup, OutForDelivery}
}

// ParseStatus maps a wire name to a Status. Matching ignores case and surrounding spaces,
// and "arrived" is accepted as Delivered.
func ParseStatus(s string) (Status, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == arrivedAlias {
		return Delivered, nil
	}
	for status, statusName := range getStatusNames() {
		if status != Unknown && statusName == name {
			return status, nil
		}
	}
	return Unknown, errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%q is not a known status", s))
}

// Validate rejects Unknown and out-of-range values read from storage or the wire.
func (s Status) Validate() error {
	if s <= Unknown || s > Cancelled {
		return errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%d is not a valid status", s))
	}
	return nil
}

func (s Status) String() string {
	if name, ok := getStatusNames()[s]; ok {
		return name
	}
	return getStatusNames()[Unknown]
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == Delivered || s == Cancelled
}

// IsForward reports whether the status lies on the forward chain.
func (s Status) IsForward() bool {
	return s >= New && s <= Delivered
}

// Next returns the single forward successor, or false for terminal statuses.
func (s Status) Next() (Status, bool) {
	if !s.IsForward() || s == Delivered {
		return Unknown, false
	}
	return s + 1, true
}

// IsBefore reports whether s strictly precedes other along the forward chain.
// Cancelled is never before or after anything.
func (s Status) IsBefore(other Status) bool {
	return s.IsForward() && other.IsForward() && s < other
}

// HasReached reports whether an order currently in s has already passed through target.
// Cancelled only reaches Cancelled.
func (s Status) HasReached(target Status) bool {
	if s == target {
		return true
	}
	return target.IsBefore(s)
}

func (s Status) MarshalText() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/pkg/errs"
)

var (
	// ErrOrderIsNotConstructed is returned when an Order was not built by NewOrder or RestoreOrder.
	ErrOrderIsNotConstructed = errors.New("Order must be created via NewOrder or RestoreOrder constructor")

	// ErrStatusRegression is returned when a change would move an order backwards or out of a terminal status.
	ErrStatusRegression = errors.New("order status cannot move backwards")

	// ErrRiderAlreadyAssigned is returned when a change would replace a rider that is already set.
	ErrRiderAlreadyAssigned = errors.New("order already has a rider")
)

// Order is the aggregate root of the lifecycle. Placement creates it in New; after that it
// only changes through conditional writes described by a Predicate and a Change.
//
// Order follows these invariants:
//   - status never regresses and never leaves Delivered or Cancelled
//   - riderID goes from nil to one value exactly once
//   - every milestone is set the first time its status is reached and never overwritten
//   - items, payment and createdAt never change after placement
//   - version grows by one with every applied change
type Order struct {
	// id is the stable identifier used by every API
	id kernel.UUID

	// number is the short sequential ticket shown on screens and receipts
	number int64

	// status is the current lifecycle position
	status Status

	// createdAt is set at placement
	createdAt time.Time

	// updatedAt is the instant of the latest applied change
	updatedAt time.Time

	// milestones holds the first-reached timestamps of every later status
	milestones Milestones

	// riderID is the rider holding the order, nil until a claim or assignment succeeds
	riderID *kernel.UUID

	// cancelReason is recorded when the order is cancelled
	cancelReason string

	// payment is owned by the payment integration
	payment Payment

	// customerContact is where customer messages go; may be empty
	customerContact string

	// items are the ordered line items
	items []Item

	// version counts applied changes; subscribers use it to drop stale events
	version int64

	// isConstructed ensures the order was created via a constructor
	isConstructed bool
}

// NewOrder builds an order in the New status.
//
// Parameters:
//   - id: identifier of the order (must be valid)
//   - number: display number assigned by placement (must be positive)
//   - customerContact: messaging recipient, may be empty
//   - payment: payment snapshot from the provider
//   - items: at least one line item
//   - createdAt: placement instant
//
// Example:
//
//	item, _ := order.NewItem("Margherita", 2, 1150, []string{"extra basil"})
//	payment, _ := order.NewPayment(order.PaymentCard, order.PaymentPaid)
//	o, err := order.NewOrder(kernel.NewUUID(), 42, "+15550100", payment, []order.Item{item}, clock.Now())
func NewOrder(
	id kernel.UUID,
	number int64,
	customerContact string,
	payment Payment,
	items []Item,
	createdAt time.Time,
) (*Order, error) {
	o := &Order{
		status:          New,
		customerContact: strings.TrimSpace(customerContact),
		payment:         payment,
		version:         1,
		isConstructed:   true,
	}

	if err := errors.Join(
		o.setID(id),
		o.setNumber(number),
		o.setItems(items),
		o.setCreatedAt(createdAt),
	); err != nil {
		return nil, err
	}
	o.updatedAt = o.createdAt

	return o, nil
}

// Snapshot is the full persisted state of an order, used to rehydrate it from storage
// and to hand it to mappers without exposing the aggregate's fields.
type Snapshot struct {
	ID              kernel.UUID
	Number          int64
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Milestones      Milestones
	RiderID         *kernel.UUID
	CancelReason    string
	Payment         Payment
	CustomerContact string
	Items           []Item
	Version         int64
}

// RestoreOrder rebuilds an order from persisted state. It validates identity, status
// and the rider/status consistency rules, but not the transition history.
//
// Returns:
//   - *Order: the rehydrated aggregate
//   - error: joined validation errors if the snapshot is inconsistent
func RestoreOrder(s Snapshot) (*Order, error) {
	o := &Order{
		status:          s.Status,
		updatedAt:       s.UpdatedAt,
		milestones:      s.Milestones.clone(),
		cancelReason:    s.CancelReason,
		payment:         s.Payment,
		customerContact: s.CustomerContact,
		version:         s.Version,
		isConstructed:   true,
	}
	if s.RiderID != nil {
		rider := *s.RiderID
		o.riderID = &rider
	}

	if err := errors.Join(
		o.setID(s.ID),
		o.setNumber(s.Number),
		o.setItems(s.Items),
		o.setCreatedAt(s.CreatedAt),
		s.Status.Validate(),
		validateRiderConsistency(s.Status, s.RiderID),
	); err != nil {
		return nil, err
	}
	if o.version < 1 {
		o.version = 1
	}
	if o.updatedAt.IsZero() {
		o.updatedAt = o.createdAt
	}

	return o, nil
}

// Validate ensures the order was built by a constructor.
func (o *Order) Validate() error {
	if o == nil || !o.isConstructed {
		return ErrOrderIsNotConstructed
	}
	return nil
}

// IsEqual compares orders by identifier.
func (o *Order) IsEqual(other *Order) bool {
	return other != nil && o.id.IsEqual(other.id)
}

func (o *Order) ID() kernel.UUID {
	return o.id
}

func (o *Order) Number() int64 {
	return o.number
}

func (o *Order) Status() Status {
	return o.status
}

func (o *Order) CreatedAt() time.Time {
	return o.createdAt
}

func (o *Order) UpdatedAt() time.Time {
	return o.updatedAt
}

// Milestones returns a copy of the milestone timestamps.
func (o *Order) Milestones() Milestones {
	return o.milestones.clone()
}

// RiderID returns the assigned rider, or nil.
func (o *Order) RiderID() *kernel.UUID {
	if o.riderID == nil {
		return nil
	}
	rider := *o.riderID
	return &rider
}

// IsHeldBy reports whether riderID is the rider holding the order.
func (o *Order) IsHeldBy(riderID kernel.UUID) bool {
	return o.riderID != nil && o.riderID.IsEqual(riderID)
}

func (o *Order) CancelReason() string {
	return o.cancelReason
}

func (o *Order) Payment() Payment {
	return o.payment
}

func (o *Order) CustomerContact() string {
	return o.customerContact
}

// Items returns a copy of the line items.
func (o *Order) Items() []Item {
	return append([]Item(nil), o.items...)
}

// Total sums the line totals in minor currency units.
func (o *Order) Total() int64 {
	var total int64
	for _, item := range o.items {
		total += item.LineTotal()
	}
	return total
}

func (o *Order) Version() int64 {
	return o.version
}

// Snapshot exports the full state of the order.
func (o *Order) Snapshot() Snapshot {
	return Snapshot{
		ID:              o.id,
		Number:          o.number,
		Status:          o.status,
		CreatedAt:       o.createdAt,
		UpdatedAt:       o.updatedAt,
		Milestones:      o.milestones.clone(),
		RiderID:         o.RiderID(),
		CancelReason:    o.cancelReason,
		Payment:         o.payment,
		CustomerContact: o.customerContact,
		Items:           o.Items(),
		Version:         o.version,
	}
}

// Clone returns an independent copy of the aggregate.
func (o *Order) Clone() *Order {
	cp := *o
	cp.milestones = o.milestones.clone()
	cp.riderID = o.RiderID()
	cp.items = o.Items()
	return &cp
}

// Matches evaluates a conditional-write predicate against the current state.
func (o *Order) Matches(p Predicate) bool {
	if o.status != p.Status {
		return false
	}
	if p.RiderUnassigned && o.riderID != nil {
		return false
	}
	if p.RiderID != nil && !o.IsHeldBy(*p.RiderID) {
		return false
	}
	return true
}

// Apply performs a change on the aggregate with the same semantics the SQL store uses:
// the status moves forward, the milestone of the new status is set only if empty,
// a rider is only ever added, and the version grows by one.
//
// Returns:
//   - ErrStatusRegression if the change does not move the status forward
//   - ErrRiderAlreadyAssigned if the change carries a different rider than the one set
func (o *Order) Apply(c Change) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if o.status.IsTerminal() || (c.Status != Cancelled && !o.status.IsBefore(c.Status)) {
		return fmt.Errorf("%w: %s -> %s", ErrStatusRegression, o.status, c.Status)
	}
	if c.RiderID != nil && o.riderID != nil && !o.riderID.IsEqual(*c.RiderID) {
		return ErrRiderAlreadyAssigned
	}

	o.status = c.Status
	o.milestones.mark(c.Status, c.At)
	if c.RiderID != nil && o.riderID == nil {
		rider := *c.RiderID
		o.riderID = &rider
	}
	if c.CancelReason != "" && o.cancelReason == "" {
		o.cancelReason = c.CancelReason
	}
	o.updatedAt = c.At
	o.version++

	return nil
}

func (o *Order) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	o.id = id
	return nil
}

func (o *Order) setNumber(number int64) error {
	if number <= 0 {
		return errs.NewValueIsInvalidErrorWithCause("number", fmt.Errorf("%d must be positive", number))
	}
	o.number = number
	return nil
}

func (o *Order) setItems(items []Item) error {
	if len(items) == 0 {
		return errs.NewValueIsRequiredError("items")
	}
	o.items = append([]Item(nil), items...)
	return nil
}

func (o *Order) setCreatedAt(createdAt time.Time) error {
	if createdAt.IsZero() {
		return errs.NewValueIsRequiredError("createdAt")
	}
	o.createdAt = createdAt
	return nil
}

// validateRiderConsistency checks that statuses after the claim have a rider and earlier ones do not.
// Cancelled orders may have either.
func validateRiderConsistency(status Status, riderID *kernel.UUID) error {
	hasRider := riderID != nil
	//nolint:exhaustive // the remaining statuses accept both
	switch status {
	case New, Preparing, ReadyForPickup:
		if hasRider {
			return errs.NewValueIsInvalidErrorWithCause("riderID", fmt.Errorf("%s order cannot have a rider", status))
		}
	case OutForDelivery, Delivered:
		if !hasRider {
			return errs.NewValueIsInvalidErrorWithCause("riderID", fmt.Errorf("%s order must have a rider", status))
		}
	}
	return nil
}

package services

import (
	"errors"
	"fmt"
	"slices"

	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/core/domain/model/order"
)

var (
	// ErrForbidden is returned when the actor's role may not move an order to the requested status.
	ErrForbidden = errors.New("actor is not permitted to perform this transition")

	// ErrInvalidTransition is returned when the requested status is not the next step of the forward chain
	// (or cancellation of a non-terminal order).
	ErrInvalidTransition = errors.New("transition is not valid")
)

// TransitionValidator is the single place where role-specific lifecycle rules live.
// It is pure: it looks only at the statuses, the role, and for riders the order's rider.
//
// Rules, evaluated in this order:
//   - the role must be allowed to move orders to the target status (ErrForbidden)
//   - a rider may only complete an order it holds (ErrForbidden)
//   - the target must be the next forward status, or Cancelled from a non-terminal status (ErrInvalidTransition)
//
// Permission table:
//
//	preparing          kitchen, reception, admin
//	ready_for_pickup   kitchen, admin
//	out_for_delivery   rider, admin (through claim or assignment only)
//	delivered          rider, admin
//	cancelled          reception, admin
type TransitionValidator struct {
	permissions map[order.Status][]actor.Role
}

// NewTransitionValidator creates the validator with the restaurant's permission table.
func NewTransitionValidator() TransitionValidator {
	return TransitionValidator{
		permissions: map[order.Status][]actor.Role{
			order.Preparing:      {actor.RoleKitchen, actor.RoleReception, actor.RoleAdmin},
			order.ReadyForPickup: {actor.RoleKitchen, actor.RoleAdmin},
			order.OutForDelivery: {actor.RoleRider, actor.RoleAdmin},
			order.Delivered:      {actor.RoleRider, actor.RoleAdmin},
			order.Cancelled:      {actor.RoleReception, actor.RoleAdmin},
		},
	}
}

// Validate checks a move from current to target requested by role.
// Equal statuses are rejected here; callers that want idempotent repeats handle them first.
func (v TransitionValidator) Validate(current, target order.Status, role actor.Role) error {
	if err := v.checkPermission(target, role); err != nil {
		return err
	}
	return v.checkSequence(current, target)
}

// ValidateFor checks a move of a concrete order, adding the rider ownership rule.
func (v TransitionValidator) ValidateFor(o *order.Order, target order.Status, a actor.Actor) error {
	if err := v.ValidateActor(o, target, a); err != nil {
		return err
	}
	return v.checkSequence(o.Status(), target)
}

// ValidateActor applies the permission and rider ownership rules without the sequence check.
// Repeated requests for the status an order already has go through it alone.
func (v TransitionValidator) ValidateActor(o *order.Order, target order.Status, a actor.Actor) error {
	if err := v.checkPermission(target, a.Role()); err != nil {
		return err
	}
	if a.Role() == actor.RoleRider && target == order.Delivered && !o.IsHeldBy(a.ID()) {
		return fmt.Errorf("%w: order %d is not held by this rider", ErrForbidden, o.Number())
	}
	return nil
}

// CanPerform reports whether role may move orders to target at all.
func (v TransitionValidator) CanPerform(target order.Status, role actor.Role) bool {
	return slices.Contains(v.permissions[target], role)
}

// AllowedTargets lists the statuses role may request next from current. Dashboards use it
// to decide which buttons to show.
func (v TransitionValidator) AllowedTargets(current order.Status, role actor.Role) []order.Status {
	targets := make([]order.Status, 0, 2)
	if next, ok := current.Next(); ok && v.CanPerform(next, role) {
		targets = append(targets, next)
	}
	if !current.IsTerminal() && current.Validate() == nil && v.CanPerform(order.Cancelled, role) {
		targets = append(targets, order.Cancelled)
	}
	return targets
}

func (v TransitionValidator) checkPermission(target order.Status, role actor.Role) error {
	if err := target.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	}
	if !v.CanPerform(target, role) {
		return fmt.Errorf("%w: %s may not move an order to %s", ErrForbidden, role, target)
	}
	return nil
}

func (v TransitionValidator) checkSequence(current, target order.Status) error {
	if current.IsTerminal() {
		return fmt.Errorf("%w: order is already %s", ErrInvalidTransition, current)
	}
	if target == order.Cancelled {
		return nil
	}
	if next, ok := current.Next(); ok && next == target {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
}

package commands

import (
	"context"
	"errors"
	"fmt"

	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/core/domain/model/history"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/pkg/errs"
)

var (
	// ErrOrderAlreadyClaimed is the rejection a rider sees after losing a claim race.
	ErrOrderAlreadyClaimed = errors.New("order was just claimed by someone else")

	// ErrOrderNotClaimable is returned for claims on orders that are not ready for pickup.
	ErrOrderNotClaimable = errors.New("order is not ready for pickup")

	// ErrRiderAssignmentRequired is returned when out_for_delivery is requested as a plain transition.
	ErrRiderAssignmentRequired = fmt.Errorf(
		"%w: out_for_delivery is reached by claiming the order or assigning a rider",
		services.ErrInvalidTransition,
	)
)

// TransitionResult is the outcome of a successful transition request. Changed is false when
// the order already was at (or past) the requested status and nothing was written.
type TransitionResult struct {
	Order    *order.Order
	Previous order.Status
	Changed  bool
}

// ClaimOutcome is a normal result of a claim, not an error.
type ClaimOutcome string

const (
	ClaimOutcomeClaimed        ClaimOutcome = "claimed"
	ClaimOutcomeAlreadyClaimed ClaimOutcome = "already_claimed"
	ClaimOutcomeNotClaimable   ClaimOutcome = "not_claimable"
	ClaimOutcomeNotFound       ClaimOutcome = "not_found"
)

// ClaimResult carries the outcome and, when claimed, the order. Changed is false for a
// repeated claim by the rider that already holds the order.
type ClaimResult struct {
	Outcome ClaimOutcome
	Order   *order.Order
	Changed bool
}

// Err maps non-claimed outcomes to errors for callers that only deal in errors.
func (r ClaimResult) Err(orderID kernel.UUID) error {
	switch r.Outcome {
	case ClaimOutcomeClaimed:
		return nil
	case ClaimOutcomeAlreadyClaimed:
		return ErrOrderAlreadyClaimed
	case ClaimOutcomeNotFound:
		return errs.NewObjectNotFoundError("orderID", orderID.String())
	default:
		return ErrOrderNotClaimable
	}
}

// lifecycleWriter holds the two write primitives shared by the lifecycle handlers.
type lifecycleWriter struct {
	uowFactory OrderUoWFactory
	validator  services.TransitionValidator
	clock      kernel.Clock
}

func newLifecycleWriter(uowFactory OrderUoWFactory, clock kernel.Clock) lifecycleWriter {
	if clock == nil {
		clock = kernel.SystemClock{}
	}
	return lifecycleWriter{
		uowFactory: uowFactory,
		validator:  services.NewTransitionValidator(),
		clock:      clock,
	}
}

// advance moves an order to target with a write guarded by the status it was read in.
// A lost race is resolved by re-reading: if the order has already reached target the
// request succeeds without writing, otherwise it is rejected.
func (w lifecycleWriter) advance(
	ctx context.Context,
	orderID kernel.UUID,
	target order.Status,
	by actor.Actor,
	reason string,
) (TransitionResult, error) {
	uow := w.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return TransitionResult{}, err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	repo := uow.OrderRepository()
	current, err := repo.Get(ctx, orderID)
	if err != nil {
		return TransitionResult{}, err
	}

	if current.Status() == target {
		if err = w.validator.ValidateActor(current, target, by); err != nil {
			return TransitionResult{}, err
		}
		return TransitionResult{Order: current, Previous: current.Status()}, nil
	}

	if err = w.validator.ValidateFor(current, target, by); err != nil {
		return TransitionResult{}, err
	}
	if target == order.OutForDelivery {
		return TransitionResult{}, ErrRiderAssignmentRequired
	}

	now := w.clock.Now()
	change := order.TransitionTo(target, now)
	if target == order.Cancelled {
		change = order.CancelWith(reason, now)
	}
	if err = change.Validate(); err != nil {
		return TransitionResult{}, err
	}

	predicate := order.Predicate{Status: current.Status()}
	if by.Role() == actor.RoleRider {
		riderID := by.ID()
		predicate.RiderID = &riderID
	}

	matched, err := repo.ConditionalUpdate(ctx, orderID, predicate, change)
	if err != nil {
		return TransitionResult{}, err
	}
	if !matched {
		latest, getErr := repo.Get(ctx, orderID)
		if getErr != nil {
			return TransitionResult{}, getErr
		}
		if latest.Status().HasReached(target) {
			return TransitionResult{Order: latest, Previous: latest.Status()}, nil
		}
		return TransitionResult{}, fmt.Errorf(
			"%w: order moved from %s to %s concurrently", services.ErrInvalidTransition, current.Status(), latest.Status(),
		)
	}

	entry, err := history.NewEntry(orderID, current.Status(), target, by, change.CancelReason, now)
	if err != nil {
		return TransitionResult{}, err
	}
	if err = uow.HistoryRepository().Append(ctx, entry); err != nil {
		return TransitionResult{}, err
	}

	updated, err := repo.Get(ctx, orderID)
	if err != nil {
		return TransitionResult{}, err
	}

	if err = uow.Commit(ctx); err != nil {
		return TransitionResult{}, err
	}

	return TransitionResult{Order: updated, Previous: current.Status(), Changed: true}, nil
}

// claim hands a ready, unclaimed order to riderID in one conditional write. Nothing is
// read before the write; the order is read afterwards only to explain a miss.
func (w lifecycleWriter) claim(
	ctx context.Context,
	orderID kernel.UUID,
	riderID kernel.UUID,
	by actor.Actor,
) (ClaimResult, error) {
	uow := w.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return ClaimResult{}, err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	repo := uow.OrderRepository()
	now := w.clock.Now()

	matched, err := repo.ConditionalUpdate(
		ctx,
		orderID,
		order.Predicate{Status: order.ReadyForPickup, RiderUnassigned: true},
		order.ClaimBy(riderID, now),
	)
	if err != nil {
		return ClaimResult{}, err
	}

	if !matched {
		latest, getErr := repo.Get(ctx, orderID)
		switch {
		case errors.Is(getErr, errs.ErrObjectNotFound):
			return ClaimResult{Outcome: ClaimOutcomeNotFound}, nil
		case getErr != nil:
			return ClaimResult{}, getErr
		case latest.IsHeldBy(riderID):
			return ClaimResult{Outcome: ClaimOutcomeClaimed, Order: latest}, nil
		case latest.RiderID() != nil:
			return ClaimResult{Outcome: ClaimOutcomeAlreadyClaimed}, nil
		default:
			return ClaimResult{Outcome: ClaimOutcomeNotClaimable}, nil
		}
	}

	reason := ""
	if by.Role() != actor.RoleRider {
		reason = "assigned rider " + riderID.String()
	}
	entry, err := history.NewEntry(orderID, order.ReadyForPickup, order.OutForDelivery, by, reason, now)
	if err != nil {
		return ClaimResult{}, err
	}
	if err = uow.HistoryRepository().Append(ctx, entry); err != nil {
		return ClaimResult{}, err
	}

	updated, err := repo.Get(ctx, orderID)
	if err != nil {
		return ClaimResult{}, err
	}

	if err = uow.Commit(ctx); err != nil {
		return ClaimResult{}, err
	}

	return ClaimResult{Outcome: ClaimOutcomeClaimed, Order: updated, Changed: true}, nil
}

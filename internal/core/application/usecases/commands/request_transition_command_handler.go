package commands

import (
	"context"

	"orderflow/internal/core/domain/model/kernel"
)

// RequestTransitionCommandHandler moves an order one step along the forward chain
// or to cancelled. out_for_delivery is never reached here: it needs a rider and
// goes through ClaimOrderCommandHandler or AssignRiderCommandHandler.
//
// Returns:
//   - TransitionResult: the order after the call; Changed reports whether this call wrote it
//   - error: services.ErrForbidden, services.ErrInvalidTransition, errs.ErrObjectNotFound
//     or a store failure
type RequestTransitionCommandHandler struct {
	writer lifecycleWriter
}

func NewRequestTransitionCommandHandler(uowFactory OrderUoWFactory, clock kernel.Clock) RequestTransitionCommandHandler {
	return RequestTransitionCommandHandler{
		writer: newLifecycleWriter(uowFactory, clock),
	}
}

func (h *RequestTransitionCommandHandler) Handle(ctx context.Context, cmd RequestTransitionCommand) (TransitionResult, error) {
	if err := cmd.Validate(); err != nil {
		return TransitionResult{}, err
	}

	return h.writer.advance(ctx, cmd.OrderID(), cmd.Target(), cmd.Actor(), cmd.Reason())
}

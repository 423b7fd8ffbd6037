package commands

import (
	"context"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
)

// CancelOrderCommandHandler cancels an order from any non-terminal status.
// Cancelling an already cancelled order succeeds without a write.
type CancelOrderCommandHandler struct {
	writer lifecycleWriter
}

func NewCancelOrderCommandHandler(uowFactory OrderUoWFactory, clock kernel.Clock) CancelOrderCommandHandler {
	return CancelOrderCommandHandler{
		writer: newLifecycleWriter(uowFactory, clock),
	}
}

func (h *CancelOrderCommandHandler) Handle(ctx context.Context, cmd CancelOrderCommand) (TransitionResult, error) {
	if err := cmd.Validate(); err != nil {
		return TransitionResult{}, err
	}

	return h.writer.advance(ctx, cmd.OrderID(), order.Cancelled, cmd.Actor(), cmd.Reason())
}

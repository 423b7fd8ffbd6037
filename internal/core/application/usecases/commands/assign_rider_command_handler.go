package commands

import (
	"context"
	"fmt"

	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/services"
)

// AssignRiderCommandHandler lets an administrator assign a rider. It uses the same
// conditional write as a claim, so an assignment and a rider's own claim cannot both succeed.
type AssignRiderCommandHandler struct {
	writer lifecycleWriter
}

func NewAssignRiderCommandHandler(uowFactory OrderUoWFactory, clock kernel.Clock) AssignRiderCommandHandler {
	return AssignRiderCommandHandler{
		writer: newLifecycleWriter(uowFactory, clock),
	}
}

func (h *AssignRiderCommandHandler) Handle(ctx context.Context, cmd AssignRiderCommand) (ClaimResult, error) {
	if err := cmd.Validate(); err != nil {
		return ClaimResult{}, err
	}

	if cmd.Actor().Role() != actor.RoleAdmin {
		return ClaimResult{}, fmt.Errorf("%w: %s may not assign riders", services.ErrForbidden, cmd.Actor().Role())
	}

	return h.writer.claim(ctx, cmd.OrderID(), cmd.RiderID(), cmd.Actor())
}

package commands

import (
	"context"
	"fmt"

	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/services"
)

// ClaimOrderCommandHandler resolves concurrent claims with a single conditional write:
// of any number of riders claiming the same ready order, exactly one gets ClaimOutcomeClaimed.
type ClaimOrderCommandHandler struct {
	writer lifecycleWriter
}

func NewClaimOrderCommandHandler(uowFactory OrderUoWFactory, clock kernel.Clock) ClaimOrderCommandHandler {
	return ClaimOrderCommandHandler{
		writer: newLifecycleWriter(uowFactory, clock),
	}
}

// Handle returns the claim outcome. Losing a race is an outcome, not an error;
// errors are reserved for a non-rider actor and store failures.
func (h *ClaimOrderCommandHandler) Handle(ctx context.Context, cmd ClaimOrderCommand) (ClaimResult, error) {
	if err := cmd.Validate(); err != nil {
		return ClaimResult{}, err
	}

	rider := cmd.Rider()
	if rider.Role() != actor.RoleRider {
		return ClaimResult{}, fmt.Errorf("%w: only riders claim orders, %s must assign one", services.ErrForbidden, rider.Role())
	}

	return h.writer.claim(ctx, cmd.OrderID(), rider.ID(), rider)
}

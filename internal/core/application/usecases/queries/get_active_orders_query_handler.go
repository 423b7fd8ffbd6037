package queries

import (
	"context"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
)

// GetActiveOrdersQueryHandler returns the role-scoped active view, oldest order first.
// Kitchen screens get their queue, riders get claimable orders and their own deliveries,
// reception and admin get everything active plus orders finished within the retention window.
type GetActiveOrdersQueryHandler struct {
	reader    ports.OrderReader
	view      services.ActiveView
	validator services.TransitionValidator
	clock     kernel.Clock
}

func NewGetActiveOrdersQueryHandler(
	reader ports.OrderReader,
	view services.ActiveView,
	clock kernel.Clock,
) GetActiveOrdersQueryHandler {
	if clock == nil {
		clock = kernel.SystemClock{}
	}
	return GetActiveOrdersQueryHandler{
		reader:    reader,
		view:      view,
		validator: services.NewTransitionValidator(),
		clock:     clock,
	}
}

func (h GetActiveOrdersQueryHandler) Handle(ctx context.Context, query GetActiveOrdersQuery) ([]OrderResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	viewer := query.Viewer()
	orders, err := h.reader.Query(ctx, h.view.Filter(viewer.Role(), h.clock.Now()))
	if err != nil {
		return nil, err
	}

	responses := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		if !h.view.Visible(o, viewer) {
			continue
		}
		responses = append(responses, NewOrderResponse(o, h.validator.AllowedTargets(o.Status(), viewer.Role())))
	}

	return responses, nil
}

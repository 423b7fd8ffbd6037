package queries

import (
	"context"

	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
)

// GetOrderQueryHandler reads an order and the next steps open to the viewer.
type GetOrderQueryHandler struct {
	reader    ports.OrderReader
	validator services.TransitionValidator
}

func NewGetOrderQueryHandler(reader ports.OrderReader) GetOrderQueryHandler {
	return GetOrderQueryHandler{
		reader:    reader,
		validator: services.NewTransitionValidator(),
	}
}

func (h GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (OrderResponse, error) {
	if err := query.Validate(); err != nil {
		return OrderResponse{}, err
	}

	o, err := h.reader.Get(ctx, query.OrderID())
	if err != nil {
		return OrderResponse{}, err
	}

	return NewOrderResponse(o, h.validator.AllowedTargets(o.Status(), query.Viewer().Role())), nil
}

package queries

import (
	"context"
	"errors"
	"fmt"

	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/core/domain/model/history"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/guard"
)

var ErrGetOrderHistoryQueryIsNotConstructed = errors.New(
	"GetOrderHistoryQuery must be created via NewGetOrderHistoryQuery constructor",
)

// GetOrderHistoryQuery reads the audit trail of an order. Only reception and admin may read it.
type GetOrderHistoryQuery struct {
	orderID kernel.UUID
	viewer  actor.Actor

	guard guard.ConstructorGuard
}

func NewGetOrderHistoryQuery(orderID kernel.UUID, viewer actor.Actor) (GetOrderHistoryQuery, error) {
	if err := errors.Join(orderID.Validate(), viewer.Validate()); err != nil {
		return GetOrderHistoryQuery{}, err
	}
	return GetOrderHistoryQuery{orderID: orderID, viewer: viewer, guard: guard.NewConstructorGuard()}, nil
}

func (q GetOrderHistoryQuery) Validate() error {
	return q.guard.Validate(ErrGetOrderHistoryQueryIsNotConstructed)
}

type GetOrderHistoryQueryHandler struct {
	reader  ports.OrderReader
	history ports.HistoryRepository
}

func NewGetOrderHistoryQueryHandler(reader ports.OrderReader, history ports.HistoryRepository) GetOrderHistoryQueryHandler {
	return GetOrderHistoryQueryHandler{reader: reader, history: history}
}

// Handle returns the entries oldest first. A missing order is reported as not found
// rather than as an empty trail.
func (h GetOrderHistoryQueryHandler) Handle(ctx context.Context, query GetOrderHistoryQuery) ([]history.Entry, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	switch query.viewer.Role() {
	case actor.RoleReception, actor.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: %s may not read order history", services.ErrForbidden, query.viewer.Role())
	}

	if _, err := h.reader.Get(ctx, query.orderID); err != nil {
		return nil, err
	}

	return h.history.ListByOrder(ctx, query.orderID)
}

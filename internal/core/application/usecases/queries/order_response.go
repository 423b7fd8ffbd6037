// Package queries contains the read side of the order lifecycle: single orders, role dashboards,
// audit history and the wait-time estimate. Queries never write and never open a transaction.
package queries

import (
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
)

// OrderResponse is the read model of an order handed to transports and streams.
type OrderResponse struct {
	ID              kernel.UUID
	Number          int64
	Status          order.Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Milestones      order.Milestones
	RiderID         *kernel.UUID
	CancelReason    string
	PaymentMethod   order.PaymentMethod
	PaymentStatus   order.PaymentStatus
	CustomerContact string
	Items           []ItemResponse
	Total           int64
	Version         int64

	// AllowedTargets lists the statuses the viewer may request next.
	AllowedTargets []order.Status
}

type ItemResponse struct {
	Name       string
	Quantity   int
	UnitPrice  int64
	Selections []string
}

// NewOrderResponse maps an order into its read model.
func NewOrderResponse(o *order.Order, allowed []order.Status) OrderResponse {
	items := make([]ItemResponse, 0, len(o.Items()))
	for _, item := range o.Items() {
		items = append(items, ItemResponse{
			Name:       item.Name(),
			Quantity:   item.Quantity(),
			UnitPrice:  item.UnitPrice(),
			Selections: item.Selections(),
		})
	}
	if allowed == nil {
		allowed = []order.Status{}
	}

	return OrderResponse{
		ID:              o.ID(),
		Number:          o.Number(),
		Status:          o.Status(),
		CreatedAt:       o.CreatedAt(),
		UpdatedAt:       o.UpdatedAt(),
		Milestones:      o.Milestones(),
		RiderID:         o.RiderID(),
		CancelReason:    o.CancelReason(),
		PaymentMethod:   o.Payment().Method(),
		PaymentStatus:   o.Payment().Status(),
		CustomerContact: o.CustomerContact(),
		Items:           items,
		Total:           o.Total(),
		Version:         o.Version(),
		AllowedTargets:  allowed,
	}
}

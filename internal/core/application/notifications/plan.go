package notifications

import (
	"fmt"
	"time"

	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/ports"
)

const (
	// RiderSubscription is the push topic every on-shift rider device listens on.
	RiderSubscription = "riders"

	// StaffAudience is the notice board audience of reception and admin dashboards.
	StaffAudience = "staff"
)

// Plan is what one committed change should produce. Nil entries are skipped.
type Plan struct {
	Message *ports.Message
	Push    *ports.Push
	Notice  *ports.Notice
}

func (p Plan) IsEmpty() bool {
	return p.Message == nil && p.Push == nil && p.Notice == nil
}

// IdempotencyKey identifies a notification across retries and duplicate deliveries.
func IdempotencyKey(o *order.Order) string {
	return fmt.Sprintf("%s:%s:%d", o.ID(), o.Status(), o.Version())
}

// PlanFor applies the audience rules:
//
//	preparing .. cancelled     customer message
//	ready_for_pickup           rider push
//	new -> preparing, cancel   staff notice
func PlanFor(change ports.OrderChange, at time.Time) Plan {
	o := change.Order
	if o == nil {
		return Plan{}
	}

	key := IdempotencyKey(o)
	var plan Plan

	if text, ok := customerText(o); ok && o.CustomerContact() != "" {
		plan.Message = &ports.Message{
			Key:       key,
			Recipient: o.CustomerContact(),
			Text:      text,
		}
	}

	if o.Status() == order.ReadyForPickup {
		plan.Push = &ports.Push{
			Key:          key,
			Subscription: RiderSubscription,
			Title:        "Order ready for pickup",
			Body:         fmt.Sprintf("Order #%d is waiting at the counter", o.Number()),
			OrderID:      o.ID(),
		}
	}

	if text, ok := staffText(change); ok {
		plan.Notice = &ports.Notice{
			Key:         key,
			Audience:    StaffAudience,
			OrderID:     o.ID(),
			OrderNumber: o.Number(),
			Text:        text,
			CreatedAt:   at,
		}
	}

	return plan
}

func customerText(o *order.Order) (string, bool) {
	switch o.Status() {
	case order.Preparing:
		return fmt.Sprintf("Your order #%d is being prepared.", o.Number()), true
	case order.ReadyForPickup:
		return fmt.Sprintf("Your order #%d is ready.", o.Number()), true
	case order.OutForDelivery:
		return fmt.Sprintf("Your order #%d is on its way.", o.Number()), true
	case order.Delivered:
		return fmt.Sprintf("Your order #%d has been delivered. Enjoy!", o.Number()), true
	case order.Cancelled:
		return fmt.Sprintf("Your order #%d was cancelled: %s", o.Number(), o.CancelReason()), true
	default:
		return "", false
	}
}

func staffText(change ports.OrderChange) (string, bool) {
	o := change.Order
	switch {
	case o.Status() == order.Preparing && change.Previous == order.New:
		return fmt.Sprintf("Order #%d accepted by the kitchen", o.Number()), true
	case o.Status() == order.Cancelled:
		return fmt.Sprintf("Order #%d cancelled: %s", o.Number(), o.CancelReason()), true
	default:
		return "", false
	}
}

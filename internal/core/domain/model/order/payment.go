package order

import (
	"fmt"

	"orderflow/internal/pkg/errs"
)

// PaymentMethod and PaymentStatus come from the payment provider integration.
// This module stores and returns them but never changes them.
type (
	PaymentMethod string
	PaymentStatus string
)

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentOnline PaymentMethod = "online"

	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Payment is the read-only payment snapshot carried by an order.
type Payment struct {
	method PaymentMethod
	status PaymentStatus
}

func NewPayment(method PaymentMethod, status PaymentStatus) (Payment, error) {
	switch method {
	case PaymentCash, PaymentCard, PaymentOnline:
	default:
		return Payment{}, errs.NewValueIsInvalidErrorWithCause("payment method", fmt.Errorf("%q is not supported", method))
	}
	switch status {
	case PaymentPending, PaymentPaid, PaymentRefunded:
	default:
		return Payment{}, errs.NewValueIsInvalidErrorWithCause("payment status", fmt.Errorf("%q is not supported", status))
	}
	return Payment{method: method, status: status}, nil
}

func (p Payment) Method() PaymentMethod { return p.method }
func (p Payment) Status() PaymentStatus { return p.status }

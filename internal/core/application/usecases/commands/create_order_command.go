package commands

import (
	"errors"
	"strings"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"
	"orderflow/internal/pkg/guard"
)

var (
	ErrCreateOrderCommandIsNotConstructed = errors.New(
		"CreateOrderCommand must be created via NewCreateOrderCommand constructor",
	)
	ErrItemsAreRequired = errors.New("order must contain at least one item")
)

// CreateOrderCommand places a new order in status new. It stands in for the kiosk
// placement flow, which owns menu pricing and payment; both arrive here already resolved.
//
// Example:
//
//	item, _ := order.NewItem("Margherita", 2, 1150, nil)
//	payment, _ := order.NewPayment(order.PaymentCard, order.PaymentPaid)
//	cmd, err := NewCreateOrderCommand(kernel.NewUUID(), "+15550100", payment, []order.Item{item})
//	if err != nil {
//	    return fmt.Errorf("invalid order data: %w", err)
//	}
//
//	handler := NewCreateOrderCommandHandler(uowFactory, clock)
//	placed, err := handler.Handle(ctx, cmd)
type CreateOrderCommand struct { //nolint:recvcheck //using for validation
	orderID         kernel.UUID
	customerContact string
	payment         order.Payment
	items           []order.Item

	guard guard.ConstructorGuard
}

// NewCreateOrderCommand validates the placement data.
func NewCreateOrderCommand(
	orderID kernel.UUID,
	customerContact string,
	payment order.Payment,
	items []order.Item,
) (CreateOrderCommand, error) {
	cmd := CreateOrderCommand{
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		cmd.setOrderID(orderID),
		cmd.setCustomerContact(customerContact),
		cmd.setPayment(payment),
		cmd.setItems(items),
	); err != nil {
		return CreateOrderCommand{}, err
	}

	return cmd, nil
}

// Validate ensures the command was created through the constructor.
func (c CreateOrderCommand) Validate() error {
	return c.guard.Validate(ErrCreateOrderCommandIsNotConstructed)
}

func (c CreateOrderCommand) OrderID() kernel.UUID {
	return c.orderID
}

func (c CreateOrderCommand) CustomerContact() string {
	return c.customerContact
}

func (c CreateOrderCommand) Payment() order.Payment {
	return c.payment
}

func (c CreateOrderCommand) Items() []order.Item {
	return append([]order.Item(nil), c.items...)
}

func (c *CreateOrderCommand) setOrderID(orderID kernel.UUID) error {
	if err := orderID.Validate(); err != nil {
		return err
	}

	c.orderID = orderID
	return nil
}

func (c *CreateOrderCommand) setCustomerContact(contact string) error {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return errs.NewValueIsRequiredError("customerContact")
	}

	c.customerContact = contact
	return nil
}

func (c *CreateOrderCommand) setPayment(payment order.Payment) error {
	if payment.Method() == "" || payment.Status() == "" {
		return errs.NewValueIsRequiredError("payment")
	}

	c.payment = payment
	return nil
}

func (c *CreateOrderCommand) setItems(items []order.Item) error {
	if len(items) == 0 {
		return ErrItemsAreRequired
	}

	c.items = append([]order.Item(nil), items...)
	return nil
}

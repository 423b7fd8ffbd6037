package order

import (
	"errors"
	"strings"

	"orderflow/internal/pkg/errs"
)

const maxItemQuantity = 99

// Item is one immutable line of an order. UnitPrice is in minor currency units.
type Item struct {
	name       string
	quantity   int
	unitPrice  int64
	selections []string
}

// NewItem validates and builds a line item.
func NewItem(name string, quantity int, unitPrice int64, selections []string) (Item, error) {
	name = strings.TrimSpace(name)

	var errName, errQty, errPrice error
	if name == "" {
		errName = errs.NewValueIsRequiredError("item name")
	}
	if quantity < 1 || quantity > maxItemQuantity {
		errQty = errs.NewValueIsOutOfRangeError("item quantity", quantity, 1, maxItemQuantity)
	}
	if unitPrice < 0 {
		errPrice = errs.NewValueIsInvalidErrorWithCause("item unit price", errors.New("must not be negative"))
	}
	if err := errors.Join(errName, errQty, errPrice); err != nil {
		return Item{}, err
	}

	return Item{
		name:       name,
		quantity:   quantity,
		unitPrice:  unitPrice,
		selections: append([]string(nil), selections...),
	}, nil
}

func (i Item) Name() string {
	return i.name
}

func (i Item) Quantity() int {
	return i.quantity
}

func (i Item) UnitPrice() int64 {
	return i.unitPrice
}

// LineTotal is quantity times unit price.
func (i Item) LineTotal() int64 {
	return i.unitPrice * int64(i.quantity)
}

func (i Item) Selections() []string {
	return append([]string(nil), i.selections...)
}

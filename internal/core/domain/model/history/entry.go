// Package history records who moved an order and when, for audit and dispute handling.
package history

import (
	"errors"
	"strings"
	"time"

	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"
)

// PlacementRole is recorded for entries written by the placement flow, which has no staff actor.
const PlacementRole = "placement"

// Entry is one committed status change. Entries are append-only.
type Entry struct {
	OrderID    kernel.UUID
	From       order.Status
	To         order.Status
	ActorRole  string
	ActorID    *kernel.UUID
	Reason     string
	OccurredAt time.Time
}

// NewEntry records a change made by an authenticated actor.
func NewEntry(orderID kernel.UUID, from, to order.Status, by actor.Actor, reason string, at time.Time) (Entry, error) {
	if err := errors.Join(orderID.Validate(), to.Validate(), by.Validate()); err != nil {
		return Entry{}, err
	}
	if at.IsZero() {
		return Entry{}, errs.NewValueIsRequiredError("occurredAt")
	}
	id := by.ID()
	return Entry{
		OrderID:    orderID,
		From:       from,
		To:         to,
		ActorRole:  by.Role().String(),
		ActorID:    &id,
		Reason:     strings.TrimSpace(reason),
		OccurredAt: at,
	}, nil
}

// NewPlacementEntry records the creation of an order.
func NewPlacementEntry(orderID kernel.UUID, at time.Time) (Entry, error) {
	if err := orderID.Validate(); err != nil {
		return Entry{}, err
	}
	if at.IsZero() {
		return Entry{}, errs.NewValueIsRequiredError("occurredAt")
	}
	return Entry{
		OrderID:    orderID,
		From:       order.Unknown,
		To:         order.New,
		ActorRole:  PlacementRole,
		OccurredAt: at,
	}, nil
}

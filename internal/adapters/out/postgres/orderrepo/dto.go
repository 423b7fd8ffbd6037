// Package orderrepo maps order aggregates to the orders table and implements the order
// store contract on top of GORM. The only write after placement is a conditional UPDATE
// guarded by the status the caller read, so racing writers are settled by the database.
package orderrepo

import (
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"

	"github.com/google/uuid"
)

// OrderDTO is one row of the orders table. Status is stored by name so the change trigger
// and ad hoc queries read the same values the API exposes.
type OrderDTO struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Number          int64      `gorm:"uniqueIndex;not null"`
	Status          string     `gorm:"type:varchar(32);index;not null"`
	CreatedAt       time.Time  `gorm:"index;not null;autoCreateTime:false"`
	UpdatedAt       time.Time  `gorm:"index;not null;autoUpdateTime:false"`
	PreparingAt     *time.Time
	ReadyAt         *time.Time `gorm:"index"`
	AssignedAt      *time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
	RiderID         *uuid.UUID `gorm:"type:uuid;index"`
	CancelReason    string
	PaymentMethod   string    `gorm:"type:varchar(16)"`
	PaymentStatus   string    `gorm:"type:varchar(16)"`
	CustomerContact string
	Items           []ItemDTO `gorm:"serializer:json"`
	Version         int64     `gorm:"not null;default:1"`
}

func (OrderDTO) TableName() string {
	return "orders"
}

// ItemDTO is a line item as stored in the orders.items JSON column.
type ItemDTO struct {
	Name       string   `json:"name"`
	Quantity   int      `json:"quantity"`
	UnitPrice  int64    `json:"unit_price"`
	Selections []string `json:"selections,omitempty"`
}

func fromDomain(o *order.Order) OrderDTO {
	s := o.Snapshot()

	var riderID *uuid.UUID
	if s.RiderID != nil {
		raw := s.RiderID.Bytes()
		riderID = &raw
	}

	items := make([]ItemDTO, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, ItemDTO{
			Name:       it.Name(),
			Quantity:   it.Quantity(),
			UnitPrice:  it.UnitPrice(),
			Selections: it.Selections(),
		})
	}

	return OrderDTO{
		ID:              s.ID.Bytes(),
		Number:          s.Number,
		Status:          s.Status.String(),
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		PreparingAt:     s.Milestones.PreparingAt,
		ReadyAt:         s.Milestones.ReadyAt,
		AssignedAt:      s.Milestones.AssignedAt,
		DeliveredAt:     s.Milestones.DeliveredAt,
		CancelledAt:     s.Milestones.CancelledAt,
		RiderID:         riderID,
		CancelReason:    s.CancelReason,
		PaymentMethod:   string(s.Payment.Method()),
		PaymentStatus:   string(s.Payment.Status()),
		CustomerContact: s.CustomerContact,
		Items:           items,
		Version:         s.Version,
	}
}

func toDomain(dto OrderDTO) (*order.Order, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}

	var riderID *kernel.UUID
	if dto.RiderID != nil {
		rID, riderErr := kernel.UUIDFromBytes((*dto.RiderID)[:])
		if riderErr != nil {
			return nil, riderErr
		}
		riderID = &rID
	}

	status, err := order.ParseStatus(dto.Status)
	if err != nil {
		return nil, err
	}

	payment, err := order.NewPayment(order.PaymentMethod(dto.PaymentMethod), order.PaymentStatus(dto.PaymentStatus))
	if err != nil {
		return nil, err
	}

	items := make([]order.Item, 0, len(dto.Items))
	for _, it := range dto.Items {
		item, itemErr := order.NewItem(it.Name, it.Quantity, it.UnitPrice, it.Selections)
		if itemErr != nil {
			return nil, itemErr
		}
		items = append(items, item)
	}

	return order.RestoreOrder(order.Snapshot{
		ID:        id,
		Number:    dto.Number,
		Status:    status,
		CreatedAt: dto.CreatedAt.UTC(),
		UpdatedAt: dto.UpdatedAt.UTC(),
		Milestones: order.Milestones{
			PreparingAt: utc(dto.PreparingAt),
			ReadyAt:     utc(dto.ReadyAt),
			AssignedAt:  utc(dto.AssignedAt),
			DeliveredAt: utc(dto.DeliveredAt),
			CancelledAt: utc(dto.CancelledAt),
		},
		RiderID:         riderID,
		CancelReason:    dto.CancelReason,
		Payment:         payment,
		CustomerContact: dto.CustomerContact,
		Items:           items,
		Version:         dto.Version,
	})
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

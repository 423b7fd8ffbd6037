// Package historyrepo stores the append-only audit trail of order status changes.
package historyrepo

import (
	"context"
	"time"

	"orderflow/internal/adapters/out/postgres/pgerr"
	"orderflow/internal/core/domain/model/history"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/ports"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntryDTO is one row of order_status_history. FromStatus is empty for the placement row.
type EntryDTO struct {
	ID         int64      `gorm:"primaryKey;autoIncrement"`
	OrderID    uuid.UUID  `gorm:"type:uuid;index;not null"`
	FromStatus string     `gorm:"type:varchar(32)"`
	ToStatus   string     `gorm:"type:varchar(32);not null"`
	ActorRole  string     `gorm:"type:varchar(16)"`
	ActorID    *uuid.UUID `gorm:"type:uuid"`
	Reason     string
	OccurredAt time.Time `gorm:"not null"`
}

func (EntryDTO) TableName() string {
	return "order_status_history"
}

type GormHistoryRepository struct {
	db *gorm.DB
}

func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	return &GormHistoryRepository{db: db}
}

func (r *GormHistoryRepository) Append(ctx context.Context, entry history.Entry) error {
	dto := fromDomain(entry)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		return pgerr.Classify(err)
	}
	return nil
}

// ListByOrder returns the entries of one order oldest first.
func (r *GormHistoryRepository) ListByOrder(ctx context.Context, orderID kernel.UUID) ([]history.Entry, error) {
	if err := orderID.Validate(); err != nil {
		return nil, err
	}

	var dtos []EntryDTO
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID.Bytes()).
		Order("occurred_at ASC").
		Order("id ASC").
		Find(&dtos).Error
	if err != nil {
		return nil, pgerr.Classify(err)
	}

	entries := make([]history.Entry, 0, len(dtos))
	for _, dto := range dtos {
		e, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func fromDomain(e history.Entry) EntryDTO {
	dto := EntryDTO{
		OrderID:    e.OrderID.Bytes(),
		ToStatus:   e.To.String(),
		ActorRole:  e.ActorRole,
		Reason:     e.Reason,
		OccurredAt: e.OccurredAt,
	}
	if e.From != order.Unknown {
		dto.FromStatus = e.From.String()
	}
	if e.ActorID != nil {
		raw := e.ActorID.Bytes()
		dto.ActorID = &raw
	}
	return dto
}

func toDomain(dto EntryDTO) (history.Entry, error) {
	orderID, err := kernel.UUIDFromBytes(dto.OrderID[:])
	if err != nil {
		return history.Entry{}, err
	}

	from := order.Unknown
	if dto.FromStatus != "" {
		if from, err = order.ParseStatus(dto.FromStatus); err != nil {
			return history.Entry{}, err
		}
	}
	to, err := order.ParseStatus(dto.ToStatus)
	if err != nil {
		return history.Entry{}, err
	}

	var actorID *kernel.UUID
	if dto.ActorID != nil {
		id, idErr := kernel.UUIDFromBytes((*dto.ActorID)[:])
		if idErr != nil {
			return history.Entry{}, idErr
		}
		actorID = &id
	}

	return history.Entry{
		OrderID:    orderID,
		From:       from,
		To:         to,
		ActorRole:  dto.ActorRole,
		ActorID:    actorID,
		Reason:     dto.Reason,
		OccurredAt: dto.OccurredAt.UTC(),
	}, nil
}

var _ ports.HistoryRepository = (*GormHistoryRepository)(nil)

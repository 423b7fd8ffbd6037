// Package noticerepo keeps staff notices in the database so every instance serves the same list.
package noticerepo

import (
	"context"
	"time"

	"orderflow/internal/adapters/out/postgres/pgerr"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/ports"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NoticeDTO is one row of staff_notices. The idempotency key is the primary key, so a
// retried post is absorbed by the insert.
type NoticeDTO struct {
	Key         string    `gorm:"primaryKey;size:128"`
	Audience    string    `gorm:"type:varchar(32);index:idx_notices_audience_created,priority:1"`
	OrderID     uuid.UUID `gorm:"type:uuid"`
	OrderNumber int64
	Text        string
	CreatedAt   time.Time `gorm:"index:idx_notices_audience_created,priority:2;autoCreateTime:false"`
}

func (NoticeDTO) TableName() string {
	return "staff_notices"
}

type GormNoticeBoard struct {
	db *gorm.DB
}

func NewGormNoticeBoard(db *gorm.DB) *GormNoticeBoard {
	return &GormNoticeBoard{db: db}
}

func (b *GormNoticeBoard) Post(ctx context.Context, notice ports.Notice) error {
	dto := NoticeDTO{
		Key:         notice.Key,
		Audience:    notice.Audience,
		OrderID:     notice.OrderID.Bytes(),
		OrderNumber: notice.OrderNumber,
		Text:        notice.Text,
		CreatedAt:   notice.CreatedAt,
	}
	err := b.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&dto).Error
	return pgerr.Classify(err)
}

// Recent lists the newest notices for audience, newest first.
func (b *GormNoticeBoard) Recent(ctx context.Context, audience string, limit int) ([]ports.Notice, error) {
	var dtos []NoticeDTO
	query := b.db.WithContext(ctx).Where("audience = ?", audience).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&dtos).Error; err != nil {
		return nil, pgerr.Classify(err)
	}

	notices := make([]ports.Notice, 0, len(dtos))
	for _, dto := range dtos {
		orderID, err := kernel.UUIDFromBytes(dto.OrderID[:])
		if err != nil {
			return nil, err
		}
		notices = append(notices, ports.Notice{
			Key:         dto.Key,
			Audience:    dto.Audience,
			OrderID:     orderID,
			OrderNumber: dto.OrderNumber,
			Text:        dto.Text,
			CreatedAt:   dto.CreatedAt.UTC(),
		})
	}
	return notices, nil
}

var _ ports.NoticeBoard = (*GormNoticeBoard)(nil)

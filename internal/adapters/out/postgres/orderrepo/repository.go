package orderrepo

import (
	"context"
	"errors"

	"orderflow/internal/adapters/out/postgres/pgerr"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/errs"

	"gorm.io/gorm"
)

// NumberSequence backs NextNumber on PostgreSQL.
const NumberSequence = "order_number_seq"

// GormOrderRepository implements ports.OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Add saves a newly placed order.
func (r *GormOrderRepository) Add(ctx context.Context, aggregate *order.Order) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		if pgerr.IsUniqueViolation(err) {
			return errs.NewValueIsInvalidErrorWithCause("order", err)
		}
		return pgerr.Classify(err)
	}
	return nil
}

// NextNumber draws from a sequence on PostgreSQL. Other dialects serialize writers, so
// the next free number is read inside the caller's transaction.
func (r *GormOrderRepository) NextNumber(ctx context.Context) (int64, error) {
	var next int64
	db := r.db.WithContext(ctx)

	var err error
	if db.Dialector.Name() == "postgres" {
		err = db.Raw("SELECT nextval(?)", NumberSequence).Scan(&next).Error
	} else {
		err = db.Model(&OrderDTO{}).Select("COALESCE(MAX(number), 0) + 1").Scan(&next).Error
	}
	if err != nil {
		return 0, pgerr.Classify(err)
	}
	return next, nil
}

// ConditionalUpdate issues a single UPDATE whose WHERE clause is the predicate. Milestones
// and rider_id use COALESCE so a value that is already set is kept.
func (r *GormOrderRepository) ConditionalUpdate(
	ctx context.Context,
	id kernel.UUID,
	predicate order.Predicate,
	change order.Change,
) (bool, error) {
	if err := id.Validate(); err != nil {
		return false, err
	}
	if err := change.Validate(); err != nil {
		return false, err
	}

	updates := map[string]any{
		"status":     change.Status.String(),
		"updated_at": change.At,
		"version":    gorm.Expr("version + 1"),
	}
	if column, ok := order.MilestoneColumn(change.Status); ok {
		updates[column] = gorm.Expr("COALESCE("+column+", ?)", change.At)
	}
	if change.RiderID != nil {
		updates["rider_id"] = gorm.Expr("COALESCE(rider_id, ?)", change.RiderID.Bytes())
	}
	if change.CancelReason != "" {
		updates["cancel_reason"] = gorm.Expr("COALESCE(NULLIF(cancel_reason, ''), ?)", change.CancelReason)
	}

	query := r.db.WithContext(ctx).
		Model(&OrderDTO{}).
		Where("id = ?", id.Bytes()).
		Where("status = ?", predicate.Status.String())
	if predicate.RiderUnassigned {
		query = query.Where("rider_id IS NULL")
	}
	if predicate.RiderID != nil {
		query = query.Where("rider_id = ?", predicate.RiderID.Bytes())
	}

	result := query.Updates(updates)
	if result.Error != nil {
		return false, pgerr.Classify(result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Get retrieves an order by ID.
func (r *GormOrderRepository) Get(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto OrderDTO
	if err := r.db.WithContext(ctx).First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("order", id.String())
		}
		return nil, pgerr.Classify(err)
	}

	return toDomain(dto)
}

func (r *GormOrderRepository) Query(ctx context.Context, filter order.Filter) ([]*order.Order, error) {
	query := applySort(applyFilter(r.db.WithContext(ctx).Model(&OrderDTO{}), filter), filter.Sort)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var dtos []OrderDTO
	if err := query.Find(&dtos).Error; err != nil {
		return nil, pgerr.Classify(err)
	}

	orders := make([]*order.Order, 0, len(dtos))
	for _, dto := range dtos {
		o, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (r *GormOrderRepository) Count(ctx context.Context, filter order.Filter) (int, error) {
	var n int64
	if err := applyFilter(r.db.WithContext(ctx).Model(&OrderDTO{}), filter).Count(&n).Error; err != nil {
		return 0, pgerr.Classify(err)
	}
	return int(n), nil
}

func applyFilter(db *gorm.DB, f order.Filter) *gorm.DB {
	statuses := statusNames(f.Statuses)
	switch {
	case len(statuses) > 0 && f.TerminalSince != nil:
		db = db.Where("(status IN ? OR (status IN ? AND updated_at >= ?))",
			statuses, statusNames([]order.Status{order.Delivered, order.Cancelled}), *f.TerminalSince)
	case len(statuses) > 0:
		db = db.Where("status IN ?", statuses)
	}

	if f.ReadySince != nil {
		db = db.Where("ready_at >= ?", *f.ReadySince)
	}
	if f.UpdatedSince != nil {
		db = db.Where("updated_at >= ?", *f.UpdatedSince)
	}
	return db
}

func applySort(db *gorm.DB, sort order.SortOrder) *gorm.DB {
	switch sort {
	case order.SortByReadyDesc:
		return db.Order("ready_at DESC")
	case order.SortByUpdatedAsc:
		return db.Order("updated_at ASC")
	default:
		return db.Order("created_at ASC").Order("number ASC")
	}
}

func statusNames(statuses []order.Status) []string {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, s.String())
	}
	return names
}

var (
	_ ports.OrderRepository = (*GormOrderRepository)(nil)
	_ ports.OrderReader     = (*GormOrderRepository)(nil)
)

package ports

import (
	"context"

	"orderflow/internal/core/domain/model/history"
	"orderflow/internal/core/domain/model/kernel"
)

// HistoryRepository stores the append-only audit trail of status changes.
type HistoryRepository interface {
	Append(ctx context.Context, entry history.Entry) error
	ListByOrder(ctx context.Context, orderID kernel.UUID) ([]history.Entry, error)
}

package queries

import (
	"errors"

	"orderflow/internal/pkg/guard"
)

var ErrGetWaitEstimateQueryIsNotConstructed = errors.New(
	"GetWaitEstimateQuery must be created via NewGetWaitEstimateQuery constructor",
)

// GetWaitEstimateQuery asks how long a newly placed order would wait.
type GetWaitEstimateQuery struct {
	guard guard.ConstructorGuard
}

func NewGetWaitEstimateQuery() GetWaitEstimateQuery {
	return GetWaitEstimateQuery{guard: guard.NewConstructorGuard()}
}

func (q GetWaitEstimateQuery) Validate() error {
	return q.guard.Validate(ErrGetWaitEstimateQueryIsNotConstructed)
}

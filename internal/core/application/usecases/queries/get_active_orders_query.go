package queries

import (
	"errors"

	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/pkg/guard"
)

var ErrGetActiveOrdersQueryIsNotConstructed = errors.New(
	"GetActiveOrdersQuery must be created via NewGetActiveOrdersQuery constructor",
)

// GetActiveOrdersQuery reads the dashboard of the viewer's role.
type GetActiveOrdersQuery struct {
	viewer actor.Actor

	guard guard.ConstructorGuard
}

func NewGetActiveOrdersQuery(viewer actor.Actor) (GetActiveOrdersQuery, error) {
	if err := viewer.Validate(); err != nil {
		return GetActiveOrdersQuery{}, err
	}
	return GetActiveOrdersQuery{viewer: viewer, guard: guard.NewConstructorGuard()}, nil
}

func (q GetActiveOrdersQuery) Validate() error {
	return q.guard.Validate(ErrGetActiveOrdersQueryIsNotConstructed)
}

func (q GetActiveOrdersQuery) Viewer() actor.Actor {
	return q.viewer
}

package queries_test

import (
	"testing"

	"orderflow/internal/core/application/usecases/queries"
	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/core/domain/model/history"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGetOrderHistoryQueryHandler_Handle(t *testing.T) {
	t.Run("should list entries for reception", func(t *testing.T) {
		ctx := t.Context()
		o := buildOrder(t, orderSpec{status: order.New})
		entry, err := history.NewPlacementEntry(o.ID(), now)
		require.NoError(t, err)

		reader := new(MockOrderReader)
		reader.On("Get", ctx, o.ID()).Return(o, nil).Once()
		repo := new(MockHistoryRepository)
		repo.On("ListByOrder", ctx, o.ID()).Return([]history.Entry{entry}, nil).Once()

		query, _ := queries.NewGetOrderHistoryQuery(o.ID(), newActor(t, actor.RoleReception))
		got, err := queries.NewGetOrderHistoryQueryHandler(reader, repo).Handle(ctx, query)

		require.NoError(t, err)
		assert.Equal(t, []history.Entry{entry}, got)
	})

	t.Run("should forbid riders", func(t *testing.T) {
		reader := new(MockOrderReader)
		repo := new(MockHistoryRepository)
		query, _ := queries.NewGetOrderHistoryQuery(buildOrder(t, orderSpec{status: order.New}).ID(), newActor(t, actor.RoleRider))

		_, err := queries.NewGetOrderHistoryQueryHandler(reader, repo).Handle(t.Context(), query)

		require.ErrorIs(t, err, services.ErrForbidden)
		reader.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})
}

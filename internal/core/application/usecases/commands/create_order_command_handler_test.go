package commands_test

import (
	"errors"
	"testing"

	"orderflow/internal/core/application/usecases/commands"
	"orderflow/internal/core/domain/model/history"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCreateOrderCommand(t *testing.T) commands.CreateOrderCommand {
	t.Helper()

	item, err := order.NewItem("Calzone", 1, 1300, []string{"no olives"})
	require.NoError(t, err)
	payment, err := order.NewPayment(order.PaymentOnline, order.PaymentPaid)
	require.NoError(t, err)

	cmd, err := commands.NewCreateOrderCommand(kernel.NewUUID(), "+15550100", payment, []order.Item{item})
	require.NoError(t, err)
	return cmd
}

func TestNewCreateOrderCommand(t *testing.T) {
	t.Run("should join validation errors", func(t *testing.T) {
		_, err := commands.NewCreateOrderCommand(kernel.UUID{}, " ", order.Payment{}, nil)

		require.ErrorIs(t, err, kernel.ErrUUIDIsNotConstructed)
		require.ErrorIs(t, err, errs.ErrValueIsRequired)
		require.ErrorIs(t, err, commands.ErrItemsAreRequired)
	})

	t.Run("should copy items", func(t *testing.T) {
		cmd := newCreateOrderCommand(t)
		items := cmd.Items()
		items[0] = order.Item{}

		assert.Equal(t, "Calzone", cmd.Items()[0].Name())
	})
}

func TestCreateOrderCommandHandler_Handle(t *testing.T) {
	t.Run("should store order with next number and placement entry", func(t *testing.T) {
		ctx := t.Context()
		f := newFixture()
		cmd := newCreateOrderCommand(t)

		mock.InOrder(
			f.uow.On("Begin", ctx).Return(nil).Once(),
			f.orders.On("NextNumber", ctx).Return(int64(42), nil).Once(),
			f.orders.On("Add", ctx, mock.MatchedBy(func(o *order.Order) bool {
				return o.ID() == cmd.OrderID() && o.Number() == 42 && o.Status() == order.New
			})).Return(nil).Once(),
			f.history.On("Append", ctx, mock.MatchedBy(func(e history.Entry) bool {
				return e.OrderID == cmd.OrderID() && e.To == order.New && e.ActorRole == history.PlacementRole
			})).Return(nil).Once(),
			f.uow.On("Commit", ctx).Return(nil).Once(),
			f.uow.On("Rollback", ctx).Return(nil).Once(),
		)

		h := commands.NewCreateOrderCommandHandler(f.factory, f.clock)
		placed, err := h.Handle(ctx, cmd)

		require.NoError(t, err)
		assert.Equal(t, now, placed.CreatedAt())
		assert.Equal(t, int64(1300), placed.Total())
		f.assertExpectations(t)
	})

	t.Run("should return validation error", func(t *testing.T) {
		factory := new(MockOrderUoWFactory)
		h := commands.NewCreateOrderCommandHandler(factory, nil)

		_, err := h.Handle(t.Context(), commands.CreateOrderCommand{})

		require.ErrorIs(t, err, commands.ErrCreateOrderCommandIsNotConstructed)
	})

	t.Run("should return begin error", func(t *testing.T) {
		ctx := t.Context()
		uow := new(MockOrderUoW)
		factory := new(MockOrderUoWFactory)
		mock.InOrder(
			factory.On("Create").Return(uow).Once(),
			uow.On("Begin", ctx).Return(errors.New("begin error")).Once(),
		)

		h := commands.NewCreateOrderCommandHandler(factory, nil)
		_, err := h.Handle(ctx, newCreateOrderCommand(t))

		require.EqualError(t, err, "begin error")
		uow.AssertExpectations(t)
	})

	t.Run("should roll back when add fails", func(t *testing.T) {
		ctx := t.Context()
		f := newFixture()

		mock.InOrder(
			f.uow.On("Begin", ctx).Return(nil).Once(),
			f.orders.On("NextNumber", ctx).Return(int64(1), nil).Once(),
			f.orders.On("Add", ctx, mock.AnythingOfType("*order.Order")).Return(errors.New("add error")).Once(),
			f.uow.On("Rollback", ctx).Return(nil).Once(),
		)

		h := commands.NewCreateOrderCommandHandler(f.factory, f.clock)
		_, err := h.Handle(ctx, newCreateOrderCommand(t))

		require.EqualError(t, err, "add error")
		f.uow.AssertNotCalled(t, "Commit", mock.Anything)
		f.assertExpectations(t)
	})
}

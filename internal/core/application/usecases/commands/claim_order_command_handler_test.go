package commands_test

import (
	"errors"
	"testing"

	"orderflow/internal/core/application/usecases/commands"
	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/core/domain/model/history"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var claimable = order.Predicate{Status: order.ReadyForPickup, RiderUnassigned: true}

func TestClaimOrderCommandHandler_Handle(t *testing.T) {
	t.Run("should claim with one conditional write", func(t *testing.T) {
		ctx := t.Context()
		f := newFixture()
		id := kernel.NewUUID()
		rider := newActor(t, actor.RoleRider)
		riderID := rider.ID()

		mock.InOrder(
			f.uow.On("Begin", ctx).Return(nil).Once(),
			f.orders.On("ConditionalUpdate", ctx, id, claimable, order.ClaimBy(riderID, now)).Return(true, nil).Once(),
			f.history.On("Append", ctx, mock.MatchedBy(func(e history.Entry) bool {
				return e.From == order.ReadyForPickup && e.To == order.OutForDelivery && e.Reason == ""
			})).Return(nil).Once(),
			f.orders.On("Get", ctx, id).Return(orderIn(t, id, order.OutForDelivery, &riderID), nil).Once(),
			f.uow.On("Commit", ctx).Return(nil).Once(),
			f.uow.On("Rollback", ctx).Return(nil).Once(),
		)

		cmd, err := commands.NewClaimOrderCommand(id, rider)
		require.NoError(t, err)
		h := commands.NewClaimOrderCommandHandler(f.factory, f.clock)

		result, err := h.Handle(ctx, cmd)

		require.NoError(t, err)
		assert.Equal(t, commands.ClaimOutcomeClaimed, result.Outcome)
		assert.True(t, result.Changed)
		assert.True(t, result.Order.IsHeldBy(riderID))
		require.NoError(t, result.Err(id))
		f.assertExpectations(t)
	})

	t.Run("should classify a miss without writing", func(t *testing.T) {
		other := kernel.NewUUID()
		tests := []struct {
			name    string
			latest  func(t *testing.T, id, riderID kernel.UUID) (*order.Order, error)
			outcome commands.ClaimOutcome
			changed bool
			err     error
		}{
			{
				name: "already claimed by another rider",
				latest: func(t *testing.T, id, _ kernel.UUID) (*order.Order, error) {
					return orderIn(t, id, order.OutForDelivery, &other), nil
				},
				outcome: commands.ClaimOutcomeAlreadyClaimed,
				err:     commands.ErrOrderAlreadyClaimed,
			},
			{
				name: "not ready yet",
				latest: func(t *testing.T, id, _ kernel.UUID) (*order.Order, error) {
					return orderIn(t, id, order.Preparing, nil), nil
				},
				outcome: commands.ClaimOutcomeNotClaimable,
				err:     commands.ErrOrderNotClaimable,
			},
			{
				name: "cancelled",
				latest: func(t *testing.T, id, _ kernel.UUID) (*order.Order, error) {
					return orderIn(t, id, order.Cancelled, nil), nil
				},
				outcome: commands.ClaimOutcomeNotClaimable,
				err:     commands.ErrOrderNotClaimable,
			},
			{
				name: "missing",
				latest: func(_ *testing.T, id, _ kernel.UUID) (*order.Order, error) {
					return nil, errs.NewObjectNotFoundError("orderID", id)
				},
				outcome: commands.ClaimOutcomeNotFound,
				err:     errs.ErrObjectNotFound,
			},
			{
				name: "retry by the holder",
				latest: func(t *testing.T, id, riderID kernel.UUID) (*order.Order, error) {
					return orderIn(t, id, order.OutForDelivery, &riderID), nil
				},
				outcome: commands.ClaimOutcomeClaimed,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ctx := t.Context()
				f := newFixture()
				id := kernel.NewUUID()
				rider := newActor(t, actor.RoleRider)
				latest, getErr := tt.latest(t, id, rider.ID())

				mock.InOrder(
					f.uow.On("Begin", ctx).Return(nil).Once(),
					f.orders.On("ConditionalUpdate", ctx, id, claimable, mock.Anything).Return(false, nil).Once(),
					f.orders.On("Get", ctx, id).Return(latest, getErr).Once(),
					f.uow.On("Rollback", ctx).Return(nil).Once(),
				)

				cmd, _ := commands.NewClaimOrderCommand(id, rider)
				h := commands.NewClaimOrderCommandHandler(f.factory, f.clock)

				result, err := h.Handle(ctx, cmd)

				require.NoError(t, err)
				assert.Equal(t, tt.outcome, result.Outcome)
				assert.Equal(t, tt.changed, result.Changed)
				if tt.err != nil {
					require.ErrorIs(t, result.Err(id), tt.err)
				} else {
					require.NoError(t, result.Err(id))
				}
				f.history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
				f.uow.AssertNotCalled(t, "Commit", mock.Anything)
				f.assertExpectations(t)
			})
		}
	})

	t.Run("should reject non-rider actors", func(t *testing.T) {
		factory := new(MockOrderUoWFactory)
		cmd, _ := commands.NewClaimOrderCommand(kernel.NewUUID(), newActor(t, actor.RoleKitchen))
		h := commands.NewClaimOrderCommandHandler(factory, nil)

		_, err := h.Handle(t.Context(), cmd)

		require.ErrorIs(t, err, services.ErrForbidden)
		factory.AssertNotCalled(t, "Create")
	})

	t.Run("should return store errors", func(t *testing.T) {
		ctx := t.Context()
		f := newFixture()
		id := kernel.NewUUID()
		storeErr := errors.New("connection reset")

		f.uow.On("Begin", ctx).Return(nil).Once()
		f.orders.On("ConditionalUpdate", ctx, id, claimable, mock.Anything).Return(false, storeErr).Once()
		f.uow.On("Rollback", ctx).Return(nil).Once()

		cmd, _ := commands.NewClaimOrderCommand(id, newActor(t, actor.RoleRider))
		h := commands.NewClaimOrderCommandHandler(f.factory, f.clock)

		_, err := h.Handle(ctx, cmd)

		require.ErrorIs(t, err, storeErr)
		f.assertExpectations(t)
	})
}

func TestAssignRiderCommandHandler_Handle(t *testing.T) {
	t.Run("should assign through the claim predicate", func(t *testing.T) {
		ctx := t.Context()
		f := newFixture()
		id := kernel.NewUUID()
		riderID := kernel.NewUUID()
		admin := newActor(t, actor.RoleAdmin)

		mock.InOrder(
			f.uow.On("Begin", ctx).Return(nil).Once(),
			f.orders.On("ConditionalUpdate", ctx, id, claimable, order.ClaimBy(riderID, now)).Return(true, nil).Once(),
			f.history.On("Append", ctx, mock.MatchedBy(func(e history.Entry) bool {
				return e.ActorRole == "admin" && e.Reason == "assigned rider "+riderID.String()
			})).Return(nil).Once(),
			f.orders.On("Get", ctx, id).Return(orderIn(t, id, order.OutForDelivery, &riderID), nil).Once(),
			f.uow.On("Commit", ctx).Return(nil).Once(),
			f.uow.On("Rollback", ctx).Return(nil).Once(),
		)

		cmd, err := commands.NewAssignRiderCommand(id, riderID, admin)
		require.NoError(t, err)
		h := commands.NewAssignRiderCommandHandler(f.factory, f.clock)

		result, err := h.Handle(ctx, cmd)

		require.NoError(t, err)
		assert.Equal(t, commands.ClaimOutcomeClaimed, result.Outcome)
		assert.True(t, result.Order.IsHeldBy(riderID))
		f.assertExpectations(t)
	})

	t.Run("should be admin only", func(t *testing.T) {
		factory := new(MockOrderUoWFactory)
		cmd, _ := commands.NewAssignRiderCommand(kernel.NewUUID(), kernel.NewUUID(), newActor(t, actor.RoleReception))
		h := commands.NewAssignRiderCommandHandler(factory, nil)

		_, err := h.Handle(t.Context(), cmd)

		require.ErrorIs(t, err, services.ErrForbidden)
		factory.AssertNotCalled(t, "Create")
	})

	t.Run("should require a rider id", func(t *testing.T) {
		_, err := commands.NewAssignRiderCommand(kernel.NewUUID(), kernel.UUID{}, newActor(t, actor.RoleAdmin))

		require.ErrorIs(t, err, kernel.ErrUUIDIsNotConstructed)
	})
}

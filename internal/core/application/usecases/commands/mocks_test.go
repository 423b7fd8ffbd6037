package commands_test

import (
	"context"
	"testing"
	"time"

	"orderflow/internal/core/application/usecases/commands"
	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/core/domain/model/history"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/ports"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 4, 19, 0, 0, 0, time.UTC)

type MockOrderRepository struct{ mock.Mock }

func (m *MockOrderRepository) Get(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) Query(ctx context.Context, filter order.Filter) ([]*order.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderRepository) Count(ctx context.Context, filter order.Filter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *MockOrderRepository) Add(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) NextNumber(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) ConditionalUpdate(
	ctx context.Context,
	id kernel.UUID,
	predicate order.Predicate,
	change order.Change,
) (bool, error) {
	args := m.Called(ctx, id, predicate, change)
	return args.Bool(0), args.Error(1)
}

type MockHistoryRepository struct{ mock.Mock }

func (m *MockHistoryRepository) Append(ctx context.Context, entry history.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockHistoryRepository) ListByOrder(ctx context.Context, orderID kernel.UUID) ([]history.Entry, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]history.Entry), args.Error(1)
}

type MockOrderUoW struct{ mock.Mock }

func (m *MockOrderUoW) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockOrderUoW) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockOrderUoW) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockOrderUoW) OrderRepository() ports.OrderRepository {
	args := m.Called()
	return args.Get(0).(ports.OrderRepository)
}

func (m *MockOrderUoW) HistoryRepository() ports.HistoryRepository {
	args := m.Called()
	return args.Get(0).(ports.HistoryRepository)
}

type MockOrderUoWFactory struct{ mock.Mock }

func (m *MockOrderUoWFactory) Create() commands.OrderUoW {
	args := m.Called()
	return args.Get(0).(commands.OrderUoW)
}

type fixture struct {
	orders  *MockOrderRepository
	history *MockHistoryRepository
	uow     *MockOrderUoW
	factory *MockOrderUoWFactory
	clock   *kernel.FixedClock
}

func newFixture() fixture {
	f := fixture{
		orders:  new(MockOrderRepository),
		history: new(MockHistoryRepository),
		uow:     new(MockOrderUoW),
		factory: new(MockOrderUoWFactory),
		clock:   &kernel.FixedClock{At: now},
	}
	f.factory.On("Create").Return(f.uow).Once()
	f.uow.On("OrderRepository").Return(f.orders).Maybe()
	f.uow.On("HistoryRepository").Return(f.history).Maybe()
	return f
}

func (f fixture) assertExpectations(t *testing.T) {
	t.Helper()
	f.orders.AssertExpectations(t)
	f.history.AssertExpectations(t)
	f.uow.AssertExpectations(t)
	f.factory.AssertExpectations(t)
}

func newActor(t *testing.T, role actor.Role) actor.Actor {
	t.Helper()
	a, err := actor.New(role, kernel.NewUUID())
	require.NoError(t, err)
	return a
}

// orderIn rebuilds an order as it would be stored in status, held by riderID when given.
func orderIn(t *testing.T, id kernel.UUID, status order.Status, riderID *kernel.UUID) *order.Order {
	t.Helper()

	item, err := order.NewItem("Margherita", 1, 1150, nil)
	require.NoError(t, err)
	payment, err := order.NewPayment(order.PaymentCash, order.PaymentPending)
	require.NoError(t, err)

	o, err := order.RestoreOrder(order.Snapshot{
		ID:              id,
		Number:          7,
		Status:          status,
		CreatedAt:       now.Add(-30 * time.Minute),
		RiderID:         riderID,
		Payment:         payment,
		CustomerContact: "+15550100",
		Items:           []order.Item{item},
		Version:         int64(status),
	})
	require.NoError(t, err)
	return o
}

package queries_test

import (
	"context"
	"testing"
	"time"

	"orderflow/internal/core/domain/model/actor"
	"orderflow/internal/core/domain/model/history"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 4, 20, 0, 0, 0, time.UTC)

type MockOrderReader struct{ mock.Mock }

func (m *MockOrderReader) Get(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderReader) Query(ctx context.Context, filter order.Filter) ([]*order.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderReader) Count(ctx context.Context, filter order.Filter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
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

func newActor(t *testing.T, role actor.Role) actor.Actor {
	t.Helper()
	a, err := actor.New(role, kernel.NewUUID())
	require.NoError(t, err)
	return a
}

type orderSpec struct {
	status   order.Status
	riderID  *kernel.UUID
	created  time.Time
	prepTime time.Duration
}

func buildOrder(t *testing.T, s orderSpec) *order.Order {
	t.Helper()

	item, err := order.NewItem("Quattro Formaggi", 2, 1250, []string{"thin crust"})
	require.NoError(t, err)
	payment, err := order.NewPayment(order.PaymentCard, order.PaymentPaid)
	require.NoError(t, err)

	created := s.created
	if created.IsZero() {
		created = now.Add(-time.Hour)
	}
	var milestones order.Milestones
	if s.prepTime > 0 {
		readyAt := created.Add(s.prepTime)
		milestones.ReadyAt = &readyAt
	}

	o, err := order.RestoreOrder(order.Snapshot{
		ID:              kernel.NewUUID(),
		Number:          12,
		Status:          s.status,
		CreatedAt:       created,
		Milestones:      milestones,
		RiderID:         s.riderID,
		Payment:         payment,
		CustomerContact: "+15550100",
		Items:           []order.Item{item},
		Version:         3,
	})
	require.NoError(t, err)
	return o
}

package queries_test

import (
	"errors"
	"testing"
	"time"

	"orderflow/internal/core/application/usecases/queries"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newEstimateHandler(t *testing.T, reader *MockOrderReader, clock kernel.Clock) queries.GetWaitEstimateQueryHandler {
	t.Helper()
	estimator, err := services.NewWaitTimeEstimator(services.DefaultEstimatorConfig())
	require.NoError(t, err)
	return queries.NewGetWaitEstimateQueryHandler(reader, estimator, clock, time.Minute)
}

func samplesOf(t *testing.T, prep ...int) []*order.Order {
	t.Helper()
	orders := make([]*order.Order, 0, len(prep))
	for i, m := range prep {
		orders = append(orders, buildOrder(t, orderSpec{
			status:   order.Delivered,
			riderID:  ptr(kernel.NewUUID()),
			created:  now.Add(-time.Duration(i+1) * time.Hour / 2),
			prepTime: time.Duration(m) * time.Minute,
		}))
	}
	return orders
}

func ptr[T any](v T) *T {
	return &v
}

func TestGetWaitEstimateQueryHandler_Handle(t *testing.T) {
	t.Run("should discard outliers and round up", func(t *testing.T) {
		ctx := t.Context()
		reader := new(MockOrderReader)
		reader.On("Count", ctx, mock.AnythingOfType("order.Filter")).Return(0, nil).Once()
		reader.On("Query", ctx, mock.AnythingOfType("order.Filter")).Return(samplesOf(t, 8, 9, 11, 40, 10), nil).Once()

		h := newEstimateHandler(t, reader, &kernel.FixedClock{At: now})
		estimate, err := h.Handle(ctx, queries.NewGetWaitEstimateQuery())

		require.NoError(t, err)
		assert.Equal(t, 570*time.Second, estimate.AveragePrep)
		assert.Equal(t, 4, estimate.SampleSize)
		assert.Equal(t, services.ConfidenceHigh, estimate.Confidence)
		assert.Equal(t, 10, estimate.Minutes)
	})

	t.Run("should serve the cache while fresh", func(t *testing.T) {
		ctx := t.Context()
		clock := &kernel.FixedClock{At: now}
		reader := new(MockOrderReader)
		reader.On("Count", ctx, mock.Anything).Return(2, nil).Once()
		reader.On("Query", ctx, mock.Anything).Return(samplesOf(t, 10, 10, 10), nil).Once()

		h := newEstimateHandler(t, reader, clock)
		first, err := h.Refresh(ctx)
		require.NoError(t, err)

		clock.Advance(30 * time.Second)
		second, err := h.Handle(ctx, queries.NewGetWaitEstimateQuery())

		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 20, second.Minutes)
		reader.AssertExpectations(t)
	})

	t.Run("should fall back to the last estimate when the store fails", func(t *testing.T) {
		ctx := t.Context()
		clock := &kernel.FixedClock{At: now}
		reader := new(MockOrderReader)
		reader.On("Count", ctx, mock.Anything).Return(1, nil).Once()
		reader.On("Query", ctx, mock.Anything).Return(samplesOf(t, 12, 12, 12), nil).Once()
		reader.On("Count", ctx, mock.Anything).Return(0, errors.New("store down")).Once()

		h := newEstimateHandler(t, reader, clock)
		first, err := h.Refresh(ctx)
		require.NoError(t, err)

		clock.Advance(5 * time.Minute)
		got, err := h.Handle(ctx, queries.NewGetWaitEstimateQuery())

		require.NoError(t, err)
		assert.Equal(t, first, got)
	})

	t.Run("should serve the baseline without history", func(t *testing.T) {
		ctx := t.Context()
		reader := new(MockOrderReader)
		reader.On("Count", ctx, mock.Anything).Return(0, errors.New("store down")).Once()

		h := newEstimateHandler(t, reader, &kernel.FixedClock{At: now})
		got, err := h.Handle(ctx, queries.NewGetWaitEstimateQuery())

		require.NoError(t, err)
		assert.Equal(t, services.ConfidenceLow, got.Confidence)
		assert.Equal(t, 15, got.Minutes)
	})
}

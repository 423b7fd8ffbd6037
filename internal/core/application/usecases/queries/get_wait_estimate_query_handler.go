package queries

import (
	"context"
	"sync/atomic"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
)

// GetWaitEstimateQueryHandler serves the wait estimate from a cache that a background job
// keeps warm through Refresh. A stale or empty cache is recomputed on demand; when the store
// cannot be read the last estimate is served, or the baseline if there never was one.
//
// Example:
//
//	handler := NewGetWaitEstimateQueryHandler(reader, estimator, clock, time.Minute)
//	_, _ = handler.Refresh(ctx) // from the refresh job
//
//	estimate, _ := handler.Handle(ctx, NewGetWaitEstimateQuery())
//	fmt.Printf("about %d minutes (%s confidence)\n", estimate.Minutes, estimate.Confidence)
type GetWaitEstimateQueryHandler struct {
	reader    ports.OrderReader
	estimator services.WaitTimeEstimator
	clock     kernel.Clock
	maxAge    time.Duration
	cached    *atomic.Pointer[services.WaitEstimate]
}

func NewGetWaitEstimateQueryHandler(
	reader ports.OrderReader,
	estimator services.WaitTimeEstimator,
	clock kernel.Clock,
	maxAge time.Duration,
) GetWaitEstimateQueryHandler {
	if clock == nil {
		clock = kernel.SystemClock{}
	}
	return GetWaitEstimateQueryHandler{
		reader:    reader,
		estimator: estimator,
		clock:     clock,
		maxAge:    maxAge,
		cached:    new(atomic.Pointer[services.WaitEstimate]),
	}
}

// Handle never fails on store errors; it only rejects an unconstructed query.
func (h GetWaitEstimateQueryHandler) Handle(ctx context.Context, query GetWaitEstimateQuery) (services.WaitEstimate, error) {
	if err := query.Validate(); err != nil {
		return services.WaitEstimate{}, err
	}

	now := h.clock.Now()
	last := h.cached.Load()
	if last != nil && now.Sub(last.ComputedAt) <= h.maxAge {
		return *last, nil
	}

	estimate, err := h.Refresh(ctx)
	if err == nil {
		return estimate, nil
	}
	if last != nil {
		return *last, nil
	}
	return h.estimator.Baseline(now), nil
}

// Refresh recomputes the estimate from the store and caches it.
func (h GetWaitEstimateQueryHandler) Refresh(ctx context.Context) (services.WaitEstimate, error) {
	now := h.clock.Now()

	ahead, err := h.reader.Count(ctx, h.estimator.QueueFilter())
	if err != nil {
		return services.WaitEstimate{}, err
	}

	samples, err := h.reader.Query(ctx, h.estimator.SampleFilter(now))
	if err != nil {
		return services.WaitEstimate{}, err
	}

	estimate := h.estimator.Estimate(now, ahead, samples)
	h.cached.Store(&estimate)
	return estimate, nil
}

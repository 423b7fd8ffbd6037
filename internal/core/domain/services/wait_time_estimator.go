package services

import (
	"errors"
	"math"
	"time"

	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"
)

// Confidence tells the kiosk whether the estimate came from history or from the baseline.
type Confidence string

const (
	ConfidenceLow  Confidence = "low"
	ConfidenceHigh Confidence = "high"
)

// EstimatorConfig tunes the wait-time estimate.
type EstimatorConfig struct {
	// Window bounds how far back completed orders are sampled.
	Window time.Duration

	// SampleLimit caps the number of most recent samples.
	SampleLimit int

	// MinSamples is the number of valid samples needed before history is trusted.
	MinSamples int

	// Ceiling discards outliers such as orders forgotten on the counter.
	Ceiling time.Duration

	// Baseline is used while history is too thin.
	Baseline time.Duration

	// Parallelism is how many orders the kitchen works on at once.
	Parallelism int
}

// DefaultEstimatorConfig returns the restaurant defaults.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		Window:      3 * time.Hour,
		SampleLimit: 20,
		MinSamples:  3,
		Ceiling:     30 * time.Minute,
		Baseline:    15 * time.Minute,
		Parallelism: 2,
	}
}

func (c EstimatorConfig) validate() error {
	var errWindow, errLimit, errMin, errCeiling, errBaseline, errPar error
	if c.Window <= 0 {
		errWindow = errs.NewValueIsInvalidError("estimate window")
	}
	if c.SampleLimit < 1 {
		errLimit = errs.NewValueIsOutOfRangeError("estimate sample limit", c.SampleLimit, 1, math.MaxInt)
	}
	if c.MinSamples < 1 || c.MinSamples > c.SampleLimit {
		errMin = errs.NewValueIsOutOfRangeError("estimate min samples", c.MinSamples, 1, c.SampleLimit)
	}
	if c.Ceiling <= 0 {
		errCeiling = errs.NewValueIsInvalidError("estimate ceiling")
	}
	if c.Baseline <= 0 {
		errBaseline = errs.NewValueIsInvalidError("estimate baseline")
	}
	if c.Parallelism < 1 {
		errPar = errs.NewValueIsOutOfRangeError("estimate parallelism", c.Parallelism, 1, math.MaxInt)
	}
	return errors.Join(errWindow, errLimit, errMin, errCeiling, errBaseline, errPar)
}

// WaitEstimate is advisory and never blocks an order operation.
type WaitEstimate struct {
	Minutes     int
	OrdersAhead int
	AveragePrep time.Duration
	SampleSize  int
	Confidence  Confidence
	ComputedAt  time.Time
}

// WaitTimeEstimator turns recent preparation durations and the current queue into an estimate.
//
// Example:
//
//	estimator, _ := services.NewWaitTimeEstimator(services.DefaultEstimatorConfig())
//	samples, _ := repo.Query(ctx, estimator.SampleFilter(now))
//	queued, _ := repo.Count(ctx, estimator.QueueFilter())
//	estimate := estimator.Estimate(now, queued, samples)
type WaitTimeEstimator struct {
	cfg EstimatorConfig
}

func NewWaitTimeEstimator(cfg EstimatorConfig) (WaitTimeEstimator, error) {
	if err := cfg.validate(); err != nil {
		return WaitTimeEstimator{}, err
	}
	return WaitTimeEstimator{cfg: cfg}, nil
}

// SampleFilter selects the most recent orders that reached ready_for_pickup inside the window.
func (e WaitTimeEstimator) SampleFilter(now time.Time) order.Filter {
	since := now.Add(-e.cfg.Window)
	return order.Filter{
		ReadySince: &since,
		Sort:       order.SortByReadyDesc,
		Limit:      e.cfg.SampleLimit,
	}
}

// QueueFilter selects the orders ahead of a new one.
func (e WaitTimeEstimator) QueueFilter() order.Filter {
	return order.Filter{Statuses: []order.Status{order.New, order.Preparing}}
}

// Estimate computes the wait from sampled orders, using ready_at minus created_at as the preparation time.
func (e WaitTimeEstimator) Estimate(now time.Time, ordersAhead int, samples []*order.Order) WaitEstimate {
	durations := make([]time.Duration, 0, len(samples))
	for _, o := range samples {
		readyAt := o.Milestones().ReadyAt
		if readyAt == nil {
			continue
		}
		durations = append(durations, readyAt.Sub(o.CreatedAt()))
	}
	return e.EstimateFromDurations(now, ordersAhead, durations)
}

// EstimateFromDurations computes the wait from raw preparation durations.
// Durations that are not positive or exceed the ceiling are discarded.
func (e WaitTimeEstimator) EstimateFromDurations(now time.Time, ordersAhead int, durations []time.Duration) WaitEstimate {
	if ordersAhead < 0 {
		ordersAhead = 0
	}
	if len(durations) > e.cfg.SampleLimit {
		durations = durations[:e.cfg.SampleLimit]
	}

	var (
		sum   time.Duration
		valid int
	)
	for _, d := range durations {
		if d <= 0 || d > e.cfg.Ceiling {
			continue
		}
		sum += d
		valid++
	}

	average := e.cfg.Baseline
	confidence := ConfidenceLow
	if valid >= e.cfg.MinSamples {
		average = sum / time.Duration(valid)
		confidence = ConfidenceHigh
	}

	total := average + time.Duration(ordersAhead)*average/time.Duration(e.cfg.Parallelism)

	return WaitEstimate{
		Minutes:     int(math.Ceil(total.Minutes())),
		OrdersAhead: ordersAhead,
		AveragePrep: average,
		SampleSize:  valid,
		Confidence:  confidence,
		ComputedAt:  now,
	}
}

// Baseline returns the estimate used when history cannot be read at all.
func (e WaitTimeEstimator) Baseline(now time.Time) WaitEstimate {
	return e.EstimateFromDurations(now, 0, nil)
}

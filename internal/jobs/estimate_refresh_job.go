package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"orderflow/internal/core/application/usecases/queries"
	"orderflow/internal/core/domain/services"

	"github.com/robfig/cron/v3"
)

// EstimateRefresher recomputes and caches the wait-time estimate.
type EstimateRefresher interface {
	Refresh(ctx context.Context) (services.WaitEstimate, error)
}

// EstimateRefreshJob keeps the cached wait estimate fresh so kiosk reads never hit the store.
type EstimateRefreshJob struct {
	refresher EstimateRefresher
	interval  time.Duration
	timeout   time.Duration
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewEstimateRefreshJob refreshes the estimate every interval. Each run is bounded by timeout.
func NewEstimateRefreshJob(
	refresher EstimateRefresher,
	interval time.Duration,
	timeout time.Duration,
	logger *slog.Logger,
) *EstimateRefreshJob {
	if interval < time.Second {
		interval = time.Second
	}
	return &EstimateRefreshJob{
		refresher: refresher,
		interval:  interval,
		timeout:   timeout,
		cron:      cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:    logger.With("component", "estimate_refresh_job"),
	}
}

func (j *EstimateRefreshJob) Start() error {
	_, err := j.cron.AddFunc(fmt.Sprintf("@every %s", j.interval), func() {
		j.Run(context.Background())
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Estimate refresh job started", "interval", j.interval.String())
	return nil
}

// Run refreshes once. A failed refresh keeps serving the previous estimate.
func (j *EstimateRefreshJob) Run(ctx context.Context) {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	estimate, err := j.refresher.Refresh(ctx)
	if err != nil {
		j.logger.WarnContext(ctx, "Estimate refresh failed", "error", err)
		return
	}
	j.logger.DebugContext(ctx, "Estimate refreshed",
		"minutes", estimate.Minutes, "orders_ahead", estimate.OrdersAhead, "confidence", estimate.Confidence)
}

func (j *EstimateRefreshJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.InfoContext(context.Background(), "Estimate refresh job stopped")
}

var _ EstimateRefresher = queries.GetWaitEstimateQueryHandler{}

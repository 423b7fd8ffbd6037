// Package jobs provides scheduled background tasks for the order lifecycle service.
//
// Jobs are cron-based (github.com/robfig/cron/v3) and are started and stopped together
// through JobManager.
//
// # Available Jobs
//
//  1. EstimateRefreshJob - recomputes the cached wait-time estimate every ESTIMATE_REFRESH_INTERVAL
//  2. polling.Poller - the polling event bus, registered here when REALTIME_MODE=poll
//
// # Usage
//
//	jobManager := jobs.NewJobManager(logger)
//	jobManager.Add("estimate refresh", jobs.NewEstimateRefreshJob(estimateHandler, time.Minute, 5*time.Second, logger))
//	jobManager.Add("order poller", poller)
//
//	if err := jobManager.StartAll(); err != nil {
//		log.Fatal("Failed to start jobs:", err)
//	}
//	defer jobManager.StopAll()
//
// # Error Handling
//
//   - A failed refresh is logged and the previous estimate keeps being served
//   - Overlapping runs are skipped rather than queued
//   - Failed job starts will stop any already running jobs
package jobs

package emailsync

import (
	"context"
	"time"

	"tracker_server/core/domain"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/metrics"

	"github.com/go-pkgz/pool"
)

// ShouldSync applies the frequency policy. An integration that never synced
// is always due, manual ones included, so a fresh connection gets its first
// import. After that, manual integrations are never picked automatically.
func ShouldSync(integration *domain.Integration, now time.Time) bool {
	if integration == nil || !integration.IsActive {
		return false
	}
	if integration.LastSync == nil {
		return true
	}
	freq := domain.ParseSyncFrequency(string(integration.SyncFrequency))
	if freq == domain.SyncFrequencyManual {
		return false
	}
	return now.Sub(*integration.LastSync) >= freq.Interval()
}

// =============================================================================
// Batch driver
// =============================================================================

type batchJob struct {
	index       int
	integration *domain.Integration
}

// batchWorker implements pool.Worker for one integration sync.
type batchWorker struct {
	orchestrator *Orchestrator
	results      []domain.SyncResult
}

// Do implements pool.Worker interface.
func (w *batchWorker) Do(ctx context.Context, job batchJob) error {
	w.results[job.index] = w.orchestrator.SyncIntegration(ctx, job.integration.UserID, job.integration.ID)
	return nil
}

// SyncAll syncs every due integration. Integrations run concurrently up to the
// configured limit; messages inside one integration stay sequential.
func (o *Orchestrator) SyncAll(ctx context.Context) domain.BatchResult {
	metrics.SchedulerTicks.Inc()

	active, err := o.integrations.ListActive(ctx)
	if err != nil {
		logger.WithError(err).Error("[Orchestrator.SyncAll] list active integrations")
		return domain.BatchResult{Processed: []domain.SyncResult{}}
	}

	now := o.now()
	var due []*domain.Integration
	for _, integration := range active {
		if ShouldSync(integration, now) {
			due = append(due, integration)
		}
	}
	metrics.SchedulerEligible.Observe(float64(len(due)))
	if len(due) == 0 {
		return domain.BatchResult{Processed: []domain.SyncResult{}}
	}

	worker := &batchWorker{orchestrator: o, results: make([]domain.SyncResult, len(due))}
	workers := o.opts.Concurrency
	if workers > len(due) {
		workers = len(due)
	}
	group := pool.New[batchJob](workers, worker).WithContinueOnError()
	if err := group.Go(ctx); err != nil {
		logger.WithError(err).Error("[Orchestrator.SyncAll] start worker group")
		return domain.BatchResult{Processed: []domain.SyncResult{}}
	}
	for i, integration := range due {
		group.Submit(batchJob{index: i, integration: integration})
	}
	if err := group.Close(ctx); err != nil {
		logger.WithError(err).Warn("[Orchestrator.SyncAll] worker group closed with error")
	}

	succeeded := 0
	for _, r := range worker.results {
		if r.Success {
			succeeded++
		}
	}
	logger.Info("[Orchestrator.SyncAll] %d/%d integrations synced", succeeded, len(due))
	return domain.BatchResult{Processed: worker.results}
}

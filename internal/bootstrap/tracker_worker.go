package bootstrap

import (
	"tracker_server/adapter/in/worker"
	"tracker_server/config"
	"tracker_server/pkg/logger"
)

// Worker runs the periodic batch sync in-process.
type Worker struct {
	scheduler *worker.SyncScheduler
	deps      *Dependencies
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}
	return NewWorkerWithDeps(deps), cleanup, nil
}

// NewWorkerWithDeps shares already wired dependencies, used when the API and
// the worker run in one process.
func NewWorkerWithDeps(deps *Dependencies) *Worker {
	return &Worker{
		scheduler: worker.NewSyncScheduler(deps.Orchestrator, worker.SchedulerConfig{
			Interval:     deps.Config.SchedulerInterval,
			StartupDelay: worker.DefaultStartupDelay,
		}),
		deps: deps,
	}
}

// Start launches the scheduler unless it is disabled.
func (w *Worker) Start() {
	if !w.deps.Config.SchedulerEnabled {
		logger.Info("Scheduler disabled (SCHEDULER_ENABLED=false), batch sync runs only via the cron route")
		return
	}
	w.scheduler.Start()
}

func (w *Worker) Stop() {
	if !w.deps.Config.SchedulerEnabled {
		return
	}
	w.scheduler.Stop()
}

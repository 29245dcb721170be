// Package worker runs the background sync loop.
package worker

import (
	"context"
	"sync"
	"time"

	"tracker_server/core/port/in"
	"tracker_server/pkg/logger"
)

// =============================================================================
// SyncScheduler - periodic batch sync
// =============================================================================
//
// Every tick runs one SyncAll batch. The batch itself decides which
// integrations are due; a tick that arrives while a batch is still running
// is skipped.

const (
	DefaultSchedulerInterval = 15 * time.Minute
	DefaultStartupDelay      = 30 * time.Second
	DefaultBatchTimeout      = 10 * time.Minute
)

type SchedulerConfig struct {
	Interval     time.Duration
	StartupDelay time.Duration
	BatchTimeout time.Duration
}

type SyncScheduler struct {
	sync   in.SyncService
	cfg    SchedulerConfig
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewSyncScheduler creates a scheduler. Zero config values take the defaults.
func NewSyncScheduler(syncService in.SyncService, cfg SchedulerConfig) *SyncScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSchedulerInterval
	}
	if cfg.StartupDelay < 0 {
		cfg.StartupDelay = 0
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SyncScheduler{
		sync:   syncService,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the loop in the background.
func (s *SyncScheduler) Start() {
	logger.Info("[SyncScheduler] Starting (interval %v)", s.cfg.Interval)
	s.wg.Add(1)
	go s.run()
}

// Stop cancels the loop and waits for the in-flight batch to finish.
func (s *SyncScheduler) Stop() {
	logger.Info("[SyncScheduler] Stopping...")
	s.cancel()
	s.wg.Wait()
}

func (s *SyncScheduler) run() {
	defer s.wg.Done()

	if s.cfg.StartupDelay > 0 {
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.cfg.StartupDelay):
		}
	}

	s.RunOnce()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			logger.Info("[SyncScheduler] Stopped")
			return
		case <-ticker.C:
			s.RunOnce()
		}
	}
}

// RunOnce runs a single batch unless one is already running. It reports
// whether a batch ran.
func (s *SyncScheduler) RunOnce() bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logger.Warn("[SyncScheduler] previous batch still running, skipping tick")
		return false
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.BatchTimeout)
	defer cancel()

	start := time.Now()
	batch := s.sync.SyncAll(ctx)
	failed := 0
	for _, r := range batch.Processed {
		if !r.Success {
			failed++
		}
	}
	if len(batch.Processed) > 0 {
		logger.Info("[SyncScheduler] batch synced %d integrations (%d failed) in %v", len(batch.Processed), failed, time.Since(start))
	}
	return true
}

package jobs

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/voundbrand/go-authority/adapters/gojob"
	"github.com/voundbrand/go-authority/adapters/gologger"
	"github.com/voundbrand/go-authority/core"
)

type SchedulerConfig struct {
	Logger             core.Logger
	OutboxInterval     time.Duration
	OutboxBatchSize    int
	LoginStateInterval time.Duration
	SyncDrainInterval  time.Duration
	LegacyScanInterval time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		OutboxInterval:     15 * time.Second,
		LoginStateInterval: time.Hour,
		SyncDrainInterval:  time.Minute,
		LegacyScanInterval: 24 * time.Hour,
	}
}

// Scheduler enqueues the maintenance messages on their intervals. Every
// message dedupes with the drop policy, so a pass that is still queued
// absorbs the next tick instead of stacking up.
type Scheduler struct {
	enqueuer core.JobEnqueuer
	config   SchedulerConfig
	logger   core.Logger
	stop     chan struct{}
	done     chan struct{}
	stopOnce gosync.Once
}

func NewScheduler(enqueuer core.JobEnqueuer, config SchedulerConfig) (*Scheduler, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("jobs: job enqueuer is required")
	}
	defaults := DefaultSchedulerConfig()
	if config.OutboxInterval <= 0 {
		config.OutboxInterval = defaults.OutboxInterval
	}
	if config.LoginStateInterval <= 0 {
		config.LoginStateInterval = defaults.LoginStateInterval
	}
	if config.SyncDrainInterval <= 0 {
		config.SyncDrainInterval = defaults.SyncDrainInterval
	}
	if config.LegacyScanInterval <= 0 {
		config.LegacyScanInterval = defaults.LegacyScanInterval
	}
	logger := config.Logger
	if logger == nil {
		_, logger = gologger.Resolve(gologger.ComponentName("jobs", "scheduler"), nil, nil)
	}
	return &Scheduler{
		enqueuer: enqueuer,
		config:   config,
		logger:   glog.Ensure(logger),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start blocks until Stop is called or the context ends. It enqueues one
// pass of every job up front so a fresh process works off backlog without
// waiting a full interval. Start is single-use; build a new Scheduler to
// run again.
func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil || s.enqueuer == nil {
		return fmt.Errorf("jobs: scheduler is not configured")
	}
	defer close(s.done)

	s.enqueueAll(ctx)

	outbox := time.NewTicker(s.config.OutboxInterval)
	defer outbox.Stop()
	loginStates := time.NewTicker(s.config.LoginStateInterval)
	defer loginStates.Stop()
	syncDrain := time.NewTicker(s.config.SyncDrainInterval)
	defer syncDrain.Stop()
	legacyScan := time.NewTicker(s.config.LegacyScanInterval)
	defer legacyScan.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case <-outbox.C:
			s.enqueue(ctx, gojob.OutboxDispatchMessage(s.config.OutboxBatchSize))
		case <-loginStates.C:
			s.enqueue(ctx, gojob.LoginStateSweepMessage())
		case <-syncDrain.C:
			s.enqueue(ctx, gojob.SyncDrainMessage(""))
		case <-legacyScan.C:
			s.enqueue(ctx, gojob.LegacyScanMessage())
		}
	}
}

// Stop ends the loop and waits for Start to return. Safe to call more than
// once.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func (s *Scheduler) enqueueAll(ctx context.Context) {
	s.enqueue(ctx, gojob.OutboxDispatchMessage(s.config.OutboxBatchSize))
	s.enqueue(ctx, gojob.LoginStateSweepMessage())
	s.enqueue(ctx, gojob.SyncDrainMessage(""))
	s.enqueue(ctx, gojob.LegacyScanMessage())
}

// enqueue failures are logged and dropped: the drop dedup policy means the
// next tick re-offers the same message anyway.
func (s *Scheduler) enqueue(ctx context.Context, msg *core.JobExecutionMessage) {
	if err := s.enqueuer.Enqueue(ctx, msg); err != nil {
		s.logger.Error("maintenance enqueue failed", "job_id", msg.JobID, "error", err)
	}
}

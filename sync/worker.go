// Package sync drains the CRM sync jobs the workflow engine queues. The
// worker claims due jobs, hands each to the executor registered for its
// provider, and records the terminal outcome on the job row.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/voundbrand/go-authority/adapters/gologger"
	"github.com/voundbrand/go-authority/core"
)

// JobStore is the queue surface the worker drains. ListQueued returns due
// jobs oldest first; an empty org id spans every org.
type JobStore interface {
	ListQueued(ctx context.Context, orgID string, limit int) ([]core.SyncJob, error)
	UpdateStatus(ctx context.Context, id string, status core.SyncJobStatus, reason string) error
}

// Executor pushes one object to the provider behind a job, using the org's
// vaulted credential. Executions are at-least-once: two overlapping drains
// can claim the same job, so executors upsert by object id.
type Executor interface {
	Execute(ctx context.Context, job core.SyncJob) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, job core.SyncJob) error

func (f ExecutorFunc) Execute(ctx context.Context, job core.SyncJob) error {
	return f(ctx, job)
}

type WorkerConfig struct {
	Logger    core.Logger
	BatchSize int
}

// Worker runs queued sync jobs to a terminal state. Provider failures land on
// the job row as failed-with-reason; only store failures surface to the
// caller, so a drain pass never retries work the queue already accounts for.
type Worker struct {
	jobs      JobStore
	mu        gosync.RWMutex
	executors map[string]Executor
	logger    core.Logger
	batchSize int
	now       func() time.Time
}

func NewWorker(jobs JobStore, config WorkerConfig) (*Worker, error) {
	if jobs == nil {
		return nil, fmt.Errorf("sync: job store is required")
	}
	logger := config.Logger
	if logger == nil {
		_, logger = gologger.Resolve(gologger.ComponentName("sync"), nil, nil)
	}
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Worker{
		jobs:      jobs,
		executors: map[string]Executor{},
		logger:    glog.Ensure(logger),
		batchSize: batchSize,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// RegisterExecutor binds an executor to a provider id. Jobs for providers
// with no executor fail terminally; requeue them after registering one.
func (w *Worker) RegisterExecutor(providerID string, executor Executor) error {
	if w == nil {
		return fmt.Errorf("sync: worker is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return fmt.Errorf("sync: executor provider id is required")
	}
	if executor == nil {
		return fmt.Errorf("sync: executor is nil")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.executors[providerID]; exists {
		return fmt.Errorf("sync: executor already registered: %s", providerID)
	}
	w.executors[providerID] = executor
	return nil
}

// Drain claims one batch of due jobs and runs each to succeeded or failed.
// It returns how many jobs reached a terminal state this pass. A job whose
// claim loses the transition guard was taken by another drain and is skipped.
func (w *Worker) Drain(ctx context.Context, orgID string) (int, error) {
	if w == nil || w.jobs == nil {
		return 0, fmt.Errorf("sync: worker is not configured")
	}
	due, err := w.jobs.ListQueued(ctx, strings.TrimSpace(orgID), w.batchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	var drainErr error
	for _, job := range due {
		if ctx.Err() != nil {
			return processed, joinErrors(drainErr, ctx.Err())
		}
		terminal, err := w.runOne(ctx, job)
		if err != nil {
			drainErr = joinErrors(drainErr, err)
			continue
		}
		if terminal {
			processed++
		}
	}
	return processed, drainErr
}

func (w *Worker) runOne(ctx context.Context, job core.SyncJob) (bool, error) {
	if err := w.jobs.UpdateStatus(ctx, job.ID, core.SyncJobStatusRunning, ""); err != nil {
		if errors.Is(err, core.ErrInvalidSyncJobStatusTransition) {
			return false, nil
		}
		return false, err
	}

	executor := w.executorFor(job.ProviderID)
	if executor == nil {
		reason := fmt.Sprintf("no executor registered for provider %q", job.ProviderID)
		w.logger.Error("sync job failed",
			"job_id", job.ID,
			"org_id", job.OrgID,
			"provider_id", job.ProviderID,
			"error", reason,
		)
		return true, w.jobs.UpdateStatus(ctx, job.ID, core.SyncJobStatusFailed, reason)
	}

	startedAt := w.now()
	if err := executor.Execute(ctx, job); err != nil {
		w.logger.Error("sync job failed",
			"job_id", job.ID,
			"org_id", job.OrgID,
			"provider_id", job.ProviderID,
			"object_type", job.ObjectType,
			"error", err,
		)
		return true, w.jobs.UpdateStatus(ctx, job.ID, core.SyncJobStatusFailed, err.Error())
	}

	w.logger.Info("sync job completed",
		"job_id", job.ID,
		"org_id", job.OrgID,
		"provider_id", job.ProviderID,
		"object_type", job.ObjectType,
		"duration_ms", w.now().Sub(startedAt).Milliseconds(),
	)
	return true, w.jobs.UpdateStatus(ctx, job.ID, core.SyncJobStatusSucceeded, "")
}

func (w *Worker) executorFor(providerID string) Executor {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.executors[strings.TrimSpace(providerID)]
}

func joinErrors(existing error, next error) error {
	if existing == nil {
		return next
	}
	if next == nil {
		return existing
	}
	return fmt.Errorf("%w; %v", existing, next)
}

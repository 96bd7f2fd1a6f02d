// Package jobs runs the authority's periodic maintenance: outbox dispatch
// passes, expired login-state sweeps, CRM sync drains, and the
// legacy-credential telemetry counter. The runner executes the queue messages
// built by adapters/gojob, the scheduler produces them on an interval, and
// the worker moves deliveries between the two.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/voundbrand/go-authority/adapters/gojob"
	"github.com/voundbrand/go-authority/adapters/gologger"
	"github.com/voundbrand/go-authority/core"
)

// OutboxDispatcher drains one batch of pending outbox tasks.
type OutboxDispatcher interface {
	DispatchPending(ctx context.Context, batchSize int) (core.DispatchStats, error)
}

// LoginStateSweeper deletes OAuth login states that expired before the given
// moment.
type LoginStateSweeper interface {
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// LegacyCredentialCounter reports how many sessions still authenticate
// through the plaintext column.
type LegacyCredentialCounter interface {
	CountLegacy(ctx context.Context) (int, error)
}

// SyncDrainer runs queued CRM sync jobs to a terminal state; an empty org id
// drains every org.
type SyncDrainer interface {
	Drain(ctx context.Context, orgID string) (int, error)
}

// Targets are the surfaces the maintenance jobs act on.
type Targets struct {
	Outbox      OutboxDispatcher
	LoginStates LoginStateSweeper
	Sessions    LegacyCredentialCounter
	SyncJobs    SyncDrainer
}

func (t Targets) validate() error {
	if t.Outbox == nil {
		return fmt.Errorf("jobs: outbox dispatcher is required")
	}
	if t.LoginStates == nil {
		return fmt.Errorf("jobs: login state sweeper is required")
	}
	if t.Sessions == nil {
		return fmt.Errorf("jobs: legacy credential counter is required")
	}
	if t.SyncJobs == nil {
		return fmt.Errorf("jobs: sync drainer is required")
	}
	return nil
}

type RunnerConfig struct {
	Logger  core.Logger
	Metrics core.MetricsRecorder
}

// Runner executes one maintenance message per call, routed by job id.
type Runner struct {
	targets Targets
	logger  core.Logger
	metrics core.MetricsRecorder
	now     func() time.Time
}

func NewRunner(targets Targets, config RunnerConfig) (*Runner, error) {
	if err := targets.validate(); err != nil {
		return nil, err
	}
	logger := config.Logger
	if logger == nil {
		_, logger = gologger.Resolve(gologger.ComponentName("jobs"), nil, nil)
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	return &Runner{
		targets: targets,
		logger:  glog.Ensure(logger),
		metrics: metrics,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (r *Runner) Run(ctx context.Context, msg *core.JobExecutionMessage) error {
	if r == nil {
		return fmt.Errorf("jobs: runner is not configured")
	}
	if msg == nil {
		return fmt.Errorf("jobs: execution message is required")
	}
	switch strings.TrimSpace(msg.JobID) {
	case gojob.JobIDOutboxDispatch:
		return r.runOutboxDispatch(ctx, msg)
	case gojob.JobIDLoginStateSweep:
		return r.runLoginStateSweep(ctx)
	case gojob.JobIDSyncDrain:
		return r.runSyncDrain(ctx, msg)
	case gojob.JobIDLegacyScan:
		return r.runLegacyScan(ctx)
	default:
		return fmt.Errorf("jobs: unknown job id %q", msg.JobID)
	}
}

// runOutboxDispatch relays one drain pass. Task failures stay on the outbox's
// own retry schedule, so only a pass that claimed nothing and still errored
// bubbles out for the queue to retry.
func (r *Runner) runOutboxDispatch(ctx context.Context, msg *core.JobExecutionMessage) error {
	batchSize := paramInt(msg.Parameters, "batch_size")
	stats, err := r.targets.Outbox.DispatchPending(ctx, batchSize)
	if err != nil && stats.Claimed == 0 {
		return fmt.Errorf("jobs: outbox dispatch pass failed: %w", err)
	}
	if err != nil {
		r.logger.Error("outbox dispatch completed with failures",
			"claimed", stats.Claimed,
			"delivered", stats.Delivered,
			"retried", stats.Retried,
			"failed", stats.Failed,
			"error", err,
		)
		return nil
	}
	if stats.Claimed > 0 {
		r.logger.Info("outbox dispatch completed",
			"claimed", stats.Claimed,
			"delivered", stats.Delivered,
			"retried", stats.Retried,
			"failed", stats.Failed,
		)
	}
	return nil
}

func (r *Runner) runLoginStateSweep(ctx context.Context) error {
	removed, err := r.targets.LoginStates.DeleteExpired(ctx, r.now())
	if err != nil {
		return fmt.Errorf("jobs: login state sweep failed: %w", err)
	}
	if removed > 0 {
		r.logger.Info("expired login states removed", "count", removed)
	}
	return nil
}

func (r *Runner) runSyncDrain(ctx context.Context, msg *core.JobExecutionMessage) error {
	orgID := paramString(msg.Parameters, "org_id")
	processed, err := r.targets.SyncJobs.Drain(ctx, orgID)
	if err != nil {
		return fmt.Errorf("jobs: sync drain failed: %w", err)
	}
	if processed > 0 {
		r.logger.Info("sync jobs drained", "count", processed, "org_id", orgID)
	}
	return nil
}

// runLegacyScan publishes how many sessions still carry a plaintext token, so
// the hashing migration's tail is visible without a database query.
func (r *Runner) runLegacyScan(ctx context.Context) error {
	count, err := r.targets.Sessions.CountLegacy(ctx)
	if err != nil {
		return fmt.Errorf("jobs: legacy credential scan failed: %w", err)
	}
	r.metrics.IncCounter(ctx, "authority.sessions.legacy_credentials", int64(count), map[string]string{})
	if count > 0 {
		r.logger.Info("legacy session credentials remain", "count", count)
	}
	return nil
}

func paramInt(params map[string]any, key string) int {
	if len(params) == 0 {
		return 0
	}
	switch typed := params[key].(type) {
	case int:
		return typed
	case int64:
		return int(typed)
	case float64:
		return int(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil {
			return 0
		}
		return int(parsed)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func paramString(params map[string]any, key string) string {
	if len(params) == 0 {
		return ""
	}
	value, ok := params[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

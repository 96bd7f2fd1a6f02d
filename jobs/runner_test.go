package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/voundbrand/go-authority/adapters/gojob"
	"github.com/voundbrand/go-authority/core"
)

func TestNewRunnerValidatesTargets(t *testing.T) {
	full := completeTargets()

	cases := []struct {
		name   string
		mutate func(*Targets)
	}{
		{name: "missing outbox", mutate: func(t *Targets) { t.Outbox = nil }},
		{name: "missing login states", mutate: func(t *Targets) { t.LoginStates = nil }},
		{name: "missing sessions", mutate: func(t *Targets) { t.Sessions = nil }},
		{name: "missing sync jobs", mutate: func(t *Targets) { t.SyncJobs = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			targets := full
			tc.mutate(&targets)
			if _, err := NewRunner(targets, RunnerConfig{Logger: glog.Nop()}); err == nil {
				t.Fatalf("expected incomplete targets to be rejected")
			}
		})
	}

	if _, err := NewRunner(full, RunnerConfig{Logger: glog.Nop()}); err != nil {
		t.Fatalf("new runner: %v", err)
	}
}

func TestRunnerRoutesOutboxDispatch(t *testing.T) {
	ctx := context.Background()
	var gotBatch int
	targets := completeTargets()
	targets.Outbox = &stubOutbox{
		dispatchFn: func(_ context.Context, batchSize int) (core.DispatchStats, error) {
			gotBatch = batchSize
			return core.DispatchStats{Claimed: 2, Delivered: 2}, nil
		},
	}
	runner := newTestRunner(t, targets)

	if err := runner.Run(ctx, gojob.OutboxDispatchMessage(25)); err != nil {
		t.Fatalf("run outbox dispatch: %v", err)
	}
	if gotBatch != 25 {
		t.Fatalf("expected batch size 25 to pass through, got %d", gotBatch)
	}

	// A queue round trip turns numeric parameters into float64.
	if err := runner.Run(ctx, &core.JobExecutionMessage{
		JobID:      gojob.JobIDOutboxDispatch,
		Parameters: map[string]any{"batch_size": float64(10)},
	}); err != nil {
		t.Fatalf("run outbox dispatch with decoded params: %v", err)
	}
	if gotBatch != 10 {
		t.Fatalf("expected decoded batch size 10, got %d", gotBatch)
	}
}

func TestRunnerOutboxFailureModes(t *testing.T) {
	ctx := context.Background()

	targets := completeTargets()
	targets.Outbox = &stubOutbox{
		dispatchFn: func(context.Context, int) (core.DispatchStats, error) {
			return core.DispatchStats{}, fmt.Errorf("claim query failed")
		},
	}
	runner := newTestRunner(t, targets)
	if err := runner.Run(ctx, gojob.OutboxDispatchMessage(0)); err == nil {
		t.Fatalf("expected a failed claim to surface for retry")
	}

	targets.Outbox = &stubOutbox{
		dispatchFn: func(context.Context, int) (core.DispatchStats, error) {
			return core.DispatchStats{Claimed: 3, Delivered: 1, Retried: 2}, fmt.Errorf("welcome_email handler failed")
		},
	}
	runner = newTestRunner(t, targets)
	if err := runner.Run(ctx, gojob.OutboxDispatchMessage(0)); err != nil {
		t.Fatalf("expected task-level failures to stay on the outbox schedule, got %v", err)
	}
}

func TestRunnerSweepUsesCurrentTime(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	var gotBefore time.Time
	targets := completeTargets()
	targets.LoginStates = &stubSweeper{
		deleteFn: func(_ context.Context, before time.Time) (int, error) {
			gotBefore = before
			return 4, nil
		},
	}
	runner := newTestRunner(t, targets)
	runner.now = func() time.Time { return fixed }

	if err := runner.Run(ctx, gojob.LoginStateSweepMessage()); err != nil {
		t.Fatalf("run login state sweep: %v", err)
	}
	if !gotBefore.Equal(fixed) {
		t.Fatalf("expected sweep cutoff %v, got %v", fixed, gotBefore)
	}

	targets.LoginStates = &stubSweeper{
		deleteFn: func(context.Context, time.Time) (int, error) {
			return 0, fmt.Errorf("delete failed")
		},
	}
	runner = newTestRunner(t, targets)
	if err := runner.Run(ctx, gojob.LoginStateSweepMessage()); err == nil {
		t.Fatalf("expected sweep failure to surface")
	}
}

func TestRunnerSyncDrainScopesOrg(t *testing.T) {
	ctx := context.Background()
	var gotOrg string
	targets := completeTargets()
	targets.SyncJobs = &stubDrainer{
		drainFn: func(_ context.Context, orgID string) (int, error) {
			gotOrg = orgID
			return 1, nil
		},
	}
	runner := newTestRunner(t, targets)

	if err := runner.Run(ctx, gojob.SyncDrainMessage("org_1")); err != nil {
		t.Fatalf("run org drain: %v", err)
	}
	if gotOrg != "org_1" {
		t.Fatalf("expected org-scoped drain, got %q", gotOrg)
	}

	if err := runner.Run(ctx, gojob.SyncDrainMessage("")); err != nil {
		t.Fatalf("run full drain: %v", err)
	}
	if gotOrg != "" {
		t.Fatalf("expected org-less drain to span orgs, got %q", gotOrg)
	}
}

func TestRunnerLegacyScanPublishesCount(t *testing.T) {
	ctx := context.Background()
	metrics := &stubMetrics{}
	targets := completeTargets()
	targets.Sessions = &stubCounter{
		countFn: func(context.Context) (int, error) { return 7, nil },
	}
	runner, err := NewRunner(targets, RunnerConfig{Logger: glog.Nop(), Metrics: metrics})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	if err := runner.Run(ctx, gojob.LegacyScanMessage()); err != nil {
		t.Fatalf("run legacy scan: %v", err)
	}
	if len(metrics.counters) != 1 {
		t.Fatalf("expected one counter publication, got %d", len(metrics.counters))
	}
	published := metrics.counters[0]
	if published.name != "authority.sessions.legacy_credentials" || published.value != 7 {
		t.Fatalf("expected legacy credential count 7, got %+v", published)
	}

	targets.Sessions = &stubCounter{
		countFn: func(context.Context) (int, error) { return 0, fmt.Errorf("count failed") },
	}
	runner = newTestRunner(t, targets)
	if err := runner.Run(ctx, gojob.LegacyScanMessage()); err == nil {
		t.Fatalf("expected scan failure to surface")
	}
}

func TestRunnerRejectsUnknownJobs(t *testing.T) {
	ctx := context.Background()
	runner := newTestRunner(t, completeTargets())

	if err := runner.Run(ctx, nil); err == nil {
		t.Fatalf("expected nil message to be rejected")
	}
	if err := runner.Run(ctx, &core.JobExecutionMessage{JobID: "authority.unknown"}); err == nil {
		t.Fatalf("expected unknown job id to be rejected")
	}
}

func newTestRunner(t *testing.T, targets Targets) *Runner {
	t.Helper()
	runner, err := NewRunner(targets, RunnerConfig{Logger: glog.Nop()})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner
}

func completeTargets() Targets {
	return Targets{
		Outbox:      &stubOutbox{},
		LoginStates: &stubSweeper{},
		Sessions:    &stubCounter{},
		SyncJobs:    &stubDrainer{},
	}
}

type stubOutbox struct {
	dispatchFn func(ctx context.Context, batchSize int) (core.DispatchStats, error)
}

func (s *stubOutbox) DispatchPending(ctx context.Context, batchSize int) (core.DispatchStats, error) {
	if s.dispatchFn != nil {
		return s.dispatchFn(ctx, batchSize)
	}
	return core.DispatchStats{}, nil
}

type stubSweeper struct {
	deleteFn func(ctx context.Context, before time.Time) (int, error)
}

func (s *stubSweeper) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, before)
	}
	return 0, nil
}

type stubCounter struct {
	countFn func(ctx context.Context) (int, error)
}

func (s *stubCounter) CountLegacy(ctx context.Context) (int, error) {
	if s.countFn != nil {
		return s.countFn(ctx)
	}
	return 0, nil
}

type stubDrainer struct {
	drainFn func(ctx context.Context, orgID string) (int, error)
}

func (s *stubDrainer) Drain(ctx context.Context, orgID string) (int, error) {
	if s.drainFn != nil {
		return s.drainFn(ctx, orgID)
	}
	return 0, nil
}

type counterCall struct {
	name  string
	value int64
	tags  map[string]string
}

type stubMetrics struct {
	counters []counterCall
}

func (s *stubMetrics) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	s.counters = append(s.counters, counterCall{name: name, value: value, tags: tags})
}

func (s *stubMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var (
	_ OutboxDispatcher        = (*stubOutbox)(nil)
	_ LoginStateSweeper       = (*stubSweeper)(nil)
	_ LegacyCredentialCounter = (*stubCounter)(nil)
	_ SyncDrainer             = (*stubDrainer)(nil)
	_ core.MetricsRecorder    = (*stubMetrics)(nil)
)

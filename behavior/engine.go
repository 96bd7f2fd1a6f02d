package behavior

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/voundbrand/go-authority/core"
)

type EngineConfig struct {
	Logger          core.Logger
	Tasks           core.TaskStore
	MetricsRecorder core.MetricsRecorder
}

// Engine executes chains. Behaviors run one at a time in ascending priority
// order; a panicking behavior is converted into a failure result so one bad
// rule cannot take the chain down with it.
type Engine struct {
	registry *Registry
	logger   core.Logger
	tasks    core.TaskStore
	metrics  core.MetricsRecorder
	now      func() time.Time
}

func NewEngine(registry *Registry, config EngineConfig) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("behavior: registry is required")
	}
	logger := glog.Ensure(config.Logger)
	metrics := config.MetricsRecorder
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	return &Engine{
		registry: registry,
		logger:   logger,
		tasks:    config.Tasks,
		metrics:  metrics,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// Run executes every enabled behavior of the chain in priority order and
// applies the chain's failure policy. The report always covers the behaviors
// that actually ran; Run itself only errors on an invalid chain.
func (e *Engine) Run(ctx context.Context, chain Chain, run RunContext) (RunReport, error) {
	if e == nil || e.registry == nil {
		return RunReport{}, fmt.Errorf("behavior: engine is not configured")
	}
	if err := chain.Validate(); err != nil {
		return RunReport{}, err
	}
	policy := chain.ErrorHandling
	if policy == "" {
		policy = PolicyContinue
	}
	if strings.TrimSpace(run.OrgID) == "" {
		run.OrgID = chain.OrgID
	}
	if strings.TrimSpace(run.WorkflowID) == "" {
		run.WorkflowID = chain.WorkflowID
	}

	ordered := orderedBehaviors(chain.Behaviors)
	report := RunReport{Results: make([]Result, 0, len(ordered))}
	for _, descriptor := range ordered {
		startedAt := e.now()
		result := e.execute(ctx, descriptor, run)
		report.Results = append(report.Results, result)
		e.observe(ctx, descriptor.Type, run.OrgID, startedAt, result)

		if result.Success {
			continue
		}
		switch policy {
		case PolicyRollback:
			report.Halted = true
			e.logger.Error("behavior chain halted",
				"behavior", descriptor.Type,
				"org_id", run.OrgID,
				"workflow_id", run.WorkflowID,
				"error", result.Error,
			)
			return report, nil
		case PolicyNotify:
			e.enqueueFailureNotice(ctx, chain, descriptor, result)
		}
	}
	return report, nil
}

// execute resolves and runs one behavior. The config-level dry_run flag is
// sticky: either the run or the descriptor can force a dry run, never the
// other way around.
func (e *Engine) execute(ctx context.Context, descriptor Descriptor, run RunContext) (result Result) {
	behavior, ok := e.registry.Get(descriptor.Type)
	if !ok {
		return Result{
			Type:  descriptor.Type,
			Error: fmt.Sprintf("behavior type %q is not registered", descriptor.Type),
		}
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			result = Result{
				Type:  descriptor.Type,
				Error: fmt.Sprintf("behavior panicked: %v", recovered),
			}
		}
	}()
	effective := run
	effective.DryRun = run.DryRun || configBool(descriptor.Config, "dry_run")
	result = behavior.Execute(ctx, effective, descriptor.Config)
	if strings.TrimSpace(result.Type) == "" {
		result.Type = descriptor.Type
	}
	return result
}

func (e *Engine) observe(ctx context.Context, behaviorType string, orgID string, startedAt time.Time, result Result) {
	status := "success"
	if !result.Success {
		status = "failure"
	}
	tags := map[string]string{
		"behavior": behaviorType,
		"status":   status,
	}
	if orgID = strings.TrimSpace(orgID); orgID != "" {
		tags["org_id"] = orgID
	}
	e.metrics.IncCounter(ctx, "authority.behavior.total", 1, tags)
	e.metrics.ObserveHistogram(ctx, "authority.behavior.duration_ms", float64(e.now().Sub(startedAt).Milliseconds()), tags)
}

// enqueueFailureNotice records a notify-policy failure on the outbox. Notice
// delivery is best effort; a full outbox never blocks the chain.
func (e *Engine) enqueueFailureNotice(ctx context.Context, chain Chain, descriptor Descriptor, result Result) {
	if e.tasks == nil {
		return
	}
	key := fmt.Sprintf("behavior_notice:%s:%s:%s:%d", chain.OrgID, chain.WorkflowID, descriptor.Type, e.now().UnixNano())
	_, err := e.tasks.Enqueue(ctx, core.EnqueueTaskInput{
		Kind:           core.TaskKindBehaviorNotice,
		IdempotencyKey: key,
		Payload: map[string]any{
			"org_id":        chain.OrgID,
			"workflow_id":   chain.WorkflowID,
			"behavior_type": descriptor.Type,
			"error":         result.Error,
		},
	})
	if err != nil {
		e.logger.Error("enqueue behavior notice failed",
			"behavior", descriptor.Type,
			"org_id", chain.OrgID,
			"error", err,
		)
	}
}

func orderedBehaviors(behaviors []Descriptor) []Descriptor {
	ordered := make([]Descriptor, 0, len(behaviors))
	for _, descriptor := range behaviors {
		if descriptor.Enabled {
			ordered = append(ordered, descriptor)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})
	return ordered
}

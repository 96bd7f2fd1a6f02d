package gojob

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/voundbrand/go-authority/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

// Job IDs for the periodic authority work. Embedders schedule these through
// go-job; the IDs double as queue routing keys when the work is enqueued
// instead of run in process.
const (
	JobIDOutboxDispatch  = "authority.outbox.dispatch"
	JobIDLoginStateSweep = "authority.login_state.sweep"
	JobIDSyncDrain       = "authority.sync.drain"
	JobIDLegacyScan      = "authority.session.legacy_scan"
)

// OutboxDispatchMessage describes one outbox drain pass. The idempotency key
// collapses overlapping schedules onto a single queued run.
func OutboxDispatchMessage(batchSize int) *core.JobExecutionMessage {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &core.JobExecutionMessage{
		JobID:          JobIDOutboxDispatch,
		Parameters:     map[string]any{"batch_size": batchSize},
		IdempotencyKey: JobIDOutboxDispatch,
		DedupPolicy:    "drop",
	}
}

// LoginStateSweepMessage describes one expired-login-state sweep.
func LoginStateSweepMessage() *core.JobExecutionMessage {
	return &core.JobExecutionMessage{
		JobID:          JobIDLoginStateSweep,
		Parameters:     map[string]any{},
		IdempotencyKey: JobIDLoginStateSweep,
		DedupPolicy:    "drop",
	}
}

// SyncDrainMessage describes one CRM sync drain pass for an org; an empty org
// drains every queued job.
func SyncDrainMessage(orgID string) *core.JobExecutionMessage {
	params := map[string]any{}
	orgID = strings.TrimSpace(orgID)
	key := JobIDSyncDrain
	if orgID != "" {
		params["org_id"] = orgID
		key = key + ":" + orgID
	}
	return &core.JobExecutionMessage{
		JobID:          JobIDSyncDrain,
		Parameters:     params,
		IdempotencyKey: key,
		DedupPolicy:    "drop",
	}
}

// LegacyScanMessage describes one legacy-credential telemetry pass.
func LegacyScanMessage() *core.JobExecutionMessage {
	return &core.JobExecutionMessage{
		JobID:          JobIDLegacyScan,
		Parameters:     map[string]any{},
		IdempotencyKey: JobIDLegacyScan,
		DedupPolicy:    "drop",
	}
}

// RetryPolicy bounds queue retries so a poisoned message cannot loop forever.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt applies the policy to one nack: delays are clamped, dead
// lettering wins over requeue, and the max attempt forces a terminal outcome.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	out.Delay = max(out.Delay, 0)
	if p.MaxDelay > 0 {
		out.Delay = min(out.Delay, p.MaxDelay)
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		out.DeadLetter = out.DeadLetter || p.DeadLetterOnMax
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ToExecutionMessage maps an authority job message to go-job.
func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		Parameters:     cloneParams(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

// FromExecutionMessage maps a go-job message into the authority contract.
func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		Parameters:     cloneParams(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

func ToNackOptions(opts core.JobNackOptions) queue.NackOptions {
	return queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

func FromNackOptions(opts queue.NackOptions) core.JobNackOptions {
	return core.JobNackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: no enqueuer configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: nil execution message")
	}
	return a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: no delivery bound")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	return d.NackForAttempt(ctx, opts, 0)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: no delivery bound")
	}
	normalized := d.policy.NormalizeAttempt(opts, attempt)
	return d.delivery.Nack(ctx, ToNackOptions(normalized))
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: no dequeuer configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

type WorkerHookAdapter struct {
	hook core.JobWorkerHook
}

func NewWorkerHookAdapter(hook core.JobWorkerHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnStart(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnSuccess(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnFailure(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnRetry(ctx, mapWorkerEvent(event))
}

func mapWorkerEvent(event worker.Event) core.JobWorkerEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	return core.JobWorkerEvent{
		Message:   FromExecutionMessage(message),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

// cloneParams copies job parameters so queued messages never share maps
// with their producers. The result is never nil.
func cloneParams(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	maps.Copy(out, in)
	return out
}

var (
	_ core.JobEnqueuer   = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery   = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer   = (*DequeuerAdapter)(nil)
	_ worker.Hook        = (*WorkerHookAdapter)(nil)
	_ core.JobWorkerHook = (*noopCoreHook)(nil)
)

// noopCoreHook only exists to assert local compile-time compatibility.
type noopCoreHook struct{}

func (noopCoreHook) OnStart(context.Context, core.JobWorkerEvent)   {}
func (noopCoreHook) OnSuccess(context.Context, core.JobWorkerEvent) {}
func (noopCoreHook) OnFailure(context.Context, core.JobWorkerEvent) {}
func (noopCoreHook) OnRetry(context.Context, core.JobWorkerEvent)   {}

package jobs

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/voundbrand/go-authority/adapters/gologger"
	"github.com/voundbrand/go-authority/core"
)

// JobRunner executes one delivered maintenance message.
type JobRunner interface {
	Run(ctx context.Context, msg *core.JobExecutionMessage) error
}

type WorkerConfig struct {
	Logger      core.Logger
	Hook        core.JobWorkerHook
	MaxAttempts int
	RetryDelay  time.Duration
	MaxDelay    time.Duration
	IdleDelay   time.Duration
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		MaxAttempts: 3,
		RetryDelay:  5 * time.Second,
		MaxDelay:    2 * time.Minute,
		IdleDelay:   2 * time.Second,
	}
}

// Worker pulls deliveries off the queue and feeds them to the runner. A
// failed run is requeued with a doubling delay until the attempt budget is
// spent, then dead-lettered. Attempts are tracked in process by idempotency
// key; a restart grants a message a fresh budget, which at-least-once
// delivery already forces the jobs to tolerate.
type Worker struct {
	dequeuer core.JobDequeuer
	runner   JobRunner
	hook     core.JobWorkerHook
	config   WorkerConfig
	logger   core.Logger
	now      func() time.Time

	mu       gosync.Mutex
	attempts map[string]int
}

func NewWorker(dequeuer core.JobDequeuer, runner JobRunner, config WorkerConfig) (*Worker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("jobs: job dequeuer is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("jobs: job runner is required")
	}
	defaults := DefaultWorkerConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = defaults.MaxDelay
	}
	if config.IdleDelay <= 0 {
		config.IdleDelay = defaults.IdleDelay
	}
	logger := config.Logger
	if logger == nil {
		_, logger = gologger.Resolve(gologger.ComponentName("jobs", "worker"), nil, nil)
	}
	logger = glog.Ensure(logger)
	hook := config.Hook
	if hook == nil {
		hook = NewLoggingHook(logger)
	}
	return &Worker{
		dequeuer: dequeuer,
		runner:   runner,
		hook:     hook,
		config:   config,
		logger:   logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
		attempts: map[string]int{},
	}, nil
}

// Run blocks until the context ends. Dequeue errors pause the loop for the
// idle delay instead of spinning against a broken queue.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.dequeuer == nil {
		return fmt.Errorf("jobs: worker is not configured")
	}
	for {
		delivery, err := w.dequeuer.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("job dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.config.IdleDelay):
			}
			continue
		}
		if delivery == nil {
			continue
		}
		w.handle(ctx, delivery)
	}
}

func (w *Worker) handle(ctx context.Context, delivery core.JobDelivery) {
	msg := delivery.Message()
	if msg == nil {
		if err := delivery.Ack(ctx); err != nil {
			w.logger.Error("empty delivery ack failed", "error", err)
		}
		return
	}

	key := attemptKey(msg)
	attempt := w.bumpAttempt(key)
	event := core.JobWorkerEvent{
		Message:   msg,
		Attempt:   attempt,
		StartedAt: w.now(),
	}
	w.hook.OnStart(ctx, event)

	err := w.runner.Run(ctx, msg)
	event.Duration = w.now().Sub(event.StartedAt)
	if err == nil {
		w.clearAttempt(key)
		if ackErr := delivery.Ack(ctx); ackErr != nil {
			w.logger.Error("job ack failed", "job_id", msg.JobID, "error", ackErr)
		}
		w.hook.OnSuccess(ctx, event)
		return
	}

	event.Err = err
	if attempt >= w.config.MaxAttempts {
		w.clearAttempt(key)
		if nackErr := delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     err.Error(),
		}); nackErr != nil {
			w.logger.Error("job dead-letter failed", "job_id", msg.JobID, "error", nackErr)
		}
		w.hook.OnFailure(ctx, event)
		return
	}

	delay := w.retryDelay(attempt)
	event.Delay = delay
	if nackErr := delivery.Nack(ctx, core.JobNackOptions{
		Delay:   delay,
		Requeue: true,
		Reason:  err.Error(),
	}); nackErr != nil {
		w.logger.Error("job requeue failed", "job_id", msg.JobID, "error", nackErr)
	}
	w.hook.OnRetry(ctx, event)
}

func (w *Worker) bumpAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *Worker) clearAttempt(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}

func (w *Worker) retryDelay(attempt int) time.Duration {
	delay := w.config.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= w.config.MaxDelay {
			return w.config.MaxDelay
		}
	}
	if delay > w.config.MaxDelay {
		return w.config.MaxDelay
	}
	return delay
}

func attemptKey(msg *core.JobExecutionMessage) string {
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return strings.TrimSpace(msg.JobID)
}

// LoggingHook records failed and retried runs. Routine starts and successes
// stay quiet so interval jobs do not flood the log.
type LoggingHook struct {
	logger core.Logger
}

func NewLoggingHook(logger core.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(context.Context, core.JobWorkerEvent) {}

func (h *LoggingHook) OnSuccess(context.Context, core.JobWorkerEvent) {}

func (h *LoggingHook) OnFailure(_ context.Context, event core.JobWorkerEvent) {
	h.logger.Error("job failed permanently",
		"job_id", eventJobID(event),
		"attempt", event.Attempt,
		"duration_ms", event.Duration.Milliseconds(),
		"error", event.Err,
	)
}

func (h *LoggingHook) OnRetry(_ context.Context, event core.JobWorkerEvent) {
	h.logger.Error("job failed, retrying",
		"job_id", eventJobID(event),
		"attempt", event.Attempt,
		"retry_in", event.Delay.String(),
		"error", event.Err,
	)
}

func eventJobID(event core.JobWorkerEvent) string {
	if event.Message == nil {
		return ""
	}
	return event.Message.JobID
}

var _ core.JobWorkerHook = (*LoggingHook)(nil)

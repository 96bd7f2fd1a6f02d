package core

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

type OutboxDispatcherConfig struct {
	BatchSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultOutboxDispatcherConfig() OutboxDispatcherConfig {
	return OutboxDispatcherConfig{
		BatchSize:      50,
		MaxAttempts:    5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     5 * time.Minute,
	}
}

// OutboxDispatcher drains pending tasks and feeds them to the handler
// registered for each kind. Delivery is at-least-once: a handler crash after
// its side effect but before Ack replays the task, so handlers dedupe on
// Task.IdempotencyKey.
type OutboxDispatcher struct {
	store    TaskStore
	mu       sync.RWMutex
	handlers map[TaskKind]TaskHandler
	config   OutboxDispatcherConfig
	now      func() time.Time
}

func NewOutboxDispatcher(store TaskStore, config OutboxDispatcherConfig) (*OutboxDispatcher, error) {
	if store == nil {
		return nil, fmt.Errorf("core: task store is required")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultOutboxDispatcherConfig().BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultOutboxDispatcherConfig().MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = DefaultOutboxDispatcherConfig().InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = DefaultOutboxDispatcherConfig().MaxBackoff
	}
	return &OutboxDispatcher{
		store:    store,
		handlers: map[TaskKind]TaskHandler{},
		config:   config,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (d *OutboxDispatcher) RegisterHandler(handler TaskHandler) error {
	if d == nil {
		return fmt.Errorf("core: outbox dispatcher is not configured")
	}
	if handler == nil {
		return fmt.Errorf("core: task handler is nil")
	}
	kind := handler.Kind()
	if strings.TrimSpace(string(kind)) == "" {
		return fmt.Errorf("core: task handler kind is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[kind]; exists {
		return fmt.Errorf("core: task handler already registered: %s", kind)
	}
	d.handlers[kind] = handler
	return nil
}

func (d *OutboxDispatcher) DispatchPending(ctx context.Context, batchSize int) (DispatchStats, error) {
	if d == nil || d.store == nil {
		return DispatchStats{}, fmt.Errorf("core: outbox dispatcher is not configured")
	}
	limit := batchSize
	if limit <= 0 {
		limit = d.config.BatchSize
	}
	tasks, err := d.store.ClaimBatch(ctx, limit)
	if err != nil {
		return DispatchStats{}, err
	}

	stats := DispatchStats{Claimed: len(tasks)}
	var dispatchErr error
	for _, task := range tasks {
		if err := d.dispatchOne(ctx, task); err != nil {
			if retryErr := d.retryTask(ctx, task, err); retryErr != nil {
				dispatchErr = joinErrors(dispatchErr, retryErr)
			}
			if task.Attempts+1 >= d.config.MaxAttempts {
				stats.Failed++
			} else {
				stats.Retried++
			}
			dispatchErr = joinErrors(dispatchErr, err)
			continue
		}
		if err := d.store.Ack(ctx, strings.TrimSpace(task.ID)); err != nil {
			dispatchErr = joinErrors(dispatchErr, err)
			continue
		}
		stats.Delivered++
	}

	return stats, dispatchErr
}

func (d *OutboxDispatcher) dispatchOne(ctx context.Context, task Task) error {
	d.mu.RLock()
	handler, ok := d.handlers[task.Kind]
	d.mu.RUnlock()
	if !ok || handler == nil {
		return fmt.Errorf("core: no handler registered for task kind %q", task.Kind)
	}
	if err := handler.Handle(ctx, task); err != nil {
		return fmt.Errorf("core: task handler %q failed for task %q: %w", task.Kind, task.ID, err)
	}
	return nil
}

func (d *OutboxDispatcher) retryTask(ctx context.Context, task Task, cause error) error {
	if task.Attempts+1 >= d.config.MaxAttempts {
		return d.store.Retry(ctx, strings.TrimSpace(task.ID), cause, time.Time{})
	}
	nextAttemptAt := d.now().Add(d.nextBackoffDelay(task.Attempts + 1))
	return d.store.Retry(ctx, strings.TrimSpace(task.ID), cause, nextAttemptAt)
}

func (d *OutboxDispatcher) nextBackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(d.config.InitialBackoff)
	multiplier := math.Pow(2, float64(attempt-1))
	next := time.Duration(base * multiplier)
	if next < 0 {
		return d.config.MaxBackoff
	}
	if next > d.config.MaxBackoff {
		return d.config.MaxBackoff
	}
	return next
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

package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type recordingTaskHandler struct {
	mu      sync.Mutex
	kind    TaskKind
	handled []Task
	fail    func(task Task) error
}

func (h *recordingTaskHandler) Kind() TaskKind { return h.kind }

func (h *recordingTaskHandler) Handle(_ context.Context, task Task) error {
	h.mu.Lock()
	h.handled = append(h.handled, task)
	h.mu.Unlock()
	if h.fail != nil {
		return h.fail(task)
	}
	return nil
}

func (h *recordingTaskHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestOutboxDispatcher_DeliversPendingTasks(t *testing.T) {
	store := newMemoryTaskStore()
	dispatcher, err := NewOutboxDispatcher(store, DefaultOutboxDispatcherConfig())
	if err != nil {
		t.Fatalf("build dispatcher: %v", err)
	}
	handler := &recordingTaskHandler{kind: TaskKindWelcomeEmail}
	if err := dispatcher.RegisterHandler(handler); err != nil {
		t.Fatalf("register handler: %v", err)
	}

	task, err := store.Enqueue(context.Background(), EnqueueTaskInput{
		Kind:           TaskKindWelcomeEmail,
		IdempotencyKey: "welcome:user_1",
		Payload:        map[string]any{"user_id": "user_1"},
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	stats, err := dispatcher.DispatchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if stats.Claimed != 1 || stats.Delivered != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if handler.count() != 1 {
		t.Fatalf("expected one handled task, got %d", handler.count())
	}

	stored, err := store.Get(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if stored.Status != TaskStatusDelivered {
		t.Fatalf("expected delivered, got %q", stored.Status)
	}
}

func TestOutboxDispatcher_RetriesWithBackoff(t *testing.T) {
	store := newMemoryTaskStore()
	config := DefaultOutboxDispatcherConfig()
	config.MaxAttempts = 3
	dispatcher, err := NewOutboxDispatcher(store, config)
	if err != nil {
		t.Fatalf("build dispatcher: %v", err)
	}
	handler := &recordingTaskHandler{
		kind: TaskKindAnalyticsEvent,
		fail: func(Task) error { return fmt.Errorf("downstream unavailable") },
	}
	if err := dispatcher.RegisterHandler(handler); err != nil {
		t.Fatalf("register handler: %v", err)
	}

	task, err := store.Enqueue(context.Background(), EnqueueTaskInput{Kind: TaskKindAnalyticsEvent})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	stats, err := dispatcher.DispatchPending(context.Background(), 10)
	if err == nil {
		t.Fatalf("expected dispatch error to surface")
	}
	if stats.Claimed != 1 || stats.Retried != 1 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	stored, err := store.Get(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if stored.Status != TaskStatusPending {
		t.Fatalf("expected pending for retry, got %q", stored.Status)
	}
	if stored.Attempts != 1 {
		t.Fatalf("expected one recorded attempt, got %d", stored.Attempts)
	}
	if stored.NextAttemptAt == nil || !stored.NextAttemptAt.After(time.Now().UTC()) {
		t.Fatalf("expected a future next attempt, got %v", stored.NextAttemptAt)
	}

	// The rescheduled task is not due yet, so a second pass claims nothing.
	stats, err = dispatcher.DispatchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if stats.Claimed != 0 {
		t.Fatalf("expected no claims before the backoff elapses, got %+v", stats)
	}
}

func TestOutboxDispatcher_ParksTaskAfterMaxAttempts(t *testing.T) {
	store := newMemoryTaskStore()
	config := DefaultOutboxDispatcherConfig()
	config.MaxAttempts = 2
	dispatcher, err := NewOutboxDispatcher(store, config)
	if err != nil {
		t.Fatalf("build dispatcher: %v", err)
	}
	handler := &recordingTaskHandler{
		kind: TaskKindCRMProvision,
		fail: func(Task) error { return fmt.Errorf("still broken") },
	}
	if err := dispatcher.RegisterHandler(handler); err != nil {
		t.Fatalf("register handler: %v", err)
	}

	task, err := store.Enqueue(context.Background(), EnqueueTaskInput{Kind: TaskKindCRMProvision})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := dispatcher.DispatchPending(context.Background(), 10); err == nil {
		t.Fatalf("expected first dispatch to report the failure")
	}
	// Force the retry to be due immediately.
	store.mu.Lock()
	stored := store.byID[task.ID]
	past := time.Now().UTC().Add(-time.Second)
	stored.NextAttemptAt = &past
	store.byID[task.ID] = stored
	store.mu.Unlock()

	stats, err := dispatcher.DispatchPending(context.Background(), 10)
	if err == nil {
		t.Fatalf("expected second dispatch to report the failure")
	}
	if stats.Failed != 1 {
		t.Fatalf("expected task to park as failed, got %+v", stats)
	}

	final, err := store.Get(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if final.Status != TaskStatusFailed {
		t.Fatalf("expected failed, got %q", final.Status)
	}
	if final.LastError == "" {
		t.Fatalf("expected the cause to be recorded")
	}
}

func TestOutboxDispatcher_MissingHandlerCountsAgainstAttempts(t *testing.T) {
	store := newMemoryTaskStore()
	dispatcher, err := NewOutboxDispatcher(store, DefaultOutboxDispatcherConfig())
	if err != nil {
		t.Fatalf("build dispatcher: %v", err)
	}

	if _, err := store.Enqueue(context.Background(), EnqueueTaskInput{Kind: TaskKindBehaviorNotice}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	stats, err := dispatcher.DispatchPending(context.Background(), 10)
	if err == nil {
		t.Fatalf("expected missing handler to surface")
	}
	if stats.Retried != 1 {
		t.Fatalf("expected a retry, got %+v", stats)
	}
}

func TestOutboxDispatcher_RejectsDuplicateHandlers(t *testing.T) {
	dispatcher, err := NewOutboxDispatcher(newMemoryTaskStore(), DefaultOutboxDispatcherConfig())
	if err != nil {
		t.Fatalf("build dispatcher: %v", err)
	}
	if err := dispatcher.RegisterHandler(&recordingTaskHandler{kind: TaskKindWelcomeEmail}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := dispatcher.RegisterHandler(&recordingTaskHandler{kind: TaskKindWelcomeEmail}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

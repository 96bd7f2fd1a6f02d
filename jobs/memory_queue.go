package jobs

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"github.com/voundbrand/go-authority/core"
)

// MemoryQueue is the in-process broker for single-binary deployments: the
// scheduler enqueues onto a buffered channel and the worker blocks on it.
// A message with the drop dedup policy is absorbed while a copy of the same
// idempotency key is still queued; the key frees on dequeue, so a tick that
// lands mid-run queues the next pass. Deployments with a real broker bridge
// it through adapters/gojob instead.
type MemoryQueue struct {
	mu      gosync.Mutex
	pending map[string]struct{}
	ch      chan *core.JobExecutionMessage
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &MemoryQueue{
		pending: map[string]struct{}{},
		ch:      make(chan *core.JobExecutionMessage, capacity),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, msg *core.JobExecutionMessage) error {
	if q == nil {
		return fmt.Errorf("jobs: memory queue is not configured")
	}
	if msg == nil {
		return fmt.Errorf("jobs: execution message is required")
	}
	key := queueDedupKey(msg)
	if key != "" {
		q.mu.Lock()
		if _, queued := q.pending[key]; queued {
			q.mu.Unlock()
			return nil
		}
		q.pending[key] = struct{}{}
		q.mu.Unlock()
	}
	select {
	case q.ch <- msg:
		return nil
	default:
		q.release(key)
		return fmt.Errorf("jobs: queue is full")
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if q == nil {
		return nil, fmt.Errorf("jobs: memory queue is not configured")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-q.ch:
		q.release(queueDedupKey(msg))
		return &memoryDelivery{queue: q, msg: msg}, nil
	}
}

func (q *MemoryQueue) release(key string) {
	if key == "" {
		return
	}
	q.mu.Lock()
	delete(q.pending, key)
	q.mu.Unlock()
}

func queueDedupKey(msg *core.JobExecutionMessage) string {
	if msg == nil || !strings.EqualFold(strings.TrimSpace(msg.DedupPolicy), "drop") {
		return ""
	}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return strings.TrimSpace(msg.JobID)
}

type memoryDelivery struct {
	queue *MemoryQueue
	msg   *core.JobExecutionMessage
}

func (d *memoryDelivery) Message() *core.JobExecutionMessage {
	if d == nil {
		return nil
	}
	return d.msg
}

func (d *memoryDelivery) Ack(context.Context) error {
	return nil
}

// Nack requeues after the requested delay; a dead-letter or non-requeue nack
// drops the message, since nothing outlives the process anyway.
func (d *memoryDelivery) Nack(_ context.Context, opts core.JobNackOptions) error {
	if d == nil || d.queue == nil {
		return fmt.Errorf("jobs: delivery is not configured")
	}
	if opts.DeadLetter || !opts.Requeue {
		return nil
	}
	msg := d.msg
	queue := d.queue
	if opts.Delay <= 0 {
		return queue.Enqueue(context.Background(), msg)
	}
	time.AfterFunc(opts.Delay, func() {
		_ = queue.Enqueue(context.Background(), msg)
	})
	return nil
}

var (
	_ core.JobEnqueuer = (*MemoryQueue)(nil)
	_ core.JobDequeuer = (*MemoryQueue)(nil)
	_ core.JobDelivery = (*memoryDelivery)(nil)
)

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/voundbrand/go-authority/core"
)

// claimLease is how long a claimed batch stays invisible to other workers.
// Task rows have no intermediate status; a claim pushes next_attempt_at one
// lease forward, so a worker that dies mid-batch loses the rows once the
// lease runs out.
const claimLease = time.Minute

type TaskStore struct {
	db *bun.DB
}

func NewTaskStore(db *bun.DB) (*TaskStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &TaskStore{db: db}, nil
}

// Enqueue inserts a pending task. When the idempotency key already exists the
// original task comes back unchanged, so callers can re-enqueue after a retry
// without producing a duplicate side effect.
func (s *TaskStore) Enqueue(ctx context.Context, in core.EnqueueTaskInput) (core.Task, error) {
	if s == nil || s.db == nil {
		return core.Task{}, fmt.Errorf("sqlstore: task store is not configured")
	}
	kind := core.TaskKind(strings.TrimSpace(string(in.Kind)))
	if kind == "" {
		return core.Task{}, fmt.Errorf("sqlstore: task kind is required")
	}
	key := strings.TrimSpace(in.IdempotencyKey)

	now := time.Now().UTC()
	record := &taskRecord{
		ID:             uuid.NewString(),
		Kind:           string(kind),
		IdempotencyKey: key,
		Payload:        RedactPayload(in.Payload),
		Status:         string(core.TaskStatusPending),
		Attempts:       0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if key != "" && isUniqueViolation(err) {
			return s.findByIdempotencyKey(ctx, key)
		}
		return core.Task{}, err
	}
	return record.toDomain(), nil
}

// ClaimBatch returns due pending tasks oldest first and leases them in the
// same statement. The inner status guard keeps two workers from walking away
// with the same rows.
func (s *TaskStore) ClaimBatch(ctx context.Context, limit int) ([]core.Task, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: task store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	now := time.Now().UTC()
	leaseUntil := now.Add(claimLease)
	var records []taskRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := `
WITH claimed AS (
	SELECT id
	FROM authority_outbox
	WHERE status = ?
	  AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
	ORDER BY created_at ASC
	LIMIT ?
)
UPDATE authority_outbox
SET next_attempt_at = ?, updated_at = ?
WHERE id IN (SELECT id FROM claimed)
  AND status = ?
RETURNING
	id,
	kind,
	idempotency_key,
	payload,
	status,
	attempts,
	next_attempt_at,
	last_error,
	created_at,
	updated_at
`
		return tx.NewRaw(
			query,
			string(core.TaskStatusPending),
			now,
			limit,
			leaseUntil,
			now,
			string(core.TaskStatusPending),
		).Scan(ctx, &records)
	})
	if err != nil {
		return nil, err
	}

	tasks := make([]core.Task, 0, len(records))
	for _, record := range records {
		tasks = append(tasks, record.toDomain())
	}
	return tasks, nil
}

func (s *TaskStore) Ack(ctx context.Context, taskID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: task store is not configured")
	}
	task, err := s.get(ctx, taskID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := task.TransitionTo(core.TaskStatusDelivered, now); err != nil {
		return err
	}
	_, err = s.db.NewUpdate().
		Model((*taskRecord)(nil)).
		Set("status = ?", string(core.TaskStatusDelivered)).
		Set("last_error = ?", "").
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", task.ID).
		Exec(ctx)
	return err
}

// Retry bumps the attempt counter and either reschedules the task or, when
// nextAttemptAt is zero, parks it as failed with no further attempts.
func (s *TaskStore) Retry(ctx context.Context, taskID string, cause error, nextAttemptAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: task store is not configured")
	}
	task, err := s.get(ctx, taskID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	status := core.TaskStatusPending
	var next *time.Time
	if nextAttemptAt.IsZero() {
		if err := task.TransitionTo(core.TaskStatusFailed, now); err != nil {
			return err
		}
		status = core.TaskStatusFailed
	} else {
		nextValue := nextAttemptAt.UTC()
		next = &nextValue
	}

	lastError := ""
	if cause != nil {
		lastError = strings.TrimSpace(cause.Error())
	}
	_, err = s.db.NewUpdate().
		Model((*taskRecord)(nil)).
		Set("status = ?", string(status)).
		Set("attempts = attempts + 1").
		Set("next_attempt_at = ?", next).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", now).
		Where("id = ?", task.ID).
		Exec(ctx)
	return err
}

func (s *TaskStore) get(ctx context.Context, id string) (core.Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Task{}, fmt.Errorf("sqlstore: task id is required")
	}
	record := &taskRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Task{}, fmt.Errorf("sqlstore: task not found: %q", id)
		}
		return core.Task{}, err
	}
	return record.toDomain(), nil
}

func (s *TaskStore) findByIdempotencyKey(ctx context.Context, key string) (core.Task, error) {
	record := &taskRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.idempotency_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Task{}, fmt.Errorf("sqlstore: task not found for idempotency key %q", key)
		}
		return core.Task{}, err
	}
	return record.toDomain(), nil
}

var _ core.TaskStore = (*TaskStore)(nil)

package behavior

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voundbrand/go-authority/core"
)

type recordingTaskStore struct {
	mu     sync.Mutex
	nextID int
	tasks  []core.Task
	err    error
}

func (s *recordingTaskStore) Enqueue(_ context.Context, in core.EnqueueTaskInput) (core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return core.Task{}, s.err
	}
	s.nextID++
	task := core.Task{
		ID:             fmt.Sprintf("task_%d", s.nextID),
		Kind:           in.Kind,
		IdempotencyKey: in.IdempotencyKey,
		Payload:        in.Payload,
		Status:         core.TaskStatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	s.tasks = append(s.tasks, task)
	return task, nil
}

func (s *recordingTaskStore) ClaimBatch(context.Context, int) ([]core.Task, error) {
	return nil, nil
}

func (s *recordingTaskStore) Ack(context.Context, string) error { return nil }

func (s *recordingTaskStore) Retry(context.Context, string, error, time.Time) error { return nil }

func (s *recordingTaskStore) byKind(kind core.TaskKind) []core.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]core.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if task.Kind == kind {
			matched = append(matched, task)
		}
	}
	return matched
}

type recordingTransactionStore struct {
	mu      sync.Mutex
	nextID  int
	created []Transaction
	err     error
}

func (s *recordingTransactionStore) Create(_ context.Context, in CreateTransactionInput) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Transaction{}, s.err
	}
	s.nextID++
	transaction := Transaction{
		ID:         fmt.Sprintf("txn_%d", s.nextID),
		OrgID:      in.OrgID,
		WorkflowID: in.WorkflowID,
		Subtotal:   in.Subtotal,
		Discount:   in.Discount,
		Tax:        in.Tax,
		Total:      in.Total,
		Lines:      in.Lines,
		CreatedAt:  time.Now().UTC(),
	}
	s.created = append(s.created, transaction)
	return transaction, nil
}

func (s *recordingTransactionStore) ListByOrg(_ context.Context, orgID string) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]Transaction, 0, len(s.created))
	for _, transaction := range s.created {
		if transaction.OrgID == orgID {
			matched = append(matched, transaction)
		}
	}
	return matched, nil
}

func (s *recordingTransactionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

type stubLinkStore struct {
	links []core.ProviderLink
	err   error
}

func (s *stubLinkStore) Upsert(context.Context, core.UpsertProviderLinkInput) (core.ProviderLink, error) {
	return core.ProviderLink{}, errors.New("not implemented")
}

func (s *stubLinkStore) GetByAccount(context.Context, string, string) (core.ProviderLink, error) {
	return core.ProviderLink{}, errors.New("not implemented")
}

func (s *stubLinkStore) FindByUser(_ context.Context, userID string) ([]core.ProviderLink, error) {
	if s.err != nil {
		return nil, s.err
	}
	matched := make([]core.ProviderLink, 0, len(s.links))
	for _, link := range s.links {
		if link.UserID == userID {
			matched = append(matched, link)
		}
	}
	return matched, nil
}

type recordingSyncJobStore struct {
	mu     sync.Mutex
	nextID int
	jobs   []core.SyncJob
	err    error
}

func (s *recordingSyncJobStore) Enqueue(_ context.Context, in core.EnqueueSyncJobInput) (core.SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return core.SyncJob{}, s.err
	}
	s.nextID++
	job := core.SyncJob{
		ID:         fmt.Sprintf("job_%d", s.nextID),
		OrgID:      in.OrgID,
		ProviderID: in.ProviderID,
		ObjectType: in.ObjectType,
		ObjectID:   in.ObjectID,
		Status:     core.SyncJobStatusQueued,
		CreatedAt:  time.Now().UTC(),
	}
	s.jobs = append(s.jobs, job)
	return job, nil
}

func (s *recordingSyncJobStore) Get(context.Context, string) (core.SyncJob, error) {
	return core.SyncJob{}, errors.New("not implemented")
}

func (s *recordingSyncJobStore) ListByOrg(_ context.Context, orgID string, status core.SyncJobStatus) ([]core.SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]core.SyncJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if job.OrgID != orgID {
			continue
		}
		if status != "" && job.Status != status {
			continue
		}
		matched = append(matched, job)
	}
	return matched, nil
}

func (s *recordingSyncJobStore) UpdateStatus(context.Context, string, core.SyncJobStatus, string) error {
	return nil
}

func (s *recordingSyncJobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

var (
	_ core.TaskStore         = (*recordingTaskStore)(nil)
	_ TransactionStore       = (*recordingTransactionStore)(nil)
	_ core.ProviderLinkStore = (*stubLinkStore)(nil)
	_ core.SyncJobStore      = (*recordingSyncJobStore)(nil)
)

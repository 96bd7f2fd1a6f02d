package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/voundbrand/go-authority/core"
)

type SyncJobStore struct {
	db   *bun.DB
	repo repository.Repository[*syncJobRecord]
}

func NewSyncJobStore(db *bun.DB) (*SyncJobStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*syncJobRecord](db, syncJobHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid sync job repository wiring: %w", err)
		}
	}
	return &SyncJobStore{db: db, repo: repo}, nil
}

func (s *SyncJobStore) Enqueue(ctx context.Context, in core.EnqueueSyncJobInput) (core.SyncJob, error) {
	if s == nil || s.db == nil {
		return core.SyncJob{}, fmt.Errorf("sqlstore: sync job store is not configured")
	}
	orgID := strings.TrimSpace(in.OrgID)
	providerID := strings.TrimSpace(in.ProviderID)
	objectType := strings.TrimSpace(in.ObjectType)
	if orgID == "" || providerID == "" {
		return core.SyncJob{}, fmt.Errorf("sqlstore: sync job org id and provider id are required")
	}
	if objectType == "" {
		return core.SyncJob{}, fmt.Errorf("sqlstore: sync job object type is required")
	}

	now := time.Now().UTC()
	record := &syncJobRecord{
		ID:         uuid.NewString(),
		OrgID:      orgID,
		ProviderID: providerID,
		ObjectType: objectType,
		ObjectID:   strings.TrimSpace(in.ObjectID),
		Status:     string(core.SyncJobStatusQueued),
		Attempts:   0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.SyncJob{}, err
	}
	return record.toDomain(), nil
}

func (s *SyncJobStore) Get(ctx context.Context, id string) (core.SyncJob, error) {
	if s == nil || s.db == nil {
		return core.SyncJob{}, fmt.Errorf("sqlstore: sync job store is not configured")
	}
	record := &syncJobRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.SyncJob{}, fmt.Errorf("sqlstore: sync job not found: %q", id)
		}
		return core.SyncJob{}, err
	}
	return record.toDomain(), nil
}

// ListByOrg filters by status when one is given; the empty status returns
// every job in the org.
func (s *SyncJobStore) ListByOrg(ctx context.Context, orgID string, status core.SyncJobStatus) ([]core.SyncJob, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: sync job store is not configured")
	}
	selectors := []repository.SelectCriteria{
		repository.SelectBy("org_id", "=", strings.TrimSpace(orgID)),
		repository.OrderBy("created_at ASC"),
	}
	if status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", string(status)))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]core.SyncJob, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// ListQueued returns queued jobs that are due, oldest first. An empty org id
// spans every org; a job parked by a retry hold stays out until the hold
// lapses.
func (s *SyncJobStore) ListQueued(ctx context.Context, orgID string, limit int) ([]core.SyncJob, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: sync job store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	query := s.db.NewSelect().
		Model((*syncJobRecord)(nil)).
		Where("?TableAlias.status = ?", string(core.SyncJobStatusQueued)).
		Where("(?TableAlias.next_attempt_at IS NULL OR ?TableAlias.next_attempt_at <= ?)", time.Now().UTC()).
		OrderExpr("?TableAlias.created_at ASC").
		Limit(limit)
	if trimmed := strings.TrimSpace(orgID); trimmed != "" {
		query = query.Where("?TableAlias.org_id = ?", trimmed)
	}

	records := []*syncJobRecord{}
	if err := query.Scan(ctx, &records); err != nil {
		return nil, err
	}
	out := make([]core.SyncJob, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// UpdateStatus applies the transition guard before touching the row, so an
// illegal move like succeeded back to queued never reaches the database.
func (s *SyncJobStore) UpdateStatus(ctx context.Context, id string, status core.SyncJobStatus, reason string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: sync job store is not configured")
	}
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := job.TransitionTo(status, now); err != nil {
		return err
	}
	query := s.db.NewUpdate().
		Model((*syncJobRecord)(nil)).
		Set("status = ?", string(status)).
		Set("last_error = ?", strings.TrimSpace(reason)).
		Set("updated_at = ?", now).
		Where("id = ?", job.ID)
	if status == core.SyncJobStatusRunning {
		query = query.Set("attempts = attempts + 1")
	}
	_, err = query.Exec(ctx)
	return err
}

var _ core.SyncJobStore = (*SyncJobStore)(nil)

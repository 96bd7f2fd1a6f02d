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

type APIKeyStore struct {
	db   *bun.DB
	repo repository.Repository[*apiKeyRecord]
}

func NewAPIKeyStore(db *bun.DB) (*APIKeyStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*apiKeyRecord](db, apiKeyHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid api key repository wiring: %w", err)
		}
	}
	return &APIKeyStore{db: db, repo: repo}, nil
}

func (s *APIKeyStore) Create(ctx context.Context, in core.CreateAPIKeyInput) (core.APIKey, error) {
	if s == nil || s.db == nil {
		return core.APIKey{}, fmt.Errorf("sqlstore: api key store is not configured")
	}
	if strings.TrimSpace(in.OrgID) == "" {
		return core.APIKey{}, fmt.Errorf("sqlstore: api key org id is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return core.APIKey{}, fmt.Errorf("sqlstore: api key name is required")
	}
	if strings.TrimSpace(in.KeyPrefix) == "" || strings.TrimSpace(in.SecretDigest) == "" {
		return core.APIKey{}, fmt.Errorf("sqlstore: api key prefix and digest are required")
	}

	record := newAPIKeyRecord(in, uuid.NewString(), time.Now().UTC())
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.APIKey{}, err
	}
	return record.toDomain(), nil
}

func (s *APIKeyStore) Get(ctx context.Context, id string) (core.APIKey, error) {
	if s == nil || s.db == nil {
		return core.APIKey{}, fmt.Errorf("sqlstore: api key store is not configured")
	}
	record := &apiKeyRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.APIKey{}, fmt.Errorf("sqlstore: api key not found: %q", id)
		}
		return core.APIKey{}, err
	}
	return record.toDomain(), nil
}

func (s *APIKeyStore) FindByPrefix(ctx context.Context, prefix string) ([]core.APIKey, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: api key store is not configured")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []core.APIKey{}, nil
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("key_prefix", "=", prefix),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.APIKey, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *APIKeyStore) ListByOrg(ctx context.Context, orgID string) ([]core.APIKey, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: api key store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("org_id", "=", strings.TrimSpace(orgID)),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.APIKey, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *APIKeyStore) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: api key store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: api key id is required")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.NewUpdate().
		Model((*apiKeyRecord)(nil)).
		Set("last_used_at = ?", at.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// UpdateStatus runs the domain transition guard before writing, so an
// illegal move like revoked back to active never reaches the database.
func (s *APIKeyStore) UpdateStatus(ctx context.Context, id string, status core.APIKeyStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: api key store is not configured")
	}
	key, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := key.TransitionTo(status, now); err != nil {
		return err
	}
	_, err = s.db.NewUpdate().
		Model((*apiKeyRecord)(nil)).
		Set("status = ?", string(key.Status)).
		Set("updated_at = ?", now).
		Where("id = ?", key.ID).
		Exec(ctx)
	return err
}

var _ core.APIKeyStore = (*APIKeyStore)(nil)

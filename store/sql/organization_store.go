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

type OrganizationStore struct {
	db *bun.DB
}

func NewOrganizationStore(db *bun.DB) (*OrganizationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &OrganizationStore{db: db}, nil
}

func (s *OrganizationStore) Create(ctx context.Context, in core.CreateOrganizationInput) (core.Organization, error) {
	if s == nil || s.db == nil {
		return core.Organization{}, fmt.Errorf("sqlstore: organization store is not configured")
	}
	name := strings.TrimSpace(in.Name)
	slug := strings.TrimSpace(strings.ToLower(in.Slug))
	if name == "" {
		return core.Organization{}, fmt.Errorf("sqlstore: organization name is required")
	}
	if slug == "" {
		return core.Organization{}, fmt.Errorf("sqlstore: organization slug is required")
	}

	now := time.Now().UTC()
	record := &organizationRecord{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.Organization{}, fmt.Errorf("sqlstore: organization slug already exists: %s", slug)
		}
		return core.Organization{}, err
	}
	return record.toDomain(), nil
}

func (s *OrganizationStore) Get(ctx context.Context, id string) (core.Organization, error) {
	if s == nil || s.db == nil {
		return core.Organization{}, fmt.Errorf("sqlstore: organization store is not configured")
	}
	record := &organizationRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Organization{}, fmt.Errorf("%w: id %q", core.ErrOrganizationNotFound, id)
		}
		return core.Organization{}, err
	}
	return record.toDomain(), nil
}

func (s *OrganizationStore) GetBySlug(ctx context.Context, slug string) (core.Organization, error) {
	if s == nil || s.db == nil {
		return core.Organization{}, fmt.Errorf("sqlstore: organization store is not configured")
	}
	slug = strings.TrimSpace(strings.ToLower(slug))
	record := &organizationRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.slug = ?", slug).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Organization{}, fmt.Errorf("%w: slug %q", core.ErrOrganizationNotFound, slug)
		}
		return core.Organization{}, err
	}
	return record.toDomain(), nil
}

func (s *OrganizationStore) Update(ctx context.Context, org core.Organization) (core.Organization, error) {
	if s == nil || s.db == nil {
		return core.Organization{}, fmt.Errorf("sqlstore: organization store is not configured")
	}
	id := strings.TrimSpace(org.ID)
	if id == "" {
		return core.Organization{}, fmt.Errorf("sqlstore: organization id is required")
	}
	name := strings.TrimSpace(org.Name)
	slug := strings.TrimSpace(strings.ToLower(org.Slug))
	if name == "" || slug == "" {
		return core.Organization{}, fmt.Errorf("sqlstore: organization name and slug are required")
	}
	result, err := s.db.NewUpdate().
		Model((*organizationRecord)(nil)).
		Set("name = ?", name).
		Set("slug = ?", slug).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Organization{}, fmt.Errorf("sqlstore: organization slug already exists: %s", slug)
		}
		return core.Organization{}, err
	}
	if affected, affectedErr := result.RowsAffected(); affectedErr == nil && affected == 0 {
		return core.Organization{}, fmt.Errorf("%w: id %q", core.ErrOrganizationNotFound, id)
	}
	return s.Get(ctx, id)
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ core.OrganizationStore = (*OrganizationStore)(nil)

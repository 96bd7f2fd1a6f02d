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

type MembershipStore struct {
	db   *bun.DB
	repo repository.Repository[*membershipRecord]
}

func NewMembershipStore(db *bun.DB) (*MembershipStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*membershipRecord](db, membershipHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid membership repository wiring: %w", err)
		}
	}
	return &MembershipStore{db: db, repo: repo}, nil
}

func (s *MembershipStore) Upsert(ctx context.Context, in core.UpsertMembershipInput) (core.Membership, error) {
	if s == nil || s.db == nil {
		return core.Membership{}, fmt.Errorf("sqlstore: membership store is not configured")
	}
	orgID := strings.TrimSpace(in.OrgID)
	userID := strings.TrimSpace(in.UserID)
	if orgID == "" || userID == "" {
		return core.Membership{}, fmt.Errorf("sqlstore: membership org id and user id are required")
	}
	role := in.Role
	if !role.Valid() {
		role = core.ParseRole(string(role))
	}

	now := time.Now().UTC()
	record := &membershipRecord{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		UserID:    userID,
		Role:      string(role),
		IsDefault: in.IsDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (org_id, user_id) DO UPDATE").
		Set("role = EXCLUDED.role").
		Set("is_default = EXCLUDED.is_default").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return core.Membership{}, err
	}
	return s.Get(ctx, orgID, userID)
}

func (s *MembershipStore) Get(ctx context.Context, orgID string, userID string) (core.Membership, error) {
	if s == nil || s.db == nil {
		return core.Membership{}, fmt.Errorf("sqlstore: membership store is not configured")
	}
	record := &membershipRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.org_id = ?", strings.TrimSpace(orgID)).
		Where("?TableAlias.user_id = ?", strings.TrimSpace(userID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Membership{}, fmt.Errorf("%w: org %q user %q", core.ErrMembershipNotFound, orgID, userID)
		}
		return core.Membership{}, err
	}
	return record.toDomain(), nil
}

func (s *MembershipStore) ListByUser(ctx context.Context, userID string) ([]core.Membership, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: membership store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", strings.TrimSpace(userID)),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Membership, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *MembershipStore) ListByOrg(ctx context.Context, orgID string) ([]core.Membership, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: membership store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("org_id", "=", strings.TrimSpace(orgID)),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Membership, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *MembershipStore) ClearDefault(ctx context.Context, userID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: membership store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("sqlstore: membership user id is required")
	}
	_, err := s.db.NewUpdate().
		Model((*membershipRecord)(nil)).
		Set("is_default = ?", false).
		Set("updated_at = ?", time.Now().UTC()).
		Where("user_id = ?", userID).
		Where("is_default = ?", true).
		Exec(ctx)
	return err
}

func (s *MembershipStore) SetDefault(ctx context.Context, orgID string, userID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: membership store is not configured")
	}
	orgID = strings.TrimSpace(orgID)
	userID = strings.TrimSpace(userID)
	if orgID == "" || userID == "" {
		return fmt.Errorf("sqlstore: membership org id and user id are required")
	}
	result, err := s.db.NewUpdate().
		Model((*membershipRecord)(nil)).
		Set("is_default = ?", true).
		Set("updated_at = ?", time.Now().UTC()).
		Where("org_id = ?", orgID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, affectedErr := result.RowsAffected(); affectedErr == nil && affected == 0 {
		return fmt.Errorf("%w: org %q user %q", core.ErrMembershipNotFound, orgID, userID)
	}
	return nil
}

var _ core.MembershipStore = (*MembershipStore)(nil)

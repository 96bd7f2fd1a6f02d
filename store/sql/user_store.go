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

type UserStore struct {
	db *bun.DB
}

func NewUserStore(db *bun.DB) (*UserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &UserStore{db: db}, nil
}

// Upsert keys on the lowercased email. Incoming names only replace stored
// names when they are non-empty, so a provider that omits profile fields
// cannot blank out what an earlier login captured.
func (s *UserStore) Upsert(ctx context.Context, in core.UpsertUserInput) (core.User, error) {
	if s == nil || s.db == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return core.User{}, fmt.Errorf("sqlstore: user email is required")
	}

	now := time.Now().UTC()
	record := &userRecord{
		ID:        uuid.NewString(),
		Email:     email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (email) DO UPDATE").
		Set("first_name = CASE WHEN EXCLUDED.first_name <> '' THEN EXCLUDED.first_name ELSE first_name END").
		Set("last_name = CASE WHEN EXCLUDED.last_name <> '' THEN EXCLUDED.last_name ELSE last_name END").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return core.User{}, err
	}
	return s.GetByEmail(ctx, email)
}

func (s *UserStore) Get(ctx context.Context, id string) (core.User, error) {
	if s == nil || s.db == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	record := &userRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, fmt.Errorf("sqlstore: user not found: %q", id)
		}
		return core.User{}, err
	}
	return record.toDomain(), nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (core.User, error) {
	if s == nil || s.db == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	record := &userRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, fmt.Errorf("sqlstore: user not found: %q", email)
		}
		return core.User{}, err
	}
	return record.toDomain(), nil
}

var _ core.UserStore = (*UserStore)(nil)

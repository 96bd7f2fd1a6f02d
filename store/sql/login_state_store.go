package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/voundbrand/go-authority/core"
)

const defaultLoginStateTTL = 10 * time.Minute

// LoginStateStore persists in-flight OAuth round trips. Consume deletes the
// row inside the same transaction that reads it, so a state is spent on first
// redemption regardless of the expiry outcome.
type LoginStateStore struct {
	db  *bun.DB
	ttl time.Duration
}

func NewLoginStateStore(db *bun.DB, ttl time.Duration) (*LoginStateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if ttl <= 0 {
		ttl = defaultLoginStateTTL
	}
	return &LoginStateStore{db: db, ttl: ttl}, nil
}

func (s *LoginStateStore) Save(ctx context.Context, record core.LoginState) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: login state store is not configured")
	}
	record.State = strings.TrimSpace(record.State)
	if record.State == "" {
		return fmt.Errorf("sqlstore: login state is required")
	}
	if err := record.Flow.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(s.ttl)
	}

	_, err := s.db.NewInsert().Model(newLoginStateRecord(record)).Exec(ctx)
	return err
}

func (s *LoginStateStore) Consume(ctx context.Context, state string) (core.LoginState, error) {
	if s == nil || s.db == nil {
		return core.LoginState{}, fmt.Errorf("sqlstore: login state store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return core.LoginState{}, fmt.Errorf("sqlstore: login state is required")
	}

	record := &loginStateRecord{}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if scanErr := tx.NewSelect().
			Model(record).
			Where("?TableAlias.state = ?", state).
			Limit(1).
			Scan(ctx); scanErr != nil {
			return scanErr
		}
		_, deleteErr := tx.NewDelete().
			Model((*loginStateRecord)(nil)).
			Where("state = ?", state).
			Exec(ctx)
		return deleteErr
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.LoginState{}, core.ErrLoginStateNotFound
		}
		return core.LoginState{}, err
	}
	if !record.ExpiresAt.IsZero() && time.Now().UTC().After(record.ExpiresAt) {
		return core.LoginState{}, core.ErrLoginStateNotFound
	}
	return record.toDomain(), nil
}

func (s *LoginStateStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: login state store is not configured")
	}
	if before.IsZero() {
		before = time.Now().UTC()
	}
	result, err := s.db.NewDelete().
		Model((*loginStateRecord)(nil)).
		Where("expires_at < ?", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}

var _ core.LoginStateStore = (*LoginStateStore)(nil)

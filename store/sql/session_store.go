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

type SessionStore struct {
	db   *bun.DB
	repo repository.Repository[*sessionRecord]
}

func NewSessionStore(db *bun.DB) (*SessionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*sessionRecord](db, sessionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid session repository wiring: %w", err)
		}
	}
	return &SessionStore{db: db, repo: repo}, nil
}

func (s *SessionStore) Create(ctx context.Context, in core.CreateSessionInput) (core.Session, error) {
	if s == nil || s.db == nil {
		return core.Session{}, fmt.Errorf("sqlstore: session store is not configured")
	}
	if err := in.Kind.Validate(); err != nil {
		return core.Session{}, err
	}
	if strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.OrgID) == "" {
		return core.Session{}, fmt.Errorf("sqlstore: session user id and org id are required")
	}
	if strings.TrimSpace(in.TokenDigest) == "" {
		return core.Session{}, fmt.Errorf("sqlstore: session token digest is required")
	}
	if in.ExpiresAt.IsZero() {
		return core.Session{}, fmt.Errorf("sqlstore: session expiry is required")
	}

	record := newSessionRecord(in, uuid.NewString(), time.Now().UTC())
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Session{}, err
	}
	return record.toDomain(), nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (core.Session, error) {
	if s == nil || s.db == nil {
		return core.Session{}, fmt.Errorf("sqlstore: session store is not configured")
	}
	record := &sessionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Session{}, fmt.Errorf("sqlstore: session not found: %q", id)
		}
		return core.Session{}, err
	}
	return record.toDomain(), nil
}

func (s *SessionStore) FindByPrefix(ctx context.Context, prefix string) ([]core.Session, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: session store is not configured")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []core.Session{}, nil
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("token_prefix", "=", prefix),
		repository.OrderBy("issued_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Session, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// FindLegacyByToken serves only rows written before token hashing; hashed
// rows never match because their legacy column is empty.
func (s *SessionStore) FindLegacyByToken(ctx context.Context, token string) (core.Session, error) {
	if s == nil || s.db == nil {
		return core.Session{}, fmt.Errorf("sqlstore: session store is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return core.Session{}, fmt.Errorf("sqlstore: session not found: empty token")
	}
	record := &sessionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.legacy_token = ?", token).
		Where("?TableAlias.legacy_token <> ''").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Session{}, fmt.Errorf("sqlstore: session not found for legacy token")
		}
		return core.Session{}, err
	}
	return record.toDomain(), nil
}

// CountLegacy reports how many sessions still authenticate through the
// plaintext column. Rotation drives the number to zero.
func (s *SessionStore) CountLegacy(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: session store is not configured")
	}
	return s.db.NewSelect().
		Model((*sessionRecord)(nil)).
		Where("?TableAlias.legacy_token <> ''").
		Count(ctx)
}

func (s *SessionStore) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: session store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: session id is required")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.NewUpdate().
		Model((*sessionRecord)(nil)).
		Set("last_used_at = ?", at.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// SaveRotation swaps in the new prefix and digest and clears any legacy
// plaintext in one statement, so a rotated session is hashed from that write
// on.
func (s *SessionStore) SaveRotation(ctx context.Context, in core.RotateSessionInput) (core.Session, error) {
	if s == nil || s.db == nil {
		return core.Session{}, fmt.Errorf("sqlstore: session store is not configured")
	}
	id := strings.TrimSpace(in.SessionID)
	if id == "" {
		return core.Session{}, fmt.Errorf("sqlstore: session id is required")
	}
	if strings.TrimSpace(in.TokenDigest) == "" {
		return core.Session{}, fmt.Errorf("sqlstore: session token digest is required")
	}
	rotatedAt := in.RotatedAt.UTC()
	if rotatedAt.IsZero() {
		rotatedAt = time.Now().UTC()
	}
	result, err := s.db.NewUpdate().
		Model((*sessionRecord)(nil)).
		Set("token_prefix = ?", in.TokenPrefix).
		Set("token_digest = ?", in.TokenDigest).
		Set("legacy_token = ''").
		Set("updated_at = ?", rotatedAt).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return core.Session{}, err
	}
	if affected, affectedErr := result.RowsAffected(); affectedErr == nil && affected == 0 {
		return core.Session{}, fmt.Errorf("sqlstore: session not found: %q", id)
	}
	return s.Get(ctx, id)
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: session store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: session id is required")
	}
	_, err := s.db.NewDelete().
		Model((*sessionRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

var _ core.SessionStore = (*SessionStore)(nil)

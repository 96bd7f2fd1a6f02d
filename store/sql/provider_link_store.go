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

type ProviderLinkStore struct {
	db   *bun.DB
	repo repository.Repository[*providerLinkRecord]
}

func NewProviderLinkStore(db *bun.DB) (*ProviderLinkStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*providerLinkRecord](db, providerLinkHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid provider link repository wiring: %w", err)
		}
	}
	return &ProviderLinkStore{db: db, repo: repo}, nil
}

// Upsert keys on (provider_id, provider_account_id). A relink after a token
// refresh or a scope change replaces every stored field, including the
// sealed credential.
func (s *ProviderLinkStore) Upsert(ctx context.Context, in core.UpsertProviderLinkInput) (core.ProviderLink, error) {
	if s == nil || s.db == nil {
		return core.ProviderLink{}, fmt.Errorf("sqlstore: provider link store is not configured")
	}
	providerID := strings.TrimSpace(in.ProviderID)
	accountID := strings.TrimSpace(in.ProviderAccountID)
	userID := strings.TrimSpace(in.UserID)
	if providerID == "" || accountID == "" {
		return core.ProviderLink{}, fmt.Errorf("sqlstore: provider link provider id and account id are required")
	}
	if userID == "" {
		return core.ProviderLink{}, fmt.Errorf("sqlstore: provider link user id is required")
	}

	now := time.Now().UTC()
	record := &providerLinkRecord{
		ID:                  uuid.NewString(),
		UserID:              userID,
		OrgID:               strings.TrimSpace(in.OrgID),
		ProviderID:          providerID,
		ProviderAccountID:   accountID,
		Email:               strings.ToLower(strings.TrimSpace(in.Email)),
		EncryptedCredential: in.EncryptedCredential,
		Scopes:              copyStrings(in.Scopes),
		ExpiresAt:           in.ExpiresAt,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (provider_id, provider_account_id) DO UPDATE").
		Set("user_id = EXCLUDED.user_id").
		Set("org_id = EXCLUDED.org_id").
		Set("email = EXCLUDED.email").
		Set("encrypted_credential = EXCLUDED.encrypted_credential").
		Set("scopes = EXCLUDED.scopes").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return core.ProviderLink{}, err
	}
	return s.GetByAccount(ctx, providerID, accountID)
}

func (s *ProviderLinkStore) GetByAccount(ctx context.Context, providerID string, providerAccountID string) (core.ProviderLink, error) {
	if s == nil || s.db == nil {
		return core.ProviderLink{}, fmt.Errorf("sqlstore: provider link store is not configured")
	}
	record := &providerLinkRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", strings.TrimSpace(providerID)).
		Where("?TableAlias.provider_account_id = ?", strings.TrimSpace(providerAccountID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ProviderLink{}, fmt.Errorf("sqlstore: provider link not found: %s/%s", providerID, providerAccountID)
		}
		return core.ProviderLink{}, err
	}
	return record.toDomain(), nil
}

func (s *ProviderLinkStore) FindByUser(ctx context.Context, userID string) ([]core.ProviderLink, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: provider link store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", strings.TrimSpace(userID)),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.ProviderLink, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

var _ core.ProviderLinkStore = (*ProviderLinkStore)(nil)

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

	"github.com/voundbrand/go-authority/behavior"
)

type ChainStore struct {
	db *bun.DB
}

func NewChainStore(db *bun.DB) (*ChainStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &ChainStore{db: db}, nil
}

func (s *ChainStore) GetChain(ctx context.Context, orgID string, workflowID string) (behavior.Chain, error) {
	if s == nil || s.db == nil {
		return behavior.Chain{}, fmt.Errorf("sqlstore: chain store is not configured")
	}
	record := &chainRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.org_id = ?", strings.TrimSpace(orgID)).
		Where("?TableAlias.workflow_id = ?", strings.TrimSpace(workflowID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return behavior.Chain{}, fmt.Errorf("%w: org %q workflow %q", behavior.ErrChainNotFound, orgID, workflowID)
		}
		return behavior.Chain{}, err
	}
	return record.toDomain(), nil
}

// SaveChain upserts on (org_id, workflow_id); saving replaces the whole
// descriptor list, there is no partial merge.
func (s *ChainStore) SaveChain(ctx context.Context, chain behavior.Chain) (behavior.Chain, error) {
	if s == nil || s.db == nil {
		return behavior.Chain{}, fmt.Errorf("sqlstore: chain store is not configured")
	}
	if err := chain.Validate(); err != nil {
		return behavior.Chain{}, err
	}

	now := time.Now().UTC()
	record := newChainRecord(chain, uuid.NewString(), now)
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (org_id, workflow_id) DO UPDATE").
		Set("error_handling = EXCLUDED.error_handling").
		Set("behaviors = EXCLUDED.behaviors").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return behavior.Chain{}, err
	}
	return s.GetChain(ctx, chain.OrgID, chain.WorkflowID)
}

var _ behavior.ChainStore = (*ChainStore)(nil)

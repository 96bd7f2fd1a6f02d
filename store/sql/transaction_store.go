package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/voundbrand/go-authority/behavior"
)

type TransactionStore struct {
	db   *bun.DB
	repo repository.Repository[*transactionRecord]
}

func NewTransactionStore(db *bun.DB) (*TransactionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*transactionRecord](db, transactionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid transaction repository wiring: %w", err)
		}
	}
	return &TransactionStore{db: db, repo: repo}, nil
}

func (s *TransactionStore) Create(ctx context.Context, in behavior.CreateTransactionInput) (behavior.Transaction, error) {
	if s == nil || s.db == nil {
		return behavior.Transaction{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	orgID := strings.TrimSpace(in.OrgID)
	workflowID := strings.TrimSpace(in.WorkflowID)
	if orgID == "" || workflowID == "" {
		return behavior.Transaction{}, fmt.Errorf("sqlstore: transaction org id and workflow id are required")
	}

	lines := make([]behavior.LineItem, len(in.Lines))
	copy(lines, in.Lines)
	record := &transactionRecord{
		ID:         uuid.NewString(),
		OrgID:      orgID,
		WorkflowID: workflowID,
		Subtotal:   in.Subtotal,
		Discount:   in.Discount,
		Tax:        in.Tax,
		Total:      in.Total,
		Lines:      lines,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return behavior.Transaction{}, err
	}
	return record.toDomain(), nil
}

func (s *TransactionStore) ListByOrg(ctx context.Context, orgID string) ([]behavior.Transaction, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("org_id", "=", strings.TrimSpace(orgID)),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]behavior.Transaction, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

var _ behavior.TransactionStore = (*TransactionStore)(nil)

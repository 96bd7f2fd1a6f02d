package query

import (
	"context"

	"github.com/voundbrand/go-authority/behavior"
	"github.com/voundbrand/go-authority/core"
)

type CredentialReader interface {
	VerifyCredential(ctx context.Context, token string) (core.AuthContext, error)
}

type APIKeyReader interface {
	ListAPIKeys(ctx context.Context, orgID string) ([]core.APIKey, error)
}

type OrganizationReader interface {
	GetOrganization(ctx context.Context, orgID string) (core.Organization, error)
}

type ChainReader interface {
	GetChain(ctx context.Context, orgID string, workflowID string) (behavior.Chain, error)
}

type SyncJobReader interface {
	ListSyncJobs(ctx context.Context, orgID string, status core.SyncJobStatus) ([]core.SyncJob, error)
}

type TransactionReader interface {
	ListTransactions(ctx context.Context, orgID string) ([]behavior.Transaction, error)
}

type MembershipReader interface {
	ListMemberships(ctx context.Context, orgID string) ([]core.Membership, error)
}

type ResolveCredentialQuery struct {
	reader CredentialReader
}

func NewResolveCredentialQuery(reader CredentialReader) *ResolveCredentialQuery {
	return &ResolveCredentialQuery{reader: reader}
}

func (q *ResolveCredentialQuery) Query(
	ctx context.Context,
	msg ResolveCredentialMessage,
) (core.AuthContext, error) {
	if q == nil || q.reader == nil {
		return core.AuthContext{}, queryDependencyError("query: credential reader is required")
	}
	return q.reader.VerifyCredential(ctx, msg.Token)
}

type ListAPIKeysQuery struct {
	reader APIKeyReader
}

func NewListAPIKeysQuery(reader APIKeyReader) *ListAPIKeysQuery {
	return &ListAPIKeysQuery{reader: reader}
}

func (q *ListAPIKeysQuery) Query(ctx context.Context, msg ListAPIKeysMessage) ([]core.APIKey, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: api key reader is required")
	}
	return q.reader.ListAPIKeys(ctx, msg.OrgID)
}

type GetOrganizationQuery struct {
	reader OrganizationReader
}

func NewGetOrganizationQuery(reader OrganizationReader) *GetOrganizationQuery {
	return &GetOrganizationQuery{reader: reader}
}

func (q *GetOrganizationQuery) Query(
	ctx context.Context,
	msg GetOrganizationMessage,
) (core.Organization, error) {
	if q == nil || q.reader == nil {
		return core.Organization{}, queryDependencyError("query: organization reader is required")
	}
	return q.reader.GetOrganization(ctx, msg.OrgID)
}

type GetChainQuery struct {
	reader ChainReader
}

func NewGetChainQuery(reader ChainReader) *GetChainQuery {
	return &GetChainQuery{reader: reader}
}

func (q *GetChainQuery) Query(ctx context.Context, msg GetChainMessage) (behavior.Chain, error) {
	if q == nil || q.reader == nil {
		return behavior.Chain{}, queryDependencyError("query: chain reader is required")
	}
	return q.reader.GetChain(ctx, msg.OrgID, msg.WorkflowID)
}

type ListSyncJobsQuery struct {
	reader SyncJobReader
}

func NewListSyncJobsQuery(reader SyncJobReader) *ListSyncJobsQuery {
	return &ListSyncJobsQuery{reader: reader}
}

func (q *ListSyncJobsQuery) Query(ctx context.Context, msg ListSyncJobsMessage) ([]core.SyncJob, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: sync job reader is required")
	}
	return q.reader.ListSyncJobs(ctx, msg.OrgID, msg.Status)
}

type ListTransactionsQuery struct {
	reader TransactionReader
}

func NewListTransactionsQuery(reader TransactionReader) *ListTransactionsQuery {
	return &ListTransactionsQuery{reader: reader}
}

func (q *ListTransactionsQuery) Query(
	ctx context.Context,
	msg ListTransactionsMessage,
) ([]behavior.Transaction, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: transaction reader is required")
	}
	return q.reader.ListTransactions(ctx, msg.OrgID)
}

type ListMembershipsQuery struct {
	reader MembershipReader
}

func NewListMembershipsQuery(reader MembershipReader) *ListMembershipsQuery {
	return &ListMembershipsQuery{reader: reader}
}

func (q *ListMembershipsQuery) Query(
	ctx context.Context,
	msg ListMembershipsMessage,
) ([]core.Membership, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: membership reader is required")
	}
	return q.reader.ListMemberships(ctx, msg.OrgID)
}

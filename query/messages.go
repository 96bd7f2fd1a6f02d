package query

import (
	"strings"

	"github.com/voundbrand/go-authority/core"
)

const (
	TypeResolveCredential = "authority.query.credential.resolve"
	TypeListAPIKeys       = "authority.query.apikey.list"
	TypeGetOrganization   = "authority.query.org.get"
	TypeGetChain          = "authority.query.workflow.chain.get"
	TypeListSyncJobs      = "authority.query.sync.jobs.list"
	TypeListTransactions  = "authority.query.workflow.transactions.list"
	TypeListMemberships   = "authority.query.org.memberships.list"
)

// ResolveCredentialMessage resolves a raw bearer credential into an auth
// context. The token never appears in the message type or logs.
type ResolveCredentialMessage struct {
	Token string
}

func (ResolveCredentialMessage) Type() string { return TypeResolveCredential }

func (m ResolveCredentialMessage) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return queryValidationError("token", "token is required")
	}
	return nil
}

type ListAPIKeysMessage struct {
	OrgID string
}

func (ListAPIKeysMessage) Type() string { return TypeListAPIKeys }

func (m ListAPIKeysMessage) Validate() error {
	if strings.TrimSpace(m.OrgID) == "" {
		return queryValidationError("org_id", "org id is required")
	}
	return nil
}

type GetChainMessage struct {
	OrgID      string
	WorkflowID string
}

func (GetChainMessage) Type() string { return TypeGetChain }

func (m GetChainMessage) Validate() error {
	if strings.TrimSpace(m.OrgID) == "" {
		return queryValidationError("org_id", "org id is required")
	}
	if strings.TrimSpace(m.WorkflowID) == "" {
		return queryValidationError("workflow_id", "workflow id is required")
	}
	return nil
}

type GetOrganizationMessage struct {
	OrgID string
}

func (GetOrganizationMessage) Type() string { return TypeGetOrganization }

func (m GetOrganizationMessage) Validate() error {
	if strings.TrimSpace(m.OrgID) == "" {
		return queryValidationError("org_id", "org id is required")
	}
	return nil
}

type ListSyncJobsMessage struct {
	OrgID  string
	Status core.SyncJobStatus
}

func (ListSyncJobsMessage) Type() string { return TypeListSyncJobs }

func (m ListSyncJobsMessage) Validate() error {
	if strings.TrimSpace(m.OrgID) == "" {
		return queryValidationError("org_id", "org id is required")
	}
	switch m.Status {
	case "", core.SyncJobStatusQueued, core.SyncJobStatusRunning, core.SyncJobStatusSucceeded, core.SyncJobStatusFailed:
		return nil
	}
	return queryValidationError("status", "unknown sync job status")
}

type ListTransactionsMessage struct {
	OrgID string
}

func (ListTransactionsMessage) Type() string { return TypeListTransactions }

func (m ListTransactionsMessage) Validate() error {
	if strings.TrimSpace(m.OrgID) == "" {
		return queryValidationError("org_id", "org id is required")
	}
	return nil
}

type ListMembershipsMessage struct {
	OrgID string
}

func (ListMembershipsMessage) Type() string { return TypeListMemberships }

func (m ListMembershipsMessage) Validate() error {
	if strings.TrimSpace(m.OrgID) == "" {
		return queryValidationError("org_id", "org id is required")
	}
	return nil
}

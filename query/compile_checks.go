package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/voundbrand/go-authority/behavior"
	"github.com/voundbrand/go-authority/core"
)

var (
	_ gocmd.Querier[ResolveCredentialMessage, core.AuthContext]      = (*ResolveCredentialQuery)(nil)
	_ gocmd.Querier[ListAPIKeysMessage, []core.APIKey]               = (*ListAPIKeysQuery)(nil)
	_ gocmd.Querier[GetOrganizationMessage, core.Organization]       = (*GetOrganizationQuery)(nil)
	_ gocmd.Querier[GetChainMessage, behavior.Chain]                 = (*GetChainQuery)(nil)
	_ gocmd.Querier[ListSyncJobsMessage, []core.SyncJob]             = (*ListSyncJobsQuery)(nil)
	_ gocmd.Querier[ListTransactionsMessage, []behavior.Transaction] = (*ListTransactionsQuery)(nil)
	_ gocmd.Querier[ListMembershipsMessage, []core.Membership]       = (*ListMembershipsQuery)(nil)
)

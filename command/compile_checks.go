package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[BeginLoginMessage]             = (*BeginLoginCommand)(nil)
	_ gocmd.Commander[CompleteLoginMessage]          = (*CompleteLoginCommand)(nil)
	_ gocmd.Commander[RotateSessionMessage]          = (*RotateSessionCommand)(nil)
	_ gocmd.Commander[RevokeSessionMessage]          = (*RevokeSessionCommand)(nil)
	_ gocmd.Commander[IssueAPIKeyMessage]            = (*IssueAPIKeyCommand)(nil)
	_ gocmd.Commander[RevokeAPIKeyMessage]           = (*RevokeAPIKeyCommand)(nil)
	_ gocmd.Commander[ProvisionOrganizationMessage]  = (*ProvisionOrganizationCommand)(nil)
	_ gocmd.Commander[SetDefaultOrganizationMessage] = (*SetDefaultOrganizationCommand)(nil)
	_ gocmd.Commander[SaveChainMessage]              = (*SaveChainCommand)(nil)
	_ gocmd.Commander[RunWorkflowMessage]            = (*RunWorkflowCommand)(nil)
	_ gocmd.Commander[DispatchOutboxMessage]         = (*DispatchOutboxCommand)(nil)
)

package command

import (
	"strings"

	"github.com/voundbrand/go-authority/behavior"
	"github.com/voundbrand/go-authority/core"
)

const (
	TypeBeginLogin             = "authority.command.login.begin"
	TypeCompleteLogin          = "authority.command.login.complete"
	TypeRotateSession          = "authority.command.session.rotate"
	TypeRevokeSession          = "authority.command.session.revoke"
	TypeIssueAPIKey            = "authority.command.apikey.issue"
	TypeRevokeAPIKey           = "authority.command.apikey.revoke"
	TypeProvisionOrganization  = "authority.command.org.provision"
	TypeSetDefaultOrganization = "authority.command.org.set_default"
	TypeSaveChain              = "authority.command.workflow.chain.save"
	TypeRunWorkflow            = "authority.command.workflow.run"
	TypeDispatchOutbox         = "authority.command.outbox.dispatch"
)

type BeginLoginMessage struct {
	Input core.BeginLoginInput
}

func (BeginLoginMessage) Type() string { return TypeBeginLogin }

func (m BeginLoginMessage) Validate() error {
	if err := m.Input.Flow.Validate(); err != nil {
		return commandValidationError("flow", err.Error())
	}
	if strings.TrimSpace(m.Input.ProviderID) == "" {
		return commandValidationError("provider_id", "provider id is required")
	}
	return nil
}

type CompleteLoginMessage struct {
	Input core.CompleteLoginInput
}

func (CompleteLoginMessage) Type() string { return TypeCompleteLogin }

func (m CompleteLoginMessage) Validate() error {
	if strings.TrimSpace(m.Input.State) == "" {
		return commandValidationError("state", "login state is required")
	}
	if strings.TrimSpace(m.Input.Code) == "" {
		return commandValidationError("code", "authorization code is required")
	}
	return nil
}

type RotateSessionMessage struct {
	SessionID string
}

func (RotateSessionMessage) Type() string { return TypeRotateSession }

func (m RotateSessionMessage) Validate() error {
	if strings.TrimSpace(m.SessionID) == "" {
		return commandValidationError("session_id", "session id is required")
	}
	return nil
}

type RevokeSessionMessage struct {
	SessionID string
}

func (RevokeSessionMessage) Type() string { return TypeRevokeSession }

func (m RevokeSessionMessage) Validate() error {
	if strings.TrimSpace(m.SessionID) == "" {
		return commandValidationError("session_id", "session id is required")
	}
	return nil
}

type IssueAPIKeyMessage struct {
	Input core.IssueAPIKeyInput
}

func (IssueAPIKeyMessage) Type() string { return TypeIssueAPIKey }

func (m IssueAPIKeyMessage) Validate() error {
	if strings.TrimSpace(m.Input.OrgID) == "" {
		return commandValidationError("org_id", "org id is required")
	}
	if strings.TrimSpace(m.Input.Name) == "" {
		return commandValidationError("name", "key name is required")
	}
	if len(m.Input.Scopes) == 0 {
		return commandValidationError("scopes", "at least one scope is required")
	}
	return nil
}

type RevokeAPIKeyMessage struct {
	OrgID string
	KeyID string
}

func (RevokeAPIKeyMessage) Type() string { return TypeRevokeAPIKey }

func (m RevokeAPIKeyMessage) Validate() error {
	if strings.TrimSpace(m.OrgID) == "" {
		return commandValidationError("org_id", "org id is required")
	}
	if strings.TrimSpace(m.KeyID) == "" {
		return commandValidationError("key_id", "key id is required")
	}
	return nil
}

type ProvisionOrganizationMessage struct {
	Input core.ProvisionOrganizationInput
}

func (ProvisionOrganizationMessage) Type() string { return TypeProvisionOrganization }

func (m ProvisionOrganizationMessage) Validate() error {
	if strings.TrimSpace(m.Input.Name) == "" {
		return commandValidationError("name", "organization name is required")
	}
	if strings.TrimSpace(m.Input.Slug) == "" {
		return commandValidationError("slug", "organization slug is required")
	}
	if strings.TrimSpace(m.Input.OwnerID) == "" {
		return commandValidationError("owner_id", "owner id is required")
	}
	return nil
}

type SetDefaultOrganizationMessage struct {
	OrgID  string
	UserID string
}

func (SetDefaultOrganizationMessage) Type() string { return TypeSetDefaultOrganization }

func (m SetDefaultOrganizationMessage) Validate() error {
	if strings.TrimSpace(m.OrgID) == "" {
		return commandValidationError("org_id", "org id is required")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return nil
}

type SaveChainMessage struct {
	Chain behavior.Chain
}

func (SaveChainMessage) Type() string { return TypeSaveChain }

func (m SaveChainMessage) Validate() error {
	if err := m.Chain.Validate(); err != nil {
		return commandWrapValidation(err, "command: chain validation failed")
	}
	return nil
}

type RunWorkflowMessage struct {
	Run behavior.RunContext
}

func (RunWorkflowMessage) Type() string { return TypeRunWorkflow }

func (m RunWorkflowMessage) Validate() error {
	if strings.TrimSpace(m.Run.OrgID) == "" {
		return commandValidationError("org_id", "org id is required")
	}
	if strings.TrimSpace(m.Run.WorkflowID) == "" {
		return commandValidationError("workflow_id", "workflow id is required")
	}
	return nil
}

type DispatchOutboxMessage struct {
	BatchSize int
}

func (DispatchOutboxMessage) Type() string { return TypeDispatchOutbox }

func (m DispatchOutboxMessage) Validate() error {
	if m.BatchSize < 0 {
		return commandValidationError("batch_size", "batch size must be >= 0")
	}
	return nil
}

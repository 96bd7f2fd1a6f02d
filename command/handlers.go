package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/voundbrand/go-authority/behavior"
	"github.com/voundbrand/go-authority/core"
)

// MutatingService is the write surface of the authority service the command
// wrappers delegate to.
type MutatingService interface {
	BeginLogin(ctx context.Context, in core.BeginLoginInput) (core.BeginLoginResult, error)
	CompleteLogin(ctx context.Context, in core.CompleteLoginInput) (core.CompleteLoginResult, error)
	RotateSession(ctx context.Context, sessionID string) (core.Session, string, error)
	RevokeSession(ctx context.Context, sessionID string) error
	IssueAPIKey(ctx context.Context, in core.IssueAPIKeyInput) (core.IssueAPIKeyResult, error)
	RevokeAPIKey(ctx context.Context, orgID string, keyID string) error
	ProvisionOrganization(ctx context.Context, in core.ProvisionOrganizationInput) (core.ProvisionOrganizationResult, error)
	SetDefaultOrganization(ctx context.Context, orgID string, userID string) error
}

// WorkflowMutatingService saves chains and executes workflow runs against the
// stored chain.
type WorkflowMutatingService interface {
	SaveChain(ctx context.Context, chain behavior.Chain) (behavior.Chain, error)
	RunWorkflow(ctx context.Context, run behavior.RunContext) (behavior.RunReport, error)
}

// OutboxDispatchService drains pending outbox tasks.
type OutboxDispatchService interface {
	DispatchPending(ctx context.Context, batchSize int) (core.DispatchStats, error)
}

// RotateSessionResult pairs the rotated session with its replacement raw
// token for result collection on the bus.
type RotateSessionResult struct {
	Session core.Session
	Token   string
}

type BeginLoginCommand struct {
	service MutatingService
}

func NewBeginLoginCommand(service MutatingService) *BeginLoginCommand {
	return &BeginLoginCommand{service: service}
}

func (c *BeginLoginCommand) Execute(ctx context.Context, msg BeginLoginMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: login service is required")
	}
	out, err := c.service.BeginLogin(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteLoginCommand struct {
	service MutatingService
}

func NewCompleteLoginCommand(service MutatingService) *CompleteLoginCommand {
	return &CompleteLoginCommand{service: service}
}

func (c *CompleteLoginCommand) Execute(ctx context.Context, msg CompleteLoginMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: login service is required")
	}
	out, err := c.service.CompleteLogin(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RotateSessionCommand struct {
	service MutatingService
}

func NewRotateSessionCommand(service MutatingService) *RotateSessionCommand {
	return &RotateSessionCommand{service: service}
}

func (c *RotateSessionCommand) Execute(ctx context.Context, msg RotateSessionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: session service is required")
	}
	session, token, err := c.service.RotateSession(ctx, msg.SessionID)
	if err != nil {
		return err
	}
	storeResult(ctx, RotateSessionResult{Session: session, Token: token})
	return nil
}

type RevokeSessionCommand struct {
	service MutatingService
}

func NewRevokeSessionCommand(service MutatingService) *RevokeSessionCommand {
	return &RevokeSessionCommand{service: service}
}

func (c *RevokeSessionCommand) Execute(ctx context.Context, msg RevokeSessionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: session service is required")
	}
	return c.service.RevokeSession(ctx, msg.SessionID)
}

type IssueAPIKeyCommand struct {
	service MutatingService
}

func NewIssueAPIKeyCommand(service MutatingService) *IssueAPIKeyCommand {
	return &IssueAPIKeyCommand{service: service}
}

func (c *IssueAPIKeyCommand) Execute(ctx context.Context, msg IssueAPIKeyMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: api key service is required")
	}
	out, err := c.service.IssueAPIKey(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RevokeAPIKeyCommand struct {
	service MutatingService
}

func NewRevokeAPIKeyCommand(service MutatingService) *RevokeAPIKeyCommand {
	return &RevokeAPIKeyCommand{service: service}
}

func (c *RevokeAPIKeyCommand) Execute(ctx context.Context, msg RevokeAPIKeyMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: api key service is required")
	}
	return c.service.RevokeAPIKey(ctx, msg.OrgID, msg.KeyID)
}

type ProvisionOrganizationCommand struct {
	service MutatingService
}

func NewProvisionOrganizationCommand(service MutatingService) *ProvisionOrganizationCommand {
	return &ProvisionOrganizationCommand{service: service}
}

func (c *ProvisionOrganizationCommand) Execute(ctx context.Context, msg ProvisionOrganizationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: organization service is required")
	}
	out, err := c.service.ProvisionOrganization(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SetDefaultOrganizationCommand struct {
	service MutatingService
}

func NewSetDefaultOrganizationCommand(service MutatingService) *SetDefaultOrganizationCommand {
	return &SetDefaultOrganizationCommand{service: service}
}

func (c *SetDefaultOrganizationCommand) Execute(ctx context.Context, msg SetDefaultOrganizationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: organization service is required")
	}
	return c.service.SetDefaultOrganization(ctx, msg.OrgID, msg.UserID)
}

type SaveChainCommand struct {
	service WorkflowMutatingService
}

func NewSaveChainCommand(service WorkflowMutatingService) *SaveChainCommand {
	return &SaveChainCommand{service: service}
}

func (c *SaveChainCommand) Execute(ctx context.Context, msg SaveChainMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: workflow service is required")
	}
	out, err := c.service.SaveChain(ctx, msg.Chain)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RunWorkflowCommand struct {
	service WorkflowMutatingService
}

func NewRunWorkflowCommand(service WorkflowMutatingService) *RunWorkflowCommand {
	return &RunWorkflowCommand{service: service}
}

func (c *RunWorkflowCommand) Execute(ctx context.Context, msg RunWorkflowMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: workflow service is required")
	}
	out, err := c.service.RunWorkflow(ctx, msg.Run)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DispatchOutboxCommand struct {
	service OutboxDispatchService
}

func NewDispatchOutboxCommand(service OutboxDispatchService) *DispatchOutboxCommand {
	return &DispatchOutboxCommand{service: service}
}

func (c *DispatchOutboxCommand) Execute(ctx context.Context, msg DispatchOutboxMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: outbox dispatcher is required")
	}
	out, err := c.service.DispatchPending(ctx, msg.BatchSize)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

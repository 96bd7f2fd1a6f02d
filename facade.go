package authority

import (
	"context"
	"fmt"

	"github.com/voundbrand/go-authority/behavior"
	"github.com/voundbrand/go-authority/command"
	"github.com/voundbrand/go-authority/core"
	"github.com/voundbrand/go-authority/query"
)

// CommandQueryService is the slice of the core service the facade composes:
// the mutating surface plus the credential, key, organization, and
// membership readers. *core.Service satisfies it.
type CommandQueryService interface {
	command.MutatingService
	query.CredentialReader
	query.APIKeyReader
	query.OrganizationReader
	query.MembershipReader

	RequireScopes(ctx context.Context, auth core.AuthContext, needed ...string) error
	UpdateOrganization(ctx context.Context, orgID string, name string) (core.Organization, error)
}

// Commands holds one constructed handler per mutating message, ready to
// register on a go-command bus.
type Commands struct {
	BeginLogin             *command.BeginLoginCommand
	CompleteLogin          *command.CompleteLoginCommand
	RotateSession          *command.RotateSessionCommand
	RevokeSession          *command.RevokeSessionCommand
	IssueAPIKey            *command.IssueAPIKeyCommand
	RevokeAPIKey           *command.RevokeAPIKeyCommand
	ProvisionOrganization  *command.ProvisionOrganizationCommand
	SetDefaultOrganization *command.SetDefaultOrganizationCommand
	SaveChain              *command.SaveChainCommand
	RunWorkflow            *command.RunWorkflowCommand
	DispatchOutbox         *command.DispatchOutboxCommand
}

// Queries holds the constructed read handlers.
type Queries struct {
	ResolveCredential *query.ResolveCredentialQuery
	ListAPIKeys       *query.ListAPIKeysQuery
	GetOrganization   *query.GetOrganizationQuery
	GetChain          *query.GetChainQuery
	ListSyncJobs      *query.ListSyncJobsQuery
	ListTransactions  *query.ListTransactionsQuery
	ListMemberships   *query.ListMembershipsQuery
}

// Facade stitches the core service, the workflow engine, and the workflow
// stores into one application surface. It satisfies every command and query
// contract, so HTTP handlers, bus handlers, and embedders dispatch through
// the same methods.
type Facade struct {
	service      CommandQueryService
	engine       *behavior.Engine
	chains       behavior.ChainStore
	transactions behavior.TransactionStore
	syncJobs     core.SyncJobStore
	dispatcher   *core.OutboxDispatcher

	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	engine       *behavior.Engine
	chains       behavior.ChainStore
	transactions behavior.TransactionStore
	dispatcher   *core.OutboxDispatcher
}

// WithWorkflowEngine supplies the engine RunWorkflow executes chains with.
func WithWorkflowEngine(engine *behavior.Engine) FacadeOption {
	return func(options *facadeOptions) {
		options.engine = engine
	}
}

// WithChainStore overrides the chain store resolved from the service's
// repository factory.
func WithChainStore(store behavior.ChainStore) FacadeOption {
	return func(options *facadeOptions) {
		options.chains = store
	}
}

// WithTransactionStore overrides the transaction store resolved from the
// service's repository factory.
func WithTransactionStore(store behavior.TransactionStore) FacadeOption {
	return func(options *facadeOptions) {
		options.transactions = store
	}
}

// WithOutboxDispatcher supplies the dispatcher behind the outbox command.
// There is no fallback: a dispatcher built without its handlers would claim
// tasks only to fail them.
func WithOutboxDispatcher(dispatcher *core.OutboxDispatcher) FacadeOption {
	return func(options *facadeOptions) {
		options.dispatcher = dispatcher
	}
}

// NewFacade builds the application surface over a constructed service. Only
// the service is required; a missing workflow store or engine leaves those
// operations reporting an unconfigured surface when called.
func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("authority: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{
		service:      service,
		engine:       cfg.engine,
		chains:       cfg.chains,
		transactions: cfg.transactions,
		dispatcher:   cfg.dispatcher,
	}
	facade.resolveStores()

	facade.commands = Commands{
		BeginLogin:             command.NewBeginLoginCommand(service),
		CompleteLogin:          command.NewCompleteLoginCommand(service),
		RotateSession:          command.NewRotateSessionCommand(service),
		RevokeSession:          command.NewRevokeSessionCommand(service),
		IssueAPIKey:            command.NewIssueAPIKeyCommand(service),
		RevokeAPIKey:           command.NewRevokeAPIKeyCommand(service),
		ProvisionOrganization:  command.NewProvisionOrganizationCommand(service),
		SetDefaultOrganization: command.NewSetDefaultOrganizationCommand(service),
		SaveChain:              command.NewSaveChainCommand(facade),
		RunWorkflow:            command.NewRunWorkflowCommand(facade),
		DispatchOutbox:         command.NewDispatchOutboxCommand(facade),
	}
	facade.queries = Queries{
		ResolveCredential: query.NewResolveCredentialQuery(service),
		ListAPIKeys:       query.NewListAPIKeysQuery(service),
		GetOrganization:   query.NewGetOrganizationQuery(service),
		GetChain:          query.NewGetChainQuery(facade),
		ListSyncJobs:      query.NewListSyncJobsQuery(facade),
		ListTransactions:  query.NewListTransactionsQuery(facade),
		ListMemberships:   query.NewListMembershipsQuery(service),
	}

	return facade, nil
}

// resolveStores fills store gaps from the service's own dependencies. A
// service built without a repository factory leaves the workflow surface
// unconfigured.
func (f *Facade) resolveStores() {
	provider, ok := f.service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return
	}
	deps := provider.Dependencies()
	if f.syncJobs == nil {
		f.syncJobs = deps.SyncJobStore
	}
	factory := deps.RepositoryFactory
	if factory == nil {
		return
	}
	if f.chains == nil {
		if source, ok := factory.(interface {
			ChainStore() behavior.ChainStore
		}); ok {
			f.chains = source.ChainStore()
		}
	}
	if f.transactions == nil {
		if source, ok := factory.(interface {
			TransactionStore() behavior.TransactionStore
		}); ok {
			f.transactions = source.TransactionStore()
		}
	}
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func (f *Facade) BeginLogin(ctx context.Context, in core.BeginLoginInput) (core.BeginLoginResult, error) {
	if f == nil || f.service == nil {
		return core.BeginLoginResult{}, core.NewConfigurationError("authority: facade is not configured")
	}
	return f.service.BeginLogin(ctx, in)
}

func (f *Facade) CompleteLogin(ctx context.Context, in core.CompleteLoginInput) (core.CompleteLoginResult, error) {
	if f == nil || f.service == nil {
		return core.CompleteLoginResult{}, core.NewConfigurationError("authority: facade is not configured")
	}
	return f.service.CompleteLogin(ctx, in)
}

func (f *Facade) VerifyCredential(ctx context.Context, token string) (core.AuthContext, error) {
	if f == nil || f.service == nil {
		return core.AuthContext{}, core.NewConfigurationError("authority: facade is not configured")
	}
	return f.service.VerifyCredential(ctx, token)
}

func (f *Facade) RequireScopes(ctx context.Context, auth core.AuthContext, needed ...string) error {
	if f == nil || f.service == nil {
		return core.NewConfigurationError("authority: facade is not configured")
	}
	return f.service.RequireScopes(ctx, auth, needed...)
}

func (f *Facade) RotateSession(ctx context.Context, sessionID string) (core.Session, string, error) {
	if f == nil || f.service == nil {
		return core.Session{}, "", core.NewConfigurationError("authority: facade is not configured")
	}
	return f.service.RotateSession(ctx, sessionID)
}

func (f *Facade) RevokeSession(ctx context.Context, sessionID string) error {
	if f == nil || f.service == nil {
		return core.NewConfigurationError("authority: facade is not configured")
	}
	return f.service.RevokeSession(ctx, sessionID)
}

func (f *Facade) IssueAPIKey(ctx context.Context, in core.IssueAPIKeyInput) (core.IssueAPIKeyResult, error) {
	if f == nil || f.service == nil {
		return core.IssueAPIKeyResult{}, core.NewConfigurationError("authority: facade is not configured")
	}
	return f.service.IssueAPIKey(ctx, in)
}

func (f *Facade) ListAPIKeys(ctx context.Context, orgID string) ([]core.APIKey, error) {
	if f == nil || f.service == nil {
		return nil, core.NewConfigurationError("authority: facade is not configured")
	}
	return f.service.ListAPIKeys(ctx, orgID)
}

func (f *Facade) RevokeAPIKey(ctx context.Context, orgID string, keyID string) error {
	if f == nil || f.service == nil {
		return core.NewConfigurationError("authority: facade is not configured")
	}
	return f.service.RevokeAPIKey(ctx, orgID, keyID)
}

func (f *Facade) ProvisionOrganization(ctx context.Context, in core.ProvisionOrganizationInput) (core.ProvisionOrganizationResult, error) {
	if f == nil || f.service == nil {
		return core.ProvisionOrganizationResult{}, core.NewConfigurationError("authority: facade is not configured")
	}
	return f.service.ProvisionOrganization(ctx, in)
}

func (f *Facade) GetOrganization(ctx context.Context, orgID string) (core.Organization, error) {
	if f == nil || f.service == nil {
		return core.Organization{}, core.NewConfigurationError("authority: facade is not configured")
	}
	return f.service.GetOrganization(ctx, orgID)
}

func (f *Facade) UpdateOrganization(ctx context.Context, orgID string, name string) (core.Organization, error) {
	if f == nil || f.service == nil {
		return core.Organization{}, core.NewConfigurationError("authority: facade is not configured")
	}
	return f.service.UpdateOrganization(ctx, orgID, name)
}

func (f *Facade) ListMemberships(ctx context.Context, orgID string) ([]core.Membership, error) {
	if f == nil || f.service == nil {
		return nil, core.NewConfigurationError("authority: facade is not configured")
	}
	return f.service.ListMemberships(ctx, orgID)
}

func (f *Facade) SetDefaultOrganization(ctx context.Context, orgID string, userID string) error {
	if f == nil || f.service == nil {
		return core.NewConfigurationError("authority: facade is not configured")
	}
	return f.service.SetDefaultOrganization(ctx, orgID, userID)
}

// GetChain loads the behavior chain configured for a workflow.
func (f *Facade) GetChain(ctx context.Context, orgID string, workflowID string) (behavior.Chain, error) {
	if f == nil || f.chains == nil {
		return behavior.Chain{}, core.NewConfigurationError("authority: chain store is not configured")
	}
	return f.chains.GetChain(ctx, orgID, workflowID)
}

// SaveChain validates and persists a chain configuration.
func (f *Facade) SaveChain(ctx context.Context, chain behavior.Chain) (behavior.Chain, error) {
	if f == nil || f.chains == nil {
		return behavior.Chain{}, core.NewConfigurationError("authority: chain store is not configured")
	}
	if err := chain.Validate(); err != nil {
		return behavior.Chain{}, err
	}
	return f.chains.SaveChain(ctx, chain)
}

// RunWorkflow loads the chain configured for the run's workflow and executes
// it. A missing chain surfaces as behavior.ErrChainNotFound.
func (f *Facade) RunWorkflow(ctx context.Context, run behavior.RunContext) (behavior.RunReport, error) {
	if f == nil || f.engine == nil {
		return behavior.RunReport{}, core.NewConfigurationError("authority: workflow engine is not configured")
	}
	chain, err := f.GetChain(ctx, run.OrgID, run.WorkflowID)
	if err != nil {
		return behavior.RunReport{}, err
	}
	return f.engine.Run(ctx, chain, run)
}

func (f *Facade) ListSyncJobs(ctx context.Context, orgID string, status core.SyncJobStatus) ([]core.SyncJob, error) {
	if f == nil || f.syncJobs == nil {
		return nil, core.NewConfigurationError("authority: sync job store is not configured")
	}
	return f.syncJobs.ListByOrg(ctx, orgID, status)
}

func (f *Facade) ListTransactions(ctx context.Context, orgID string) ([]behavior.Transaction, error) {
	if f == nil || f.transactions == nil {
		return nil, core.NewConfigurationError("authority: transaction store is not configured")
	}
	return f.transactions.ListByOrg(ctx, orgID)
}

// DispatchPending drains one outbox batch through the registered handlers.
func (f *Facade) DispatchPending(ctx context.Context, batchSize int) (core.DispatchStats, error) {
	if f == nil || f.dispatcher == nil {
		return core.DispatchStats{}, core.NewConfigurationError("authority: outbox dispatcher is not configured")
	}
	return f.dispatcher.DispatchPending(ctx, batchSize)
}

var (
	_ CommandQueryService             = (*core.Service)(nil)
	_ command.MutatingService         = (*Facade)(nil)
	_ command.WorkflowMutatingService = (*Facade)(nil)
	_ command.OutboxDispatchService   = (*Facade)(nil)
	_ query.CredentialReader          = (*Facade)(nil)
	_ query.APIKeyReader              = (*Facade)(nil)
	_ query.OrganizationReader        = (*Facade)(nil)
	_ query.ChainReader               = (*Facade)(nil)
	_ query.SyncJobReader             = (*Facade)(nil)
	_ query.TransactionReader         = (*Facade)(nil)
	_ query.MembershipReader          = (*Facade)(nil)
)

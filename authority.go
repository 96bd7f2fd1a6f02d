package authority

import "github.com/voundbrand/go-authority/core"

type Config = core.Config

type SessionConfig = core.SessionConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type SessionStore = core.SessionStore
type APIKeyStore = core.APIKeyStore
type LoginStateStore = core.LoginStateStore
type OrganizationStore = core.OrganizationStore
type MembershipStore = core.MembershipStore
type UserStore = core.UserStore
type ProviderLinkStore = core.ProviderLinkStore
type TaskStore = core.TaskStore
type SyncJobStore = core.SyncJobStore
type SecretProvider = core.SecretProvider
type CredentialHasher = core.CredentialHasher
type Exchanger = core.Exchanger
type ExchangerRegistry = core.ExchangerRegistry

type BeginLoginInput = core.BeginLoginInput

type CompleteLoginInput = core.CompleteLoginInput

type IssueSessionInput = core.IssueSessionInput

type IssueAPIKeyInput = core.IssueAPIKeyInput

type ProvisionOrganizationInput = core.ProvisionOrganizationInput

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithSecretProvider    = core.WithSecretProvider
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithCredentialHasher  = core.WithCredentialHasher
	WithExchangerRegistry = core.WithExchangerRegistry
	WithSessionStore      = core.WithSessionStore
	WithAPIKeyStore       = core.WithAPIKeyStore
	WithLoginStateStore   = core.WithLoginStateStore
	WithOrganizationStore = core.WithOrganizationStore
	WithMembershipStore   = core.WithMembershipStore
	WithUserStore         = core.WithUserStore
	WithProviderLinkStore = core.WithProviderLinkStore
	WithTaskStore         = core.WithTaskStore
	WithSyncJobStore      = core.WithSyncJobStore
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}

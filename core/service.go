package core

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the composition root: every operation surface (HTTP, commands,
// jobs) goes through one of its methods. There is no package-level instance;
// callers construct and pass it explicitly.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	secretProvider    SecretProvider
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	hasher            CredentialHasher
	registry          ExchangerRegistry
	sessionStore      SessionStore
	apiKeyStore       APIKeyStore
	loginStateStore   LoginStateStore
	organizationStore OrganizationStore
	membershipStore   MembershipStore
	userStore         UserStore
	providerLinkStore ProviderLinkStore
	taskStore         TaskStore
	syncJobStore      SyncJobStore
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	SecretProvider    SecretProvider
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	Hasher            CredentialHasher
	Registry          ExchangerRegistry
	SessionStore      SessionStore
	APIKeyStore       APIKeyStore
	LoginStateStore   LoginStateStore
	OrganizationStore OrganizationStore
	MembershipStore   MembershipStore
	UserStore         UserStore
	ProviderLinkStore ProviderLinkStore
	TaskStore         TaskStore
	SyncJobStore      SyncJobStore
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("authority", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("authority"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewExchangerRegistry()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			stores, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if stores != nil {
				applyStoreProvider(&builder, stores)
			}
		} else if stores, ok := builder.repositoryFactory.(StoreProvider); ok {
			applyStoreProvider(&builder, stores)
		}
	}

	if builder.hasher == nil {
		builder.hasher = NewBcryptHasher(finalConfig.Session.BcryptCost)
	}
	if builder.loginStateStore == nil {
		builder.loginStateStore = NewMemoryLoginStateStore(finalConfig.LoginStateTTL())
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		secretProvider:    builder.secretProvider,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		hasher:            builder.hasher,
		registry:          builder.registry,
		sessionStore:      builder.sessionStore,
		apiKeyStore:       builder.apiKeyStore,
		loginStateStore:   builder.loginStateStore,
		organizationStore: builder.organizationStore,
		membershipStore:   builder.membershipStore,
		userStore:         builder.userStore,
		providerLinkStore: builder.providerLinkStore,
		taskStore:         builder.taskStore,
		syncJobStore:      builder.syncJobStore,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func applyStoreProvider(builder *serviceBuilder, stores StoreProvider) {
	if builder.sessionStore == nil {
		builder.sessionStore = stores.SessionStore()
	}
	if builder.apiKeyStore == nil {
		builder.apiKeyStore = stores.APIKeyStore()
	}
	if builder.loginStateStore == nil {
		if store := stores.LoginStateStore(); store != nil {
			builder.loginStateStore = store
		}
	}
	if builder.organizationStore == nil {
		builder.organizationStore = stores.OrganizationStore()
	}
	if builder.membershipStore == nil {
		builder.membershipStore = stores.MembershipStore()
	}
	if builder.userStore == nil {
		builder.userStore = stores.UserStore()
	}
	if builder.providerLinkStore == nil {
		builder.providerLinkStore = stores.ProviderLinkStore()
	}
	if builder.taskStore == nil {
		builder.taskStore = stores.TaskStore()
	}
	if builder.syncJobStore == nil {
		builder.syncJobStore = stores.SyncJobStore()
	}
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		SecretProvider:    s.secretProvider,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		Hasher:            s.hasher,
		Registry:          s.registry,
		SessionStore:      s.sessionStore,
		APIKeyStore:       s.apiKeyStore,
		LoginStateStore:   s.loginStateStore,
		OrganizationStore: s.organizationStore,
		MembershipStore:   s.membershipStore,
		UserStore:         s.userStore,
		ProviderLinkStore: s.providerLinkStore,
		TaskStore:         s.taskStore,
		SyncJobStore:      s.syncJobStore,
	}
}

func (s *Service) Registry() ExchangerRegistry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

// enqueueTask records a deferred side effect, logging and swallowing store
// failures: background work must never fail the primary request.
func (s *Service) enqueueTask(ctx context.Context, in EnqueueTaskInput) {
	if s == nil || s.taskStore == nil {
		return
	}
	if _, err := s.taskStore.Enqueue(ctx, in); err != nil {
		s.logError(ctx, "task enqueue failed", map[string]any{
			"task_kind":       string(in.Kind),
			"idempotency_key": in.IdempotencyKey,
			"error":           err.Error(),
		})
	}
}

var _ AuthorityService = (*Service)(nil)

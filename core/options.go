package core

import (
	"context"
	"fmt"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
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

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithSecretProvider(provider SecretProvider) Option {
	return func(b *serviceBuilder) {
		b.secretProvider = provider
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithCredentialHasher(hasher CredentialHasher) Option {
	return func(b *serviceBuilder) {
		b.hasher = hasher
	}
}

func WithExchangerRegistry(registry ExchangerRegistry) Option {
	return func(b *serviceBuilder) {
		b.registry = registry
	}
}

func WithSessionStore(store SessionStore) Option {
	return func(b *serviceBuilder) {
		b.sessionStore = store
	}
}

func WithAPIKeyStore(store APIKeyStore) Option {
	return func(b *serviceBuilder) {
		b.apiKeyStore = store
	}
}

func WithLoginStateStore(store LoginStateStore) Option {
	return func(b *serviceBuilder) {
		b.loginStateStore = store
	}
}

func WithOrganizationStore(store OrganizationStore) Option {
	return func(b *serviceBuilder) {
		b.organizationStore = store
	}
}

func WithMembershipStore(store MembershipStore) Option {
	return func(b *serviceBuilder) {
		b.membershipStore = store
	}
}

func WithUserStore(store UserStore) Option {
	return func(b *serviceBuilder) {
		b.userStore = store
	}
}

func WithProviderLinkStore(store ProviderLinkStore) Option {
	return func(b *serviceBuilder) {
		b.providerLinkStore = store
	}
}

func WithTaskStore(store TaskStore) Option {
	return func(b *serviceBuilder) {
		b.taskStore = store
	}
}

func WithSyncJobStore(store SyncJobStore) Option {
	return func(b *serviceBuilder) {
		b.syncJobStore = store
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("authority", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		registry:        NewExchangerRegistry(),
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return authorityErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || cfg.ServiceName != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || cfg.Session != (SessionConfig{}) {
		session := map[string]any{}
		if includeZero || cfg.Session.CLITTLHours != 0 {
			session["cli_ttl_hours"] = cfg.Session.CLITTLHours
		}
		if includeZero || cfg.Session.PlatformTTLHours != 0 {
			session["platform_ttl_hours"] = cfg.Session.PlatformTTLHours
		}
		if includeZero || cfg.Session.BcryptCost != 0 {
			session["bcrypt_cost"] = cfg.Session.BcryptCost
		}
		layer["session"] = session
	}
	if includeZero || cfg.Login != (LoginConfig{}) {
		layer["login"] = map[string]any{
			"state_ttl_minutes": cfg.Login.StateTTLMinutes,
		}
	}
	if includeZero || cfg.Outbox != (OutboxConfig{}) {
		outbox := map[string]any{}
		if includeZero || cfg.Outbox.BatchSize != 0 {
			outbox["batch_size"] = cfg.Outbox.BatchSize
		}
		if includeZero || cfg.Outbox.MaxAttempts != 0 {
			outbox["max_attempts"] = cfg.Outbox.MaxAttempts
		}
		layer["outbox"] = outbox
	}
	return layer
}

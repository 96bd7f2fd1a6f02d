// Command authorityd runs the authority service as a single binary: HTTP API,
// outbox dispatch, sync drain, and scheduled maintenance share one process and
// one database. Configuration comes from AUTHORITY_* environment variables.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	authority "github.com/voundbrand/go-authority"
	"github.com/voundbrand/go-authority/adapters/gologger"
	"github.com/voundbrand/go-authority/behavior"
	"github.com/voundbrand/go-authority/core"
	"github.com/voundbrand/go-authority/httpapi"
	"github.com/voundbrand/go-authority/jobs"
	authoritymigrations "github.com/voundbrand/go-authority/migrations"
	"github.com/voundbrand/go-authority/security"
	sqlstore "github.com/voundbrand/go-authority/store/sql"
	authsync "github.com/voundbrand/go-authority/sync"
)

const envPrefix = "AUTHORITY"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "authorityd:", err)
		os.Exit(1)
	}
}

type settings struct {
	httpAddr  string
	dbDriver  string
	dbDSN     string
	providers []string
}

func loadSettings() settings {
	return settings{
		httpAddr:  envOr("AUTHORITY_HTTP_ADDR", ":8080"),
		dbDriver:  envOr("AUTHORITY_DB_DRIVER", "sqlite3"),
		dbDSN:     envOr("AUTHORITY_DB_DSN", "file:authority.db?cache=shared&_foreign_keys=on"),
		providers: splitList(os.Getenv("AUTHORITY_PROVIDERS")),
	}
}

func run() error {
	cfg := loadSettings()
	_, logger := gologger.Resolve(gologger.ComponentName("authorityd"), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, migrationDialect, err := newPersistenceClient(cfg.dbDriver, cfg.dbDSN)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if _, err := authoritymigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != migrationDialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, authoritymigrations.WithValidationTargets(migrationDialect)); err != nil {
		return fmt.Errorf("register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		return err
	}

	secrets := security.NewEnvSecretSource(envPrefix)

	serviceOptions := []authority.Option{
		authority.WithLogger(logger),
		authority.WithPersistenceClient(client),
		authority.WithRepositoryFactory(factory),
	}
	// Provider logins store third-party tokens, so the vault key is required
	// as soon as any provider is enabled.
	if len(cfg.providers) > 0 {
		secretProvider, err := buildSecretProvider(secrets, logger)
		if err != nil {
			return fmt.Errorf("provider credential vault: %w", err)
		}
		serviceOptions = append(serviceOptions, authority.WithSecretProvider(secretProvider))
	}

	service, err := authority.NewService(authority.DefaultConfig(), serviceOptions...)
	if err != nil {
		return err
	}

	if len(cfg.providers) > 0 {
		pack, err := authority.BuiltinExchangerPack(secrets, cfg.providers...)
		if err != nil {
			return err
		}
		packs := authority.NewPackRegistry()
		if err := packs.RegisterPack(pack); err != nil {
			return err
		}
		if err := packs.ApplyTo(service.Registry()); err != nil {
			return err
		}
		logger.Info("identity providers registered", "providers", strings.Join(cfg.providers, ","))
	} else {
		logger.Warn("no identity providers configured; provider login stays disabled until AUTHORITY_PROVIDERS is set")
	}

	dispatcher, err := newDispatcher(factory, logger)
	if err != nil {
		return err
	}

	behaviors := behavior.NewRegistry()
	if err := behaviors.Register(behavior.NewPricingBehavior(factory.TransactionStore(), factory.TaskStore(), logger)); err != nil {
		return err
	}
	if err := behaviors.Register(behavior.NewCRMSyncBehavior(factory.ProviderLinkStore(), factory.SyncJobStore(), logger)); err != nil {
		return err
	}
	engine, err := behavior.NewEngine(behaviors, behavior.EngineConfig{
		Logger: logger,
		Tasks:  factory.TaskStore(),
	})
	if err != nil {
		return err
	}

	facade, err := authority.NewFacade(service,
		authority.WithWorkflowEngine(engine),
		authority.WithOutboxDispatcher(dispatcher),
	)
	if err != nil {
		return err
	}

	syncStore, ok := factory.SyncJobStore().(authsync.JobStore)
	if !ok {
		return fmt.Errorf("sync job store does not support queued listing")
	}
	syncWorker, err := authsync.NewWorker(syncStore, authsync.WorkerConfig{Logger: logger})
	if err != nil {
		return err
	}

	legacyCounter, ok := factory.SessionStore().(jobs.LegacyCredentialCounter)
	if !ok {
		return fmt.Errorf("session store does not support legacy credential scans")
	}
	runner, err := jobs.NewRunner(jobs.Targets{
		Outbox:      dispatcher,
		LoginStates: factory.LoginStateStore(),
		Sessions:    legacyCounter,
		SyncJobs:    syncWorker,
	}, jobs.RunnerConfig{Logger: logger})
	if err != nil {
		return err
	}

	queue := jobs.NewMemoryQueue(0)
	scheduler, err := jobs.NewScheduler(queue, jobs.SchedulerConfig{Logger: logger})
	if err != nil {
		return err
	}
	worker, err := jobs.NewWorker(queue, runner, jobs.WorkerConfig{
		Logger: logger,
		Hook:   jobs.NewLoggingHook(logger),
	})
	if err != nil {
		return err
	}

	api, err := httpapi.New(httpapi.Services{
		Auth:          facade,
		APIKeys:       facade,
		Organizations: facade,
		Workflows:     facade,
	}, httpapi.WithLogger(logger))
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.httpAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := scheduler.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("scheduler stopped", "error", err)
		}
	}()
	go func() {
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("job worker stopped", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.httpAddr, "driver", cfg.dbDriver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			cancel()
			scheduler.Stop()
			return fmt.Errorf("http server: %w", err)
		}
	}

	cancel()
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	logger.Info("authorityd stopped")
	return nil
}

// newPersistenceClient opens the configured database and pairs it with the
// matching bun dialect and migration target.
func newPersistenceClient(driver, dsn string) (*persistence.Client, string, error) {
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open database: %w", err)
	}

	cfg := persistenceSettings{driver: driver, server: dsn}
	switch driver {
	case "postgres":
		client, err := persistence.New(cfg, sqlDB, pgdialect.New())
		if err != nil {
			_ = sqlDB.Close()
			return nil, "", fmt.Errorf("persistence client: %w", err)
		}
		return client, authoritymigrations.DialectPostgres, nil
	case "sqlite3":
		// Shared-cache sqlite corrupts under concurrent writers.
		sqlDB.SetMaxOpenConns(1)
		client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
		if err != nil {
			_ = sqlDB.Close()
			return nil, "", fmt.Errorf("persistence client: %w", err)
		}
		return client, authoritymigrations.DialectSQLite, nil
	default:
		_ = sqlDB.Close()
		return nil, "", fmt.Errorf("unsupported db driver %q, want postgres or sqlite3", driver)
	}
}

// buildSecretProvider assembles the token vault. With only AUTHORITY_APP_KEY
// set, tokens seal under that key. During a key rotation the retiring key
// rides along as AUTHORITY_APP_KEY_PREVIOUS so rows sealed before the
// rotation stay readable while new writes use the fresh key.
func buildSecretProvider(secrets *security.EnvSecretSource, logger core.Logger) (core.SecretProvider, error) {
	appKey, err := secrets.AppKey()
	if err != nil {
		return nil, err
	}
	active, err := security.NewAppKeySecretProvider(appKey)
	if err != nil {
		return nil, err
	}

	previousKey, ok := secrets.PreviousAppKey()
	if !ok {
		return active, nil
	}
	retiring, err := security.NewAppKeySecretProvider(previousKey)
	if err != nil {
		return nil, fmt.Errorf("previous app key: %w", err)
	}
	logger.Info("app key rotation in flight, retiring key kept for decryption")
	return security.NewFailoverSecretProvider(active,
		security.WithFallbackSecretProvider(retiring),
		security.WithFailurePolicy(security.FailurePolicyFallback),
		security.WithFailoverHook(func(event security.FailoverEvent) {
			// Old rows failing the active key is the expected rotation
			// path; only rows neither key can open are worth a warning.
			if event.Outcome != "fallback_failed" {
				return
			}
			logger.Warn("token unreadable under both vault keys",
				"operation", event.Operation,
				"error", event.Err,
			)
		}),
	)
}

// newDispatcher builds the outbox dispatcher with every task kind the service
// enqueues routed to a handler, so no row parks as failed for lack of one.
func newDispatcher(factory *sqlstore.RepositoryFactory, logger core.Logger) (*core.OutboxDispatcher, error) {
	dispatcher, err := core.NewOutboxDispatcher(factory.TaskStore(), core.DefaultOutboxDispatcherConfig())
	if err != nil {
		return nil, err
	}

	touch, err := core.NewSessionTouchHandler(factory.SessionStore())
	if err != nil {
		return nil, err
	}
	if err := dispatcher.RegisterHandler(touch); err != nil {
		return nil, err
	}

	provision, err := core.NewCRMProvisionHandler(factory.ProviderLinkStore(), factory.SyncJobStore(), logger)
	if err != nil {
		return nil, err
	}
	if err := dispatcher.RegisterHandler(provision); err != nil {
		return nil, err
	}

	for _, kind := range []core.TaskKind{
		core.TaskKindWelcomeEmail,
		core.TaskKindAnalyticsEvent,
		core.TaskKindBehaviorNotice,
	} {
		handler, err := core.NewLogTaskHandler(kind, logger)
		if err != nil {
			return nil, err
		}
		if err := dispatcher.RegisterHandler(handler); err != nil {
			return nil, err
		}
	}
	return dispatcher, nil
}

type persistenceSettings struct {
	driver string
	server string
}

func (c persistenceSettings) GetDebug() bool                { return false }
func (c persistenceSettings) GetDriver() string             { return c.driver }
func (c persistenceSettings) GetServer() string             { return c.server }
func (c persistenceSettings) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceSettings) GetOtelIdentifier() string     { return "authorityd" }

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

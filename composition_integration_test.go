package authority_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"golang.org/x/crypto/bcrypt"

	authority "github.com/voundbrand/go-authority"
	"github.com/voundbrand/go-authority/behavior"
	"github.com/voundbrand/go-authority/command"
	"github.com/voundbrand/go-authority/core"
	authoritymigrations "github.com/voundbrand/go-authority/migrations"
	"github.com/voundbrand/go-authority/query"
	sqlstore "github.com/voundbrand/go-authority/store/sql"
)

// TestFacadeComposition_SQLite walks the composed surface the way a host
// application would: provision a tenant, mint a credential, resolve it, then
// configure and run a checkout workflow against the same sqlite database.
func TestFacadeComposition_SQLite(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newCompositionClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}

	cfg := authority.DefaultConfig()
	cfg.Session.BcryptCost = bcrypt.MinCost
	service, err := authority.NewService(cfg, authority.WithRepositoryFactory(factory))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	registry := behavior.NewRegistry()
	if err := registry.Register(behavior.NewPricingBehavior(factory.TransactionStore(), factory.TaskStore(), nil)); err != nil {
		t.Fatalf("register pricing behavior: %v", err)
	}
	engine, err := behavior.NewEngine(registry, behavior.EngineConfig{Tasks: factory.TaskStore()})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	facade, err := authority.NewFacade(service, authority.WithWorkflowEngine(engine))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	owner, err := factory.UserStore().Upsert(ctx, core.UpsertUserInput{
		Email:     "owner@acme.test",
		FirstName: "Alex",
		LastName:  "Stone",
	})
	if err != nil {
		t.Fatalf("upsert owner: %v", err)
	}

	var org core.Organization

	t.Run("provision organization", func(t *testing.T) {
		collector := gocmd.NewResult[core.ProvisionOrganizationResult]()
		err := facade.Commands().ProvisionOrganization.Execute(
			gocmd.ContextWithResult(ctx, collector),
			command.ProvisionOrganizationMessage{Input: core.ProvisionOrganizationInput{
				Name:    "Acme Rockets",
				OwnerID: owner.ID,
			}},
		)
		if err != nil {
			t.Fatalf("provision organization: %v", err)
		}
		result, ok := collector.Load()
		if !ok {
			t.Fatalf("expected provision result")
		}
		org = result.Organization
		if org.ID == "" || org.Slug != "acme-rockets" {
			t.Fatalf("unexpected organization: %#v", org)
		}
		if result.Owner.UserID != owner.ID || result.Owner.Role != core.RoleOwner {
			t.Fatalf("unexpected owner membership: %#v", result.Owner)
		}

		memberships, err := facade.Queries().ListMemberships.Query(ctx, query.ListMembershipsMessage{OrgID: org.ID})
		if err != nil {
			t.Fatalf("list memberships: %v", err)
		}
		if len(memberships) != 1 || memberships[0].UserID != owner.ID {
			t.Fatalf("unexpected memberships: %#v", memberships)
		}
	})

	t.Run("issue and resolve api key", func(t *testing.T) {
		collector := gocmd.NewResult[core.IssueAPIKeyResult]()
		err := facade.Commands().IssueAPIKey.Execute(
			gocmd.ContextWithResult(ctx, collector),
			command.IssueAPIKeyMessage{Input: core.IssueAPIKeyInput{
				OrgID:     org.ID,
				CreatedBy: owner.ID,
				Name:      "ci",
				Scopes:    []string{"workflows:run"},
			}},
		)
		if err != nil {
			t.Fatalf("issue api key: %v", err)
		}
		issued, ok := collector.Load()
		if !ok || issued.RawKey == "" {
			t.Fatalf("expected issued key with raw secret, got %#v", issued)
		}

		auth, err := facade.Queries().ResolveCredential.Query(ctx, query.ResolveCredentialMessage{Token: issued.RawKey})
		if err != nil {
			t.Fatalf("resolve credential: %v", err)
		}
		if auth.Method != core.AuthMethodAPIKey || auth.OrgID != org.ID {
			t.Fatalf("unexpected auth context: %#v", auth)
		}
		if err := facade.RequireScopes(ctx, auth, "workflows:run"); err != nil {
			t.Fatalf("require scopes: %v", err)
		}
	})

	var chainID string

	t.Run("save and run workflow", func(t *testing.T) {
		saveCollector := gocmd.NewResult[behavior.Chain]()
		err := facade.Commands().SaveChain.Execute(
			gocmd.ContextWithResult(ctx, saveCollector),
			command.SaveChainMessage{Chain: behavior.Chain{
				OrgID:      org.ID,
				WorkflowID: "checkout",
				Behaviors: []behavior.Descriptor{
					{Type: behavior.TypePricing, Enabled: true, Priority: 10},
				},
			}},
		)
		if err != nil {
			t.Fatalf("save chain: %v", err)
		}
		saved, ok := saveCollector.Load()
		if !ok || saved.ID == "" {
			t.Fatalf("expected saved chain, got %#v", saved)
		}
		chainID = saved.ID

		runCollector := gocmd.NewResult[behavior.RunReport]()
		err = facade.Commands().RunWorkflow.Execute(
			gocmd.ContextWithResult(ctx, runCollector),
			command.RunWorkflowMessage{Run: behavior.RunContext{
				OrgID:      org.ID,
				UserID:     owner.ID,
				WorkflowID: "checkout",
				Cart: &behavior.Cart{Lines: []behavior.LineItem{
					{ProductID: "prod_booster", UnitPrice: 1099, Quantity: 2, TaxRate: 19},
					{ProductID: "prod_manual", UnitPrice: 500, Quantity: 1, TaxRate: 7},
				}},
			}},
		)
		if err != nil {
			t.Fatalf("run workflow: %v", err)
		}
		report, ok := runCollector.Load()
		if !ok {
			t.Fatalf("expected run report")
		}
		if report.Halted || len(report.Results) != 1 || !report.Results[0].Success {
			t.Fatalf("unexpected run report: %#v", report)
		}
		if transactionID, _ := report.Results[0].Data["transaction_id"].(string); transactionID == "" {
			t.Fatalf("expected recorded transaction id, got %#v", report.Results[0].Data)
		}
	})

	t.Run("read back workflow state", func(t *testing.T) {
		chain, err := facade.Queries().GetChain.Query(ctx, query.GetChainMessage{OrgID: org.ID, WorkflowID: "checkout"})
		if err != nil {
			t.Fatalf("get chain: %v", err)
		}
		if chain.ID != chainID {
			t.Fatalf("expected chain %q, got %#v", chainID, chain)
		}

		transactions, err := facade.Queries().ListTransactions.Query(ctx, query.ListTransactionsMessage{OrgID: org.ID})
		if err != nil {
			t.Fatalf("list transactions: %v", err)
		}
		if len(transactions) != 1 {
			t.Fatalf("expected one transaction, got %#v", transactions)
		}
		// 2x1099 at 19% plus 1x500 at 7%: 2698 + 418 + 35.
		if transactions[0].Subtotal != 2698 || transactions[0].Tax != 453 || transactions[0].Total != 3151 {
			t.Fatalf("unexpected transaction amounts: %#v", transactions[0])
		}

		jobs, err := facade.Queries().ListSyncJobs.Query(ctx, query.ListSyncJobsMessage{OrgID: org.ID})
		if err != nil {
			t.Fatalf("list sync jobs: %v", err)
		}
		if len(jobs) != 0 {
			t.Fatalf("expected no sync jobs, got %#v", jobs)
		}
	})
}

type compositionPersistenceConfig struct {
	driver string
	server string
}

func (c compositionPersistenceConfig) GetDebug() bool                { return false }
func (c compositionPersistenceConfig) GetDriver() string             { return c.driver }
func (c compositionPersistenceConfig) GetServer() string             { return c.server }
func (c compositionPersistenceConfig) GetPingTimeout() time.Duration { return time.Second }
func (c compositionPersistenceConfig) GetOtelIdentifier() string     { return "go-authority-tests" }

func newCompositionClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:authority-composition-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := compositionPersistenceConfig{driver: "sqlite3", server: dsn}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = authoritymigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != authoritymigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, authoritymigrations.WithValidationTargets(authoritymigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

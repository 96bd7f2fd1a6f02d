package authority

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	gocmd "github.com/goliatone/go-command"

	"github.com/voundbrand/go-authority/behavior"
	"github.com/voundbrand/go-authority/command"
	"github.com/voundbrand/go-authority/core"
	"github.com/voundbrand/go-authority/query"
)

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected error for nil service")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.BeginLogin == nil || commands.CompleteLogin == nil || commands.RotateSession == nil ||
		commands.RevokeSession == nil || commands.IssueAPIKey == nil || commands.RevokeAPIKey == nil ||
		commands.ProvisionOrganization == nil || commands.SetDefaultOrganization == nil ||
		commands.SaveChain == nil || commands.RunWorkflow == nil || commands.DispatchOutbox == nil {
		t.Fatalf("expected every command handler to be wired: %#v", commands)
	}

	queries := facade.Queries()
	if queries.ResolveCredential == nil || queries.ListAPIKeys == nil || queries.GetOrganization == nil ||
		queries.GetChain == nil || queries.ListSyncJobs == nil || queries.ListTransactions == nil ||
		queries.ListMemberships == nil {
		t.Fatalf("expected every query handler to be wired: %#v", queries)
	}

	if facade.Service() == nil {
		t.Fatalf("expected facade to expose its service")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	ctx := context.Background()

	if err := facade.Commands().RevokeSession.Execute(ctx, command.RevokeSessionMessage{SessionID: "ses_1"}); err != nil {
		t.Fatalf("execute revoke session: %v", err)
	}
	if svc.revokedSessionID != "ses_1" {
		t.Fatalf("expected revoke to reach the service, got %q", svc.revokedSessionID)
	}

	collector := gocmd.NewResult[core.ProvisionOrganizationResult]()
	resultCtx := gocmd.ContextWithResult(ctx, collector)
	err = facade.Commands().ProvisionOrganization.Execute(resultCtx, command.ProvisionOrganizationMessage{
		Input: core.ProvisionOrganizationInput{Name: "Acme", OwnerID: "usr_1"},
	})
	if err != nil {
		t.Fatalf("execute provision organization: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected provision result to be stored")
	}
	if result.Organization.Slug != "acme" {
		t.Fatalf("unexpected provision result: %#v", result)
	}

	org, err := facade.Queries().GetOrganization.Query(ctx, query.GetOrganizationMessage{OrgID: "org_1"})
	if err != nil {
		t.Fatalf("query organization: %v", err)
	}
	if org.Slug != "acme" {
		t.Fatalf("unexpected organization: %#v", org)
	}

	memberships, err := facade.Queries().ListMemberships.Query(ctx, query.ListMembershipsMessage{OrgID: "org_1"})
	if err != nil {
		t.Fatalf("query memberships: %v", err)
	}
	if len(memberships) != 1 || memberships[0].UserID != "usr_1" {
		t.Fatalf("unexpected memberships: %#v", memberships)
	}
}

func TestFacade_WorkflowRunLoadsChainAndExecutes(t *testing.T) {
	registry := behavior.NewRegistry()
	if err := registry.Register(recordingBehavior{}); err != nil {
		t.Fatalf("register behavior: %v", err)
	}
	engine, err := behavior.NewEngine(registry, behavior.EngineConfig{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	chains := newStubChainStore()
	facade, err := NewFacade(&stubFacadeService{}, WithChainStore(chains), WithWorkflowEngine(engine))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	ctx := context.Background()

	saved, err := facade.SaveChain(ctx, behavior.Chain{
		OrgID:      "org_1",
		WorkflowID: "checkout",
		Behaviors:  []behavior.Descriptor{{Type: "recording", Enabled: true}},
	})
	if err != nil {
		t.Fatalf("save chain: %v", err)
	}
	if saved.ID == "" {
		t.Fatalf("expected saved chain to carry an id")
	}

	report, err := facade.RunWorkflow(ctx, behavior.RunContext{OrgID: "org_1", WorkflowID: "checkout"})
	if err != nil {
		t.Fatalf("run workflow: %v", err)
	}
	if len(report.Results) != 1 || !report.Results[0].Success {
		t.Fatalf("unexpected run report: %#v", report)
	}

	if _, err := facade.RunWorkflow(ctx, behavior.RunContext{OrgID: "org_1", WorkflowID: "unknown"}); !errors.Is(err, behavior.ErrChainNotFound) {
		t.Fatalf("expected chain not found, got %v", err)
	}
}

func TestFacade_SaveChainValidatesBeforeWrite(t *testing.T) {
	chains := newStubChainStore()
	facade, err := NewFacade(&stubFacadeService{}, WithChainStore(chains))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	_, err = facade.SaveChain(context.Background(), behavior.Chain{WorkflowID: "checkout"})
	if err == nil {
		t.Fatalf("expected validation error for missing org")
	}
	if chains.saveCalls != 0 {
		t.Fatalf("expected no store write on invalid chain, got %d", chains.saveCalls)
	}
}

func TestFacade_ResolvesStoresFromServiceDependencies(t *testing.T) {
	chains := newStubChainStore()
	chains.saved["org_1/checkout"] = behavior.Chain{ID: "chn_1", OrgID: "org_1", WorkflowID: "checkout"}
	transactions := &stubTransactionStore{records: []behavior.Transaction{
		{ID: "txn_1", OrgID: "org_1"},
		{ID: "txn_2", OrgID: "org_other"},
	}}
	syncJobs := &stubSyncJobStore{jobs: []core.SyncJob{
		{ID: "job_1", OrgID: "org_1", Status: core.SyncJobStatusQueued},
	}}

	svc := &stubFacadeServiceWithDeps{deps: core.ServiceDependencies{
		RepositoryFactory: stubStoreSource{chains: chains, transactions: transactions},
		SyncJobStore:      syncJobs,
	}}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	ctx := context.Background()

	chain, err := facade.GetChain(ctx, "org_1", "checkout")
	if err != nil {
		t.Fatalf("get chain: %v", err)
	}
	if chain.ID != "chn_1" {
		t.Fatalf("unexpected chain: %#v", chain)
	}

	jobs, err := facade.ListSyncJobs(ctx, "org_1", "")
	if err != nil {
		t.Fatalf("list sync jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "job_1" {
		t.Fatalf("unexpected sync jobs: %#v", jobs)
	}

	listed, err := facade.ListTransactions(ctx, "org_1")
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "txn_1" {
		t.Fatalf("unexpected transactions: %#v", listed)
	}
}

func TestFacade_UnconfiguredWorkflowSurface(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	ctx := context.Background()
	valid := behavior.Chain{OrgID: "org_1", WorkflowID: "checkout"}

	if _, err := facade.SaveChain(ctx, valid); err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("expected unconfigured chain store error, got %v", err)
	}
	if _, err := facade.GetChain(ctx, "org_1", "checkout"); err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("expected unconfigured chain store error, got %v", err)
	}
	if _, err := facade.RunWorkflow(ctx, behavior.RunContext{OrgID: "org_1", WorkflowID: "checkout"}); err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("expected unconfigured engine error, got %v", err)
	}
	if _, err := facade.ListSyncJobs(ctx, "org_1", ""); err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("expected unconfigured sync job store error, got %v", err)
	}
	if _, err := facade.ListTransactions(ctx, "org_1"); err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("expected unconfigured transaction store error, got %v", err)
	}
	if _, err := facade.DispatchPending(ctx, 10); err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("expected unconfigured dispatcher error, got %v", err)
	}
}

type stubFacadeService struct {
	revokedSessionID string
}

func (s *stubFacadeService) BeginLogin(context.Context, core.BeginLoginInput) (core.BeginLoginResult, error) {
	return core.BeginLoginResult{State: "st_1", AuthURL: "https://idp.example.com/authorize"}, nil
}

func (s *stubFacadeService) CompleteLogin(context.Context, core.CompleteLoginInput) (core.CompleteLoginResult, error) {
	return core.CompleteLoginResult{SessionToken: "raw-session"}, nil
}

func (s *stubFacadeService) RotateSession(context.Context, string) (core.Session, string, error) {
	return core.Session{ID: "ses_1"}, "raw-rotated", nil
}

func (s *stubFacadeService) RevokeSession(_ context.Context, sessionID string) error {
	s.revokedSessionID = sessionID
	return nil
}

func (s *stubFacadeService) IssueAPIKey(context.Context, core.IssueAPIKeyInput) (core.IssueAPIKeyResult, error) {
	return core.IssueAPIKeyResult{Key: core.APIKey{ID: "key_1"}, RawKey: "raw-key"}, nil
}

func (s *stubFacadeService) RevokeAPIKey(context.Context, string, string) error { return nil }

func (s *stubFacadeService) ProvisionOrganization(context.Context, core.ProvisionOrganizationInput) (core.ProvisionOrganizationResult, error) {
	return core.ProvisionOrganizationResult{Organization: core.Organization{ID: "org_1", Slug: "acme", Name: "Acme"}}, nil
}

func (s *stubFacadeService) SetDefaultOrganization(context.Context, string, string) error { return nil }

func (s *stubFacadeService) VerifyCredential(context.Context, string) (core.AuthContext, error) {
	return core.AuthContext{UserID: "usr_1", OrgID: "org_1"}, nil
}

func (s *stubFacadeService) RequireScopes(context.Context, core.AuthContext, ...string) error {
	return nil
}

func (s *stubFacadeService) ListAPIKeys(context.Context, string) ([]core.APIKey, error) {
	return []core.APIKey{{ID: "key_1"}}, nil
}

func (s *stubFacadeService) GetOrganization(context.Context, string) (core.Organization, error) {
	return core.Organization{ID: "org_1", Slug: "acme", Name: "Acme"}, nil
}

func (s *stubFacadeService) UpdateOrganization(_ context.Context, _ string, name string) (core.Organization, error) {
	return core.Organization{ID: "org_1", Slug: "acme", Name: name}, nil
}

func (s *stubFacadeService) ListMemberships(context.Context, string) ([]core.Membership, error) {
	return []core.Membership{{OrgID: "org_1", UserID: "usr_1", Role: core.RoleOwner}}, nil
}

type stubFacadeServiceWithDeps struct {
	stubFacadeService

	deps core.ServiceDependencies
}

func (s *stubFacadeServiceWithDeps) Dependencies() core.ServiceDependencies { return s.deps }

type stubStoreSource struct {
	chains       behavior.ChainStore
	transactions behavior.TransactionStore
}

func (s stubStoreSource) ChainStore() behavior.ChainStore             { return s.chains }
func (s stubStoreSource) TransactionStore() behavior.TransactionStore { return s.transactions }

type stubChainStore struct {
	saved     map[string]behavior.Chain
	saveCalls int
}

func newStubChainStore() *stubChainStore {
	return &stubChainStore{saved: map[string]behavior.Chain{}}
}

func (s *stubChainStore) GetChain(_ context.Context, orgID string, workflowID string) (behavior.Chain, error) {
	chain, ok := s.saved[orgID+"/"+workflowID]
	if !ok {
		return behavior.Chain{}, behavior.ErrChainNotFound
	}
	return chain, nil
}

func (s *stubChainStore) SaveChain(_ context.Context, chain behavior.Chain) (behavior.Chain, error) {
	s.saveCalls++
	if chain.ID == "" {
		chain.ID = "chn_1"
	}
	s.saved[chain.OrgID+"/"+chain.WorkflowID] = chain
	return chain, nil
}

type stubTransactionStore struct {
	records []behavior.Transaction
}

func (s *stubTransactionStore) Create(_ context.Context, in behavior.CreateTransactionInput) (behavior.Transaction, error) {
	txn := behavior.Transaction{OrgID: in.OrgID, WorkflowID: in.WorkflowID, Total: in.Total}
	s.records = append(s.records, txn)
	return txn, nil
}

func (s *stubTransactionStore) ListByOrg(_ context.Context, orgID string) ([]behavior.Transaction, error) {
	out := make([]behavior.Transaction, 0, len(s.records))
	for _, txn := range s.records {
		if txn.OrgID == orgID {
			out = append(out, txn)
		}
	}
	return out, nil
}

type stubSyncJobStore struct {
	jobs []core.SyncJob
}

func (s *stubSyncJobStore) Enqueue(_ context.Context, in core.EnqueueSyncJobInput) (core.SyncJob, error) {
	job := core.SyncJob{ID: "job_new", OrgID: in.OrgID, Status: core.SyncJobStatusQueued}
	s.jobs = append(s.jobs, job)
	return job, nil
}

func (s *stubSyncJobStore) Get(_ context.Context, id string) (core.SyncJob, error) {
	for _, job := range s.jobs {
		if job.ID == id {
			return job, nil
		}
	}
	return core.SyncJob{}, fmt.Errorf("sync job not found")
}

func (s *stubSyncJobStore) ListByOrg(_ context.Context, orgID string, status core.SyncJobStatus) ([]core.SyncJob, error) {
	out := make([]core.SyncJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if job.OrgID != orgID {
			continue
		}
		if status != "" && job.Status != status {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

func (s *stubSyncJobStore) UpdateStatus(_ context.Context, id string, status core.SyncJobStatus, _ string) error {
	for i := range s.jobs {
		if s.jobs[i].ID == id {
			s.jobs[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("sync job not found")
}

type recordingBehavior struct{}

func (recordingBehavior) Type() string { return "recording" }

func (recordingBehavior) Execute(context.Context, behavior.RunContext, map[string]any) behavior.Result {
	return behavior.Result{Type: "recording", Success: true}
}

var (
	_ CommandQueryService       = (*stubFacadeService)(nil)
	_ behavior.ChainStore       = (*stubChainStore)(nil)
	_ behavior.TransactionStore = (*stubTransactionStore)(nil)
	_ core.SyncJobStore         = (*stubSyncJobStore)(nil)
	_ behavior.Behavior         = recordingBehavior{}
)

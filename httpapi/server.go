// Package httpapi exposes the authority service over a versioned REST
// surface. Routes live under /api/v1; every handler speaks the same JSON
// error envelope the rest of the module produces.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/voundbrand/go-authority/adapters/gologger"
	"github.com/voundbrand/go-authority/behavior"
	"github.com/voundbrand/go-authority/core"
)

// AuthService is the slice of the authority surface the auth routes need.
type AuthService interface {
	BeginLogin(ctx context.Context, in core.BeginLoginInput) (core.BeginLoginResult, error)
	CompleteLogin(ctx context.Context, in core.CompleteLoginInput) (core.CompleteLoginResult, error)
	VerifyCredential(ctx context.Context, token string) (core.AuthContext, error)
	RequireScopes(ctx context.Context, auth core.AuthContext, needed ...string) error
	RotateSession(ctx context.Context, sessionID string) (core.Session, string, error)
	RevokeSession(ctx context.Context, sessionID string) error
}

// APIKeyService issues, lists, and revokes API keys for an organization.
type APIKeyService interface {
	IssueAPIKey(ctx context.Context, in core.IssueAPIKeyInput) (core.IssueAPIKeyResult, error)
	ListAPIKeys(ctx context.Context, orgID string) ([]core.APIKey, error)
	RevokeAPIKey(ctx context.Context, orgID string, keyID string) error
}

// OrganizationService reads and updates the caller's current organization.
type OrganizationService interface {
	GetOrganization(ctx context.Context, orgID string) (core.Organization, error)
	UpdateOrganization(ctx context.Context, orgID string, name string) (core.Organization, error)
	ListMemberships(ctx context.Context, orgID string) ([]core.Membership, error)
	SetDefaultOrganization(ctx context.Context, orgID string, userID string) error
}

// WorkflowService manages behavior chain configuration and runs chains.
type WorkflowService interface {
	GetChain(ctx context.Context, orgID string, workflowID string) (behavior.Chain, error)
	SaveChain(ctx context.Context, chain behavior.Chain) (behavior.Chain, error)
	RunWorkflow(ctx context.Context, run behavior.RunContext) (behavior.RunReport, error)
}

// Services bundles everything the router dispatches to. All four fields are
// required; the facade satisfies every interface.
type Services struct {
	Auth          AuthService
	APIKeys       APIKeyService
	Organizations OrganizationService
	Workflows     WorkflowService
}

func (s Services) validate() error {
	if s.Auth == nil {
		return core.NewConfigurationError("httpapi: auth service is required")
	}
	if s.APIKeys == nil {
		return core.NewConfigurationError("httpapi: api key service is required")
	}
	if s.Organizations == nil {
		return core.NewConfigurationError("httpapi: organization service is required")
	}
	if s.Workflows == nil {
		return core.NewConfigurationError("httpapi: workflow service is required")
	}
	return nil
}

// CORSConfig controls the shared preflight responder and the headers set on
// every response. Zero values fall back to the permissive defaults below.
type CORSConfig struct {
	AllowedOrigin  string
	AllowedMethods []string
	AllowedHeaders []string
}

func defaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigin: "*",
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
	}
}

// Server is the REST surface. It implements http.Handler so callers can
// mount it directly or wrap it in their own http.Server.
type Server struct {
	services Services
	router   *mux.Router
	logger   core.Logger
	cors     CORSConfig
}

type Option func(*Server)

func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithCORS(cfg CORSConfig) Option {
	return func(s *Server) {
		if cfg.AllowedOrigin != "" {
			s.cors.AllowedOrigin = cfg.AllowedOrigin
		}
		if len(cfg.AllowedMethods) > 0 {
			s.cors.AllowedMethods = cfg.AllowedMethods
		}
		if len(cfg.AllowedHeaders) > 0 {
			s.cors.AllowedHeaders = cfg.AllowedHeaders
		}
	}
}

func New(services Services, opts ...Option) (*Server, error) {
	if err := services.validate(); err != nil {
		return nil, err
	}
	_, logger := gologger.Resolve(gologger.ComponentName("httpapi"), nil, nil)
	server := &Server{
		services: services,
		logger:   logger,
		cors:     defaultCORSConfig(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(server)
		}
	}
	server.routes()
	return server, nil
}

func (s *Server) routes() {
	router := mux.NewRouter().StrictSlash(true)
	router.Use(s.requestID, s.recovery, s.corsHeaders)
	router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	// Shared preflight responder. Registered first so OPTIONS never reaches
	// the authenticated subrouters.
	router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(s.handlePreflight)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Login endpoints are reachable without a credential.
	api.HandleFunc("/auth/login/begin", s.handleBeginLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/login/complete", s.handleCompleteLogin).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.authenticate)

	protected.HandleFunc("/auth/whoami", s.handleWhoami).Methods(http.MethodGet)
	protected.HandleFunc("/auth/session/rotate", s.handleRotateSession).Methods(http.MethodPost)
	protected.HandleFunc("/auth/session/revoke", s.handleRevokeSession).Methods(http.MethodPost)

	apikeys := protected.PathPrefix("/apikeys").Subrouter()
	apikeys.Use(s.requireScopes(core.ScopeAPIKeysManage))
	apikeys.HandleFunc("", s.handleIssueAPIKey).Methods(http.MethodPost)
	apikeys.HandleFunc("", s.handleListAPIKeys).Methods(http.MethodGet)
	apikeys.HandleFunc("/{keyID}", s.handleRevokeAPIKey).Methods(http.MethodDelete)

	// Same prefix, different scope per method group. mux keeps matching past
	// a method mismatch, so the manage subrouter picks up PATCH.
	orgRead := protected.PathPrefix("/orgs/current").Subrouter()
	orgRead.Use(s.requireScopes(core.ScopeOrgRead))
	orgRead.HandleFunc("", s.handleGetOrganization).Methods(http.MethodGet)
	orgRead.HandleFunc("/memberships", s.handleListMemberships).Methods(http.MethodGet)
	orgRead.HandleFunc("/default", s.handleSetDefaultOrganization).Methods(http.MethodPost)

	orgManage := protected.PathPrefix("/orgs/current").Subrouter()
	orgManage.Use(s.requireScopes(core.ScopeOrgManage))
	orgManage.HandleFunc("", s.handleUpdateOrganization).Methods(http.MethodPatch)

	workflowRead := protected.PathPrefix("/workflows").Subrouter()
	workflowRead.Use(s.requireScopes(core.ScopeWorkflowsRead))
	workflowRead.HandleFunc("/{workflowID}/chain", s.handleGetChain).Methods(http.MethodGet)

	workflowWrite := protected.PathPrefix("/workflows").Subrouter()
	workflowWrite.Use(s.requireScopes(core.ScopeWorkflowsWrite))
	workflowWrite.HandleFunc("/{workflowID}/chain", s.handleSaveChain).Methods(http.MethodPut)
	workflowWrite.HandleFunc("/{workflowID}/run", s.handleRunWorkflow).Methods(http.MethodPost)

	s.router = router
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeErrorEnvelope(w, http.StatusNotFound, errorBody{
		Message: "route not found",
		Code:    core.AuthorityErrorNotFound,
	})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeErrorEnvelope(w, http.StatusMethodNotAllowed, errorBody{
		Message: "method not allowed",
		Code:    core.AuthorityErrorBadInput,
	})
}

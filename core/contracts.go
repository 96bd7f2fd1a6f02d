package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type CreateSessionInput struct {
	UserID      string
	OrgID       string
	Kind        SessionKind
	TokenPrefix string
	TokenDigest string
	ExpiresAt   time.Time
}

type RotateSessionInput struct {
	SessionID   string
	TokenPrefix string
	TokenDigest string
	RotatedAt   time.Time
}

// SessionStore persists bearer sessions. FindByPrefix returns every candidate
// sharing a token prefix; the caller narrows by digest. FindLegacyByToken is
// the read-only plaintext path for rows that predate hashing. SaveRotation
// replaces prefix+digest and clears the legacy field in the same write.
type SessionStore interface {
	Create(ctx context.Context, in CreateSessionInput) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	FindByPrefix(ctx context.Context, prefix string) ([]Session, error)
	FindLegacyByToken(ctx context.Context, token string) (Session, error)
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
	SaveRotation(ctx context.Context, in RotateSessionInput) (Session, error)
	Delete(ctx context.Context, id string) error
}

type CreateAPIKeyInput struct {
	OrgID        string
	CreatedBy    string
	Name         string
	KeyPrefix    string
	SecretDigest string
	Scopes       []string
}

type APIKeyStore interface {
	Create(ctx context.Context, in CreateAPIKeyInput) (APIKey, error)
	Get(ctx context.Context, id string) (APIKey, error)
	FindByPrefix(ctx context.Context, prefix string) ([]APIKey, error)
	ListByOrg(ctx context.Context, orgID string) ([]APIKey, error)
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
	UpdateStatus(ctx context.Context, id string, status APIKeyStatus) error
}

// LoginStateStore holds in-flight OAuth round trips. Consume removes the
// record before checking expiry so a state can never be redeemed twice even
// when the first redemption loses the race past the expiry check.
type LoginStateStore interface {
	Save(ctx context.Context, record LoginState) error
	Consume(ctx context.Context, state string) (LoginState, error)
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

type CreateOrganizationInput struct {
	Name string
	Slug string
}

type OrganizationStore interface {
	Create(ctx context.Context, in CreateOrganizationInput) (Organization, error)
	Get(ctx context.Context, id string) (Organization, error)
	GetBySlug(ctx context.Context, slug string) (Organization, error)
	Update(ctx context.Context, org Organization) (Organization, error)
}

type UpsertMembershipInput struct {
	OrgID     string
	UserID    string
	Role      Role
	IsDefault bool
}

type MembershipStore interface {
	Upsert(ctx context.Context, in UpsertMembershipInput) (Membership, error)
	Get(ctx context.Context, orgID string, userID string) (Membership, error)
	ListByUser(ctx context.Context, userID string) ([]Membership, error)
	ListByOrg(ctx context.Context, orgID string) ([]Membership, error)
	ClearDefault(ctx context.Context, userID string) error
	SetDefault(ctx context.Context, orgID string, userID string) error
}

type UpsertUserInput struct {
	Email     string
	FirstName string
	LastName  string
}

type UserStore interface {
	Upsert(ctx context.Context, in UpsertUserInput) (User, error)
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
}

type UpsertProviderLinkInput struct {
	UserID              string
	OrgID               string
	ProviderID          string
	ProviderAccountID   string
	Email               string
	EncryptedCredential []byte
	Scopes              []string
	ExpiresAt           *time.Time
}

type ProviderLinkStore interface {
	Upsert(ctx context.Context, in UpsertProviderLinkInput) (ProviderLink, error)
	GetByAccount(ctx context.Context, providerID string, providerAccountID string) (ProviderLink, error)
	FindByUser(ctx context.Context, userID string) ([]ProviderLink, error)
}

type EnqueueTaskInput struct {
	Kind           TaskKind
	IdempotencyKey string
	Payload        map[string]any
}

// TaskStore is the outbox. ClaimBatch returns pending tasks whose next
// attempt is due; Ack marks delivery; Retry records the failure and either
// reschedules or, with a zero time, parks the task as failed.
type TaskStore interface {
	Enqueue(ctx context.Context, in EnqueueTaskInput) (Task, error)
	ClaimBatch(ctx context.Context, limit int) ([]Task, error)
	Ack(ctx context.Context, taskID string) error
	Retry(ctx context.Context, taskID string, cause error, nextAttemptAt time.Time) error
}

type TaskHandler interface {
	Kind() TaskKind
	Handle(ctx context.Context, task Task) error
}

type EnqueueSyncJobInput struct {
	OrgID      string
	ProviderID string
	ObjectType string
	ObjectID   string
}

type SyncJobStore interface {
	Enqueue(ctx context.Context, in EnqueueSyncJobInput) (SyncJob, error)
	Get(ctx context.Context, id string) (SyncJob, error)
	ListByOrg(ctx context.Context, orgID string, status SyncJobStatus) ([]SyncJob, error)
	UpdateStatus(ctx context.Context, id string, status SyncJobStatus, reason string) error
}

// SecretProvider seals and opens provider credentials at rest.
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type StoreProvider interface {
	SessionStore() SessionStore
	APIKeyStore() APIKeyStore
	LoginStateStore() LoginStateStore
	OrganizationStore() OrganizationStore
	MembershipStore() MembershipStore
	UserStore() UserStore
	ProviderLinkStore() ProviderLinkStore
	TaskStore() TaskStore
	SyncJobStore() SyncJobStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type BeginLoginInput struct {
	Flow        LoginFlow
	ProviderID  string
	CallbackURL string
}

type BeginLoginResult struct {
	State    string
	AuthURL  string
	CLIToken string
}

type CompleteLoginInput struct {
	State string
	Code  string
}

type CompleteLoginResult struct {
	User         User
	Organization Organization
	Membership   Membership
	Session      Session
	SessionToken string
	Flow         LoginFlow
}

type IssueSessionInput struct {
	UserID    string
	OrgID     string
	Kind      SessionKind
	RawToken  string
	ExpiresAt time.Time
}

type IssueAPIKeyInput struct {
	OrgID     string
	CreatedBy string
	Name      string
	Scopes    []string
}

type IssueAPIKeyResult struct {
	Key    APIKey
	RawKey string
}

type ProvisionOrganizationInput struct {
	Name    string
	Slug    string
	OwnerID string
}

type ProvisionOrganizationResult struct {
	Organization Organization
	Owner        Membership
}

// AuthContext is the resolved identity of a verified bearer credential.
// Scopes already reflect the credential class: stored scopes for API keys,
// role-derived scopes for CLI sessions, the wildcard for platform sessions.
type AuthContext struct {
	Method    AuthMethod
	UserID    string
	OrgID     string
	SessionID string
	APIKeyID  string
	Role      Role
	Scopes    []string
}

type AuthMethod string

const (
	AuthMethodAPIKey          AuthMethod = "api_key"
	AuthMethodCLISession      AuthMethod = "cli_session"
	AuthMethodPlatformSession AuthMethod = "platform_session"
)

// CredentialResolver turns a presented bearer value into an AuthContext or a
// uniform invalid-credential error.
type CredentialResolver interface {
	Resolve(ctx context.Context, token string) (AuthContext, error)
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type DispatchStats struct {
	Claimed   int
	Delivered int
	Retried   int
	Failed    int
}

// AuthorityService is the complete operation surface, kept as an interface so
// transports and the command layer can be tested against fakes.
type AuthorityService interface {
	BeginLogin(ctx context.Context, in BeginLoginInput) (BeginLoginResult, error)
	CompleteLogin(ctx context.Context, in CompleteLoginInput) (CompleteLoginResult, error)
	VerifyCredential(ctx context.Context, token string) (AuthContext, error)
	RequireScopes(ctx context.Context, auth AuthContext, needed ...string) error
	RotateSession(ctx context.Context, sessionID string) (Session, string, error)
	RevokeSession(ctx context.Context, sessionID string) error
	IssueAPIKey(ctx context.Context, in IssueAPIKeyInput) (IssueAPIKeyResult, error)
	ListAPIKeys(ctx context.Context, orgID string) ([]APIKey, error)
	RevokeAPIKey(ctx context.Context, orgID string, keyID string) error
	ProvisionOrganization(ctx context.Context, in ProvisionOrganizationInput) (ProvisionOrganizationResult, error)
	SetDefaultOrganization(ctx context.Context, orgID string, userID string) error
}

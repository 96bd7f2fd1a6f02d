package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrCredentialInvalid              = errors.New("core: invalid or expired credential")
	ErrInvalidSessionKind             = errors.New("core: invalid session kind")
	ErrInvalidLoginFlow               = errors.New("core: invalid login flow")
	ErrInvalidAPIKeyStatusTransition  = errors.New("core: invalid api key status transition")
	ErrInvalidTaskStatusTransition    = errors.New("core: invalid task status transition")
	ErrInvalidSyncJobStatusTransition = errors.New("core: invalid sync job status transition")
	ErrLoginStateNotFound             = errors.New("core: login state invalid or expired")
	ErrOrganizationNotFound           = errors.New("core: organization not found")
	ErrMembershipNotFound             = errors.New("core: membership not found")
)

type SessionKind string

const (
	SessionKindPlatform SessionKind = "platform"
	SessionKindCLI      SessionKind = "cli"
)

func (k SessionKind) Validate() error {
	switch k {
	case SessionKindPlatform, SessionKindCLI:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidSessionKind, string(k))
}

// Session is a bearer credential for one user inside one organization.
// Hashed sessions carry TokenPrefix+TokenDigest; rows migrated from the
// pre-hashing era carry the raw token in LegacyToken until rotated.
type Session struct {
	ID          string
	UserID      string
	OrgID       string
	Kind        SessionKind
	TokenPrefix string
	TokenDigest string
	LegacyToken string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	LastUsedAt  time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

func (s Session) Hashed() bool {
	return strings.TrimSpace(s.TokenDigest) != ""
}

type APIKeyStatus string

const (
	APIKeyStatusActive  APIKeyStatus = "active"
	APIKeyStatusRevoked APIKeyStatus = "revoked"
)

type APIKey struct {
	ID           string
	OrgID        string
	CreatedBy    string
	Name         string
	KeyPrefix    string
	SecretDigest string
	Scopes       []string
	Status       APIKeyStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastUsedAt   time.Time
}

func (k *APIKey) TransitionTo(status APIKeyStatus, now time.Time) error {
	if k == nil {
		return nil
	}
	if k.Status == status {
		k.UpdatedAt = now
		return nil
	}
	if !apiKeyTransitionAllowed(k.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidAPIKeyStatusTransition, k.Status, status)
	}
	k.Status = status
	k.UpdatedAt = now
	return nil
}

func apiKeyTransitionAllowed(current, next APIKeyStatus) bool {
	allowed := map[APIKeyStatus]map[APIKeyStatus]struct{}{
		APIKeyStatusActive: {
			APIKeyStatusRevoked: {},
		},
		APIKeyStatusRevoked: {},
	}
	_, ok := allowed[current][next]
	return ok
}

type LoginFlow string

const (
	LoginFlowCLI      LoginFlow = "cli"
	LoginFlowPlatform LoginFlow = "platform"
	LoginFlowSignup   LoginFlow = "signup"
)

func (f LoginFlow) Validate() error {
	switch f {
	case LoginFlowCLI, LoginFlowPlatform, LoginFlowSignup:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidLoginFlow, string(f))
}

// LoginState pins one in-flight OAuth round trip. The random State value is
// both primary key and CSRF check. For CLI flows EmbeddedToken holds the raw
// session token generated at begin time; it becomes a live credential only
// when the callback completes.
type LoginState struct {
	State         string
	Flow          LoginFlow
	ProviderID    string
	CallbackURL   string
	EmbeddedToken string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

type Organization struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Membership struct {
	ID        string
	OrgID     string
	UserID    string
	Role      Role
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProviderLink attaches an upstream OAuth account to a user. Provider tokens
// live in EncryptedCredential as an opaque envelope; callers never see them
// raw.
type ProviderLink struct {
	ID                  string
	UserID              string
	OrgID               string
	ProviderID          string
	ProviderAccountID   string
	Email               string
	EncryptedCredential []byte
	Scopes              []string
	ExpiresAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusDelivered TaskStatus = "delivered"
	TaskStatusFailed    TaskStatus = "failed"
)

type TaskKind string

const (
	TaskKindWelcomeEmail   TaskKind = "welcome_email"
	TaskKindAnalyticsEvent TaskKind = "analytics_event"
	TaskKindCRMProvision   TaskKind = "crm_provision"
	TaskKindBehaviorNotice TaskKind = "behavior_notice"
	TaskKindSessionTouch   TaskKind = "session_touch"
)

// Task is one deferred side effect. Delivery is at-least-once; handlers are
// expected to dedupe on IdempotencyKey.
type Task struct {
	ID             string
	Kind           TaskKind
	IdempotencyKey string
	Payload        map[string]any
	Status         TaskStatus
	Attempts       int
	NextAttemptAt  *time.Time
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (t *Task) TransitionTo(status TaskStatus, now time.Time) error {
	if t == nil {
		return nil
	}
	if t.Status == status {
		t.UpdatedAt = now
		return nil
	}
	if !taskTransitionAllowed(t.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTaskStatusTransition, t.Status, status)
	}
	t.Status = status
	t.UpdatedAt = now
	return nil
}

func taskTransitionAllowed(current, next TaskStatus) bool {
	allowed := map[TaskStatus]map[TaskStatus]struct{}{
		TaskStatusPending: {
			TaskStatusDelivered: {},
			TaskStatusFailed:    {},
		},
		TaskStatusFailed: {
			TaskStatusPending: {},
		},
		TaskStatusDelivered: {},
	}
	_, ok := allowed[current][next]
	return ok
}

type SyncJobStatus string

const (
	SyncJobStatusQueued    SyncJobStatus = "queued"
	SyncJobStatusRunning   SyncJobStatus = "running"
	SyncJobStatusSucceeded SyncJobStatus = "succeeded"
	SyncJobStatusFailed    SyncJobStatus = "failed"
)

// SyncJob is one queued unit of CRM synchronization produced by the workflow
// engine and drained by a worker.
type SyncJob struct {
	ID            string
	OrgID         string
	ProviderID    string
	ObjectType    string
	ObjectID      string
	Status        SyncJobStatus
	Attempts      int
	NextAttemptAt *time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (j *SyncJob) TransitionTo(status SyncJobStatus, now time.Time) error {
	if j == nil {
		return nil
	}
	if j.Status == status {
		j.UpdatedAt = now
		return nil
	}
	if !syncJobTransitionAllowed(j.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidSyncJobStatusTransition, j.Status, status)
	}
	j.Status = status
	j.UpdatedAt = now
	return nil
}

func syncJobTransitionAllowed(current, next SyncJobStatus) bool {
	allowed := map[SyncJobStatus]map[SyncJobStatus]struct{}{
		SyncJobStatusQueued: {
			SyncJobStatusRunning: {},
			SyncJobStatusFailed:  {},
		},
		SyncJobStatusRunning: {
			SyncJobStatusSucceeded: {},
			SyncJobStatusFailed:    {},
		},
		SyncJobStatusFailed: {
			SyncJobStatusQueued:  {},
			SyncJobStatusRunning: {},
		},
		SyncJobStatusSucceeded: {},
	}
	_, ok := allowed[current][next]
	return ok
}

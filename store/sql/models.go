package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/voundbrand/go-authority/behavior"
)

type sessionRecord struct {
	bun.BaseModel `bun:"table:authority_sessions,alias:asn"`

	ID          string     `bun:"id,pk"`
	UserID      string     `bun:"user_id,notnull"`
	OrgID       string     `bun:"org_id,notnull"`
	Kind        string     `bun:"kind,notnull"`
	TokenPrefix string     `bun:"token_prefix"`
	TokenDigest string     `bun:"token_digest"`
	LegacyToken string     `bun:"legacy_token"`
	IssuedAt    time.Time  `bun:"issued_at,nullzero,notnull"`
	ExpiresAt   time.Time  `bun:"expires_at,nullzero,notnull"`
	LastUsedAt  *time.Time `bun:"last_used_at,nullzero"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type apiKeyRecord struct {
	bun.BaseModel `bun:"table:authority_api_keys,alias:aak"`

	ID           string     `bun:"id,pk"`
	OrgID        string     `bun:"org_id,notnull"`
	CreatedBy    string     `bun:"created_by,notnull"`
	Name         string     `bun:"name,notnull"`
	KeyPrefix    string     `bun:"key_prefix,notnull"`
	SecretDigest string     `bun:"secret_digest,notnull"`
	Scopes       []string   `bun:"scopes,type:jsonb,notnull"`
	Status       string     `bun:"status,notnull"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	LastUsedAt   *time.Time `bun:"last_used_at,nullzero"`
}

// loginStateRecord is keyed by the random state value itself, not a uuid.
type loginStateRecord struct {
	bun.BaseModel `bun:"table:authority_login_states,alias:als"`

	State         string    `bun:"state,pk"`
	Flow          string    `bun:"flow,notnull"`
	ProviderID    string    `bun:"provider_id,notnull"`
	CallbackURL   string    `bun:"callback_url"`
	EmbeddedToken string    `bun:"embedded_token"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull"`
	ExpiresAt     time.Time `bun:"expires_at,nullzero,notnull"`
}

type organizationRecord struct {
	bun.BaseModel `bun:"table:authority_organizations,alias:aog"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	Slug      string    `bun:"slug,notnull,unique"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type membershipRecord struct {
	bun.BaseModel `bun:"table:authority_memberships,alias:amb"`

	ID        string    `bun:"id,pk"`
	OrgID     string    `bun:"org_id,notnull"`
	UserID    string    `bun:"user_id,notnull"`
	Role      string    `bun:"role,notnull"`
	IsDefault bool      `bun:"is_default,notnull,default:false"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type userRecord struct {
	bun.BaseModel `bun:"table:authority_users,alias:aur"`

	ID        string    `bun:"id,pk"`
	Email     string    `bun:"email,notnull,unique"`
	FirstName string    `bun:"first_name"`
	LastName  string    `bun:"last_name"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type providerLinkRecord struct {
	bun.BaseModel `bun:"table:authority_provider_links,alias:apl"`

	ID                  string     `bun:"id,pk"`
	UserID              string     `bun:"user_id,notnull"`
	OrgID               string     `bun:"org_id"`
	ProviderID          string     `bun:"provider_id,notnull"`
	ProviderAccountID   string     `bun:"provider_account_id,notnull"`
	Email               string     `bun:"email"`
	EncryptedCredential []byte     `bun:"encrypted_credential"`
	Scopes              []string   `bun:"scopes,type:jsonb,notnull"`
	ExpiresAt           *time.Time `bun:"expires_at,nullzero"`
	CreatedAt           time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt           time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type taskRecord struct {
	bun.BaseModel `bun:"table:authority_outbox,alias:aob"`

	ID             string         `bun:"id,pk"`
	Kind           string         `bun:"kind,notnull"`
	IdempotencyKey string         `bun:"idempotency_key"`
	Payload        map[string]any `bun:"payload,type:jsonb,notnull"`
	Status         string         `bun:"status,notnull"`
	Attempts       int            `bun:"attempts,notnull"`
	NextAttemptAt  *time.Time     `bun:"next_attempt_at,nullzero"`
	LastError      string         `bun:"last_error"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type syncJobRecord struct {
	bun.BaseModel `bun:"table:workflow_sync_jobs,alias:wsj"`

	ID            string     `bun:"id,pk"`
	OrgID         string     `bun:"org_id,notnull"`
	ProviderID    string     `bun:"provider_id,notnull"`
	ObjectType    string     `bun:"object_type,notnull"`
	ObjectID      string     `bun:"object_id,notnull"`
	Status        string     `bun:"status,notnull"`
	Attempts      int        `bun:"attempts,notnull"`
	NextAttemptAt *time.Time `bun:"next_attempt_at,nullzero"`
	LastError     string     `bun:"last_error"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type chainRecord struct {
	bun.BaseModel `bun:"table:workflow_chains,alias:wch"`

	ID            string                `bun:"id,pk"`
	OrgID         string                `bun:"org_id,notnull"`
	WorkflowID    string                `bun:"workflow_id,notnull"`
	ErrorHandling string                `bun:"error_handling,notnull"`
	Behaviors     []behavior.Descriptor `bun:"behaviors,type:jsonb,notnull"`
	CreatedAt     time.Time             `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time             `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type transactionRecord struct {
	bun.BaseModel `bun:"table:workflow_transactions,alias:wtx"`

	ID         string              `bun:"id,pk"`
	OrgID      string              `bun:"org_id,notnull"`
	WorkflowID string              `bun:"workflow_id,notnull"`
	Subtotal   int64               `bun:"subtotal,notnull"`
	Discount   int64               `bun:"discount,notnull"`
	Tax        int64               `bun:"tax,notnull"`
	Total      int64               `bun:"total,notnull"`
	Lines      []behavior.LineItem `bun:"lines,type:jsonb,notnull"`
	CreatedAt  time.Time           `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

package httpapi

import (
	"time"

	"github.com/voundbrand/go-authority/behavior"
	"github.com/voundbrand/go-authority/core"
)

// Wire shapes. Domain types carry no JSON tags, so every response goes
// through one of these payloads; digests and raw token material stay out
// except where issuance shows a secret exactly once.

type beginLoginRequest struct {
	Flow        string `json:"flow"`
	Provider    string `json:"provider"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type beginLoginResponse struct {
	State    string `json:"state"`
	AuthURL  string `json:"auth_url"`
	CLIToken string `json:"cli_token,omitempty"`
}

type completeLoginRequest struct {
	State string `json:"state"`
	Code  string `json:"code"`
}

type completeLoginResponse struct {
	User         userPayload         `json:"user"`
	Organization organizationPayload `json:"organization"`
	Membership   membershipPayload   `json:"membership"`
	SessionToken string              `json:"session_token"`
	ExpiresAt    time.Time           `json:"expires_at"`
	Flow         string              `json:"flow"`
}

type whoamiResponse struct {
	Method    string   `json:"method"`
	UserID    string   `json:"user_id,omitempty"`
	OrgID     string   `json:"org_id"`
	SessionID string   `json:"session_id,omitempty"`
	APIKeyID  string   `json:"api_key_id,omitempty"`
	Role      string   `json:"role,omitempty"`
	Scopes    []string `json:"scopes"`
}

type rotateSessionResponse struct {
	SessionID    string    `json:"session_id"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type issueAPIKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

type issueAPIKeyResponse struct {
	Key    apiKeyPayload `json:"key"`
	RawKey string        `json:"raw_key"`
}

type listAPIKeysResponse struct {
	Keys []apiKeyPayload `json:"keys"`
}

type apiKeyPayload struct {
	ID         string     `json:"id"`
	OrgID      string     `json:"org_id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

type userPayload struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type organizationPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type updateOrganizationRequest struct {
	Name string `json:"name"`
}

type membershipPayload struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	IsDefault bool   `json:"is_default"`
}

type listMembershipsResponse struct {
	Memberships []membershipPayload `json:"memberships"`
}

type chainRequest struct {
	ErrorHandling string                `json:"error_handling"`
	Behaviors     []behavior.Descriptor `json:"behaviors"`
}

type chainResponse struct {
	ID            string                `json:"id"`
	OrgID         string                `json:"org_id"`
	WorkflowID    string                `json:"workflow_id"`
	ErrorHandling string                `json:"error_handling"`
	Behaviors     []behavior.Descriptor `json:"behaviors"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

type runWorkflowRequest struct {
	DryRun       bool           `json:"dryRun"`
	Cart         *behavior.Cart `json:"cart,omitempty"`
	DiscountCode string         `json:"discount_code,omitempty"`
}

type runWorkflowResponse struct {
	Report behavior.RunReport `json:"report"`
	DryRun bool               `json:"dryRun"`
}

func toUserPayload(user core.User) userPayload {
	return userPayload{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

func toOrganizationPayload(org core.Organization) organizationPayload {
	return organizationPayload{
		ID:        org.ID,
		Name:      org.Name,
		Slug:      org.Slug,
		CreatedAt: org.CreatedAt,
		UpdatedAt: org.UpdatedAt,
	}
}

func toMembershipPayload(membership core.Membership) membershipPayload {
	return membershipPayload{
		ID:        membership.ID,
		OrgID:     membership.OrgID,
		UserID:    membership.UserID,
		Role:      string(membership.Role),
		IsDefault: membership.IsDefault,
	}
}

func toAPIKeyPayload(key core.APIKey) apiKeyPayload {
	return apiKeyPayload{
		ID:         key.ID,
		OrgID:      key.OrgID,
		Name:       key.Name,
		KeyPrefix:  key.KeyPrefix,
		Scopes:     append([]string(nil), key.Scopes...),
		Status:     string(key.Status),
		CreatedAt:  key.CreatedAt,
		LastUsedAt: optionalTime(key.LastUsedAt),
	}
}

func toChainResponse(chain behavior.Chain) chainResponse {
	return chainResponse{
		ID:            chain.ID,
		OrgID:         chain.OrgID,
		WorkflowID:    chain.WorkflowID,
		ErrorHandling: string(chain.ErrorHandling),
		Behaviors:     append([]behavior.Descriptor(nil), chain.Behaviors...),
		UpdatedAt:     chain.UpdatedAt,
	}
}

func optionalTime(at time.Time) *time.Time {
	if at.IsZero() {
		return nil
	}
	return &at
}

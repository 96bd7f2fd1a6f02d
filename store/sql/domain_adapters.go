package sqlstore

import (
	"time"

	"github.com/voundbrand/go-authority/behavior"
	"github.com/voundbrand/go-authority/core"
)

func newSessionRecord(in core.CreateSessionInput, id string, now time.Time) *sessionRecord {
	return &sessionRecord{
		ID:          id,
		UserID:      in.UserID,
		OrgID:       in.OrgID,
		Kind:        string(in.Kind),
		TokenPrefix: in.TokenPrefix,
		TokenDigest: in.TokenDigest,
		IssuedAt:    now,
		ExpiresAt:   in.ExpiresAt.UTC(),
		UpdatedAt:   now,
	}
}

func (r *sessionRecord) toDomain() core.Session {
	if r == nil {
		return core.Session{}
	}
	session := core.Session{
		ID:          r.ID,
		UserID:      r.UserID,
		OrgID:       r.OrgID,
		Kind:        core.SessionKind(r.Kind),
		TokenPrefix: r.TokenPrefix,
		TokenDigest: r.TokenDigest,
		LegacyToken: r.LegacyToken,
		IssuedAt:    r.IssuedAt,
		ExpiresAt:   r.ExpiresAt,
	}
	if r.LastUsedAt != nil {
		session.LastUsedAt = *r.LastUsedAt
	}
	return session
}

func newAPIKeyRecord(in core.CreateAPIKeyInput, id string, now time.Time) *apiKeyRecord {
	return &apiKeyRecord{
		ID:           id,
		OrgID:        in.OrgID,
		CreatedBy:    in.CreatedBy,
		Name:         in.Name,
		KeyPrefix:    in.KeyPrefix,
		SecretDigest: in.SecretDigest,
		Scopes:       copyStrings(in.Scopes),
		Status:       string(core.APIKeyStatusActive),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r *apiKeyRecord) toDomain() core.APIKey {
	if r == nil {
		return core.APIKey{}
	}
	key := core.APIKey{
		ID:           r.ID,
		OrgID:        r.OrgID,
		CreatedBy:    r.CreatedBy,
		Name:         r.Name,
		KeyPrefix:    r.KeyPrefix,
		SecretDigest: r.SecretDigest,
		Scopes:       copyStrings(r.Scopes),
		Status:       core.APIKeyStatus(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.LastUsedAt != nil {
		key.LastUsedAt = *r.LastUsedAt
	}
	return key
}

func newLoginStateRecord(in core.LoginState) *loginStateRecord {
	return &loginStateRecord{
		State:         in.State,
		Flow:          string(in.Flow),
		ProviderID:    in.ProviderID,
		CallbackURL:   in.CallbackURL,
		EmbeddedToken: in.EmbeddedToken,
		CreatedAt:     in.CreatedAt.UTC(),
		ExpiresAt:     in.ExpiresAt.UTC(),
	}
}

func (r *loginStateRecord) toDomain() core.LoginState {
	if r == nil {
		return core.LoginState{}
	}
	return core.LoginState{
		State:         r.State,
		Flow:          core.LoginFlow(r.Flow),
		ProviderID:    r.ProviderID,
		CallbackURL:   r.CallbackURL,
		EmbeddedToken: r.EmbeddedToken,
		CreatedAt:     r.CreatedAt,
		ExpiresAt:     r.ExpiresAt,
	}
}

func (r *organizationRecord) toDomain() core.Organization {
	if r == nil {
		return core.Organization{}
	}
	return core.Organization{
		ID:        r.ID,
		Name:      r.Name,
		Slug:      r.Slug,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r *membershipRecord) toDomain() core.Membership {
	if r == nil {
		return core.Membership{}
	}
	return core.Membership{
		ID:        r.ID,
		OrgID:     r.OrgID,
		UserID:    r.UserID,
		Role:      core.ParseRole(r.Role),
		IsDefault: r.IsDefault,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r *userRecord) toDomain() core.User {
	if r == nil {
		return core.User{}
	}
	return core.User{
		ID:        r.ID,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r *providerLinkRecord) toDomain() core.ProviderLink {
	if r == nil {
		return core.ProviderLink{}
	}
	link := core.ProviderLink{
		ID:                  r.ID,
		UserID:              r.UserID,
		OrgID:               r.OrgID,
		ProviderID:          r.ProviderID,
		ProviderAccountID:   r.ProviderAccountID,
		Email:               r.Email,
		EncryptedCredential: append([]byte(nil), r.EncryptedCredential...),
		Scopes:              copyStrings(r.Scopes),
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if r.ExpiresAt != nil {
		expiresAt := *r.ExpiresAt
		link.ExpiresAt = &expiresAt
	}
	return link
}

func (r *taskRecord) toDomain() core.Task {
	if r == nil {
		return core.Task{}
	}
	task := core.Task{
		ID:             r.ID,
		Kind:           core.TaskKind(r.Kind),
		IdempotencyKey: r.IdempotencyKey,
		Payload:        copyAnyMap(r.Payload),
		Status:         core.TaskStatus(r.Status),
		Attempts:       r.Attempts,
		LastError:      r.LastError,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.NextAttemptAt != nil {
		nextAttempt := *r.NextAttemptAt
		task.NextAttemptAt = &nextAttempt
	}
	return task
}

func (r *syncJobRecord) toDomain() core.SyncJob {
	if r == nil {
		return core.SyncJob{}
	}
	job := core.SyncJob{
		ID:         r.ID,
		OrgID:      r.OrgID,
		ProviderID: r.ProviderID,
		ObjectType: r.ObjectType,
		ObjectID:   r.ObjectID,
		Status:     core.SyncJobStatus(r.Status),
		Attempts:   r.Attempts,
		LastError:  r.LastError,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.NextAttemptAt != nil {
		nextAttempt := *r.NextAttemptAt
		job.NextAttemptAt = &nextAttempt
	}
	return job
}

func newChainRecord(chain behavior.Chain, id string, now time.Time) *chainRecord {
	policy := chain.ErrorHandling
	if policy == "" {
		policy = behavior.PolicyContinue
	}
	return &chainRecord{
		ID:            id,
		OrgID:         chain.OrgID,
		WorkflowID:    chain.WorkflowID,
		ErrorHandling: string(policy),
		Behaviors:     copyDescriptors(chain.Behaviors),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (r *chainRecord) toDomain() behavior.Chain {
	if r == nil {
		return behavior.Chain{}
	}
	return behavior.Chain{
		ID:            r.ID,
		OrgID:         r.OrgID,
		WorkflowID:    r.WorkflowID,
		ErrorHandling: behavior.Policy(r.ErrorHandling),
		Behaviors:     copyDescriptors(r.Behaviors),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (r *transactionRecord) toDomain() behavior.Transaction {
	if r == nil {
		return behavior.Transaction{}
	}
	return behavior.Transaction{
		ID:         r.ID,
		OrgID:      r.OrgID,
		WorkflowID: r.WorkflowID,
		Subtotal:   r.Subtotal,
		Discount:   r.Discount,
		Tax:        r.Tax,
		Total:      r.Total,
		Lines:      append([]behavior.LineItem(nil), r.Lines...),
		CreatedAt:  r.CreatedAt,
	}
}

func copyDescriptors(in []behavior.Descriptor) []behavior.Descriptor {
	out := make([]behavior.Descriptor, 0, len(in))
	for _, descriptor := range in {
		copied := descriptor
		copied.Config = copyAnyMap(descriptor.Config)
		out = append(out, copied)
	}
	return out
}

func copyStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string(nil), in...)
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

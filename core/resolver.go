package core

import (
	"context"
	"strings"
	"time"
)

// VerifyCredential resolves a bearer credential into an AuthContext. The
// token shape picks the verification path; every rejection surfaces as the
// same invalid-credential error so callers cannot probe which branch failed.
func (s *Service) VerifyCredential(ctx context.Context, token string) (AuthContext, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return AuthContext{}, s.mapError(s.credentialInvalid(ctx, "resolver", "empty"))
	}

	switch ClassifyToken(token) {
	case TokenKindAPIKey:
		return s.resolveAPIKeyCredential(ctx, token)
	case TokenKindSession:
		return s.resolveSessionCredential(ctx, token)
	case TokenKindPlatform:
		return s.resolvePlatformCredential(ctx, token)
	default:
		return AuthContext{}, s.mapError(s.credentialInvalid(ctx, "resolver", "bad_format"))
	}
}

// RequireScopes enforces that the resolved credential covers every needed
// scope. The returned error names the full missing set so a CLI can report
// all gaps in one pass.
func (s *Service) RequireScopes(ctx context.Context, auth AuthContext, needed ...string) error {
	decision := EvaluateScopes(auth.Scopes, needed...)
	if decision.Allowed {
		return nil
	}
	return s.mapError(NewMissingScopesError(decision.Missing))
}

// CredentialResolver exposes VerifyCredential behind the narrow resolver
// contract transports depend on.
func (s *Service) CredentialResolver() CredentialResolver {
	return serviceCredentialResolver{service: s}
}

type serviceCredentialResolver struct {
	service *Service
}

func (r serviceCredentialResolver) Resolve(ctx context.Context, token string) (AuthContext, error) {
	return r.service.VerifyCredential(ctx, token)
}

func (s *Service) resolveAPIKeyCredential(ctx context.Context, token string) (AuthContext, error) {
	key, err := s.VerifyAPIKey(ctx, token)
	if err != nil {
		return AuthContext{}, err
	}
	return AuthContext{
		Method:   AuthMethodAPIKey,
		UserID:   key.CreatedBy,
		OrgID:    key.OrgID,
		APIKeyID: key.ID,
		Scopes:   append([]string(nil), key.Scopes...),
	}, nil
}

func (s *Service) resolveSessionCredential(ctx context.Context, token string) (AuthContext, error) {
	session, err := s.VerifySessionToken(ctx, token)
	if err != nil {
		return AuthContext{}, err
	}
	role := RoleViewer
	if s.membershipStore != nil {
		membership, memErr := s.membershipStore.Get(ctx, session.OrgID, session.UserID)
		if memErr != nil {
			if !isNotFound(memErr) {
				return AuthContext{}, s.mapError(memErr)
			}
			// Membership revoked after issuance; the session dies with it.
			return AuthContext{}, s.mapError(s.credentialInvalid(ctx, "session", "membership_gone"))
		}
		role = membership.Role
	}
	return AuthContext{
		Method:    AuthMethodCLISession,
		UserID:    session.UserID,
		OrgID:     session.OrgID,
		SessionID: session.ID,
		Role:      role,
		Scopes:    ScopesFor(role),
	}, nil
}

// resolvePlatformCredential looks up a platform session by its opaque ID.
// Platform sessions carry the full wildcard inside their organization; scope
// narrowing only applies to CLI sessions and API keys.
func (s *Service) resolvePlatformCredential(ctx context.Context, token string) (AuthContext, error) {
	if s == nil || s.sessionStore == nil {
		return AuthContext{}, s.mapError(s.credentialInvalid(ctx, "platform", "no_store"))
	}
	session, err := s.sessionStore.Get(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return AuthContext{}, s.mapError(s.credentialInvalid(ctx, "platform", "no_match"))
		}
		return AuthContext{}, s.mapError(err)
	}
	if session.Kind != SessionKindPlatform {
		return AuthContext{}, s.mapError(s.credentialInvalid(ctx, "platform", "wrong_kind"))
	}
	if session.Expired(time.Now().UTC()) {
		return AuthContext{}, s.mapError(s.credentialInvalid(ctx, "platform", "expired"))
	}
	s.touchSession(ctx, session.ID, time.Now().UTC())
	role := RoleOwner
	if s.membershipStore != nil {
		if membership, memErr := s.membershipStore.Get(ctx, session.OrgID, session.UserID); memErr == nil {
			role = membership.Role
		}
	}
	return AuthContext{
		Method:    AuthMethodPlatformSession,
		UserID:    session.UserID,
		OrgID:     session.OrgID,
		SessionID: session.ID,
		Role:      role,
		Scopes:    []string{ScopeWildcard},
	}, nil
}

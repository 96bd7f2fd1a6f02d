package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// IssueSession stores a new session for a raw token. The raw value is hashed
// here and never persisted; callers keep it only long enough to hand to the
// user once.
func (s *Service) IssueSession(ctx context.Context, in IssueSessionInput) (session Session, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"org_id": in.OrgID,
		"kind":   string(in.Kind),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "issue_session", err, fields)
	}()

	if s == nil || s.sessionStore == nil {
		err = s.mapError(fmt.Errorf("core: session store is not configured"))
		return Session{}, err
	}
	if err = in.Kind.Validate(); err != nil {
		err = s.mapError(err)
		return Session{}, err
	}
	if strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.OrgID) == "" {
		err = s.mapError(fmt.Errorf("core: user id and org id are required"))
		return Session{}, err
	}
	rawToken := strings.TrimSpace(in.RawToken)
	if ClassifyToken(rawToken) != TokenKindSession {
		err = s.mapError(fmt.Errorf("core: invalid session token format"))
		return Session{}, err
	}

	digest, err := s.hasher.Hash(rawToken)
	if err != nil {
		err = s.mapError(err)
		return Session{}, err
	}

	expiresAt := in.ExpiresAt
	if expiresAt.IsZero() {
		ttl := s.config.CLISessionTTL()
		if in.Kind == SessionKindPlatform {
			ttl = s.config.PlatformSessionTTL()
		}
		expiresAt = time.Now().UTC().Add(ttl)
	}

	session, err = s.sessionStore.Create(ctx, CreateSessionInput{
		UserID:      in.UserID,
		OrgID:       in.OrgID,
		Kind:        in.Kind,
		TokenPrefix: TokenPrefix(rawToken),
		TokenDigest: digest,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		err = s.mapError(err)
		return Session{}, err
	}
	return session, nil
}

// VerifySessionToken resolves a raw session token to its session. The lookup
// runs in two phases: the stored prefix narrows candidates, then the bcrypt
// digest decides. Rows that predate hashing fall back to plaintext equality,
// read-only. Every rejection, including expiry, collapses into the same
// invalid-credential error so callers cannot probe which sessions exist.
func (s *Service) VerifySessionToken(ctx context.Context, token string) (Session, error) {
	if s == nil || s.sessionStore == nil {
		return Session{}, s.mapError(fmt.Errorf("core: session store is not configured"))
	}
	token = strings.TrimSpace(token)
	if ClassifyToken(token) != TokenKindSession {
		return Session{}, s.credentialInvalid(ctx, "session", "bad_format")
	}

	now := time.Now().UTC()
	candidates, err := s.sessionStore.FindByPrefix(ctx, TokenPrefix(token))
	if err != nil {
		return Session{}, s.mapError(err)
	}
	for _, candidate := range candidates {
		if candidate.Expired(now) || !candidate.Hashed() {
			continue
		}
		match, verifyErr := s.hasher.Verify(token, candidate.TokenDigest)
		if verifyErr != nil {
			return Session{}, s.mapError(verifyErr)
		}
		if match {
			s.touchSession(ctx, candidate.ID, now)
			return candidate, nil
		}
	}

	legacy, err := s.sessionStore.FindLegacyByToken(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return Session{}, s.credentialInvalid(ctx, "session", "no_match")
		}
		return Session{}, s.mapError(err)
	}
	if legacy.Expired(now) {
		return Session{}, s.credentialInvalid(ctx, "session", "expired")
	}
	s.touchSession(ctx, legacy.ID, now)
	s.recordCounter(ctx, "authority.legacy_session_use.total", 1, map[string]string{
		"kind": string(legacy.Kind),
	})
	return legacy, nil
}

// RotateSession issues a replacement token for a live session. The old token
// stops verifying the moment the rotation write lands, and any legacy
// plaintext is cleared for good.
func (s *Service) RotateSession(ctx context.Context, sessionID string) (session Session, rawToken string, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "rotate_session", err, fields)
	}()

	if s == nil || s.sessionStore == nil {
		err = s.mapError(fmt.Errorf("core: session store is not configured"))
		return Session{}, "", err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		err = s.mapError(fmt.Errorf("core: session id is required"))
		return Session{}, "", err
	}

	current, err := s.sessionStore.Get(ctx, sessionID)
	if err != nil {
		if isNotFound(err) {
			err = s.credentialInvalid(ctx, "session", "rotate_missing")
			return Session{}, "", err
		}
		err = s.mapError(err)
		return Session{}, "", err
	}
	if current.Expired(time.Now().UTC()) {
		err = s.credentialInvalid(ctx, "session", "rotate_expired")
		return Session{}, "", err
	}
	fields["org_id"] = current.OrgID
	fields["kind"] = string(current.Kind)

	rawToken, err = GenerateSessionToken()
	if err != nil {
		err = s.mapError(err)
		return Session{}, "", err
	}
	digest, err := s.hasher.Hash(rawToken)
	if err != nil {
		err = s.mapError(err)
		return Session{}, "", err
	}

	session, err = s.sessionStore.SaveRotation(ctx, RotateSessionInput{
		SessionID:   sessionID,
		TokenPrefix: TokenPrefix(rawToken),
		TokenDigest: digest,
		RotatedAt:   time.Now().UTC(),
	})
	if err != nil {
		err = s.mapError(err)
		return Session{}, "", err
	}
	return session, rawToken, nil
}

// RevokeSession deletes a session. Revoking an absent session succeeds:
// the desired end state already holds.
func (s *Service) RevokeSession(ctx context.Context, sessionID string) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "revoke_session", err, map[string]any{})
	}()

	if s == nil || s.sessionStore == nil {
		err = s.mapError(fmt.Errorf("core: session store is not configured"))
		return err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		err = s.mapError(fmt.Errorf("core: session id is required"))
		return err
	}
	if err = s.sessionStore.Delete(ctx, sessionID); err != nil {
		if isNotFound(err) {
			err = nil
			return nil
		}
		err = s.mapError(err)
		return err
	}
	return nil
}

// touchSession updates last-used without blocking or failing the request.
// With a task store wired the write rides the outbox; otherwise it happens
// inline, best effort.
func (s *Service) touchSession(ctx context.Context, sessionID string, at time.Time) {
	if s == nil {
		return
	}
	if s.taskStore != nil {
		s.enqueueTask(ctx, EnqueueTaskInput{
			Kind:           TaskKindSessionTouch,
			IdempotencyKey: fmt.Sprintf("session_touch:%s:%d", sessionID, at.Unix()),
			Payload: map[string]any{
				"session_id": sessionID,
				"touched_at": at.Format(time.RFC3339),
			},
		})
		return
	}
	if err := s.sessionStore.TouchLastUsed(ctx, sessionID, at); err != nil {
		s.logError(ctx, "session touch failed", map[string]any{
			"error": err.Error(),
		})
	}
}

// credentialInvalid emits one uniform rejection. The reason tag stays in
// telemetry and never reaches the caller.
func (s *Service) credentialInvalid(ctx context.Context, surface string, reason string) error {
	s.recordCounter(ctx, "authority.credential_rejected.total", 1, map[string]string{
		"surface": surface,
		"reason":  reason,
	})
	return NewCredentialInvalidError()
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrOrganizationNotFound) || errors.Is(err, ErrMembershipNotFound) || errors.Is(err, ErrLoginStateNotFound) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

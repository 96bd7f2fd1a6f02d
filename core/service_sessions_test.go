package core

import (
	"context"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func issueTestSession(t *testing.T, service *Service, userID, orgID string, kind SessionKind) (Session, string) {
	t.Helper()
	rawToken, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	session, err := service.IssueSession(context.Background(), IssueSessionInput{
		UserID:   userID,
		OrgID:    orgID,
		Kind:     kind,
		RawToken: rawToken,
	})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return session, rawToken
}

func assertCredentialInvalid(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected invalid-credential error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected mapped error, got %T: %v", err, err)
	}
	if richErr.TextCode != AuthorityErrorCredentialInvalid {
		t.Fatalf("expected %s, got %s (%v)", AuthorityErrorCredentialInvalid, richErr.TextCode, err)
	}
	if richErr.Message != "invalid or expired credential" {
		t.Fatalf("rejection message must not leak the cause, got %q", richErr.Message)
	}
}

func TestIssueSession_StoresDigestNotToken(t *testing.T) {
	service, stores := newTestService(t)
	session, rawToken := issueTestSession(t, service, "user_1", "org_1", SessionKindCLI)

	if session.TokenDigest == rawToken || session.TokenDigest == "" {
		t.Fatalf("expected hashed digest, got %q", session.TokenDigest)
	}
	if session.TokenPrefix != TokenPrefix(rawToken) {
		t.Fatalf("expected stored prefix %q, got %q", TokenPrefix(rawToken), session.TokenPrefix)
	}
	if session.ExpiresAt.IsZero() {
		t.Fatalf("expected a default expiry to be applied")
	}

	stored, err := stores.sessions.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if strings.Contains(stored.TokenDigest, strings.TrimPrefix(rawToken, SessionTokenTag)) {
		t.Fatalf("digest must not embed the raw token")
	}
}

func TestIssueSession_RejectsForeignTokenShape(t *testing.T) {
	service, _ := newTestService(t)
	apiKey, err := GenerateAPIKeyToken()
	if err != nil {
		t.Fatalf("generate api key: %v", err)
	}
	if _, err := service.IssueSession(context.Background(), IssueSessionInput{
		UserID:   "user_1",
		OrgID:    "org_1",
		Kind:     SessionKindCLI,
		RawToken: apiKey,
	}); err == nil {
		t.Fatalf("expected api key material to be rejected")
	}
}

func TestVerifySessionToken_RoundTrip(t *testing.T) {
	service, stores := newTestService(t)
	session, rawToken := issueTestSession(t, service, "user_1", "org_1", SessionKindCLI)

	verified, err := service.VerifySessionToken(context.Background(), rawToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.ID != session.ID || verified.UserID != "user_1" || verified.OrgID != "org_1" {
		t.Fatalf("unexpected session: %+v", verified)
	}

	touches := stores.tasks.byKind(TaskKindSessionTouch)
	if len(touches) != 1 {
		t.Fatalf("expected one session touch task, got %d", len(touches))
	}
	if touches[0].Payload["session_id"] != session.ID {
		t.Fatalf("touch task targets wrong session: %+v", touches[0].Payload)
	}
}

func TestVerifySessionToken_UniformRejection(t *testing.T) {
	service, stores := newTestService(t)
	_, rawToken := issueTestSession(t, service, "user_1", "org_1", SessionKindCLI)

	unknown, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, badFormatErr := service.VerifySessionToken(context.Background(), "plain-bearer-value")
	assertCredentialInvalid(t, badFormatErr)

	_, noMatchErr := service.VerifySessionToken(context.Background(), unknown)
	assertCredentialInvalid(t, noMatchErr)

	// Expire the live session in place, then present its formerly valid token.
	stores.sessions.mu.Lock()
	for id, stored := range stores.sessions.byID {
		stored.ExpiresAt = time.Now().UTC().Add(-time.Minute)
		stores.sessions.byID[id] = stored
	}
	stores.sessions.mu.Unlock()

	_, expiredErr := service.VerifySessionToken(context.Background(), rawToken)
	assertCredentialInvalid(t, expiredErr)

	if badFormatErr.Error() != noMatchErr.Error() || noMatchErr.Error() != expiredErr.Error() {
		t.Fatalf("rejections must be indistinguishable: %q vs %q vs %q",
			badFormatErr.Error(), noMatchErr.Error(), expiredErr.Error())
	}
	if got := stores.metrics.counter("authority.credential_rejected.total"); got != 3 {
		t.Fatalf("expected 3 rejection counter increments, got %d", got)
	}
}

func TestVerifySessionToken_LegacyPlaintextFallback(t *testing.T) {
	service, stores := newTestService(t)
	rawToken, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	stores.sessions.put(Session{
		ID:          "sess_legacy",
		UserID:      "user_1",
		OrgID:       "org_1",
		Kind:        SessionKindCLI,
		LegacyToken: rawToken,
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
	})

	verified, err := service.VerifySessionToken(context.Background(), rawToken)
	if err != nil {
		t.Fatalf("legacy verify: %v", err)
	}
	if verified.ID != "sess_legacy" {
		t.Fatalf("expected legacy session, got %+v", verified)
	}
	if got := stores.metrics.counter("authority.legacy_session_use.total"); got != 1 {
		t.Fatalf("expected legacy use counter, got %d", got)
	}
}

func TestRotateSession_InvalidatesOldTokenAndClearsLegacy(t *testing.T) {
	service, stores := newTestService(t)
	legacyToken, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("generate legacy token: %v", err)
	}
	stores.sessions.put(Session{
		ID:          "sess_legacy",
		UserID:      "user_1",
		OrgID:       "org_1",
		Kind:        SessionKindCLI,
		LegacyToken: legacyToken,
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
	})

	rotated, newToken, err := service.RotateSession(context.Background(), "sess_legacy")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.LegacyToken != "" {
		t.Fatalf("rotation must clear the legacy token")
	}
	if !strings.HasPrefix(newToken, SessionTokenTag) {
		t.Fatalf("unexpected replacement token %q", newToken)
	}

	if _, err := service.VerifySessionToken(context.Background(), legacyToken); err == nil {
		t.Fatalf("legacy token must stop verifying after rotation")
	}
	verified, err := service.VerifySessionToken(context.Background(), newToken)
	if err != nil {
		t.Fatalf("verify rotated token: %v", err)
	}
	if verified.ID != "sess_legacy" {
		t.Fatalf("expected rotated session, got %+v", verified)
	}
}

func TestRotateSession_RejectsMissingAndExpired(t *testing.T) {
	service, stores := newTestService(t)

	_, _, missingErr := service.RotateSession(context.Background(), "sess_missing")
	assertCredentialInvalid(t, missingErr)

	stores.sessions.put(Session{
		ID:        "sess_old",
		UserID:    "user_1",
		OrgID:     "org_1",
		Kind:      SessionKindCLI,
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	})
	_, _, expiredErr := service.RotateSession(context.Background(), "sess_old")
	assertCredentialInvalid(t, expiredErr)
}

func TestRevokeSession_Idempotent(t *testing.T) {
	service, _ := newTestService(t)
	session, rawToken := issueTestSession(t, service, "user_1", "org_1", SessionKindCLI)

	if err := service.RevokeSession(context.Background(), session.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := service.RevokeSession(context.Background(), session.ID); err != nil {
		t.Fatalf("second revoke should succeed: %v", err)
	}
	if _, err := service.VerifySessionToken(context.Background(), rawToken); err == nil {
		t.Fatalf("revoked session must not verify")
	}
}

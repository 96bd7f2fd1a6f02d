package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// IssueAPIKey mints a key for an organization. The raw secret appears only in
// the returned result; the store keeps prefix and digest.
func (s *Service) IssueAPIKey(ctx context.Context, in IssueAPIKeyInput) (result IssueAPIKeyResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"org_id": in.OrgID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "issue_api_key", err, fields)
	}()

	if s == nil || s.apiKeyStore == nil {
		err = s.mapError(fmt.Errorf("core: api key store is not configured"))
		return IssueAPIKeyResult{}, err
	}
	if strings.TrimSpace(in.OrgID) == "" {
		err = s.mapError(fmt.Errorf("core: org id is required"))
		return IssueAPIKeyResult{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		err = s.mapError(fmt.Errorf("core: api key name is required"))
		return IssueAPIKeyResult{}, err
	}
	scopes := normalizeScopes(in.Scopes)
	if len(scopes) == 0 {
		err = s.mapError(fmt.Errorf("core: at least one scope is required"))
		return IssueAPIKeyResult{}, err
	}

	rawKey, err := GenerateAPIKeyToken()
	if err != nil {
		err = s.mapError(err)
		return IssueAPIKeyResult{}, err
	}
	digest, err := s.hasher.Hash(rawKey)
	if err != nil {
		err = s.mapError(err)
		return IssueAPIKeyResult{}, err
	}

	key, err := s.apiKeyStore.Create(ctx, CreateAPIKeyInput{
		OrgID:        in.OrgID,
		CreatedBy:    strings.TrimSpace(in.CreatedBy),
		Name:         name,
		KeyPrefix:    TokenPrefix(rawKey),
		SecretDigest: digest,
		Scopes:       scopes,
	})
	if err != nil {
		err = s.mapError(err)
		return IssueAPIKeyResult{}, err
	}

	result = IssueAPIKeyResult{Key: key, RawKey: rawKey}
	return result, nil
}

// VerifyAPIKey resolves a raw key to its record using the same prefix-then-
// digest flow as sessions. Revoked keys reject identically to unknown ones.
func (s *Service) VerifyAPIKey(ctx context.Context, rawKey string) (APIKey, error) {
	if s == nil || s.apiKeyStore == nil {
		return APIKey{}, s.mapError(fmt.Errorf("core: api key store is not configured"))
	}
	rawKey = strings.TrimSpace(rawKey)
	if ClassifyToken(rawKey) != TokenKindAPIKey {
		return APIKey{}, s.credentialInvalid(ctx, "api_key", "bad_format")
	}

	candidates, err := s.apiKeyStore.FindByPrefix(ctx, TokenPrefix(rawKey))
	if err != nil {
		return APIKey{}, s.mapError(err)
	}
	for _, candidate := range candidates {
		if candidate.Status != APIKeyStatusActive {
			continue
		}
		match, verifyErr := s.hasher.Verify(rawKey, candidate.SecretDigest)
		if verifyErr != nil {
			return APIKey{}, s.mapError(verifyErr)
		}
		if match {
			s.touchAPIKey(ctx, candidate.ID)
			return candidate, nil
		}
	}
	return APIKey{}, s.credentialInvalid(ctx, "api_key", "no_match")
}

func (s *Service) ListAPIKeys(ctx context.Context, orgID string) (keys []APIKey, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"org_id": orgID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "list_api_keys", err, fields)
	}()

	if s == nil || s.apiKeyStore == nil {
		err = s.mapError(fmt.Errorf("core: api key store is not configured"))
		return nil, err
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		err = s.mapError(fmt.Errorf("core: org id is required"))
		return nil, err
	}
	keys, err = s.apiKeyStore.ListByOrg(ctx, orgID)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	for i := range keys {
		keys[i].SecretDigest = ""
	}
	return keys, nil
}

// RevokeAPIKey deactivates a key within its organization. Re-revoking is a
// success; a key owned by another organization reports the same not-found as
// a key that never existed.
func (s *Service) RevokeAPIKey(ctx context.Context, orgID string, keyID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"org_id": orgID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "revoke_api_key", err, fields)
	}()

	if s == nil || s.apiKeyStore == nil {
		err = s.mapError(fmt.Errorf("core: api key store is not configured"))
		return err
	}
	orgID = strings.TrimSpace(orgID)
	keyID = strings.TrimSpace(keyID)
	if orgID == "" || keyID == "" {
		err = s.mapError(fmt.Errorf("core: org id and key id are required"))
		return err
	}

	key, err := s.apiKeyStore.Get(ctx, keyID)
	if err != nil {
		if isNotFound(err) {
			err = s.mapError(fmt.Errorf("core: api key not found"))
			return err
		}
		err = s.mapError(err)
		return err
	}
	if key.OrgID != orgID {
		// Cross-org targets are indistinguishable from absent ones.
		err = s.mapError(fmt.Errorf("core: api key not found"))
		return err
	}
	if key.Status == APIKeyStatusRevoked {
		return nil
	}
	if err = s.apiKeyStore.UpdateStatus(ctx, keyID, APIKeyStatusRevoked); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

func (s *Service) touchAPIKey(ctx context.Context, keyID string) {
	if s == nil || s.apiKeyStore == nil {
		return
	}
	if err := s.apiKeyStore.TouchLastUsed(ctx, keyID, time.Now().UTC()); err != nil {
		s.logError(ctx, "api key touch failed", map[string]any{
			"error": err.Error(),
		})
	}
}

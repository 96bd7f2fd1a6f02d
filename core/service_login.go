package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/voundbrand/go-authority/identity"
)

// BeginLogin opens an OAuth round trip. For CLI flows the session token is
// generated here and embedded in the state record; it is returned raw so the
// CLI can hold it while the user finishes in the browser, but it verifies
// only after the callback completes.
func (s *Service) BeginLogin(ctx context.Context, in BeginLoginInput) (result BeginLoginResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_id": in.ProviderID,
		"flow":        string(in.Flow),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "begin_login", err, fields)
	}()

	if s == nil || s.loginStateStore == nil {
		err = s.mapError(fmt.Errorf("core: login state store is not configured"))
		return BeginLoginResult{}, err
	}
	if err = in.Flow.Validate(); err != nil {
		err = s.mapError(err)
		return BeginLoginResult{}, err
	}
	callbackURL := strings.TrimSpace(in.CallbackURL)
	if callbackURL == "" {
		err = s.mapError(fmt.Errorf("core: callback url is required"))
		return BeginLoginResult{}, err
	}

	exchanger, err := s.resolveExchanger(in.ProviderID)
	if err != nil {
		return BeginLoginResult{}, err
	}

	state, err := GenerateLoginState()
	if err != nil {
		err = s.mapError(err)
		return BeginLoginResult{}, err
	}

	embeddedToken := ""
	if in.Flow == LoginFlowCLI {
		embeddedToken, err = GenerateSessionToken()
		if err != nil {
			err = s.mapError(err)
			return BeginLoginResult{}, err
		}
	}

	authURL, err := exchanger.AuthorizeURL(state, callbackURL)
	if err != nil {
		err = s.mapError(err)
		return BeginLoginResult{}, err
	}

	now := time.Now().UTC()
	if err = s.loginStateStore.Save(ctx, LoginState{
		State:         state,
		Flow:          in.Flow,
		ProviderID:    exchanger.ID(),
		CallbackURL:   callbackURL,
		EmbeddedToken: embeddedToken,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.config.LoginStateTTL()),
	}); err != nil {
		err = s.mapError(err)
		return BeginLoginResult{}, err
	}

	result = BeginLoginResult{
		State:    state,
		AuthURL:  authURL,
		CLIToken: embeddedToken,
	}
	return result, nil
}

// CompleteLogin redeems a callback. The state is consumed before anything
// else, so replays fail even when the rest of the flow errors out.
func (s *Service) CompleteLogin(ctx context.Context, in CompleteLoginInput) (result CompleteLoginResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "complete_login", err, fields)
	}()

	if s == nil || s.loginStateStore == nil {
		err = s.mapError(fmt.Errorf("core: login state store is not configured"))
		return CompleteLoginResult{}, err
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		err = s.mapError(fmt.Errorf("core: authorization code is required"))
		return CompleteLoginResult{}, err
	}

	record, err := s.loginStateStore.Consume(ctx, in.State)
	if err != nil {
		err = s.mapError(err)
		return CompleteLoginResult{}, err
	}
	fields["provider_id"] = record.ProviderID
	fields["flow"] = string(record.Flow)

	exchanger, err := s.resolveExchanger(record.ProviderID)
	if err != nil {
		return CompleteLoginResult{}, err
	}
	profile, err := exchanger.ExchangeCode(ctx, code, record.CallbackURL)
	if err != nil {
		err = s.mapError(err)
		return CompleteLoginResult{}, err
	}
	profile = profile.WithName()
	if err = profile.Validate(); err != nil {
		err = s.mapError(err)
		return CompleteLoginResult{}, err
	}

	user, isNewUser, err := s.upsertLoginUser(ctx, profile)
	if err != nil {
		err = s.mapError(err)
		return CompleteLoginResult{}, err
	}

	org, membership, err := s.resolveHomeOrganization(ctx, user, profile)
	if err != nil {
		err = s.mapError(err)
		return CompleteLoginResult{}, err
	}
	fields["org_id"] = org.ID

	s.saveProviderLink(ctx, user, org, profile)

	session, sessionToken, err := s.issueLoginSession(ctx, record, user, org)
	if err != nil {
		err = s.mapError(err)
		return CompleteLoginResult{}, err
	}

	s.enqueueLoginSideEffects(ctx, record.Flow, isNewUser, user, org)

	result = CompleteLoginResult{
		User:         user,
		Organization: org,
		Membership:   membership,
		Session:      session,
		SessionToken: sessionToken,
		Flow:         record.Flow,
	}
	return result, nil
}

func (s *Service) resolveExchanger(providerID string) (Exchanger, error) {
	if s == nil || s.registry == nil {
		return nil, s.mapError(fmt.Errorf("core: exchanger registry unavailable"))
	}
	providerID = strings.TrimSpace(providerID)
	exchanger, ok := s.registry.Get(providerID)
	if ok {
		return exchanger, nil
	}
	wrapped := s.errorFactory(
		fmt.Sprintf("oauth provider %q is not registered", providerID),
		goerrors.CategoryNotFound,
	).WithTextCode(AuthorityErrorNotFound)
	return nil, wrapped.WithMetadata(map[string]any{"provider_id": providerID})
}

func (s *Service) upsertLoginUser(ctx context.Context, profile identity.Profile) (User, bool, error) {
	if s.userStore == nil {
		return User{}, false, fmt.Errorf("core: user store is not configured")
	}
	isNew := false
	if _, err := s.userStore.GetByEmail(ctx, profile.Email); err != nil {
		if !isNotFound(err) {
			return User{}, false, err
		}
		isNew = true
	}
	user, err := s.userStore.Upsert(ctx, UpsertUserInput{
		Email:     profile.Email,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
	})
	if err != nil {
		return User{}, false, err
	}
	return user, isNew, nil
}

// resolveHomeOrganization picks the user's default organization, creating a
// personal one with an owner membership when none exists yet. A crash between
// the session write and the membership write can strand a user without a
// default org; the next login repairs it here.
func (s *Service) resolveHomeOrganization(ctx context.Context, user User, profile identity.Profile) (Organization, Membership, error) {
	if s.membershipStore == nil || s.organizationStore == nil {
		return Organization{}, Membership{}, fmt.Errorf("core: organization stores are not configured")
	}

	memberships, err := s.membershipStore.ListByUser(ctx, user.ID)
	if err != nil && !isNotFound(err) {
		return Organization{}, Membership{}, err
	}
	for _, membership := range memberships {
		if !membership.IsDefault {
			continue
		}
		org, getErr := s.organizationStore.Get(ctx, membership.OrgID)
		if getErr != nil {
			return Organization{}, Membership{}, getErr
		}
		return org, membership, nil
	}

	name := strings.TrimSpace(profile.DisplayName)
	if name == "" {
		name = strings.TrimSpace(profile.FirstName + " " + profile.LastName)
	}
	if name == "" {
		name = emailLocalPart(user.Email)
	}
	provisioned, err := s.ProvisionOrganization(ctx, ProvisionOrganizationInput{
		Name:    name,
		OwnerID: user.ID,
	})
	if err != nil {
		return Organization{}, Membership{}, err
	}
	if err := s.membershipStore.SetDefault(ctx, provisioned.Organization.ID, user.ID); err != nil {
		return Organization{}, Membership{}, err
	}
	membership := provisioned.Owner
	membership.IsDefault = true
	return provisioned.Organization, membership, nil
}

// saveProviderLink vaults the upstream tokens. Link failures are logged and
// dropped: losing CRM sync material must not fail a login.
func (s *Service) saveProviderLink(ctx context.Context, user User, org Organization, profile identity.Profile) {
	if s == nil || s.providerLinkStore == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"access_token":  profile.AccessToken,
		"refresh_token": profile.RefreshToken,
	})
	if err != nil {
		s.logError(ctx, "provider link payload encode failed", map[string]any{"error": err.Error()})
		return
	}
	if s.secretProvider != nil {
		sealed, encErr := s.secretProvider.Encrypt(ctx, payload)
		if encErr != nil {
			s.logError(ctx, "provider link encrypt failed", map[string]any{"error": encErr.Error()})
			return
		}
		payload = sealed
	}
	if _, err := s.providerLinkStore.Upsert(ctx, UpsertProviderLinkInput{
		UserID:              user.ID,
		OrgID:               org.ID,
		ProviderID:          profile.ProviderID,
		ProviderAccountID:   profile.ProviderAccountID,
		Email:               profile.Email,
		EncryptedCredential: payload,
		Scopes:              append([]string(nil), profile.Scopes...),
		ExpiresAt:           profile.TokenExpiresAt,
	}); err != nil {
		s.logError(ctx, "provider link upsert failed", map[string]any{
			"provider_id": profile.ProviderID,
			"error":       err.Error(),
		})
	}
}

func (s *Service) issueLoginSession(ctx context.Context, record LoginState, user User, org Organization) (Session, string, error) {
	if record.Flow == LoginFlowCLI {
		rawToken := strings.TrimSpace(record.EmbeddedToken)
		if ClassifyToken(rawToken) != TokenKindSession {
			return Session{}, "", fmt.Errorf("core: login state is missing its session token")
		}
		session, err := s.IssueSession(ctx, IssueSessionInput{
			UserID:   user.ID,
			OrgID:    org.ID,
			Kind:     SessionKindCLI,
			RawToken: rawToken,
		})
		if err != nil {
			return Session{}, "", err
		}
		return session, rawToken, nil
	}

	// Platform sessions authenticate by opaque session ID; no digest needed.
	session, err := s.sessionStore.Create(ctx, CreateSessionInput{
		UserID:    user.ID,
		OrgID:     org.ID,
		Kind:      SessionKindPlatform,
		ExpiresAt: time.Now().UTC().Add(s.config.PlatformSessionTTL()),
	})
	if err != nil {
		return Session{}, "", err
	}
	return session, session.ID, nil
}

func (s *Service) enqueueLoginSideEffects(ctx context.Context, flow LoginFlow, isNewUser bool, user User, org Organization) {
	s.enqueueTask(ctx, EnqueueTaskInput{
		Kind:           TaskKindAnalyticsEvent,
		IdempotencyKey: fmt.Sprintf("login:%s:%d", user.ID, time.Now().UTC().UnixNano()),
		Payload: map[string]any{
			"event":   "login_completed",
			"user_id": user.ID,
			"org_id":  org.ID,
			"flow":    string(flow),
		},
	})
	if !isNewUser {
		return
	}
	s.enqueueTask(ctx, EnqueueTaskInput{
		Kind:           TaskKindWelcomeEmail,
		IdempotencyKey: "welcome:" + user.ID,
		Payload: map[string]any{
			"user_id": user.ID,
			"email":   user.Email,
			"name":    strings.TrimSpace(user.FirstName + " " + user.LastName),
		},
	})
	s.enqueueTask(ctx, EnqueueTaskInput{
		Kind:           TaskKindCRMProvision,
		IdempotencyKey: "crm_provision:" + user.ID,
		Payload: map[string]any{
			"user_id": user.ID,
			"org_id":  org.ID,
		},
	})
}

func emailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	if idx := strings.Index(email, "@"); idx > 0 {
		return email[:idx]
	}
	return email
}

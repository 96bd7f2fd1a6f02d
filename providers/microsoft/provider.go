// Package microsoft exchanges Microsoft identity platform OAuth codes for
// normalized profiles via the Graph /me endpoint.
//
// Graph only fills `mail` for mailbox-backed accounts; `userPrincipalName`
// is always present and serves as the email fallback.
package microsoft

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/voundbrand/go-authority/identity"
	"github.com/voundbrand/go-authority/providers"
)

const (
	ProviderID    = "microsoft"
	DefaultTenant = "common"
	UserInfoURL   = "https://graph.microsoft.com/v1.0/me"
)

type Config struct {
	ClientID       string
	ClientSecret   string
	Tenant         string
	AuthURL        string
	TokenURL       string
	UserInfoURL    string
	Scopes         []string
	RequestTimeout time.Duration
	HTTPClient     providers.HTTPDoer
}

func DefaultConfig() Config {
	return Config{
		Tenant:      DefaultTenant,
		UserInfoURL: UserInfoURL,
		Scopes:      []string{"openid", "email", "profile", "offline_access", "User.Read"},
	}
}

func AuthURLFor(tenant string) string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/authorize", tenantOrDefault(tenant))
}

func TokenURLFor(tenant string) string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantOrDefault(tenant))
}

func New(cfg Config) (*providers.OAuth2Exchanger, error) {
	defaults := DefaultConfig()
	if cfg.Tenant == "" {
		cfg.Tenant = defaults.Tenant
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = AuthURLFor(cfg.Tenant)
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = TokenURLFor(cfg.Tenant)
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaults.UserInfoURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	// Custom scope lists keep the identity triple so Graph /me stays callable.
	cfg.Scopes = providers.WithIdentityScopes(cfg.Scopes, true)
	return providers.NewOAuth2Exchanger(providers.OAuth2Config{
		ID:                 ProviderID,
		AuthURL:            cfg.AuthURL,
		TokenURL:           cfg.TokenURL,
		UserInfoURL:        cfg.UserInfoURL,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		Scopes:             cfg.Scopes,
		ClientSecretInBody: true,
		RequestTimeout:     cfg.RequestTimeout,
		HTTPClient:         cfg.HTTPClient,
		MapProfile:         mapProfile,
	})
}

func mapProfile(_ context.Context, _ *providers.API, userinfo map[string]any) (identity.Profile, error) {
	accountID := identity.ReadString(userinfo["id"])
	if accountID == "" {
		return identity.Profile{}, fmt.Errorf("providers: microsoft userinfo response missing account id")
	}
	email := identity.ReadString(userinfo["mail"])
	if email == "" {
		email = identity.ReadString(userinfo["userPrincipalName"])
	}
	return identity.Profile{
		ProviderAccountID: accountID,
		Email:             email,
		FirstName:         identity.ReadString(userinfo["givenName"]),
		LastName:          identity.ReadString(userinfo["surname"]),
		DisplayName:       identity.ReadString(userinfo["displayName"]),
		Raw:               identity.CopyMap(userinfo),
	}, nil
}

func tenantOrDefault(tenant string) string {
	tenant = strings.TrimSpace(tenant)
	if tenant == "" {
		return DefaultTenant
	}
	return tenant
}

// Package github exchanges GitHub OAuth codes for normalized profiles.
//
// GitHub hides the account email when the user marks it private, so the
// profile email resolves through a fallback chain: the /user payload, then
// the primary entry from /user/emails, then the synthesized
// login@users.noreply.github.com address GitHub guarantees to route.
package github

import (
	"context"
	"fmt"
	"time"

	"github.com/voundbrand/go-authority/identity"
	"github.com/voundbrand/go-authority/providers"
)

const (
	ProviderID  = "github"
	AuthURL     = "https://github.com/login/oauth/authorize"
	TokenURL    = "https://github.com/login/oauth/access_token"
	UserInfoURL = "https://api.github.com/user"
	EmailsURL   = "https://api.github.com/user/emails"
)

type Config struct {
	ClientID       string
	ClientSecret   string
	AuthURL        string
	TokenURL       string
	UserInfoURL    string
	EmailsURL      string
	Scopes         []string
	RequestTimeout time.Duration
	HTTPClient     providers.HTTPDoer
}

func DefaultConfig() Config {
	return Config{
		AuthURL:     AuthURL,
		TokenURL:    TokenURL,
		UserInfoURL: UserInfoURL,
		EmailsURL:   EmailsURL,
		Scopes:      []string{"read:user", "user:email"},
	}
}

func New(cfg Config) (*providers.OAuth2Exchanger, error) {
	defaults := DefaultConfig()
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaults.UserInfoURL
	}
	if cfg.EmailsURL == "" {
		cfg.EmailsURL = defaults.EmailsURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	emailsURL := cfg.EmailsURL
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
		MapProfile: func(ctx context.Context, api *providers.API, userinfo map[string]any) (identity.Profile, error) {
			return mapProfile(ctx, api, userinfo, emailsURL)
		},
	})
}

func mapProfile(ctx context.Context, api *providers.API, userinfo map[string]any, emailsURL string) (identity.Profile, error) {
	accountID := identity.ReadString(userinfo["id"])
	if accountID == "" {
		return identity.Profile{}, fmt.Errorf("providers: github userinfo response missing account id")
	}
	login := identity.ReadString(userinfo["login"])

	email := identity.ReadString(userinfo["email"])
	if email == "" {
		email = resolveEmail(ctx, api, emailsURL)
	}
	if email == "" && login != "" {
		email = login + "@users.noreply.github.com"
	}

	return identity.Profile{
		ProviderAccountID: accountID,
		Email:             email,
		DisplayName:       identity.ReadString(userinfo["name"]),
		Raw:               identity.CopyMap(userinfo),
	}, nil
}

// resolveEmail asks /user/emails for the primary address. The endpoint is
// best effort: a failure, typically a missing user:email grant, falls through
// to the noreply synthesis instead of failing the login.
func resolveEmail(ctx context.Context, api *providers.API, emailsURL string) string {
	if api == nil || emailsURL == "" {
		return ""
	}
	entries, err := api.GetJSONList(ctx, emailsURL)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if identity.ReadBool(entry["primary"]) {
			return identity.ReadString(entry["email"])
		}
	}
	return ""
}

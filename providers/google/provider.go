// Package google exchanges Google OAuth codes for normalized profiles using
// the OpenID Connect userinfo endpoint.
package google

import (
	"time"

	"github.com/voundbrand/go-authority/providers"
)

const (
	ProviderID  = "google"
	AuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	TokenURL    = "https://oauth2.googleapis.com/token"
	UserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

type Config struct {
	ClientID       string
	ClientSecret   string
	AuthURL        string
	TokenURL       string
	UserInfoURL    string
	Scopes         []string
	RequestTimeout time.Duration
	HTTPClient     providers.HTTPDoer
}

func DefaultConfig() Config {
	return Config{
		AuthURL:     AuthURL,
		TokenURL:    TokenURL,
		UserInfoURL: UserInfoURL,
		Scopes:      []string{"openid", "email", "profile"},
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
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaults.Scopes
	}
	// Custom scope lists keep the identity triple so userinfo stays callable.
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
		// Google only issues a refresh token for offline access requests.
		// The CRM sync pipeline needs one to act between logins.
		ExtraAuthParams: map[string]string{"access_type": "offline"},
		RequestTimeout:  cfg.RequestTimeout,
		HTTPClient:      cfg.HTTPClient,
		MapProfile:      providers.MapOIDCProfile,
	})
}

package security

import (
	"fmt"
	"os"
	"strings"
)

const defaultEnvPrefix = "AUTHORITY"

// ClientCredentials is one OAuth application registered with an upstream
// provider.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

// SecretSource supplies the deploy-time secrets: the vault application key
// and per-provider OAuth client credentials.
type SecretSource interface {
	AppKey() ([]byte, error)
	ClientCredentials(providerID string) (ClientCredentials, error)
}

// EnvSecretSource reads secrets from the environment under a common prefix:
// AUTHORITY_APP_KEY, AUTHORITY_GITHUB_CLIENT_ID and so on. Lookups fail on
// missing variables so misconfiguration surfaces at wiring time, not on the
// first login.
type EnvSecretSource struct {
	prefix string
	lookup func(key string) (string, bool)
}

type EnvOption func(*EnvSecretSource)

// WithLookup replaces os.LookupEnv, mainly for tests.
func WithLookup(lookup func(key string) (string, bool)) EnvOption {
	return func(source *EnvSecretSource) {
		if lookup != nil {
			source.lookup = lookup
		}
	}
}

func NewEnvSecretSource(prefix string, opts ...EnvOption) *EnvSecretSource {
	trimmed := strings.TrimSpace(strings.ToUpper(prefix))
	if trimmed == "" {
		trimmed = defaultEnvPrefix
	}
	source := &EnvSecretSource{
		prefix: trimmed,
		lookup: os.LookupEnv,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(source)
	}
	return source
}

func (s *EnvSecretSource) AppKey() ([]byte, error) {
	value, err := s.require("APP_KEY")
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

// PreviousAppKey reports the retiring vault key during an app-key rotation,
// read from <PREFIX>_APP_KEY_PREVIOUS. Absent means no rotation is in flight.
func (s *EnvSecretSource) PreviousAppKey() ([]byte, bool) {
	if s == nil {
		return nil, false
	}
	value, ok := s.lookup(s.prefix + "_APP_KEY_PREVIOUS")
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return nil, false
	}
	return []byte(value), true
}

func (s *EnvSecretSource) ClientCredentials(providerID string) (ClientCredentials, error) {
	provider := strings.ToUpper(strings.TrimSpace(providerID))
	if provider == "" {
		return ClientCredentials{}, fmt.Errorf("security: provider id is required")
	}
	clientID, err := s.require(provider + "_CLIENT_ID")
	if err != nil {
		return ClientCredentials{}, err
	}
	clientSecret, err := s.require(provider + "_CLIENT_SECRET")
	if err != nil {
		return ClientCredentials{}, err
	}
	return ClientCredentials{ClientID: clientID, ClientSecret: clientSecret}, nil
}

func (s *EnvSecretSource) require(suffix string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("security: secret source is nil")
	}
	name := s.prefix + "_" + suffix
	value, ok := s.lookup(name)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", fmt.Errorf("security: %s is not configured", name)
	}
	return value, nil
}

var _ SecretSource = (*EnvSecretSource)(nil)

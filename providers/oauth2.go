package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/voundbrand/go-authority/core"
	"github.com/voundbrand/go-authority/identity"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxResponseBodyBytes  = 1 << 20 // 1 MiB
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProfileMapper turns a provider's raw userinfo payload into a normalized
// profile. The API handle lets mappers issue follow-up calls with the same
// bearer token, such as the GitHub email lookup.
type ProfileMapper func(ctx context.Context, api *API, userinfo map[string]any) (identity.Profile, error)

// OAuth2Config describes one upstream OAuth application. ClientID and
// ClientSecret usually come from the environment; an exchange with either
// missing fails as a configuration problem before any network traffic.
type OAuth2Config struct {
	ID                 string
	AuthURL            string
	TokenURL           string
	UserInfoURL        string
	ClientID           string
	ClientSecret       string
	Scopes             []string
	ClientSecretInBody bool
	ExtraAuthParams    map[string]string
	RequestTimeout     time.Duration
	Now                func() time.Time
	HTTPClient         HTTPDoer
	MapProfile         ProfileMapper
}

// OAuth2Exchanger is the shared code→token→profile plumbing behind every
// registered provider. Provider packages supply endpoints and a ProfileMapper.
type OAuth2Exchanger struct {
	cfg        OAuth2Config
	httpClient HTTPDoer
}

// TokenPayload is the parsed token endpoint response, accepted as JSON or as
// form-encoded pairs since some providers still answer with the latter.
type TokenPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

func NewOAuth2Exchanger(cfg OAuth2Config) (*OAuth2Exchanger, error) {
	cfg.ID = strings.TrimSpace(strings.ToLower(cfg.ID))
	if cfg.ID == "" {
		return nil, fmt.Errorf("providers: provider id is required")
	}
	if strings.TrimSpace(cfg.AuthURL) == "" {
		return nil, fmt.Errorf("providers: auth url is required for provider %q", cfg.ID)
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, fmt.Errorf("providers: token url is required for provider %q", cfg.ID)
	}
	if strings.TrimSpace(cfg.UserInfoURL) == "" {
		return nil, fmt.Errorf("providers: userinfo url is required for provider %q", cfg.ID)
	}

	cfg.AuthURL = strings.TrimSpace(cfg.AuthURL)
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.UserInfoURL = strings.TrimSpace(cfg.UserInfoURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.Scopes = normalizeScopes(cfg.Scopes)
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC()
		}
	}
	if cfg.MapProfile == nil {
		cfg.MapProfile = MapOIDCProfile
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	return &OAuth2Exchanger{
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

func (e *OAuth2Exchanger) ID() string {
	if e == nil {
		return ""
	}
	return e.cfg.ID
}

// AuthorizeURL builds the provider redirect for a login begin. Only the
// client id is needed at this stage; a missing one is still a configuration
// failure, not a bad request.
func (e *OAuth2Exchanger) AuthorizeURL(state string, redirectURI string) (string, error) {
	if e == nil {
		return "", fmt.Errorf("providers: oauth2 exchanger is nil")
	}
	if strings.TrimSpace(state) == "" {
		return "", fmt.Errorf("providers: state is required")
	}
	if e.cfg.ClientID == "" {
		return "", core.NewConfigurationError(fmt.Sprintf("%s client id is not configured", e.cfg.ID))
	}

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", e.cfg.ClientID)
	if redirect := strings.TrimSpace(redirectURI); redirect != "" {
		values.Set("redirect_uri", redirect)
	}
	if len(e.cfg.Scopes) > 0 {
		values.Set("scope", strings.Join(e.cfg.Scopes, " "))
	}
	values.Set("state", strings.TrimSpace(state))
	for _, key := range sortedParamKeys(e.cfg.ExtraAuthParams) {
		values.Set(key, e.cfg.ExtraAuthParams[key])
	}

	authURL := e.cfg.AuthURL
	if strings.Contains(authURL, "?") {
		authURL += "&" + values.Encode()
	} else {
		authURL += "?" + values.Encode()
	}
	return authURL, nil
}

// ExchangeCode redeems an authorization code: one call to the token endpoint,
// one to the userinfo endpoint, then the provider's profile mapping. Token
// material rides back on the profile for the credential vault.
func (e *OAuth2Exchanger) ExchangeCode(ctx context.Context, code string, redirectURI string) (identity.Profile, error) {
	if e == nil {
		return identity.Profile{}, fmt.Errorf("providers: oauth2 exchanger is nil")
	}
	if err := e.ensureCredentials(); err != nil {
		return identity.Profile{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return identity.Profile{}, fmt.Errorf("providers: authorization code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	if redirect := strings.TrimSpace(redirectURI); redirect != "" {
		form.Set("redirect_uri", redirect)
	}

	token, err := e.fetchToken(ctx, form)
	if err != nil {
		return identity.Profile{}, err
	}

	api := &API{
		httpClient:  e.httpClient,
		accessToken: token.AccessToken,
		timeout:     e.cfg.RequestTimeout,
	}
	userinfo, err := api.GetJSON(ctx, e.cfg.UserInfoURL)
	if err != nil {
		return identity.Profile{}, err
	}

	profile, err := e.cfg.MapProfile(ctx, api, userinfo)
	if err != nil {
		return identity.Profile{}, err
	}

	profile.ProviderID = e.cfg.ID
	profile.AccessToken = strings.TrimSpace(token.AccessToken)
	profile.RefreshToken = strings.TrimSpace(token.RefreshToken)
	profile.TokenExpiresAt = e.resolveExpiresAt(token.ExpiresIn)
	if granted := parseScopeList(token.Scope); len(granted) > 0 {
		profile.Scopes = granted
	} else if len(profile.Scopes) == 0 {
		profile.Scopes = append([]string(nil), e.cfg.Scopes...)
	}
	if len(profile.Raw) == 0 {
		profile.Raw = identity.CopyMap(userinfo)
	}
	return profile.WithName(), nil
}

func (e *OAuth2Exchanger) ensureCredentials() error {
	if e.cfg.ClientID == "" {
		return core.NewConfigurationError(fmt.Sprintf("%s client id is not configured", e.cfg.ID))
	}
	if e.cfg.ClientSecret == "" {
		return core.NewConfigurationError(fmt.Sprintf("%s client secret is not configured", e.cfg.ID))
	}
	return nil
}

func (e *OAuth2Exchanger) fetchToken(ctx context.Context, form url.Values) (TokenPayload, error) {
	if e.httpClient == nil {
		return TokenPayload{}, fmt.Errorf("providers: oauth2 http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	values := url.Values{}
	for key, items := range form {
		for _, item := range items {
			values.Add(key, strings.TrimSpace(item))
		}
	}
	values.Set("client_id", e.cfg.ClientID)
	if e.cfg.ClientSecretInBody {
		values.Set("client_secret", e.cfg.ClientSecret)
	}

	requestCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		e.cfg.TokenURL,
		strings.NewReader(values.Encode()),
	)
	if err != nil {
		return TokenPayload{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if !e.cfg.ClientSecretInBody {
		httpReq.SetBasicAuth(e.cfg.ClientID, e.cfg.ClientSecret)
	}

	response, err := e.httpClient.Do(httpReq)
	if err != nil {
		return TokenPayload{}, fmt.Errorf("providers: token endpoint request failed: %w", err)
	}
	defer response.Body.Close()

	body, readErr := readCappedBody(response.Body)
	if readErr != nil {
		return TokenPayload{}, fmt.Errorf("providers: read token endpoint response: %w", readErr)
	}

	payload, parseErr := parseTokenPayload(body, response.Header.Get("Content-Type"))
	if parseErr != nil {
		return TokenPayload{}, fmt.Errorf("providers: decode token endpoint response: %w", parseErr)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return TokenPayload{}, fmt.Errorf(
			"providers: token endpoint returned status %d: %s",
			response.StatusCode,
			describeTokenError(payload),
		)
	}
	if payload.ErrorCode != "" {
		return TokenPayload{}, fmt.Errorf("providers: token endpoint error: %s", describeTokenError(payload))
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return TokenPayload{}, fmt.Errorf("providers: token endpoint response missing access token")
	}
	return payload, nil
}

func (e *OAuth2Exchanger) resolveExpiresAt(expiresIn int64) *time.Time {
	if expiresIn <= 0 {
		return nil
	}
	expiresAt := e.cfg.Now().UTC().Add(time.Duration(expiresIn) * time.Second)
	return &expiresAt
}

// API issues authenticated calls against a provider's resource endpoints
// during an exchange, reusing the just-acquired bearer token.
type API struct {
	httpClient  HTTPDoer
	accessToken string
	timeout     time.Duration
}

func (a *API) GetJSON(ctx context.Context, rawURL string) (map[string]any, error) {
	body, err := a.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("providers: decode userinfo response: %w", err)
	}
	return decoded, nil
}

func (a *API) GetJSONList(ctx context.Context, rawURL string) ([]map[string]any, error) {
	body, err := a.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	var decoded []map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("providers: decode userinfo response: %w", err)
	}
	return decoded, nil
}

func (a *API) get(ctx context.Context, rawURL string) ([]byte, error) {
	if a == nil || a.httpClient == nil {
		return nil, fmt.Errorf("providers: oauth2 http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("providers: userinfo url is required")
	}

	timeout := a.timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	requestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.accessToken)
	httpReq.Header.Set("Accept", "application/json")

	response, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("providers: userinfo request failed: %w", err)
	}
	defer response.Body.Close()

	body, readErr := readCappedBody(response.Body)
	if readErr != nil {
		return nil, fmt.Errorf("providers: read userinfo response: %w", readErr)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("providers: userinfo endpoint returned status %d", response.StatusCode)
	}
	return body, nil
}

// MapOIDCProfile covers providers whose userinfo follows the OpenID Connect
// claim names. Google uses it unchanged.
func MapOIDCProfile(_ context.Context, _ *API, userinfo map[string]any) (identity.Profile, error) {
	accountID := identity.ReadString(userinfo["sub"])
	if accountID == "" {
		accountID = identity.ReadString(userinfo["id"])
	}
	if accountID == "" {
		return identity.Profile{}, fmt.Errorf("providers: userinfo response missing subject id")
	}
	return identity.Profile{
		ProviderAccountID: accountID,
		Email:             identity.ReadString(userinfo["email"]),
		FirstName:         identity.ReadString(userinfo["given_name"]),
		LastName:          identity.ReadString(userinfo["family_name"]),
		DisplayName:       identity.ReadString(userinfo["name"]),
		Raw:               identity.CopyMap(userinfo),
	}, nil
}

func readCappedBody(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxResponseBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxResponseBodyBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxResponseBodyBytes)
	}
	return data, nil
}

func describeTokenError(payload TokenPayload) string {
	if strings.TrimSpace(payload.ErrorDescription) != "" {
		return strings.TrimSpace(payload.ErrorDescription)
	}
	if strings.TrimSpace(payload.ErrorCode) != "" {
		return strings.TrimSpace(payload.ErrorCode)
	}
	return "unknown error"
}

func parseTokenPayload(body []byte, contentType string) (TokenPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (TokenPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return TokenPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return TokenPayload{}, err
	}
	return TokenPayload{
		AccessToken:      identity.ReadString(decoded["access_token"]),
		TokenType:        identity.ReadString(decoded["token_type"]),
		RefreshToken:     identity.ReadString(decoded["refresh_token"]),
		Scope:            identity.ReadString(decoded["scope"]),
		ExpiresIn:        readInt64(decoded["expires_in"]),
		ErrorCode:        identity.ReadString(decoded["error"]),
		ErrorDescription: identity.ReadString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (TokenPayload, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return TokenPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return TokenPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return TokenPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		Scope:            strings.TrimSpace(values.Get("scope")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}


func parseScopeList(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return strings.Fields(strings.ReplaceAll(trimmed, ",", " "))
}

func normalizeScopes(input []string) []string {
	if len(input) == 0 {
		return []string{}
	}
	values := make([]string, 0, len(input))
	seen := map[string]struct{}{}
	for _, value := range input {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		values = append(values, trimmed)
	}
	return values
}

func sortedParamKeys(params map[string]string) []string {
	if len(params) == 0 {
		return nil
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		if strings.TrimSpace(key) == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func readInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}

var _ core.Exchanger = (*OAuth2Exchanger)(nil)

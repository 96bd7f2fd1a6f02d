package providers

// OIDC identity scopes shared by every provider that maps profiles through
// a userinfo endpoint.
const (
	ScopeOpenID  = "openid"
	ScopeEmail   = "email"
	ScopeProfile = "profile"
)

// WithIdentityScopes normalizes a scope list and, when include is set,
// guarantees the OIDC identity scopes ride along. Callers that request
// extra API scopes keep the profile exchange working without listing the
// identity triple themselves.
func WithIdentityScopes(scopes []string, include bool) []string {
	normalized := normalizeScopes(scopes)
	if !include {
		return normalized
	}
	return normalizeScopes(append(normalized, ScopeOpenID, ScopeProfile, ScopeEmail))
}

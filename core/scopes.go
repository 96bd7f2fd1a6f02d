package core

import (
	"sort"
	"strings"
)

// ScopeWildcard grants everything. Platform sessions and wildcard API keys
// carry it; role-derived scope sets never do.
const ScopeWildcard = "*"

const (
	ScopeOrgRead       = "org:read"
	ScopeOrgManage     = "org:manage"
	ScopeOrgBilling    = "org:billing"
	ScopeAPIKeysManage = "apikeys:manage"

	ScopeCRMRead         = "crm:read"
	ScopeCRMWrite        = "crm:write"
	ScopeEventsRead      = "events:read"
	ScopeEventsWrite     = "events:write"
	ScopeCheckoutRead    = "checkout:read"
	ScopeCheckoutWrite   = "checkout:write"
	ScopeWebinarsRead    = "webinars:read"
	ScopeWebinarsWrite   = "webinars:write"
	ScopePublishingRead  = "publishing:read"
	ScopePublishingWrite = "publishing:write"
	ScopeInvoicingRead   = "invoicing:read"
	ScopeInvoicingWrite  = "invoicing:write"
	ScopeWorkflowsRead   = "workflows:read"
	ScopeWorkflowsWrite  = "workflows:write"
)

// ScopeDecision is the outcome of a scope check against an authenticated
// caller. Missing lists every needed scope the caller lacks so the response
// can name them exactly.
type ScopeDecision struct {
	Allowed bool
	Missing []string
}

// EvaluateScopes checks every needed scope against the held set. A held
// wildcard satisfies everything. The needed list is normalized first so a
// duplicated or padded scope name cannot produce a duplicate missing entry.
func EvaluateScopes(held []string, needed ...string) ScopeDecision {
	heldSet := toScopeSet(held)
	if _, ok := heldSet[ScopeWildcard]; ok {
		return ScopeDecision{Allowed: true, Missing: []string{}}
	}

	missing := []string{}
	for _, scope := range normalizeScopes(needed) {
		if _, ok := heldSet[scope]; !ok {
			missing = append(missing, scope)
		}
	}
	if len(missing) > 0 {
		return ScopeDecision{Allowed: false, Missing: missing}
	}
	return ScopeDecision{Allowed: true, Missing: []string{}}
}

func normalizeScopes(scopes []string) []string {
	set := toScopeSet(scopes)
	out := make([]string, 0, len(set))
	for scope := range set {
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}

func toScopeSet(scopes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(scopes))
	for _, scope := range scopes {
		scope = strings.ToLower(strings.TrimSpace(scope))
		if scope == "" {
			continue
		}
		set[scope] = struct{}{}
	}
	return set
}

package core

import "strings"

// Role is the closed set of membership roles. ParseRole maps anything it does
// not recognize to the most restrictive role rather than failing, so a stale
// row written by a newer deploy can never grant more than read access.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleEditor  Role = "editor"
	RoleMember  Role = "member"
	RoleViewer  Role = "viewer"
)

func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleOwner:
		return RoleOwner
	case RoleAdmin:
		return RoleAdmin
	case RoleManager:
		return RoleManager
	case RoleEditor:
		return RoleEditor
	case RoleMember:
		return RoleMember
	case RoleViewer:
		return RoleViewer
	default:
		return RoleViewer
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleManager, RoleEditor, RoleMember, RoleViewer:
		return true
	}
	return false
}

// ScopesFor expands a role into its permission set. The mapping is exhaustive
// over the closed enum; unknown roles take the viewer set.
func ScopesFor(role Role) []string {
	switch role {
	case RoleOwner:
		return ownerScopes()
	case RoleAdmin:
		return adminScopes()
	case RoleManager:
		return managerScopes()
	case RoleEditor:
		return editorScopes()
	case RoleMember:
		return memberScopes()
	case RoleViewer:
		return viewerScopes()
	default:
		return viewerScopes()
	}
}

func ownerScopes() []string {
	scopes := adminScopes()
	return append(scopes, ScopeOrgBilling)
}

func adminScopes() []string {
	scopes := managerScopes()
	return append(scopes,
		ScopeOrgManage,
		ScopeAPIKeysManage,
		ScopeInvoicingWrite,
		ScopeWorkflowsWrite,
	)
}

func managerScopes() []string {
	scopes := editorScopes()
	return append(scopes,
		ScopeCRMWrite,
		ScopeCheckoutWrite,
	)
}

func editorScopes() []string {
	scopes := memberScopes()
	return append(scopes,
		ScopeEventsWrite,
		ScopeWebinarsWrite,
		ScopePublishingWrite,
	)
}

func memberScopes() []string {
	return append(viewerScopes(), ScopeWorkflowsRead)
}

func viewerScopes() []string {
	return []string{
		ScopeOrgRead,
		ScopeCRMRead,
		ScopeEventsRead,
		ScopeCheckoutRead,
		ScopeWebinarsRead,
		ScopePublishingRead,
		ScopeInvoicingRead,
	}
}

package httpapi

import (
	"net/http"
	"strings"

	"github.com/voundbrand/go-authority/core"
)

func (s *Server) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r.Context())
	if !ok {
		s.writeError(w, r, core.NewCredentialInvalidError())
		return
	}
	org, err := s.services.Organizations.GetOrganization(r.Context(), auth.OrgID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrganizationPayload(org))
}

// handleUpdateOrganization renames the caller's organization. The slug is
// immutable after provisioning; only the display name changes here.
func (s *Server) handleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r.Context())
	if !ok {
		s.writeError(w, r, core.NewCredentialInvalidError())
		return
	}
	var req updateOrganizationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		s.writeError(w, r, httpValidationError("name", "is required"))
		return
	}
	org, err := s.services.Organizations.UpdateOrganization(r.Context(), auth.OrgID, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrganizationPayload(org))
}

func (s *Server) handleListMemberships(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r.Context())
	if !ok {
		s.writeError(w, r, core.NewCredentialInvalidError())
		return
	}
	memberships, err := s.services.Organizations.ListMemberships(r.Context(), auth.OrgID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payload := listMembershipsResponse{Memberships: make([]membershipPayload, 0, len(memberships))}
	for _, membership := range memberships {
		payload.Memberships = append(payload.Memberships, toMembershipPayload(membership))
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleSetDefaultOrganization marks the current organization as the
// caller's default. API key credentials carry no user, so they cannot hold
// a default.
func (s *Server) handleSetDefaultOrganization(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r.Context())
	if !ok {
		s.writeError(w, r, core.NewCredentialInvalidError())
		return
	}
	if auth.UserID == "" {
		s.writeError(w, r, httpBadRequestError("default organization requires a user credential"))
		return
	}
	if err := s.services.Organizations.SetDefaultOrganization(r.Context(), auth.OrgID, auth.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

package httpapi

import (
	"net/http"
	"strings"

	"github.com/voundbrand/go-authority/core"
)

func (s *Server) handleBeginLogin(w http.ResponseWriter, r *http.Request) {
	var req beginLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.services.Auth.BeginLogin(r.Context(), core.BeginLoginInput{
		Flow:        core.LoginFlow(strings.TrimSpace(req.Flow)),
		ProviderID:  strings.TrimSpace(req.Provider),
		CallbackURL: strings.TrimSpace(req.CallbackURL),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, beginLoginResponse{
		State:    result.State,
		AuthURL:  result.AuthURL,
		CLIToken: result.CLIToken,
	})
}

func (s *Server) handleCompleteLogin(w http.ResponseWriter, r *http.Request) {
	var req completeLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.services.Auth.CompleteLogin(r.Context(), core.CompleteLoginInput{
		State: strings.TrimSpace(req.State),
		Code:  strings.TrimSpace(req.Code),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, completeLoginResponse{
		User:         toUserPayload(result.User),
		Organization: toOrganizationPayload(result.Organization),
		Membership:   toMembershipPayload(result.Membership),
		SessionToken: result.SessionToken,
		ExpiresAt:    result.Session.ExpiresAt,
		Flow:         string(result.Flow),
	})
}

func (s *Server) handleWhoami(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r.Context())
	if !ok {
		s.writeError(w, r, core.NewCredentialInvalidError())
		return
	}
	scopes := make([]string, 0, len(auth.Scopes))
	scopes = append(scopes, auth.Scopes...)
	writeJSON(w, http.StatusOK, whoamiResponse{
		Method:    string(auth.Method),
		UserID:    auth.UserID,
		OrgID:     auth.OrgID,
		SessionID: auth.SessionID,
		APIKeyID:  auth.APIKeyID,
		Role:      string(auth.Role),
		Scopes:    scopes,
	})
}

func (s *Server) handleRotateSession(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r.Context())
	if !ok {
		s.writeError(w, r, core.NewCredentialInvalidError())
		return
	}
	if auth.SessionID == "" {
		s.writeError(w, r, httpBadRequestError("session rotation requires a session credential"))
		return
	}
	session, token, err := s.services.Auth.RotateSession(r.Context(), auth.SessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rotateSessionResponse{
		SessionID:    session.ID,
		SessionToken: token,
		ExpiresAt:    session.ExpiresAt,
	})
}

func (s *Server) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r.Context())
	if !ok {
		s.writeError(w, r, core.NewCredentialInvalidError())
		return
	}
	if auth.SessionID == "" {
		s.writeError(w, r, httpBadRequestError("session revocation requires a session credential"))
		return
	}
	if err := s.services.Auth.RevokeSession(r.Context(), auth.SessionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

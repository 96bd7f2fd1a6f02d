package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/voundbrand/go-authority/core"
)

func (s *Server) handleIssueAPIKey(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r.Context())
	if !ok {
		s.writeError(w, r, core.NewCredentialInvalidError())
		return
	}
	var req issueAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.services.APIKeys.IssueAPIKey(r.Context(), core.IssueAPIKeyInput{
		OrgID:     auth.OrgID,
		CreatedBy: auth.UserID,
		Name:      strings.TrimSpace(req.Name),
		Scopes:    req.Scopes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, issueAPIKeyResponse{
		Key:    toAPIKeyPayload(result.Key),
		RawKey: result.RawKey,
	})
}

func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r.Context())
	if !ok {
		s.writeError(w, r, core.NewCredentialInvalidError())
		return
	}
	keys, err := s.services.APIKeys.ListAPIKeys(r.Context(), auth.OrgID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payload := listAPIKeysResponse{Keys: make([]apiKeyPayload, 0, len(keys))}
	for _, key := range keys {
		payload.Keys = append(payload.Keys, toAPIKeyPayload(key))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r.Context())
	if !ok {
		s.writeError(w, r, core.NewCredentialInvalidError())
		return
	}
	keyID := strings.TrimSpace(mux.Vars(r)["keyID"])
	if keyID == "" {
		s.writeError(w, r, httpValidationError("key_id", "is required"))
		return
	}
	if err := s.services.APIKeys.RevokeAPIKey(r.Context(), auth.OrgID, keyID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

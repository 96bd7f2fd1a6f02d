package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/voundbrand/go-authority/behavior"
	"github.com/voundbrand/go-authority/core"
)

func workflowIDFrom(r *http.Request) (string, error) {
	workflowID := strings.TrimSpace(mux.Vars(r)["workflowID"])
	if workflowID == "" {
		return "", httpValidationError("workflow_id", "is required")
	}
	return workflowID, nil
}

func (s *Server) handleGetChain(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r.Context())
	if !ok {
		s.writeError(w, r, core.NewCredentialInvalidError())
		return
	}
	workflowID, err := workflowIDFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	chain, err := s.services.Workflows.GetChain(r.Context(), auth.OrgID, workflowID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChainResponse(chain))
}

func (s *Server) handleSaveChain(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r.Context())
	if !ok {
		s.writeError(w, r, core.NewCredentialInvalidError())
		return
	}
	workflowID, err := workflowIDFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req chainRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	chain := behavior.Chain{
		OrgID:         auth.OrgID,
		WorkflowID:    workflowID,
		ErrorHandling: behavior.Policy(strings.TrimSpace(req.ErrorHandling)),
		Behaviors:     req.Behaviors,
	}
	saved, err := s.services.Workflows.SaveChain(r.Context(), chain)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChainResponse(saved))
}

func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r.Context())
	if !ok {
		s.writeError(w, r, core.NewCredentialInvalidError())
		return
	}
	workflowID, err := workflowIDFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req runWorkflowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.services.Workflows.RunWorkflow(r.Context(), behavior.RunContext{
		OrgID:        auth.OrgID,
		UserID:       auth.UserID,
		WorkflowID:   workflowID,
		DryRun:       req.DryRun,
		Cart:         req.Cart,
		DiscountCode: strings.TrimSpace(req.DiscountCode),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runWorkflowResponse{
		Report: report,
		DryRun: req.DryRun,
	})
}

package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/zivra/zivra-custody/internal/middleware"
	apperrors "github.com/zivra/zivra-custody/pkg/errors"
	"github.com/zivra/zivra-custody/pkg/types"
)

type createPolicyRequest struct {
	Type   string             `json:"type"`
	Params types.PolicyParams `json:"params"`
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	policies, err := s.policies.ListPolicies(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": policies})
}

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	var req createPolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	policy, err := s.policies.CreatePolicy(r.Context(), ownerID, req.Type, req.Params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, policy)
}

func (s *Server) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	policyID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, apperrors.ErrBadRequest)
		return
	}

	if err := s.policies.DeactivatePolicy(r.Context(), ownerID, policyID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

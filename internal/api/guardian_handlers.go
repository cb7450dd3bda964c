package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/zivra/zivra-custody/internal/middleware"
	apperrors "github.com/zivra/zivra-custody/pkg/errors"
)

type addGuardianRequest struct {
	Name         string `json:"name"`
	Contact      string `json:"contact"`
	Relationship string `json:"relationship"`
}

func (s *Server) handleListGuardians(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	guardians, err := s.guardians.ListGuardians(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"guardians": guardians})
}

func (s *Server) handleAddGuardian(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	var req addGuardianRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	guardian, err := s.guardians.AddGuardian(r.Context(), ownerID, req.Name, req.Contact, req.Relationship)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, guardian)
}

func (s *Server) handleRemoveGuardian(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	guardianID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, apperrors.ErrBadRequest)
		return
	}

	if err := s.guardians.RemoveGuardian(r.Context(), ownerID, guardianID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

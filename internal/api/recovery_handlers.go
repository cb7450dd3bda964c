package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/zivra/zivra-custody/internal/middleware"
	apperrors "github.com/zivra/zivra-custody/pkg/errors"
)

type voteRequest struct {
	GuardianID uuid.UUID `json:"guardian_id"`
	Approve    bool      `json:"approve"`
}

func (s *Server) handleInitiateRecovery(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	request, err := s.recovery.InitiateRecovery(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

func (s *Server) handleVoteOnRecovery(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, apperrors.ErrBadRequest)
		return
	}

	var req voteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.GuardianID == uuid.Nil {
		writeError(w, r, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest,
			"guardian_id is required", "", http.StatusBadRequest))
		return
	}

	result, err := s.recovery.VoteOnRecovery(r.Context(), requestID, req.GuardianID, req.Approve)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRecoveryStatus(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	status, err := s.recovery.GetStatus(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCancelRecovery(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	if err := s.recovery.CancelRecovery(r.Context(), ownerID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

package api

import (
	"net/http"

	"github.com/zivra/zivra-custody/internal/middleware"
	apperrors "github.com/zivra/zivra-custody/pkg/errors"
	"github.com/zivra/zivra-custody/pkg/types"
)

type createWalletRequest struct {
	// Optional P-256 public key (base64 SEC1 or PEM); when present the hot
	// shard is returned sealed to it.
	RecipientPublicKey string `json:"recipient_public_key"`
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	var req createWalletRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	resp, err := s.wallets.CreateWallet(r.Context(), ownerID, req.RecipientPublicKey)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleWalletStatus(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	status, err := s.wallets.GetWalletStatus(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleValidateShard(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	var env types.ShardEnvelope
	if err := decodeJSON(r, &env); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.wallets.ValidateShard(r.Context(), ownerID, &env); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

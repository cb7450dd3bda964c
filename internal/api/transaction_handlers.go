package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/zivra/zivra-custody/internal/authgate"
	"github.com/zivra/zivra-custody/internal/middleware"
	apperrors "github.com/zivra/zivra-custody/pkg/errors"
	"github.com/zivra/zivra-custody/pkg/types"
)

type sendTransactionRequest struct {
	Draft    types.TxDraft        `json:"draft"`
	HotShard *types.ShardEnvelope `json:"hot_shard"`
	Proof    *authgate.Proof      `json:"proof"`
}

type estimateFeesRequest struct {
	Draft           types.TxDraft `json:"draft"`
	SettlementToken string        `json:"settlement_token"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	var draft types.TxDraft
	if err := decodeJSON(r, &draft); err != nil {
		writeError(w, r, err)
		return
	}

	sim, err := s.pipeline.Simulate(r.Context(), ownerID, &draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

func (s *Server) handleSendTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	var req sendTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.HotShard == nil {
		writeError(w, r, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest,
			"hot_shard is required", "", http.StatusBadRequest))
		return
	}
	if req.Proof == nil {
		writeError(w, r, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest,
			"proof is required", "", http.StatusBadRequest))
		return
	}

	tx, err := s.pipeline.SendTransaction(r.Context(), ownerID, &req.Draft, req.HotShard, req.Proof)
	if err != nil {
		// A failed broadcast still produced a persisted record; surface both.
		if tx != nil {
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"transaction": tx,
				"error":       errorBody(err),
			})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, apperrors.ErrBadRequest)
			return
		}
		limit = n
	}

	txs, err := s.pipeline.ListTransactions(r.Context(), ownerID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (s *Server) handleTransactionStatus(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	txID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, apperrors.ErrBadRequest)
		return
	}

	status, err := s.pipeline.GetStatus(r.Context(), ownerID, txID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleEstimateFees(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.OwnerFromContext(r.Context()); !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	var req estimateFeesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	estimate, err := s.estimator.EstimateFees(r.Context(), &req.Draft, req.SettlementToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}

func (s *Server) handleFeeRates(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.OwnerFromContext(r.Context()); !ok {
		writeError(w, r, apperrors.ErrUnauthorized)
		return
	}

	family := r.URL.Query().Get("chain")
	if family == "" {
		family = types.ChainFamilyAccount
	}

	rates, err := s.estimator.GetCurrentFeeRate(r.Context(), family)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rates)
}

// Package pipeline drives an outgoing transaction through its sequential
// stages: simulate, policy check, authentication gate, sign, broadcast and
// status polling. Every stage is an abort point; nothing is signed after a
// policy violation and nothing irreversible is ever retried.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/zivra/zivra-custody/pkg/errors"
	"github.com/zivra/zivra-custody/pkg/types"

	"github.com/zivra/zivra-custody/internal/authgate"
	"github.com/zivra/zivra-custody/internal/chainrpc"
	"github.com/zivra/zivra-custody/internal/custody"
	"github.com/zivra/zivra-custody/internal/logger"
	"github.com/zivra/zivra-custody/internal/metrics"
	"github.com/zivra/zivra-custody/internal/policy"
	"github.com/zivra/zivra-custody/internal/storage"
	"github.com/zivra/zivra-custody/internal/validation"
)

// Pipeline executes the transaction stages for one owner at a time.
type Pipeline struct {
	store    *storage.Store
	wallets  *storage.WalletRepository
	shards   *storage.ShardRepository
	txs      *storage.TransactionRepository
	audit    *storage.AuditRepository
	policies *policy.Engine
	custody  *custody.Service
	registry *chainrpc.Registry
	gate     *authgate.Gate
}

// New creates a transaction pipeline
func New(
	store *storage.Store,
	wallets *storage.WalletRepository,
	shards *storage.ShardRepository,
	txs *storage.TransactionRepository,
	audit *storage.AuditRepository,
	policies *policy.Engine,
	custodySvc *custody.Service,
	registry *chainrpc.Registry,
	gate *authgate.Gate,
) *Pipeline {
	return &Pipeline{
		store:    store,
		wallets:  wallets,
		shards:   shards,
		txs:      txs,
		audit:    audit,
		policies: policies,
		custody:  custodySvc,
		registry: registry,
		gate:     gate,
	}
}

// TxStatus is the polling projection of a transaction.
type TxStatus struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Status        string    `json:"status"`
	ChainRef      *string   `json:"chain_ref,omitempty"`
	Confirmations uint64    `json:"confirmations"`
}

// Simulate dry-runs a draft without creating any record. Read-only and
// side-effect-free; safe to retry.
func (p *Pipeline) Simulate(ctx context.Context, ownerID uuid.UUID, draft *types.TxDraft) (*chainrpc.Simulation, error) {
	if _, err := p.resolveWallet(ctx, ownerID, draft); err != nil {
		return nil, err
	}

	client, err := p.registry.ForFamily(draft.ChainFamily)
	if err != nil {
		return nil, err
	}
	return client.Simulate(ctx, draft)
}

// SendTransaction runs the full pipeline. The hot shard comes from the
// client and is used transiently; the security shard never leaves the
// custody process. The policy check, the signing and the spend record are
// committed under the owner's advisory lock, so a second in-flight spend
// for the same owner serializes behind this one and sees its debit.
func (p *Pipeline) SendTransaction(ctx context.Context, ownerID uuid.UUID, draft *types.TxDraft, hotShard *types.ShardEnvelope, proof *authgate.Proof) (*types.Transaction, error) {
	wallet, err := p.resolveWallet(ctx, ownerID, draft)
	if err != nil {
		return nil, err
	}

	client, err := p.registry.ForFamily(draft.ChainFamily)
	if err != nil {
		return nil, err
	}

	// Stage 1: simulate.
	simStart := time.Now()
	sim, err := client.Simulate(ctx, draft)
	if err != nil {
		metrics.PipelineAborts.WithLabelValues("simulate").Inc()
		return nil, err
	}
	metrics.PipelineStageDuration.WithLabelValues("simulate").Observe(time.Since(simStart).Seconds())

	record := &types.Transaction{
		OwnerID:      ownerID,
		WalletID:     wallet.ID,
		ChainFamily:  draft.ChainFamily,
		FromAddress:  draft.From,
		ToAddress:    draft.To,
		Value:        draft.Value,
		Token:        draft.Token,
		SimulatedFee: sim.NativeCost,
		Status:       types.TxStatusPending,
	}

	var prepared *chainrpc.PreparedTx
	var signature []byte

	err = p.store.WithTx(ctx, func(tx pgx.Tx) error {
		if err := storage.AcquireOwnerLock(ctx, tx, ownerID); err != nil {
			return err
		}

		// Stage 2: policy check. Evaluated under the owner lock so the
		// daily-limit sum and this spend record are one atomic unit.
		verdict, err := p.policies.ValidateTransaction(ctx, tx, ownerID, draft)
		if err != nil {
			return err
		}
		if !verdict.Valid {
			for _, v := range verdict.Violations {
				metrics.PolicyViolations.WithLabelValues(v.Type).Inc()
			}
			metrics.PipelineAborts.WithLabelValues("policy").Inc()
			return apperrors.PolicyDenied(verdict.Reasons())
		}

		// Stage 3: authentication gate. The proof must be fresh,
		// unused and bound to exactly this draft.
		txHash, err := authgate.TxHash(draft)
		if err != nil {
			return fmt.Errorf("failed to hash draft: %w", err)
		}
		if err := p.gate.VerifyProof(ctx, ownerID.String(), txHash, proof); err != nil {
			metrics.PipelineAborts.WithLabelValues("authgate").Inc()
			return err
		}

		if err := p.txs.CreateTx(ctx, tx, record); err != nil {
			return err
		}
		result := "allowed"
		if err := p.txs.UpdatePolicyResultTx(ctx, tx, record.ID, result); err != nil {
			return err
		}
		record.PolicyResult = &result

		// Stage 4: sign. Client-supplied hot shard plus the server-held
		// security shard; the reconstructed key lives only inside the
		// custody call.
		signStart := time.Now()
		securityShard, err := p.shards.GetActiveTx(ctx, tx, wallet.ID, types.ShardTypeSecurity)
		if err != nil {
			return err
		}
		if securityShard == nil {
			return apperrors.InvalidShard("wallet has no active security shard")
		}

		prepared, err = client.Prepare(ctx, draft)
		if err != nil {
			metrics.PipelineAborts.WithLabelValues("sign").Inc()
			return err
		}

		signature, err = p.custody.CombineAndSign(ctx, wallet, hotShard, securityShard.Envelope(), prepared.Payload)
		if err != nil {
			metrics.PipelineAborts.WithLabelValues("sign").Inc()
			return err
		}
		metrics.PipelineStageDuration.WithLabelValues("sign").Observe(time.Since(signStart).Seconds())

		if err := p.txs.UpdateSignatureTx(ctx, tx, record.ID, signature); err != nil {
			return err
		}
		record.Signature = signature

		return p.audit.RecordTx(ctx, tx, ownerID, "transaction.signed", map[string]any{
			"transaction_id": record.ID,
			"chain_family":   draft.ChainFamily,
			"to":             draft.To,
			"value":          draft.Value.String(),
			"token":          draft.Token,
		})
	})
	if err != nil {
		return nil, err
	}

	// Stage 5: broadcast. The spend record is already durable; a failure
	// here marks it failed and is never retried automatically.
	chainRef, err := client.Broadcast(ctx, prepared, signature)
	if err != nil {
		metrics.PipelineAborts.WithLabelValues("broadcast").Inc()
		if updateErr := p.txs.UpdateStatus(ctx, record.ID, types.TxStatusFailed); updateErr != nil {
			logger.Error(ctx, "failed to mark transaction failed after broadcast error",
				"transaction_id", record.ID, "error", updateErr)
		}
		record.Status = types.TxStatusFailed
		return record, err
	}
	metrics.TransactionsBroadcast.WithLabelValues(draft.ChainFamily).Inc()

	if err := p.txs.UpdateBroadcastTx(ctx, p.store.DB(), record.ID, chainRef); err != nil {
		return nil, err
	}
	record.ChainRef = &chainRef

	logger.Info(ctx, "transaction broadcast",
		"transaction_id", record.ID, "chain_ref", chainRef, "chain_family", draft.ChainFamily)
	return record, nil
}

// GetStatus polls the chain for the transaction's inclusion state. The
// stage is idempotent: repeated calls converge on the same terminal
// status, and confirmations grow as the chain advances past the
// inclusion height.
func (p *Pipeline) GetStatus(ctx context.Context, ownerID, txID uuid.UUID) (*TxStatus, error) {
	record, err := p.txs.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.OwnerID != ownerID {
		return nil, apperrors.ErrNotFound
	}

	status := &TxStatus{
		TransactionID: record.ID,
		Status:        record.Status,
		ChainRef:      record.ChainRef,
	}

	if record.ChainRef == nil {
		return status, nil
	}

	client, err := p.registry.ForFamily(record.ChainFamily)
	if err != nil {
		return nil, err
	}

	if record.Status == types.TxStatusPending {
		receipt, err := client.GetReceipt(ctx, *record.ChainRef)
		if err != nil {
			return nil, err
		}
		if receipt.Found {
			if receipt.Success {
				if err := p.txs.MarkConfirmed(ctx, record.ID, receipt.Height); err != nil {
					return nil, err
				}
				record.Status = types.TxStatusConfirmed
				record.InclusionHeight = &receipt.Height
			} else {
				if err := p.txs.UpdateStatus(ctx, record.ID, types.TxStatusFailed); err != nil {
					return nil, err
				}
				record.Status = types.TxStatusFailed
			}
			status.Status = record.Status
		}
	}

	if record.Status == types.TxStatusConfirmed && record.InclusionHeight != nil {
		height, err := client.CurrentHeight(ctx)
		if err != nil {
			return nil, err
		}
		if height >= *record.InclusionHeight {
			status.Confirmations = height - *record.InclusionHeight
		}
	}
	return status, nil
}

// ListTransactions returns the owner's transactions, newest first
func (p *Pipeline) ListTransactions(ctx context.Context, ownerID uuid.UUID, limit int) ([]*types.Transaction, error) {
	return p.txs.ListByOwner(ctx, ownerID, limit)
}

// resolveWallet validates the draft, loads the owner's wallet and fills or
// checks the draft's sender address for its chain family.
func (p *Pipeline) resolveWallet(ctx context.Context, ownerID uuid.UUID, draft *types.TxDraft) (*types.Wallet, error) {
	if err := validation.ValidateDraft(draft); err != nil {
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest,
			"Invalid transaction draft", err.Error(), 400)
	}

	wallet, err := p.wallets.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, apperrors.WalletNotFound(ownerID.String())
	}

	address, ok := wallet.Addresses[draft.ChainFamily]
	if !ok {
		return nil, apperrors.ChainNotSupported(draft.ChainFamily)
	}
	if draft.From == "" {
		draft.From = address
	} else if !strings.EqualFold(draft.From, address) {
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest,
			"Sender address does not belong to the wallet",
			fmt.Sprintf("from: %s", draft.From), 400)
	}
	return wallet, nil
}

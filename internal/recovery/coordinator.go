// Package recovery implements the guardian-quorum state machine that
// re-keys a wallet after its owner loses the hot shard.
package recovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/zivra/zivra-custody/pkg/errors"
	"github.com/zivra/zivra-custody/pkg/types"

	"github.com/zivra/zivra-custody/internal/custody"
	"github.com/zivra/zivra-custody/internal/logger"
	"github.com/zivra/zivra-custody/internal/metrics"
	"github.com/zivra/zivra-custody/internal/notify"
	"github.com/zivra/zivra-custody/internal/storage"
)

// MinGuardians is the smallest active guardian set that can open a
// recovery request.
const MinGuardians = 2

// VoteResult is the tally snapshot returned after a vote is recorded.
// NewHotShard is set only on the vote that crosses the approval threshold;
// it is handed to the owner once and never persisted.
type VoteResult struct {
	VotesReceived int                  `json:"votes_received"`
	VotesRequired int                  `json:"votes_required"`
	Status        string               `json:"status"`
	NewHotShard   *types.ShardEnvelope `json:"new_hot_shard,omitempty"`
}

// Status is the read-only projection of an owner's recovery state.
// Individual guardians' votes are not exposed.
type Status struct {
	RequestID     uuid.UUID `json:"request_id"`
	VotesReceived int       `json:"votes_received"`
	VotesRequired int       `json:"votes_required"`
	Status        string    `json:"status"`
}

// Coordinator drives recovery requests from initiation through quorum
// voting to atomic re-sharding.
type Coordinator struct {
	store      *storage.Store
	recoveries *storage.RecoveryRepository
	guardians  *storage.GuardianRepository
	wallets    *storage.WalletRepository
	shards     *storage.ShardRepository
	audit      *storage.AuditRepository
	custody    *custody.Service
	notifier   notify.Notifier
}

// NewCoordinator creates a new recovery coordinator
func NewCoordinator(
	store *storage.Store,
	recoveries *storage.RecoveryRepository,
	guardians *storage.GuardianRepository,
	wallets *storage.WalletRepository,
	shards *storage.ShardRepository,
	audit *storage.AuditRepository,
	custodySvc *custody.Service,
	notifier notify.Notifier,
) *Coordinator {
	return &Coordinator{
		store:      store,
		recoveries: recoveries,
		guardians:  guardians,
		wallets:    wallets,
		shards:     shards,
		audit:      audit,
		custody:    custodySvc,
		notifier:   notifier,
	}
}

// VotesRequired computes the approval quorum: ceil(0.6 * guardianCount).
// For 2, 3, 4 and 5 guardians the quorum is 2, 2, 3 and 3.
func VotesRequired(guardianCount int) int {
	return (guardianCount*3 + 4) / 5
}

// InitiateRecovery opens a pending request snapshotting the owner's active
// guardian set. Guardians are notified best-effort after the request is
// durable; a delivery failure never rolls the request back.
func (c *Coordinator) InitiateRecovery(ctx context.Context, ownerID uuid.UUID) (*types.RecoveryRequest, error) {
	wallet, err := c.wallets.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, apperrors.WalletNotFound(ownerID.String())
	}

	pending, err := c.recoveries.GetPendingByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, apperrors.RecoveryInProgress(ownerID.String())
	}

	guardians, err := c.guardians.GetActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(guardians) < MinGuardians {
		return nil, apperrors.InsufficientGuardians(len(guardians), MinGuardians)
	}

	snapshot := make([]uuid.UUID, len(guardians))
	for i, g := range guardians {
		snapshot[i] = g.ID
	}

	request := &types.RecoveryRequest{
		OwnerID:       ownerID,
		GuardianIDs:   snapshot,
		VotesRequired: VotesRequired(len(guardians)),
		Status:        types.RecoveryStatusPending,
	}
	if err := c.recoveries.Create(ctx, request); err != nil {
		return nil, err
	}

	if err := c.audit.Record(ctx, ownerID, "recovery.initiated", map[string]any{
		"request_id":     request.ID,
		"guardian_count": len(guardians),
		"votes_required": request.VotesRequired,
	}); err != nil {
		logger.Warn(ctx, "failed to record audit entry", "error", err)
	}

	metrics.RecoveryEvents.WithLabelValues("initiated").Inc()
	for _, g := range guardians {
		c.notifier.RecoveryInitiated(ctx, g, request)
	}
	return request, nil
}

// VoteOnRecovery records a guardian's vote and re-tallies under a row lock,
// so two near-simultaneous votes cannot both observe a stale count. The
// vote that reaches the quorum flips the request to approved and performs
// the re-sharding inside the same transaction: either the vote, the status
// transition and the full shard swap all commit, or none do.
func (c *Coordinator) VoteOnRecovery(ctx context.Context, requestID, guardianID uuid.UUID, approve bool) (*VoteResult, error) {
	var result *VoteResult
	var approvedRequest *types.RecoveryRequest

	err := c.store.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		result, approvedRequest, err = c.applyVote(ctx, tx, requestID, guardianID, approve)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecoveryEvents.WithLabelValues("vote").Inc()
	switch result.Status {
	case types.RecoveryStatusApproved:
		metrics.RecoveryEvents.WithLabelValues("approved").Inc()
	case types.RecoveryStatusCancelled:
		metrics.RecoveryEvents.WithLabelValues("cancelled").Inc()
	}

	if approvedRequest != nil {
		c.notifyApproved(ctx, approvedRequest)
	}
	return result, nil
}

// applyVote records the vote and re-tallies on db, which must carry the
// row lock's transaction. Returns the approved request on the vote that
// crosses the quorum so the caller can notify after commit.
func (c *Coordinator) applyVote(ctx context.Context, db storage.DBTX, requestID, guardianID uuid.UUID, approve bool) (*VoteResult, *types.RecoveryRequest, error) {
	request, err := c.recoveries.GetByIDForUpdateTx(ctx, db, requestID)
	if err != nil {
		return nil, nil, err
	}
	if request == nil {
		return nil, nil, apperrors.RecoveryNotFound(requestID.String())
	}
	if request.Status != types.RecoveryStatusPending {
		return nil, nil, apperrors.RecoveryNotFound(fmt.Sprintf("request %s is %s", requestID, request.Status))
	}

	if !inSnapshot(request.GuardianIDs, guardianID) {
		return nil, nil, apperrors.NotAuthorizedGuardian(guardianID.String())
	}

	vote := &types.RecoveryVote{
		RequestID:  requestID,
		GuardianID: guardianID,
		Approve:    approve,
	}
	if err := c.recoveries.AddVoteTx(ctx, db, vote); err != nil {
		if errors.Is(err, storage.ErrVoteExists) {
			return nil, nil, apperrors.DuplicateVote(guardianID.String())
		}
		return nil, nil, err
	}

	votes, err := c.recoveries.GetVotesTx(ctx, db, requestID)
	if err != nil {
		return nil, nil, err
	}
	approvals := 0
	for _, v := range votes {
		if v.Approve {
			approvals++
		}
	}

	result := &VoteResult{
		VotesReceived: len(votes),
		VotesRequired: request.VotesRequired,
		Status:        request.Status,
	}

	switch {
	case approvals >= request.VotesRequired:
		hot, err := c.rekeyWallet(ctx, db, request)
		if err != nil {
			return nil, nil, err
		}
		if err := c.recoveries.UpdateStatusTx(ctx, db, requestID, types.RecoveryStatusApproved); err != nil {
			return nil, nil, err
		}
		result.Status = types.RecoveryStatusApproved
		result.NewHotShard = hot
		return result, request, nil

	case approvals+remainingVoters(request, votes) < request.VotesRequired:
		// Quorum is unreachable; terminate the request.
		if err := c.recoveries.UpdateStatusTx(ctx, db, requestID, types.RecoveryStatusCancelled); err != nil {
			return nil, nil, err
		}
		result.Status = types.RecoveryStatusCancelled
	}
	return result, nil, nil
}

// rekeyWallet reconstructs the wallet key from the still-active recovery
// and security shards, re-splits it under the next key epoch and swaps the
// stored shard set. The wallet's key pair and addresses are preserved; the
// lost hot shard and its security counterpart stop verifying because the
// epoch moved. Returns the fresh hot shard for one-time delivery.
func (c *Coordinator) rekeyWallet(ctx context.Context, db storage.DBTX, request *types.RecoveryRequest) (*types.ShardEnvelope, error) {
	wallet, err := c.wallets.GetByOwnerIDTx(ctx, db, request.OwnerID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, apperrors.WalletNotFound(request.OwnerID.String())
	}

	recoveryShard, err := c.shards.GetActiveTx(ctx, db, wallet.ID, types.ShardTypeRecovery)
	if err != nil {
		return nil, err
	}
	securityShard, err := c.shards.GetActiveTx(ctx, db, wallet.ID, types.ShardTypeSecurity)
	if err != nil {
		return nil, err
	}
	if recoveryShard == nil || securityShard == nil {
		return nil, fmt.Errorf("wallet %s is missing an active server-held shard", wallet.ID)
	}

	resharded, err := c.custody.Reshard(ctx, wallet, recoveryShard.Envelope(), securityShard.Envelope())
	if err != nil {
		return nil, err
	}

	if err := c.shards.DeactivateAllTx(ctx, db, wallet.ID); err != nil {
		return nil, err
	}
	if err := c.shards.PersistSetTx(ctx, db, wallet.ID, resharded.SecurityShard, resharded.RecoveryShard); err != nil {
		return nil, err
	}
	if err := c.wallets.BumpKeyEpochTx(ctx, db, wallet.ID, wallet.KeyEpoch, resharded.KeyEpoch); err != nil {
		return nil, err
	}

	if err := c.audit.RecordTx(ctx, db, request.OwnerID, "recovery.approved", map[string]any{
		"request_id": request.ID,
		"wallet_id":  wallet.ID,
		"key_epoch":  resharded.KeyEpoch,
	}); err != nil {
		return nil, err
	}

	return resharded.HotShard, nil
}

// GetStatus returns the owner's most recent recovery request as a tally
// projection without exposing individual votes.
func (c *Coordinator) GetStatus(ctx context.Context, ownerID uuid.UUID) (*Status, error) {
	request, err := c.recoveries.GetLatestByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperrors.RecoveryNotFound(fmt.Sprintf("owner %s has no recovery request", ownerID))
	}

	votes, err := c.recoveries.GetVotes(ctx, request.ID)
	if err != nil {
		return nil, err
	}

	return &Status{
		RequestID:     request.ID,
		VotesReceived: len(votes),
		VotesRequired: request.VotesRequired,
		Status:        request.Status,
	}, nil
}

// CancelRecovery terminates the owner's pending request.
func (c *Coordinator) CancelRecovery(ctx context.Context, ownerID uuid.UUID) error {
	request, err := c.recoveries.GetPendingByOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	if request == nil {
		return apperrors.RecoveryNotFound(fmt.Sprintf("owner %s has no pending request", ownerID))
	}
	if err := c.recoveries.UpdateStatusTx(ctx, c.store.DB(), request.ID, types.RecoveryStatusCancelled); err != nil {
		return err
	}
	metrics.RecoveryEvents.WithLabelValues("cancelled").Inc()
	return c.audit.Record(ctx, ownerID, "recovery.cancelled", map[string]any{"request_id": request.ID})
}

func (c *Coordinator) notifyApproved(ctx context.Context, request *types.RecoveryRequest) {
	for _, gid := range request.GuardianIDs {
		g, err := c.guardians.GetByID(ctx, gid)
		if err != nil || g == nil {
			continue
		}
		c.notifier.RecoveryApproved(ctx, g, request)
	}
}

func inSnapshot(snapshot []uuid.UUID, guardianID uuid.UUID) bool {
	for _, id := range snapshot {
		if id == guardianID {
			return true
		}
	}
	return false
}

// remainingVoters counts snapshot guardians that have not voted yet.
func remainingVoters(request *types.RecoveryRequest, votes []*types.RecoveryVote) int {
	voted := make(map[uuid.UUID]bool, len(votes))
	for _, v := range votes {
		voted[v.GuardianID] = true
	}
	remaining := 0
	for _, id := range request.GuardianIDs {
		if !voted[id] {
			remaining++
		}
	}
	return remaining
}

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zivra/zivra-custody/pkg/types"
)

// ErrVoteExists is returned when a guardian votes twice on the same request
var ErrVoteExists = errors.New("vote already recorded for this guardian")

// RecoveryRepository handles recovery request and vote operations
type RecoveryRepository struct {
	store *Store
}

// NewRecoveryRepository creates a new RecoveryRepository
func NewRecoveryRepository(store *Store) *RecoveryRepository {
	return &RecoveryRepository{store: store}
}

// Create persists a new pending recovery request
func (r *RecoveryRepository) Create(ctx context.Context, req *types.RecoveryRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	query := `
		INSERT INTO recovery_requests (id, owner_id, guardian_ids, votes_required, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.store.pool.QueryRow(ctx, query,
		req.ID,
		req.OwnerID,
		req.GuardianIDs,
		req.VotesRequired,
		req.Status,
	).Scan(&req.CreatedAt, &req.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create recovery request: %w", err)
	}
	return nil
}

const recoveryColumns = `id, owner_id, guardian_ids, votes_required, status, created_at, updated_at`

func scanRecovery(row pgx.Row) (*types.RecoveryRequest, error) {
	var req types.RecoveryRequest
	err := row.Scan(
		&req.ID, &req.OwnerID, &req.GuardianIDs,
		&req.VotesRequired, &req.Status, &req.CreatedAt, &req.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan recovery request: %w", err)
	}
	return &req, nil
}

// GetByID retrieves a recovery request by ID
func (r *RecoveryRepository) GetByID(ctx context.Context, id uuid.UUID) (*types.RecoveryRequest, error) {
	query := `SELECT ` + recoveryColumns + ` FROM recovery_requests WHERE id = $1`
	return scanRecovery(r.store.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdateTx retrieves a request with a row lock, serializing
// concurrent vote tallies on the same request.
func (r *RecoveryRepository) GetByIDForUpdateTx(ctx context.Context, db DBTX, id uuid.UUID) (*types.RecoveryRequest, error) {
	query := `SELECT ` + recoveryColumns + ` FROM recovery_requests WHERE id = $1 FOR UPDATE`
	return scanRecovery(db.QueryRow(ctx, query, id))
}

// GetPendingByOwner retrieves the owner's pending request, if any
func (r *RecoveryRepository) GetPendingByOwner(ctx context.Context, ownerID uuid.UUID) (*types.RecoveryRequest, error) {
	query := `SELECT ` + recoveryColumns + ` FROM recovery_requests WHERE owner_id = $1 AND status = $2`
	return scanRecovery(r.store.pool.QueryRow(ctx, query, ownerID, types.RecoveryStatusPending))
}

// GetLatestByOwner retrieves the owner's most recent request
func (r *RecoveryRepository) GetLatestByOwner(ctx context.Context, ownerID uuid.UUID) (*types.RecoveryRequest, error) {
	query := `
		SELECT ` + recoveryColumns + `
		FROM recovery_requests
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanRecovery(r.store.pool.QueryRow(ctx, query, ownerID))
}

// AddVoteTx records a guardian's vote. The primary key on
// (request_id, guardian_id) rejects duplicates with ErrVoteExists.
func (r *RecoveryRepository) AddVoteTx(ctx context.Context, db DBTX, vote *types.RecoveryVote) error {
	query := `
		INSERT INTO recovery_votes (request_id, guardian_id, approve)
		VALUES ($1, $2, $3)
		RETURNING voted_at
	`

	err := db.QueryRow(ctx, query,
		vote.RequestID,
		vote.GuardianID,
		vote.Approve,
	).Scan(&vote.VotedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrVoteExists
		}
		return fmt.Errorf("failed to record vote: %w", err)
	}
	return nil
}

// GetVotesTx returns all votes on a request
func (r *RecoveryRepository) GetVotesTx(ctx context.Context, db DBTX, requestID uuid.UUID) ([]*types.RecoveryVote, error) {
	query := `
		SELECT request_id, guardian_id, approve, voted_at
		FROM recovery_votes
		WHERE request_id = $1
		ORDER BY voted_at
	`

	rows, err := db.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get votes: %w", err)
	}
	defer rows.Close()

	var votes []*types.RecoveryVote
	for rows.Next() {
		var v types.RecoveryVote
		if err := rows.Scan(&v.RequestID, &v.GuardianID, &v.Approve, &v.VotedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, &v)
	}
	return votes, nil
}

// GetVotes returns all votes on a request
func (r *RecoveryRepository) GetVotes(ctx context.Context, requestID uuid.UUID) ([]*types.RecoveryVote, error) {
	return r.GetVotesTx(ctx, r.store.pool, requestID)
}

// CountApprovalsTx counts approving votes on a request
func (r *RecoveryRepository) CountApprovalsTx(ctx context.Context, db DBTX, requestID uuid.UUID) (int, error) {
	var count int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM recovery_votes WHERE request_id = $1 AND approve`, requestID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count approvals: %w", err)
	}
	return count, nil
}

// UpdateStatusTx transitions a request's status
func (r *RecoveryRepository) UpdateStatusTx(ctx context.Context, db DBTX, requestID uuid.UUID, status string) error {
	tag, err := db.Exec(ctx, `
		UPDATE recovery_requests SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, requestID, status)
	if err != nil {
		return fmt.Errorf("failed to update recovery status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recovery request not found")
	}
	return nil
}

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zivra/zivra-custody/pkg/types"
)

// ShardRepository handles persistence of server-held sealed shards.
// A partial unique index on (wallet_id, type) WHERE active enforces the
// one-active-shard-per-type invariant at the database level.
type ShardRepository struct {
	store *Store
}

// NewShardRepository creates a new ShardRepository
func NewShardRepository(store *Store) *ShardRepository {
	return &ShardRepository{store: store}
}

// CreateTx inserts a new active shard using the provided transaction
func (r *ShardRepository) CreateTx(ctx context.Context, db DBTX, shard *types.Shard) error {
	if shard.ID == uuid.Nil {
		shard.ID = uuid.New()
	}

	query := `
		INSERT INTO shards (id, wallet_id, type, nonce, ciphertext, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING created_at
	`

	err := db.QueryRow(ctx, query,
		shard.ID,
		shard.WalletID,
		shard.Type,
		shard.Nonce,
		shard.Ciphertext,
	).Scan(&shard.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create shard: %w", err)
	}
	shard.Active = true

	return nil
}

// PersistSetTx stores the server-held members of a fresh shard set
// (security and recovery; the hot shard never reaches storage).
func (r *ShardRepository) PersistSetTx(ctx context.Context, db DBTX, walletID uuid.UUID, security, recovery *types.ShardEnvelope) error {
	for _, env := range []*types.ShardEnvelope{security, recovery} {
		shard := &types.Shard{
			WalletID:   walletID,
			Type:       env.Type,
			Nonce:      env.Nonce,
			Ciphertext: env.Ciphertext,
		}
		if err := r.CreateTx(ctx, db, shard); err != nil {
			return err
		}
	}
	return nil
}

// GetActive retrieves the single active shard of the given type
func (r *ShardRepository) GetActive(ctx context.Context, walletID uuid.UUID, shardType string) (*types.Shard, error) {
	return r.GetActiveTx(ctx, r.store.pool, walletID, shardType)
}

// GetActiveTx retrieves the active shard using the provided transaction
func (r *ShardRepository) GetActiveTx(ctx context.Context, db DBTX, walletID uuid.UUID, shardType string) (*types.Shard, error) {
	query := `
		SELECT id, wallet_id, type, nonce, ciphertext, active, created_at, deactivated_at
		FROM shards
		WHERE wallet_id = $1 AND type = $2 AND active
	`

	var shard types.Shard
	err := db.QueryRow(ctx, query, walletID, shardType).Scan(
		&shard.ID,
		&shard.WalletID,
		&shard.Type,
		&shard.Nonce,
		&shard.Ciphertext,
		&shard.Active,
		&shard.CreatedAt,
		&shard.DeactivatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active shard: %w", err)
	}

	return &shard, nil
}

// DeactivateTx soft-deactivates the active shard of a type. Rows are never
// deleted; the full shard history stays for audit.
func (r *ShardRepository) DeactivateTx(ctx context.Context, db DBTX, walletID uuid.UUID, shardType string) error {
	_, err := db.Exec(ctx, `
		UPDATE shards SET active = FALSE, deactivated_at = NOW()
		WHERE wallet_id = $1 AND type = $2 AND active
	`, walletID, shardType)
	if err != nil {
		return fmt.Errorf("failed to deactivate shard: %w", err)
	}
	return nil
}

// DeactivateAllTx soft-deactivates every active shard of a wallet.
// Used by re-sharding inside the same transaction that inserts the
// replacement set, so a failure leaves the previous set intact.
func (r *ShardRepository) DeactivateAllTx(ctx context.Context, db DBTX, walletID uuid.UUID) error {
	_, err := db.Exec(ctx, `
		UPDATE shards SET active = FALSE, deactivated_at = NOW()
		WHERE wallet_id = $1 AND active
	`, walletID)
	if err != nil {
		return fmt.Errorf("failed to deactivate shards: %w", err)
	}
	return nil
}

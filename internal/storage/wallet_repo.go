package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zivra/zivra-custody/pkg/types"
)

// WalletRepository handles wallet data operations
type WalletRepository struct {
	store *Store
}

// NewWalletRepository creates a new WalletRepository
func NewWalletRepository(store *Store) *WalletRepository {
	return &WalletRepository{store: store}
}

// Create creates a new wallet
func (r *WalletRepository) Create(ctx context.Context, wallet *types.Wallet) error {
	return r.CreateTx(ctx, r.store.pool, wallet)
}

// CreateTx creates a new wallet using the provided transaction or connection
func (r *WalletRepository) CreateTx(ctx context.Context, db DBTX, wallet *types.Wallet) error {
	addresses, err := json.Marshal(wallet.Addresses)
	if err != nil {
		return fmt.Errorf("failed to encode addresses: %w", err)
	}

	query := `
		INSERT INTO wallets (id, owner_id, public_key, master_public_key, addresses, key_epoch)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err = db.QueryRow(ctx, query,
		wallet.ID,
		wallet.OwnerID,
		wallet.PublicKey,
		wallet.MasterPublicKey,
		addresses,
		wallet.KeyEpoch,
	).Scan(&wallet.CreatedAt, &wallet.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

const walletColumns = `id, owner_id, public_key, master_public_key, addresses, key_epoch, created_at, updated_at`

func scanWallet(row pgx.Row) (*types.Wallet, error) {
	var wallet types.Wallet
	var addresses []byte

	err := row.Scan(
		&wallet.ID,
		&wallet.OwnerID,
		&wallet.PublicKey,
		&wallet.MasterPublicKey,
		&addresses,
		&wallet.KeyEpoch,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}

	if err := json.Unmarshal(addresses, &wallet.Addresses); err != nil {
		return nil, fmt.Errorf("failed to decode addresses: %w", err)
	}

	return &wallet, nil
}

// GetByID retrieves a wallet by ID
func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*types.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return scanWallet(r.store.pool.QueryRow(ctx, query, id))
}

// GetByOwnerID retrieves the wallet owned by a user (1:1)
func (r *WalletRepository) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*types.Wallet, error) {
	return r.GetByOwnerIDTx(ctx, r.store.pool, ownerID)
}

// GetByOwnerIDTx retrieves the wallet using the provided transaction
func (r *WalletRepository) GetByOwnerIDTx(ctx context.Context, db DBTX, ownerID uuid.UUID) (*types.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1`
	return scanWallet(db.QueryRow(ctx, query, ownerID))
}

// HasWallet checks whether the user already owns a wallet
func (r *WalletRepository) HasWallet(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	var exists bool
	err := r.store.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM wallets WHERE owner_id = $1)`, ownerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check wallet existence: %w", err)
	}
	return exists, nil
}

// BumpKeyEpochTx advances the wallet's key epoch as part of a re-sharding
// transaction. The expected epoch guards against concurrent re-keying.
func (r *WalletRepository) BumpKeyEpochTx(ctx context.Context, db DBTX, walletID uuid.UUID, expectedEpoch, newEpoch int) error {
	tag, err := db.Exec(ctx, `
		UPDATE wallets SET key_epoch = $3, updated_at = NOW()
		WHERE id = $1 AND key_epoch = $2
	`, walletID, expectedEpoch, newEpoch)
	if err != nil {
		return fmt.Errorf("failed to bump key epoch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("key epoch changed concurrently for wallet %s", walletID)
	}
	return nil
}

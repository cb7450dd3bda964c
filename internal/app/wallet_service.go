// Package app orchestrates the custody domain services behind the API
// boundary: wallet lifecycle, shard validation and status projections.
package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/zivra/zivra-custody/pkg/errors"
	"github.com/zivra/zivra-custody/pkg/shardexport"
	"github.com/zivra/zivra-custody/pkg/types"

	"github.com/zivra/zivra-custody/internal/custody"
	"github.com/zivra/zivra-custody/internal/logger"
	"github.com/zivra/zivra-custody/internal/metrics"
	"github.com/zivra/zivra-custody/internal/storage"
)

// WalletService handles wallet lifecycle operations
type WalletService struct {
	store   *storage.Store
	wallets *storage.WalletRepository
	shards  *storage.ShardRepository
	audit   *storage.AuditRepository
	custody *custody.Service
}

// NewWalletService creates a new wallet service
func NewWalletService(store *storage.Store, custodySvc *custody.Service) *WalletService {
	return &WalletService{
		store:   store,
		wallets: storage.NewWalletRepository(store),
		shards:  storage.NewShardRepository(store),
		audit:   storage.NewAuditRepository(store),
		custody: custodySvc,
	}
}

// CreateWalletResponse carries the new wallet and the hot shard. The hot
// shard appears in this response exactly once; the server keeps no copy.
// When the caller supplies a recipient key the shard is sealed to it and
// the plaintext field stays empty.
type CreateWalletResponse struct {
	Wallet         *types.Wallet            `json:"wallet"`
	HotShard       *types.ShardEnvelope     `json:"hot_shard,omitempty"`
	SealedHotShard *shardexport.SealedShard `json:"sealed_hot_shard,omitempty"`
}

// WalletStatus is the read-only wallet projection for the API.
type WalletStatus struct {
	WalletID        uuid.UUID         `json:"wallet_id"`
	MasterPublicKey string            `json:"master_public_key"`
	Addresses       map[string]string `json:"addresses"`
	KeyEpoch        int               `json:"key_epoch"`
	ShardTypes      []string          `json:"active_shard_types"`
}

// CreateWallet generates a key, shards it and persists the wallet with its
// server-held shards in one transaction. One wallet per owner. A non-empty
// recipientKey is a base64 P-256 public key; the hot shard is then sealed
// to it before leaving the process.
func (s *WalletService) CreateWallet(ctx context.Context, ownerID uuid.UUID, recipientKey string) (*CreateWalletResponse, error) {
	exists, err := s.wallets.HasWallet(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeConflict,
			"Owner already has a wallet", "", 409)
	}

	walletID := uuid.New()
	generated, err := s.custody.GenerateWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}

	wallet := &types.Wallet{
		ID:              walletID,
		OwnerID:         ownerID,
		PublicKey:       generated.PublicKey,
		MasterPublicKey: generated.MasterPublicKey,
		Addresses:       generated.Addresses,
		KeyEpoch:        generated.KeyEpoch,
	}

	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.wallets.CreateTx(ctx, tx, wallet); err != nil {
			return err
		}
		if err := s.shards.PersistSetTx(ctx, tx, walletID, generated.SecurityShard, generated.RecoveryShard); err != nil {
			return err
		}
		return s.audit.RecordTx(ctx, tx, ownerID, "wallet.created", map[string]any{
			"wallet_id": walletID,
			"addresses": generated.Addresses,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.WalletsCreated.Inc()
	logger.Info(ctx, "wallet created", "wallet_id", walletID, "owner_id", ownerID)

	resp := &CreateWalletResponse{Wallet: wallet}
	if recipientKey == "" {
		resp.HotShard = generated.HotShard
		return resp, nil
	}

	plaintext, err := json.Marshal(generated.HotShard)
	if err != nil {
		return nil, fmt.Errorf("failed to encode hot shard: %w", err)
	}
	sealed, err := shardexport.Seal(recipientKey, walletID.String(), plaintext)
	if err != nil {
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest,
			"Invalid recipient public key", err.Error(), 400)
	}
	resp.SealedHotShard = sealed
	return resp, nil
}

// GetWalletStatus returns the wallet projection for an owner
func (s *WalletService) GetWalletStatus(ctx context.Context, ownerID uuid.UUID) (*WalletStatus, error) {
	wallet, err := s.wallets.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, apperrors.WalletNotFound(ownerID.String())
	}

	var shardTypes []string
	for _, shardType := range []string{types.ShardTypeSecurity, types.ShardTypeRecovery} {
		shard, err := s.shards.GetActive(ctx, wallet.ID, shardType)
		if err != nil {
			return nil, err
		}
		if shard != nil {
			shardTypes = append(shardTypes, shardType)
		}
	}

	return &WalletStatus{
		WalletID:        wallet.ID,
		MasterPublicKey: wallet.MasterPublicKey,
		Addresses:       wallet.Addresses,
		KeyEpoch:        wallet.KeyEpoch,
		ShardTypes:      shardTypes,
	}, nil
}

// ValidateShard checks a client-held shard envelope against the owner's
// wallet without reconstructing any key.
func (s *WalletService) ValidateShard(ctx context.Context, ownerID uuid.UUID, env *types.ShardEnvelope) error {
	wallet, err := s.wallets.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return err
	}
	if wallet == nil {
		return apperrors.WalletNotFound(ownerID.String())
	}
	return s.custody.ValidateShard(ctx, wallet, env)
}

// Package custody implements key generation, threshold sharding and
// threshold signing. Private keys exist in plaintext only transiently:
// generated, split and sealed inside a single call, or reconstructed,
// used for one signature and zeroized.
package custody

import (
	"bytes"
	"context"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/zivra/zivra-custody/internal/chains"
	internalcrypto "github.com/zivra/zivra-custody/internal/crypto"
	"github.com/zivra/zivra-custody/internal/sealer"
	apperrors "github.com/zivra/zivra-custody/pkg/errors"
	"github.com/zivra/zivra-custody/pkg/types"
)

// Service implements the key custody operations
type Service struct {
	sealer sealer.Sealer
}

// NewService creates a new custody service
func NewService(s sealer.Sealer) *Service {
	return &Service{sealer: s}
}

// GeneratedWallet is the result of key generation and sharding.
// The hot shard is returned to the caller exactly once and is never
// persisted server-side; security and recovery shards go to the shard store.
type GeneratedWallet struct {
	PublicKey       []byte
	MasterPublicKey string
	Addresses       map[string]string
	KeyEpoch        int
	HotShard        *types.ShardEnvelope
	SecurityShard   *types.ShardEnvelope
	RecoveryShard   *types.ShardEnvelope
}

// shardAAD binds a sealed shard to its wallet, type and key epoch.
// Re-sharding bumps the epoch, so envelopes from a previous shard set
// fail integrity verification even though the underlying key is unchanged.
func shardAAD(walletID uuid.UUID, shardType string, epoch int) string {
	return fmt.Sprintf("%s|%s|%d", walletID, shardType, epoch)
}

// GenerateWallet generates a fresh signing key, splits it 2-of-3 and seals
// each shard independently.
func (s *Service) GenerateWallet(ctx context.Context, walletID uuid.UUID) (*GeneratedWallet, error) {
	priv, err := internalcrypto.GenerateSigningKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	keyBytes := internalcrypto.PrivateKeyToBytes(priv)
	defer internalcrypto.Zeroize(keyBytes)

	publicKey := internalcrypto.PublicKeyBytes(priv)

	addresses, err := chains.DeriveAddresses(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive addresses: %w", err)
	}

	const epoch = 1
	hot, security, recovery, err := s.splitAndSeal(ctx, walletID, keyBytes, epoch)
	if err != nil {
		return nil, err
	}

	return &GeneratedWallet{
		PublicKey:       publicKey,
		MasterPublicKey: internalcrypto.MasterFingerprint(publicKey),
		Addresses:       addresses,
		KeyEpoch:        epoch,
		HotShard:        hot,
		SecurityShard:   security,
		RecoveryShard:   recovery,
	}, nil
}

// splitAndSeal splits a key and seals each share for the given epoch
func (s *Service) splitAndSeal(ctx context.Context, walletID uuid.UUID, keyBytes []byte, epoch int) (hot, security, recovery *types.ShardEnvelope, err error) {
	set, err := internalcrypto.SplitKey(keyBytes)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to split key: %w", err)
	}
	defer internalcrypto.Zeroize(set.Hot)
	defer internalcrypto.Zeroize(set.Security)
	defer internalcrypto.Zeroize(set.Recovery)

	seal := func(shardType string, share []byte) (*types.ShardEnvelope, error) {
		nonce, ciphertext, err := s.sealer.Seal(ctx, shardAAD(walletID, shardType, epoch), share)
		if err != nil {
			return nil, apperrors.EncryptionFailed(fmt.Sprintf("seal %s shard: %v", shardType, err))
		}
		return &types.ShardEnvelope{
			WalletID:   walletID,
			Type:       shardType,
			Nonce:      nonce,
			Ciphertext: ciphertext,
		}, nil
	}

	if hot, err = seal(types.ShardTypeHot, set.Hot); err != nil {
		return nil, nil, nil, err
	}
	if security, err = seal(types.ShardTypeSecurity, set.Security); err != nil {
		return nil, nil, nil, err
	}
	if recovery, err = seal(types.ShardTypeRecovery, set.Recovery); err != nil {
		return nil, nil, nil, err
	}
	return hot, security, recovery, nil
}

// validateStructure checks the envelope shape without touching the sealer
func validateStructure(env *types.ShardEnvelope) error {
	if env == nil {
		return fmt.Errorf("shard envelope is nil")
	}
	if env.WalletID == uuid.Nil {
		return fmt.Errorf("shard envelope has no wallet id")
	}
	valid := false
	for _, t := range types.ShardTypes {
		if env.Type == t {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unknown shard type: %q", env.Type)
	}
	// A GCM-sealed 33-byte share carries at least a 16-byte tag
	if len(env.Ciphertext) < 33 {
		return fmt.Errorf("ciphertext too short: %d bytes", len(env.Ciphertext))
	}
	return nil
}

// ValidateShard performs a structural and integrity check of a shard
// envelope against the wallet's current key epoch. It never reconstructs
// a key; the unsealed share is discarded immediately.
func (s *Service) ValidateShard(ctx context.Context, wallet *types.Wallet, env *types.ShardEnvelope) error {
	if err := validateStructure(env); err != nil {
		return apperrors.InvalidShard(err.Error())
	}
	if env.WalletID != wallet.ID {
		return apperrors.InvalidShard("envelope is bound to a different wallet")
	}

	share, err := s.sealer.Unseal(ctx, shardAAD(env.WalletID, env.Type, wallet.KeyEpoch), env.Nonce, env.Ciphertext)
	if err != nil {
		return apperrors.InvalidShard("integrity verification failed")
	}
	defer internalcrypto.Zeroize(share)

	if err := internalcrypto.ValidateShareFormat(share); err != nil {
		return apperrors.InvalidShard(err.Error())
	}
	return nil
}

// CombineAndSign validates two shard envelopes, transiently reconstructs the
// wallet's private key, signs the canonical hash of payload and discards the
// key. The two shards must belong to the same wallet and be of different
// types; a reconstruction that does not match the wallet's public key fails.
func (s *Service) CombineAndSign(ctx context.Context, wallet *types.Wallet, shardA, shardB *types.ShardEnvelope, payload []byte) ([]byte, error) {
	if err := validateStructure(shardA); err != nil {
		return nil, apperrors.InvalidShard(err.Error())
	}
	if err := validateStructure(shardB); err != nil {
		return nil, apperrors.InvalidShard(err.Error())
	}

	if shardA.WalletID != shardB.WalletID || shardA.WalletID != wallet.ID {
		return nil, apperrors.ReconstructionFailed("shards belong to different wallets")
	}
	if shardA.Type == shardB.Type {
		return nil, apperrors.ReconstructionFailed(fmt.Sprintf("incompatible pair: two %s shards", shardA.Type))
	}

	shareA, err := s.sealer.Unseal(ctx, shardAAD(shardA.WalletID, shardA.Type, wallet.KeyEpoch), shardA.Nonce, shardA.Ciphertext)
	if err != nil {
		return nil, apperrors.InvalidShard("first shard failed integrity verification")
	}
	defer internalcrypto.Zeroize(shareA)

	shareB, err := s.sealer.Unseal(ctx, shardAAD(shardB.WalletID, shardB.Type, wallet.KeyEpoch), shardB.Nonce, shardB.Ciphertext)
	if err != nil {
		return nil, apperrors.InvalidShard("second shard failed integrity verification")
	}
	defer internalcrypto.Zeroize(shareB)

	keyBytes, err := internalcrypto.CombineShards(shareA, shareB)
	if err != nil {
		return nil, apperrors.ReconstructionFailed(err.Error())
	}
	defer internalcrypto.Zeroize(keyBytes)

	priv, err := internalcrypto.BytesToPrivateKey(keyBytes)
	if err != nil {
		return nil, apperrors.ReconstructionFailed("combined bytes are not a valid key")
	}

	if !bytes.Equal(internalcrypto.PublicKeyBytes(priv), wallet.PublicKey) {
		return nil, apperrors.ReconstructionFailed("reconstructed key does not match wallet")
	}

	digest := ethcrypto.Keccak256(payload)
	signature, err := internalcrypto.SignDigest(digest, priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	return signature, nil
}

// ReshardedSet is a fresh sealed shard set produced by re-keying
type ReshardedSet struct {
	KeyEpoch      int
	HotShard      *types.ShardEnvelope
	SecurityShard *types.ShardEnvelope
	RecoveryShard *types.ShardEnvelope
}

// Reshard reconstructs the wallet's original key from the given shard pair
// and re-splits it into a fresh (2,3) set under the next key epoch. The
// wallet's key, public key and addresses are preserved; every envelope of
// the previous epoch stops verifying.
func (s *Service) Reshard(ctx context.Context, wallet *types.Wallet, shardA, shardB *types.ShardEnvelope) (*ReshardedSet, error) {
	if err := validateStructure(shardA); err != nil {
		return nil, apperrors.InvalidShard(err.Error())
	}
	if err := validateStructure(shardB); err != nil {
		return nil, apperrors.InvalidShard(err.Error())
	}
	if shardA.WalletID != wallet.ID || shardB.WalletID != wallet.ID {
		return nil, apperrors.ReconstructionFailed("shards belong to different wallets")
	}
	if shardA.Type == shardB.Type {
		return nil, apperrors.ReconstructionFailed(fmt.Sprintf("incompatible pair: two %s shards", shardA.Type))
	}

	shareA, err := s.sealer.Unseal(ctx, shardAAD(shardA.WalletID, shardA.Type, wallet.KeyEpoch), shardA.Nonce, shardA.Ciphertext)
	if err != nil {
		return nil, apperrors.InvalidShard("first shard failed integrity verification")
	}
	defer internalcrypto.Zeroize(shareA)

	shareB, err := s.sealer.Unseal(ctx, shardAAD(shardB.WalletID, shardB.Type, wallet.KeyEpoch), shardB.Nonce, shardB.Ciphertext)
	if err != nil {
		return nil, apperrors.InvalidShard("second shard failed integrity verification")
	}
	defer internalcrypto.Zeroize(shareB)

	keyBytes, err := internalcrypto.CombineShards(shareA, shareB)
	if err != nil {
		return nil, apperrors.ReconstructionFailed(err.Error())
	}
	defer internalcrypto.Zeroize(keyBytes)

	priv, err := internalcrypto.BytesToPrivateKey(keyBytes)
	if err != nil {
		return nil, apperrors.ReconstructionFailed("combined bytes are not a valid key")
	}
	if !bytes.Equal(internalcrypto.PublicKeyBytes(priv), wallet.PublicKey) {
		return nil, apperrors.ReconstructionFailed("reconstructed key does not match wallet")
	}

	nextEpoch := wallet.KeyEpoch + 1
	hot, security, recovery, err := s.splitAndSeal(ctx, wallet.ID, keyBytes, nextEpoch)
	if err != nil {
		return nil, err
	}

	return &ReshardedSet{
		KeyEpoch:      nextEpoch,
		HotShard:      hot,
		SecurityShard: security,
		RecoveryShard: recovery,
	}, nil
}

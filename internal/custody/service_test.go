package custody

import (
	"context"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalcrypto "github.com/zivra/zivra-custody/internal/crypto"
	"github.com/zivra/zivra-custody/internal/sealer"
	apperrors "github.com/zivra/zivra-custody/pkg/errors"
	"github.com/zivra/zivra-custody/pkg/types"
)

const testMasterKey = "101112131415161718191a1b1c1d1e1f202122232425262728292a2b2c2d2e2f"

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := sealer.NewLocalSealer(testMasterKey)
	require.NoError(t, err)
	return NewService(s)
}

func generate(t *testing.T, svc *Service) (*types.Wallet, *GeneratedWallet) {
	t.Helper()
	walletID := uuid.New()
	gen, err := svc.GenerateWallet(context.Background(), walletID)
	require.NoError(t, err)

	wallet := &types.Wallet{
		ID:              walletID,
		OwnerID:         uuid.New(),
		PublicKey:       gen.PublicKey,
		MasterPublicKey: gen.MasterPublicKey,
		Addresses:       gen.Addresses,
		KeyEpoch:        gen.KeyEpoch,
		CreatedAt:       time.Now(),
	}
	return wallet, gen
}

func TestGenerateWallet(t *testing.T) {
	svc := newTestService(t)
	wallet, gen := generate(t, svc)

	assert.Len(t, gen.PublicKey, 65)
	assert.NotEmpty(t, gen.MasterPublicKey)
	assert.Len(t, gen.Addresses, 2)
	assert.Equal(t, 1, gen.KeyEpoch)

	for _, env := range []*types.ShardEnvelope{gen.HotShard, gen.SecurityShard, gen.RecoveryShard} {
		require.NotNil(t, env)
		assert.Equal(t, wallet.ID, env.WalletID)
		assert.NotEmpty(t, env.Ciphertext)
	}

	assert.Equal(t, types.ShardTypeHot, gen.HotShard.Type)
	assert.Equal(t, types.ShardTypeSecurity, gen.SecurityShard.Type)
	assert.Equal(t, types.ShardTypeRecovery, gen.RecoveryShard.Type)
}

func TestValidateShard(t *testing.T) {
	svc := newTestService(t)
	wallet, gen := generate(t, svc)
	ctx := context.Background()

	t.Run("valid shard", func(t *testing.T) {
		require.NoError(t, svc.ValidateShard(ctx, wallet, gen.HotShard))
	})

	t.Run("nil envelope", func(t *testing.T) {
		err := svc.ValidateShard(ctx, wallet, nil)
		appErr, ok := apperrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeInvalidShard, appErr.Code)
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		bad := *gen.HotShard
		bad.Ciphertext = append([]byte(nil), gen.HotShard.Ciphertext...)
		bad.Ciphertext[5] ^= 0xff
		err := svc.ValidateShard(ctx, wallet, &bad)
		appErr, ok := apperrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeInvalidShard, appErr.Code)
	})

	t.Run("wrong wallet", func(t *testing.T) {
		otherWallet, _ := generate(t, svc)
		err := svc.ValidateShard(ctx, otherWallet, gen.HotShard)
		appErr, ok := apperrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeInvalidShard, appErr.Code)
	})

	t.Run("unknown type", func(t *testing.T) {
		bad := *gen.HotShard
		bad.Type = "warm"
		err := svc.ValidateShard(ctx, wallet, &bad)
		appErr, ok := apperrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeInvalidShard, appErr.Code)
	})
}

func TestCombineAndSign(t *testing.T) {
	svc := newTestService(t)
	wallet, gen := generate(t, svc)
	ctx := context.Background()
	payload := []byte(`{"to":"0xabc","value":"100"}`)

	t.Run("hot+security signs", func(t *testing.T) {
		sig, err := svc.CombineAndSign(ctx, wallet, gen.HotShard, gen.SecurityShard, payload)
		require.NoError(t, err)
		require.Len(t, sig, 65)

		digest := ethcrypto.Keccak256(payload)
		assert.True(t, internalcrypto.VerifyDigest(digest, sig, wallet.PublicKey))
	})

	t.Run("recovery+security signs", func(t *testing.T) {
		sig, err := svc.CombineAndSign(ctx, wallet, gen.RecoveryShard, gen.SecurityShard, payload)
		require.NoError(t, err)
		require.Len(t, sig, 65)
	})

	t.Run("same-type pair fails", func(t *testing.T) {
		_, err := svc.CombineAndSign(ctx, wallet, gen.HotShard, gen.HotShard, payload)
		appErr, ok := apperrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeReconstruction, appErr.Code)
	})

	t.Run("cross-wallet pair fails", func(t *testing.T) {
		_, otherGen := generate(t, svc)
		_, err := svc.CombineAndSign(ctx, wallet, gen.HotShard, otherGen.SecurityShard, payload)
		appErr, ok := apperrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeReconstruction, appErr.Code)
	})

	t.Run("tampered shard fails before signing", func(t *testing.T) {
		bad := *gen.HotShard
		bad.Ciphertext = append([]byte(nil), gen.HotShard.Ciphertext...)
		bad.Ciphertext[0] ^= 0x01
		_, err := svc.CombineAndSign(ctx, wallet, &bad, gen.SecurityShard, payload)
		appErr, ok := apperrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeInvalidShard, appErr.Code)
	})
}

func TestReshard(t *testing.T) {
	svc := newTestService(t)
	wallet, gen := generate(t, svc)
	ctx := context.Background()
	payload := []byte("spend after recovery")

	resharded, err := svc.Reshard(ctx, wallet, gen.RecoveryShard, gen.SecurityShard)
	require.NoError(t, err)
	assert.Equal(t, wallet.KeyEpoch+1, resharded.KeyEpoch)

	// Simulate the atomic swap: wallet now carries the new epoch
	rekeyed := *wallet
	rekeyed.KeyEpoch = resharded.KeyEpoch

	t.Run("new pair signs and key is preserved", func(t *testing.T) {
		sig, err := svc.CombineAndSign(ctx, &rekeyed, resharded.HotShard, resharded.SecurityShard, payload)
		require.NoError(t, err)

		digest := ethcrypto.Keccak256(payload)
		assert.True(t, internalcrypto.VerifyDigest(digest, sig, wallet.PublicKey),
			"resharded wallet must keep its original key and address")
	})

	t.Run("old hot+security pair is dead", func(t *testing.T) {
		_, err := svc.CombineAndSign(ctx, &rekeyed, gen.HotShard, gen.SecurityShard, payload)
		appErr, ok := apperrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeInvalidShard, appErr.Code)
	})

	t.Run("old shard fails validation", func(t *testing.T) {
		err := svc.ValidateShard(ctx, &rekeyed, gen.HotShard)
		require.Error(t, err)
	})
}

package sealer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMasterKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestNewLocalSealer(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		s, err := NewLocalSealer(testMasterKey)
		require.NoError(t, err)
		assert.Equal(t, "local", s.Provider())
	})

	t.Run("empty key", func(t *testing.T) {
		_, err := NewLocalSealer("")
		require.Error(t, err)
	})

	t.Run("non-hex key", func(t *testing.T) {
		_, err := NewLocalSealer("not-hex")
		require.Error(t, err)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := NewLocalSealer("deadbeef")
		require.Error(t, err)
	})
}

func TestLocalSealerRoundTrip(t *testing.T) {
	s, err := NewLocalSealer(testMasterKey)
	require.NoError(t, err)

	ctx := context.Background()
	plaintext := []byte("shard material")
	aad := "wallet-1|security"

	nonce, ciphertext, err := s.Seal(ctx, aad, plaintext)
	require.NoError(t, err)
	require.Len(t, nonce, 12)
	require.NotEqual(t, plaintext, ciphertext)

	got, err := s.Unseal(ctx, aad, nonce, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestLocalSealerRejectsTampering(t *testing.T) {
	s, err := NewLocalSealer(testMasterKey)
	require.NoError(t, err)

	ctx := context.Background()
	nonce, ciphertext, err := s.Seal(ctx, "wallet-1|hot", []byte("shard material"))
	require.NoError(t, err)

	t.Run("flipped ciphertext bit", func(t *testing.T) {
		tampered := append([]byte(nil), ciphertext...)
		tampered[0] ^= 0x01
		_, err := s.Unseal(ctx, "wallet-1|hot", nonce, tampered)
		require.Error(t, err)
	})

	t.Run("wrong associated data", func(t *testing.T) {
		_, err := s.Unseal(ctx, "wallet-2|hot", nonce, ciphertext)
		require.Error(t, err)
	})

	t.Run("wrong nonce size", func(t *testing.T) {
		_, err := s.Unseal(ctx, "wallet-1|hot", nonce[:8], ciphertext)
		require.Error(t, err)
	})
}

func TestLocalSealerDerivesDistinctKeysPerContext(t *testing.T) {
	s, err := NewLocalSealer(testMasterKey)
	require.NoError(t, err)

	ctx := context.Background()
	plaintext := []byte("same shard bytes")

	nonceA, ctA, err := s.Seal(ctx, "wallet-1|hot", plaintext)
	require.NoError(t, err)
	_, _, err = s.Seal(ctx, "wallet-1|security", plaintext)
	require.NoError(t, err)

	// A ciphertext sealed for one context never opens under another
	_, err = s.Unseal(ctx, "wallet-1|security", nonceA, ctA)
	require.Error(t, err)
}

func TestNewSelectsProvider(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		s, err := New(&Config{Provider: "local", LocalMasterKeyHex: testMasterKey})
		require.NoError(t, err)
		assert.Equal(t, "local", s.Provider())
	})

	t.Run("default is local", func(t *testing.T) {
		s, err := New(&Config{LocalMasterKeyHex: testMasterKey})
		require.NoError(t, err)
		assert.Equal(t, "local", s.Provider())
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(&Config{Provider: "hsm"})
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "unsupported"))
	})

	t.Run("aws-kms requires key and region", func(t *testing.T) {
		_, err := New(&Config{Provider: "aws-kms"})
		require.Error(t, err)
	})

	t.Run("vault requires address token and key", func(t *testing.T) {
		_, err := New(&Config{Provider: "vault"})
		require.Error(t, err)
	})
}

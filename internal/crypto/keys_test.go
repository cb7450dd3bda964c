package crypto

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyRoundTrip(t *testing.T) {
	priv, err := GenerateSigningKey()
	require.NoError(t, err)

	raw := PrivateKeyToBytes(priv)
	require.Len(t, raw, 32)

	back, err := BytesToPrivateKey(raw)
	require.NoError(t, err)
	assert.Equal(t, PublicKeyBytes(priv), PublicKeyBytes(back))
}

func TestMasterFingerprintDeterministic(t *testing.T) {
	priv, err := GenerateSigningKey()
	require.NoError(t, err)

	pub := PublicKeyBytes(priv)
	fp1 := MasterFingerprint(pub)
	fp2 := MasterFingerprint(pub)

	assert.Equal(t, fp1, fp2)
	assert.Contains(t, fp1, "zmk1")

	other, err := GenerateSigningKey()
	require.NoError(t, err)
	assert.NotEqual(t, fp1, MasterFingerprint(PublicKeyBytes(other)))
}

func TestSignAndVerifyDigest(t *testing.T) {
	priv, err := GenerateSigningKey()
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("transfer 100 ZIV"))

	sig, err := SignDigest(digest[:], priv)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	assert.True(t, VerifyDigest(digest[:], sig, PublicKeyBytes(priv)))

	// Wrong digest fails
	wrong := sha256.Sum256([]byte("transfer 101 ZIV"))
	assert.False(t, VerifyDigest(wrong[:], sig, PublicKeyBytes(priv)))

	// Wrong key fails
	other, err := GenerateSigningKey()
	require.NoError(t, err)
	assert.False(t, VerifyDigest(digest[:], sig, PublicKeyBytes(other)))
}

func TestSignDigestRejectsBadLength(t *testing.T) {
	priv, err := GenerateSigningKey()
	require.NoError(t, err)

	_, err = SignDigest([]byte("short"), priv)
	require.Error(t, err)
}

func TestZeroize(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zeroize(b)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)
}

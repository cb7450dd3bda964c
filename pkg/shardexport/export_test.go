package shardexport

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	priv, pub, err := GenerateRecipientKeyPair()
	require.NoError(t, err)

	pubB64 := base64.StdEncoding.EncodeToString(pub.Bytes())
	plaintext := []byte(`{"index":1,"data":"c2hhcmQ="}`)

	sealed, err := Seal(pubB64, "wallet-1", plaintext)
	require.NoError(t, err)
	assert.Equal(t, "hpke-p256", sealed.Scheme)
	assert.NotEmpty(t, sealed.EncapsulatedKey)

	opened, err := Open(priv, "wallet-1", sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenRejectsWrongWallet(t *testing.T) {
	priv, pub, err := GenerateRecipientKeyPair()
	require.NoError(t, err)

	pubB64 := base64.StdEncoding.EncodeToString(pub.Bytes())
	sealed, err := Seal(pubB64, "wallet-1", []byte("shard"))
	require.NoError(t, err)

	_, err = Open(priv, "wallet-2", sealed)
	assert.Error(t, err)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	_, pub, err := GenerateRecipientKeyPair()
	require.NoError(t, err)
	otherPriv, _, err := GenerateRecipientKeyPair()
	require.NoError(t, err)

	pubB64 := base64.StdEncoding.EncodeToString(pub.Bytes())
	sealed, err := Seal(pubB64, "wallet-1", []byte("shard"))
	require.NoError(t, err)

	_, err = Open(otherPriv, "wallet-1", sealed)
	assert.Error(t, err)
}

func TestSealRejectsGarbageKey(t *testing.T) {
	_, err := Seal("not-base64!!", "wallet-1", []byte("shard"))
	assert.Error(t, err)

	_, err = Seal(base64.StdEncoding.EncodeToString([]byte("short")), "wallet-1", []byte("shard"))
	assert.Error(t, err)
}

func TestEachSealIsUnique(t *testing.T) {
	_, pub, err := GenerateRecipientKeyPair()
	require.NoError(t, err)

	pubB64 := base64.StdEncoding.EncodeToString(pub.Bytes())
	a, err := Seal(pubB64, "wallet-1", []byte("shard"))
	require.NoError(t, err)
	b, err := Seal(pubB64, "wallet-1", []byte("shard"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
	assert.NotEqual(t, a.EncapsulatedKey, b.EncapsulatedKey)
}

package crypto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestSplitKey(t *testing.T) {
	key := randomKey(t)

	set, err := SplitKey(key)
	require.NoError(t, err)

	require.NotEmpty(t, set.Hot)
	require.NotEmpty(t, set.Security)
	require.NotEmpty(t, set.Recovery)

	// No share equals the raw key
	assert.NotEqual(t, key, set.Hot)
	assert.NotEqual(t, key, set.Security)
	assert.NotEqual(t, key, set.Recovery)
}

func TestSplitKeyEmpty(t *testing.T) {
	_, err := SplitKey(nil)
	require.Error(t, err)
}

func TestCombineShards_AnyTwoReconstruct(t *testing.T) {
	key := randomKey(t)

	set, err := SplitKey(key)
	require.NoError(t, err)

	pairs := map[string][2][]byte{
		"hot+security":      {set.Hot, set.Security},
		"hot+recovery":      {set.Hot, set.Recovery},
		"security+recovery": {set.Security, set.Recovery},
	}

	for name, pair := range pairs {
		t.Run(name, func(t *testing.T) {
			got, err := CombineShards(pair[0], pair[1])
			require.NoError(t, err)
			assert.Equal(t, key, got)
		})
	}
}

func TestCombineShards_SingleShareFails(t *testing.T) {
	key := randomKey(t)

	set, err := SplitKey(key)
	require.NoError(t, err)

	_, err = CombineShards(set.Hot, nil)
	require.Error(t, err)
}

func TestCombineShards_CrossWalletSharesDoNotReconstruct(t *testing.T) {
	keyA := randomKey(t)
	keyB := randomKey(t)

	setA, err := SplitKey(keyA)
	require.NoError(t, err)
	setB, err := SplitKey(keyB)
	require.NoError(t, err)

	// Interpolating shares from two unrelated splits yields neither key.
	// The custody layer detects this via the public key comparison.
	got, err := CombineShards(setA.Hot, setB.Security)
	if err == nil {
		assert.NotEqual(t, keyA, got)
		assert.NotEqual(t, keyB, got)
	}
}

func TestValidateShareFormat(t *testing.T) {
	key := randomKey(t)
	set, err := SplitKey(key)
	require.NoError(t, err)

	assert.NoError(t, ValidateShareFormat(set.Hot))
	assert.Error(t, ValidateShareFormat(nil))
	assert.Error(t, ValidateShareFormat(make([]byte, 8)))
}

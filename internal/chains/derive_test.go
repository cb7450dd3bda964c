package chains

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalcrypto "github.com/zivra/zivra-custody/internal/crypto"
	"github.com/zivra/zivra-custody/pkg/types"
)

func TestDeriveAddressesDeterministic(t *testing.T) {
	priv, err := internalcrypto.GenerateSigningKey()
	require.NoError(t, err)
	pub := internalcrypto.PublicKeyBytes(priv)

	first, err := DeriveAddresses(pub)
	require.NoError(t, err)
	second, err := DeriveAddresses(pub)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDeriveAddressesFamilies(t *testing.T) {
	priv, err := internalcrypto.GenerateSigningKey()
	require.NoError(t, err)
	pub := internalcrypto.PublicKeyBytes(priv)

	addrs, err := DeriveAddresses(pub)
	require.NoError(t, err)
	require.Len(t, addrs, 2)

	account := addrs[types.ChainFamilyAccount]
	ledger := addrs[types.ChainFamilyLedger]

	assert.True(t, strings.HasPrefix(account, "0x"), "account address should be hex: %s", account)
	assert.Len(t, account, 42)

	assert.False(t, strings.HasPrefix(ledger, "0x"), "ledger address should be base58check: %s", ledger)
	assert.NotEmpty(t, ledger)

	assert.NotEqual(t, account, ledger)
}

func TestDeriveAddressesDistinctKeys(t *testing.T) {
	privA, err := internalcrypto.GenerateSigningKey()
	require.NoError(t, err)
	privB, err := internalcrypto.GenerateSigningKey()
	require.NoError(t, err)

	addrsA, err := DeriveAddresses(internalcrypto.PublicKeyBytes(privA))
	require.NoError(t, err)
	addrsB, err := DeriveAddresses(internalcrypto.PublicKeyBytes(privB))
	require.NoError(t, err)

	assert.NotEqual(t, addrsA[types.ChainFamilyAccount], addrsB[types.ChainFamilyAccount])
	assert.NotEqual(t, addrsA[types.ChainFamilyLedger], addrsB[types.ChainFamilyLedger])
}

func TestDeriveAddressesInvalidKey(t *testing.T) {
	_, err := DeriveAddresses([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestAddressForFamily(t *testing.T) {
	priv, err := internalcrypto.GenerateSigningKey()
	require.NoError(t, err)
	pub := internalcrypto.PublicKeyBytes(priv)

	addr, err := AddressForFamily(pub, types.ChainFamilyAccount)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(addr, "0x"))

	_, err = AddressForFamily(pub, "cosmos")
	require.Error(t, err)
}

// Package chains derives per-chain addresses from a wallet public key.
// Derivation is pure and deterministic: the same public key always yields
// the same address map, with no I/O and no side effects.
package chains

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/zivra/zivra-custody/pkg/types"
)

// DeriveAddresses maps an uncompressed secp256k1 public key to an address
// per supported chain family.
func DeriveAddresses(publicKey []byte) (map[string]string, error) {
	pub, err := crypto.UnmarshalPubkey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}

	account := crypto.PubkeyToAddress(*pub).Hex()

	ledger, err := deriveLedgerAddress(crypto.CompressPubkey(pub))
	if err != nil {
		return nil, err
	}

	return map[string]string{
		types.ChainFamilyAccount: account,
		types.ChainFamilyLedger:  ledger,
	}, nil
}

// deriveLedgerAddress builds a base58check P2PKH address from a compressed
// public key, the ledger-family encoding.
func deriveLedgerAddress(compressedPub []byte) (string, error) {
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(compressedPub), &chaincfg.MainNetParams)
	if err != nil {
		return "", fmt.Errorf("failed to derive ledger address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// AddressForFamily derives the address for a single chain family.
func AddressForFamily(publicKey []byte, family string) (string, error) {
	addrs, err := DeriveAddresses(publicKey)
	if err != nil {
		return "", err
	}
	addr, ok := addrs[family]
	if !ok {
		return "", fmt.Errorf("unsupported chain family: %s", family)
	}
	return addr, nil
}

// SupportedFamilies lists the chain families with a derivation algorithm.
func SupportedFamilies() []string {
	return []string{types.ChainFamilyAccount, types.ChainFamilyLedger}
}

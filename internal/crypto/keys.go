package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// GenerateSigningKey generates a new secp256k1 signing key
func GenerateSigningKey() (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return privateKey, nil
}

// PublicKeyBytes returns the uncompressed public key point
func PublicKeyBytes(privateKey *ecdsa.PrivateKey) []byte {
	return crypto.FromECDSAPub(&privateKey.PublicKey)
}

// PrivateKeyToBytes converts a private key to its 32-byte scalar form
func PrivateKeyToBytes(privateKey *ecdsa.PrivateKey) []byte {
	return crypto.FromECDSA(privateKey)
}

// BytesToPrivateKey converts 32 scalar bytes back to a private key
func BytesToPrivateKey(b []byte) (*ecdsa.PrivateKey, error) {
	return crypto.ToECDSA(b)
}

// MasterFingerprint derives the stable key fingerprint published as the
// wallet's master public key. It survives re-sharding because recovery
// reconstructs the original key rather than minting a new one.
func MasterFingerprint(publicKey []byte) string {
	sum := sha256.Sum256(publicKey)
	return "zmk1" + hex.EncodeToString(sum[:16])
}

// SignDigest signs a 32-byte digest and returns the 65-byte [R||S||V] signature
func SignDigest(digest []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	sig, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	return sig, nil
}

// VerifyDigest checks a 65-byte signature against a digest and an
// uncompressed public key. The recovery byte is ignored.
func VerifyDigest(digest, signature, publicKey []byte) bool {
	if len(signature) != 65 {
		return false
	}
	return crypto.VerifySignature(publicKey, digest, signature[:64])
}

// Zeroize overwrites sensitive byte material in place
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

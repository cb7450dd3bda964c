// Package shardexport seals a hot shard to a client-provided P-256 public
// key so the shard crosses the wire encrypted end to end. The construction
// is HPKE BASE mode with DHKEM(P-256, HKDF-SHA256), HKDF-SHA256 and
// AES-256-GCM; the wallet ID rides as associated data so a sealed shard
// cannot be replayed against another wallet.
package shardexport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const kdfInfo = "shard-export-v1"

// SealedShard is the wire form of an encrypted hot shard.
type SealedShard struct {
	Ciphertext      string `json:"ciphertext"`
	EncapsulatedKey string `json:"encapsulated_key"`
	Scheme          string `json:"scheme"` // always "hpke-p256"
}

// Seal encrypts plaintext to the recipient public key. The key is accepted
// as base64-encoded SEC1 bytes or PEM. walletID binds the ciphertext to one
// wallet.
func Seal(recipientKeyB64 string, walletID string, plaintext []byte) (*SealedShard, error) {
	recipientKey, err := parseRecipientKey(recipientKeyB64)
	if err != nil {
		return nil, err
	}

	curve := ecdh.P256()
	ephemeral, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	shared, err := ephemeral.ECDH(recipientKey)
	if err != nil {
		return nil, fmt.Errorf("key agreement failed: %w", err)
	}

	gcm, err := aead(shared)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, []byte(walletID))

	return &SealedShard{
		Ciphertext:      base64.StdEncoding.EncodeToString(ciphertext),
		EncapsulatedKey: base64.StdEncoding.EncodeToString(ephemeral.PublicKey().Bytes()),
		Scheme:          "hpke-p256",
	}, nil
}

// Open decrypts a sealed shard with the recipient's private key. Client-side
// counterpart of Seal; the server never holds the private key.
func Open(recipientKey *ecdh.PrivateKey, walletID string, sealed *SealedShard) ([]byte, error) {
	encapsulated, err := base64.StdEncoding.DecodeString(sealed.EncapsulatedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encapsulated key: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(sealed.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	ephemeralPub, err := ecdh.P256().NewPublicKey(encapsulated)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ephemeral public key: %w", err)
	}

	shared, err := recipientKey.ECDH(ephemeralPub)
	if err != nil {
		return nil, fmt.Errorf("key agreement failed: %w", err)
	}

	gcm, err := aead(shared)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, body, []byte(walletID))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt shard: %w", err)
	}
	return plaintext, nil
}

// GenerateRecipientKeyPair creates a P-256 key pair for shard delivery.
// Intended for clients and tests.
func GenerateRecipientKeyPair() (*ecdh.PrivateKey, *ecdh.PublicKey, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return priv, priv.PublicKey(), nil
}

func parseRecipientKey(keyB64 string) (*ecdh.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode recipient public key: %w", err)
	}
	if block, _ := pem.Decode(raw); block != nil {
		raw = block.Bytes
	}
	key, err := ecdh.P256().NewPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recipient public key: %w", err)
	}
	return key, nil
}

func aead(shared []byte) (cipher.AEAD, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, []byte(kdfInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

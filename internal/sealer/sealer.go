// Package sealer provides authenticated encryption for key shards at rest
// and in transit. Every shard is sealed independently, bound to its wallet
// and shard type through associated data, so a shard moved between wallets
// fails integrity verification before any reconstruction is attempted.
package sealer

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Sealer is the interface for shard sealing backends.
// The aad string binds a ciphertext to its context (wallet ID + shard type);
// unsealing with different associated data must fail.
type Sealer interface {
	// Seal encrypts plaintext bound to aad. The returned nonce may be nil
	// for backends that manage nonces internally.
	Seal(ctx context.Context, aad string, plaintext []byte) (nonce, ciphertext []byte, err error)

	// Unseal decrypts and verifies a ciphertext previously produced by Seal
	Unseal(ctx context.Context, aad string, nonce, ciphertext []byte) ([]byte, error)

	// Provider returns the backend name ("local", "aws-kms", "vault")
	Provider() string
}

// Config contains configuration for sealing backends
type Config struct {
	// Provider selects the backend
	Provider string

	// Local backend
	LocalMasterKeyHex string

	// AWS KMS backend
	AWSKMSKeyID  string
	AWSKMSRegion string

	// Vault Transit backend
	VaultAddress    string
	VaultToken      string
	VaultTransitKey string
}

// New creates a Sealer based on the configuration
func New(cfg *Config) (Sealer, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocalSealer(cfg.LocalMasterKeyHex)
	case "aws-kms":
		return NewAWSKMSSealer(cfg.AWSKMSKeyID, cfg.AWSKMSRegion)
	case "vault":
		return NewVaultSealer(cfg.VaultAddress, cfg.VaultToken, cfg.VaultTransitKey)
	default:
		return nil, fmt.Errorf("unsupported sealer provider: %s (supported: local, aws-kms, vault)", cfg.Provider)
	}
}

// LocalSealer implements Sealer with AES-256-GCM under keys derived from a
// master key via HKDF-SHA256, one derived key per associated-data context.
// Suitable for development or simple self-hosted deployments.
type LocalSealer struct {
	masterKey []byte
}

// NewLocalSealer creates a new local sealer from a hex-encoded 32-byte key
func NewLocalSealer(masterKeyHex string) (*LocalSealer, error) {
	if masterKeyHex == "" {
		return nil, fmt.Errorf("master key is required for local sealer")
	}

	masterKey, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("master key must be hex-encoded: %w", err)
	}
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(masterKey))
	}

	return &LocalSealer{masterKey: masterKey}, nil
}

// deriveKey derives a per-context AES key from the master key
func (s *LocalSealer) deriveKey(aad string) ([]byte, error) {
	reader := hkdf.New(sha256.New, s.masterKey, nil, []byte(aad))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive sealing key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext with AES-256-GCM, authenticating the aad
func (s *LocalSealer) Seal(ctx context.Context, aad string, plaintext []byte) ([]byte, []byte, error) {
	key, err := s.deriveKey(aad)
	if err != nil {
		return nil, nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, []byte(aad))
	return nonce, ciphertext, nil
}

// Unseal decrypts an AES-256-GCM ciphertext, verifying the aad binding
func (s *LocalSealer) Unseal(ctx context.Context, aad string, nonce, ciphertext []byte) ([]byte, error) {
	key, err := s.deriveKey(aad)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("invalid nonce size: expected %d, got %d", gcm.NonceSize(), len(nonce))
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(aad))
	if err != nil {
		return nil, fmt.Errorf("failed to unseal: %w", err)
	}

	return plaintext, nil
}

// Provider returns the backend name
func (s *LocalSealer) Provider() string {
	return "local"
}

// Ensure backends implement Sealer
var (
	_ Sealer = (*LocalSealer)(nil)
	_ Sealer = (*AWSKMSSealer)(nil)
	_ Sealer = (*VaultSealer)(nil)
)

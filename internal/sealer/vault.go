package sealer

import (
	"context"
	"encoding/base64"
	"fmt"

	vault "github.com/hashicorp/vault/api"
)

// VaultSealer implements Sealer using the HashiCorp Vault Transit engine.
// Associated data rides on the transit AEAD associated_data parameter.
type VaultSealer struct {
	transitKey string
	client     *vault.Client
}

// NewVaultSealer creates a new Vault Transit sealer
func NewVaultSealer(address, token, transitKey string) (*VaultSealer, error) {
	if address == "" {
		return nil, fmt.Errorf("Vault address is required")
	}
	if token == "" {
		return nil, fmt.Errorf("Vault token is required")
	}
	if transitKey == "" {
		return nil, fmt.Errorf("Vault transit key name is required")
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(token)

	return &VaultSealer{
		transitKey: transitKey,
		client:     client,
	}, nil
}

// Seal encrypts data using the Vault Transit engine. Transit manages
// nonces internally, so the returned nonce is nil.
func (s *VaultSealer) Seal(ctx context.Context, aad string, plaintext []byte) ([]byte, []byte, error) {
	path := fmt.Sprintf("transit/encrypt/%s", s.transitKey)
	secret, err := s.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"plaintext":       base64.StdEncoding.EncodeToString(plaintext),
		"associated_data": base64.StdEncoding.EncodeToString([]byte(aad)),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("Vault Transit encrypt failed: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, nil, fmt.Errorf("Vault Transit encrypt returned empty response")
	}

	ciphertext, ok := secret.Data["ciphertext"].(string)
	if !ok {
		return nil, nil, fmt.Errorf("Vault Transit encrypt: ciphertext not found in response")
	}

	// The ciphertext is a vault:v1:... string
	return nil, []byte(ciphertext), nil
}

// Unseal decrypts data using the Vault Transit engine
func (s *VaultSealer) Unseal(ctx context.Context, aad string, nonce, ciphertext []byte) ([]byte, error) {
	path := fmt.Sprintf("transit/decrypt/%s", s.transitKey)
	secret, err := s.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"ciphertext":      string(ciphertext),
		"associated_data": base64.StdEncoding.EncodeToString([]byte(aad)),
	})
	if err != nil {
		return nil, fmt.Errorf("Vault Transit decrypt failed: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("Vault Transit decrypt returned empty response")
	}

	plaintextB64, ok := secret.Data["plaintext"].(string)
	if !ok {
		return nil, fmt.Errorf("Vault Transit decrypt: plaintext not found in response")
	}

	plaintext, err := base64.StdEncoding.DecodeString(plaintextB64)
	if err != nil {
		return nil, fmt.Errorf("Vault Transit decrypt: failed to decode plaintext: %w", err)
	}

	return plaintext, nil
}

// Provider returns the backend name
func (s *VaultSealer) Provider() string {
	return "vault"
}

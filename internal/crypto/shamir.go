package crypto

import (
	"fmt"

	"github.com/hashicorp/vault/shamir"
)

const (
	// Threshold is the minimum number of shards required to reconstruct the key
	Threshold = 2
	// TotalShards is the total number of shards generated per wallet
	TotalShards = 3
)

// ShardSet holds the three plaintext shares of a (2,3) split.
// Any two reconstruct the key; any single share is individually uninformative.
type ShardSet struct {
	// Hot is returned to the client once and never persisted server-side
	Hot []byte

	// Security stays with the custody server, sealed at rest
	Security []byte

	// Recovery is reserved for guardian-assisted re-keying, sealed at rest
	Recovery []byte
}

// SplitKey splits a private key scalar into a (2,3) Shamir share set
func SplitKey(key []byte) (*ShardSet, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("key cannot be empty")
	}

	shares, err := shamir.Split(key, TotalShards, Threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to split key: %w", err)
	}

	return &ShardSet{
		Hot:      shares[0],
		Security: shares[1],
		Recovery: shares[2],
	}, nil
}

// CombineShards reconstructs the original key from any two distinct shares
func CombineShards(shareA, shareB []byte) ([]byte, error) {
	if len(shareA) == 0 || len(shareB) == 0 {
		return nil, fmt.Errorf("both shares are required")
	}

	key, err := shamir.Combine([][]byte{shareA, shareB})
	if err != nil {
		return nil, fmt.Errorf("failed to combine shares: %w", err)
	}

	return key, nil
}

// ValidateShareFormat checks if a plaintext share appears structurally valid.
// It does not prove the share belongs to any particular wallet.
func ValidateShareFormat(share []byte) error {
	if len(share) == 0 {
		return fmt.Errorf("share cannot be empty")
	}
	// Shamir shares carry a 1-byte index suffix on top of the share data,
	// so a share of a 32-byte private key is at least 33 bytes
	if len(share) < 33 {
		return fmt.Errorf("share too short: expected at least 33 bytes, got %d", len(share))
	}
	return nil
}

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAppError(t *testing.T) {
	appErr := WalletNotFound("owner-1")

	got, ok := IsAppError(appErr)
	require.True(t, ok)
	assert.Equal(t, appErr.Code, got.Code)

	wrapped := fmt.Errorf("handling request: %w", appErr)
	got, ok = IsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, appErr.Code, got.Code)

	_, ok = IsAppError(errors.New("plain"))
	assert.False(t, ok)
}

func TestPolicyDeniedCarriesViolations(t *testing.T) {
	err := PolicyDenied([]string{
		"daily_limit (a1): daily spending limit exceeded",
		"whitelist (b2): recipient not whitelisted",
	})

	assert.Equal(t, "policy_denied", err.Code)
	assert.Equal(t, 403, err.StatusCode)
	assert.Contains(t, err.Detail, "daily_limit")
	assert.Contains(t, err.Detail, "whitelist")
}

func TestConstructorStatusCodes(t *testing.T) {
	tests := []struct {
		err  *AppError
		code string
		http int
	}{
		{InvalidShard("bad envelope"), "invalid_shard", 400},
		{InvalidPolicyType("velocity"), "invalid_policy_type", 400},
		{DuplicatePolicy("daily_limit"), "duplicate_policy", 409},
		{MaxGuardiansReached(5), "max_guardians_reached", 409},
		{NotAuthorizedGuardian("g1"), "not_authorized_guardian", 403},
		{DuplicateVote("g1"), "duplicate_vote", 409},
		{InsufficientGuardians(1, 2), "insufficient_guardians", 412},
		{RecoveryInProgress("o1"), "recovery_in_progress", 409},
		{RecoveryNotFound("r1"), "recovery_not_found", 404},
		{ChainNotSupported("utxo"), "chain_not_supported", 400},
		{ProofRejected("stale"), "proof_rejected", 401},
		{WalletNotFound("o1"), "not_found", 404},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.http, tt.err.StatusCode)
		})
	}
}

func TestErrorString(t *testing.T) {
	err := NewWithDetail("bad_request", "Invalid JSON body", "unexpected EOF", 400)
	assert.Contains(t, err.Error(), "Invalid JSON body")
}

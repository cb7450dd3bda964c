package types

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Wallet is the custody record for a single user's signing key.
// One wallet per owner; immutable except during an approved recovery.
type Wallet struct {
	ID              uuid.UUID         `json:"id"`
	OwnerID         uuid.UUID         `json:"owner_id"`
	PublicKey       []byte            `json:"public_key"`        // uncompressed secp256k1 point
	MasterPublicKey string            `json:"master_public_key"` // key fingerprint, stable across re-sharding
	Addresses       map[string]string `json:"addresses"`         // chain family -> derived address
	KeyEpoch        int               `json:"key_epoch"`         // bumped on every re-sharding; stale shard envelopes fail to unseal
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// ShardEnvelope is the sealed, transportable form of a single key shard.
// Nonce may be empty for sealer backends that manage nonces internally
// (AWS KMS, Vault Transit); the ciphertext always carries the auth tag.
type ShardEnvelope struct {
	WalletID   uuid.UUID `json:"wallet_id"`
	Type       string    `json:"type"`
	Nonce      []byte    `json:"nonce,omitempty"`
	Ciphertext []byte    `json:"ciphertext"`
}

// Shard is the persisted row for a server-held shard. The payload is the
// sealed envelope; plaintext share material is never stored.
type Shard struct {
	ID            uuid.UUID  `json:"id"`
	WalletID      uuid.UUID  `json:"wallet_id"`
	Type          string     `json:"type"`
	Nonce         []byte     `json:"-"`
	Ciphertext    []byte     `json:"-"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

// Envelope returns the transportable form of the shard payload.
func (s *Shard) Envelope() *ShardEnvelope {
	return &ShardEnvelope{
		WalletID:   s.WalletID,
		Type:       s.Type,
		Nonce:      s.Nonce,
		Ciphertext: s.Ciphertext,
	}
}

// Guardian is a trusted recovery contact for a wallet owner.
type Guardian struct {
	ID           uuid.UUID  `json:"id"`
	OwnerID      uuid.UUID  `json:"owner_id"`
	Name         string     `json:"name"`
	Contact      string     `json:"contact"` // delivery target for the notification port
	Relationship string     `json:"relationship"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	RemovedAt    *time.Time `json:"removed_at,omitempty"`
}

// PolicyParams is the typed parameter payload for a policy.
// Exactly one branch is populated depending on the policy type.
type PolicyParams struct {
	// daily_limit
	Limit *big.Int `json:"limit,omitempty"`
	Token string   `json:"token,omitempty"`

	// whitelist
	Addresses []string `json:"addresses,omitempty"`

	// multi_sig
	Threshold   *big.Int    `json:"threshold,omitempty"`
	GuardianIDs []uuid.UUID `json:"guardian_ids,omitempty"`
}

// Policy is a user-configured spending rule. At most one active policy per
// type per owner; mutation is deactivate + recreate, never in place.
type Policy struct {
	ID            uuid.UUID    `json:"id"`
	OwnerID       uuid.UUID    `json:"owner_id"`
	Type          string       `json:"type"`
	Params        PolicyParams `json:"params"`
	Active        bool         `json:"active"`
	CreatedAt     time.Time    `json:"created_at"`
	DeactivatedAt *time.Time   `json:"deactivated_at,omitempty"`
}

// RecoveryVote is a single guardian's vote on a recovery request.
type RecoveryVote struct {
	RequestID  uuid.UUID `json:"request_id"`
	GuardianID uuid.UUID `json:"guardian_id"`
	Approve    bool      `json:"approve"`
	VotedAt    time.Time `json:"voted_at"`
}

// RecoveryRequest is the quorum-voting record for re-keying a wallet.
// GuardianIDs snapshots the active guardian set at initiation; later
// membership changes do not affect an in-flight request.
type RecoveryRequest struct {
	ID            uuid.UUID   `json:"id"`
	OwnerID       uuid.UUID   `json:"owner_id"`
	GuardianIDs   []uuid.UUID `json:"guardian_ids"`
	VotesRequired int         `json:"votes_required"`
	Status        string      `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TxDraft describes a proposed transaction before it enters the pipeline.
type TxDraft struct {
	ChainFamily string   `json:"chain_family"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Value       *big.Int `json:"value"`
	Token       string   `json:"token"`
	Data        []byte   `json:"data,omitempty"`
}

// Transaction is the pipeline record for an outgoing transfer.
// Immutable once broadcast except for status polling.
type Transaction struct {
	ID              uuid.UUID  `json:"id"`
	OwnerID         uuid.UUID  `json:"owner_id"`
	WalletID        uuid.UUID  `json:"wallet_id"`
	ChainFamily     string     `json:"chain_family"`
	FromAddress     string     `json:"from_address"`
	ToAddress       string     `json:"to_address"`
	Value           *big.Int   `json:"value"`
	Token           string     `json:"token"`
	SimulatedFee    *big.Int   `json:"simulated_fee,omitempty"`
	PolicyResult    *string    `json:"policy_result,omitempty"`
	Signature       []byte     `json:"signature,omitempty"`
	ChainRef        *string    `json:"chain_ref,omitempty"`
	InclusionHeight *uint64    `json:"inclusion_height,omitempty"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

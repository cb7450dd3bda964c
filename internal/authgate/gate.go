// Package authgate verifies the fresh, single-use authentication proof
// required before any signing operation. A proof is a P-256 signature over
// an RFC 8785 canonicalized payload that binds it to one specific
// transaction hash; proofs cannot be replayed across transactions.
package authgate

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/gowebpki/jcs"

	apperrors "github.com/zivra/zivra-custody/pkg/errors"
)

// DefaultMaxAge bounds proof freshness.
const DefaultMaxAge = 2 * time.Minute

// ProofPayload is the canonical structure the client's authorization key
// signs. TxHash binds the proof to one transaction; Nonce makes it
// single-use even for an identical transaction.
type ProofPayload struct {
	Version  string `json:"version"`
	OwnerID  string `json:"owner_id"`
	TxHash   string `json:"tx_hash"`
	Nonce    string `json:"nonce"`
	IssuedAt int64  `json:"issued_at"`
}

// Proof is the client-supplied attestation. PublicKey is the owner's
// registered P-256 authorization key (65-byte uncompressed or 33-byte
// compressed); binding the key to the owner is the identity provider's
// job, outside this subsystem.
type Proof struct {
	Payload   ProofPayload `json:"payload"`
	PublicKey []byte       `json:"public_key"`
	Signature string       `json:"signature"` // base64, DER or raw r||s
}

// Gate tracks consumed proof nonces and enforces freshness, transaction
// binding and signature validity.
type Gate struct {
	maxAge time.Duration

	mu   sync.Mutex
	used map[string]time.Time // nonce -> expiry
	now  func() time.Time
}

// NewGate creates a gate. A non-positive maxAge uses DefaultMaxAge.
func NewGate(maxAge time.Duration) *Gate {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Gate{
		maxAge: maxAge,
		used:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// TxHash computes the canonical hash a proof must be bound to: the SHA-256
// of the RFC 8785 form of the draft's JSON encoding, hex-encoded.
func TxHash(draft any) (string, error) {
	raw, err := json.Marshal(draft)
	if err != nil {
		return "", fmt.Errorf("marshal draft: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize draft: %w", err)
	}
	digest := sha256.Sum256(canonical)
	return hex.EncodeToString(digest[:]), nil
}

// VerifyProof checks the proof against the expected owner and transaction
// hash, then consumes its nonce. Every rejection is a ProofRejected error;
// a consumed proof can never pass a second time.
func (g *Gate) VerifyProof(_ context.Context, ownerID, expectedTxHash string, proof *Proof) error {
	if proof == nil {
		return apperrors.ProofRejected("missing proof")
	}
	if proof.Payload.OwnerID != ownerID {
		return apperrors.ProofRejected("proof is bound to a different owner")
	}
	if proof.Payload.TxHash != expectedTxHash {
		return apperrors.ProofRejected("proof is not bound to this transaction")
	}
	if proof.Payload.Nonce == "" {
		return apperrors.ProofRejected("proof has no nonce")
	}

	issued := time.Unix(proof.Payload.IssuedAt, 0)
	age := g.now().Sub(issued)
	if age > g.maxAge || age < -g.maxAge {
		return apperrors.ProofRejected("proof is stale")
	}

	canonical, err := canonicalPayload(proof.Payload)
	if err != nil {
		return apperrors.ProofRejected(fmt.Sprintf("payload canonicalization failed: %v", err))
	}
	if err := verifyP256(proof.PublicKey, canonical, proof.Signature); err != nil {
		return apperrors.ProofRejected(err.Error())
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.pruneLocked()
	if _, replayed := g.used[proof.Payload.Nonce]; replayed {
		return apperrors.ProofRejected("proof has already been used")
	}
	g.used[proof.Payload.Nonce] = g.now().Add(g.maxAge)
	return nil
}

// pruneLocked drops expired nonces; a nonce past its expiry cannot pass
// the freshness check anyway.
func (g *Gate) pruneLocked() {
	now := g.now()
	for nonce, expiry := range g.used {
		if now.After(expiry) {
			delete(g.used, nonce)
		}
	}
}

func canonicalPayload(p ProofPayload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}

// verifyP256 verifies a base64-encoded DER or raw r||s signature over the
// SHA-256 of the canonical payload.
func verifyP256(publicKeyBytes, canonical []byte, signatureB64 string) error {
	sigBytes, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	if len(publicKeyBytes) != 65 && len(publicKeyBytes) != 33 {
		return fmt.Errorf("invalid P-256 public key length: %d", len(publicKeyBytes))
	}

	var x, y *big.Int
	if len(publicKeyBytes) == 33 {
		x, y = elliptic.UnmarshalCompressed(elliptic.P256(), publicKeyBytes)
	} else {
		x, y = elliptic.Unmarshal(elliptic.P256(), publicKeyBytes)
	}
	if x == nil {
		return fmt.Errorf("failed to parse P-256 public key")
	}
	pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}

	hash := sha256.Sum256(canonical)

	var derSig struct{ R, S *big.Int }
	if _, err := asn1.Unmarshal(sigBytes, &derSig); err == nil {
		if derSig.R == nil || derSig.S == nil {
			return fmt.Errorf("invalid DER signature")
		}
		if ecdsa.Verify(pub, hash[:], derSig.R, derSig.S) {
			return nil
		}
		return fmt.Errorf("signature verification failed")
	}

	if len(sigBytes) != 64 {
		return fmt.Errorf("invalid signature length: %d", len(sigBytes))
	}
	r := new(big.Int).SetBytes(sigBytes[:32])
	s := new(big.Int).SetBytes(sigBytes[32:])
	if ecdsa.Verify(pub, hash[:], r, s) {
		return nil
	}
	return fmt.Errorf("signature verification failed")
}

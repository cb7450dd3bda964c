// Package chainrpc defines the chain RPC port and its per-family
// implementations. Outbound chain calls live behind this interface so the
// transaction pipeline stays deterministic and testable without network
// mocks in business logic.
package chainrpc

import (
	"context"
	"math/big"

	"github.com/zivra/zivra-custody/pkg/types"
)

// Simulation is the result of a dry-run against the target chain.
type Simulation struct {
	GasUnits   uint64   `json:"gas_units"`
	NativeCost *big.Int `json:"native_cost"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Receipt is the chain's view of a broadcast transaction.
type Receipt struct {
	Found   bool   `json:"found"`
	Success bool   `json:"success"`
	Height  uint64 `json:"height,omitempty"`
}

// PreparedTx carries the chain-specific unsigned transaction together with
// the canonical payload whose hash gets signed. Prepare and Broadcast must
// see the same PreparedTx so nonce and fee fields stay consistent.
type PreparedTx struct {
	Payload []byte
	raw     any
}

// Client is the RPC port for a single chain family.
type Client interface {
	// Family returns the chain family this client serves.
	Family() string
	// NativeToken returns the symbol fees are denominated in.
	NativeToken() string
	// Simulate dry-runs the draft and returns a fee estimate plus risk
	// warnings. Read-only, side-effect-free.
	Simulate(ctx context.Context, draft *types.TxDraft) (*Simulation, error)
	// SuggestFeeRate returns the chain's current base fee-unit price.
	SuggestFeeRate(ctx context.Context) (*big.Int, error)
	// GetBalance returns the address balance in smallest native units.
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	// Prepare assembles an unsigned transaction and its signing payload.
	Prepare(ctx context.Context, draft *types.TxDraft) (*PreparedTx, error)
	// Broadcast attaches the signature and submits; returns the chain ref.
	Broadcast(ctx context.Context, prepared *PreparedTx, signature []byte) (string, error)
	// GetReceipt looks up a broadcast transaction by its chain ref.
	GetReceipt(ctx context.Context, chainRef string) (*Receipt, error)
	// CurrentHeight returns the chain tip height.
	CurrentHeight(ctx context.Context) (uint64, error)
}

package fees

import (
	"context"
	"math/big"
	"strings"

	"github.com/zivra/zivra-custody/pkg/types"

	"github.com/zivra/zivra-custody/internal/chainrpc"
)

// popularTokens always appear in the alternatives list of an estimate.
var popularTokens = []string{"ZIV", "USDC", "USDT"}

// TokenCost is a fee quote denominated in a settlement token.
type TokenCost struct {
	Token string   `json:"token"`
	Cost  *big.Int `json:"cost"`
}

// Estimate is the full fee quote for a draft transaction.
type Estimate struct {
	GasUnits     uint64      `json:"gas_units"`
	NativeCost   *big.Int    `json:"native_cost"`
	NativeToken  string      `json:"native_token"`
	Warnings     []string    `json:"warnings,omitempty"`
	Alternatives []TokenCost `json:"alternatives"`
}

// FeeRates are the per-tier fee-unit prices for a chain family.
// Fast and instant are simple multiples of the base rate.
type FeeRates struct {
	Standard *big.Int `json:"standard"`
	Fast     *big.Int `json:"fast"`
	Instant  *big.Int `json:"instant"`
}

// Estimator prices draft transactions across chain families.
type Estimator struct {
	registry *chainrpc.Registry
	prices   *PriceCache
}

// NewEstimator creates a new fee estimator
func NewEstimator(registry *chainrpc.Registry, prices *PriceCache) *Estimator {
	return &Estimator{registry: registry, prices: prices}
}

// EstimateFees simulates the draft on its chain family and converts the
// native cost into the requested settlement token plus the fixed set of
// popular tokens. Conversion prices come from the TTL-bounded cache, so
// no per-call oracle lookup happens inside the window.
func (e *Estimator) EstimateFees(ctx context.Context, draft *types.TxDraft, settlementToken string) (*Estimate, error) {
	client, err := e.registry.ForFamily(draft.ChainFamily)
	if err != nil {
		return nil, err
	}

	sim, err := client.Simulate(ctx, draft)
	if err != nil {
		return nil, err
	}

	estimate := &Estimate{
		GasUnits:    sim.GasUnits,
		NativeCost:  sim.NativeCost,
		NativeToken: client.NativeToken(),
		Warnings:    sim.Warnings,
	}

	tokens := make([]string, 0, len(popularTokens)+1)
	if settlementToken != "" && !containsToken(popularTokens, settlementToken) {
		tokens = append(tokens, strings.ToUpper(settlementToken))
	}
	tokens = append(tokens, popularTokens...)

	for _, token := range tokens {
		cost, err := e.convert(ctx, sim.NativeCost, client.NativeToken(), token)
		if err != nil {
			// A token without a price is dropped from alternatives
			// rather than failing the whole estimate.
			continue
		}
		estimate.Alternatives = append(estimate.Alternatives, TokenCost{Token: token, Cost: cost})
	}
	return estimate, nil
}

// GetCurrentFeeRate returns standard/fast/instant tiers for a chain
// family. Fast is 1.5x the base rate, instant 2x.
func (e *Estimator) GetCurrentFeeRate(ctx context.Context, chainFamily string) (*FeeRates, error) {
	client, err := e.registry.ForFamily(chainFamily)
	if err != nil {
		return nil, err
	}

	base, err := client.SuggestFeeRate(ctx)
	if err != nil {
		return nil, err
	}

	return &FeeRates{
		Standard: base,
		Fast:     new(big.Int).Div(new(big.Int).Mul(base, big.NewInt(3)), big.NewInt(2)),
		Instant:  new(big.Int).Mul(base, big.NewInt(2)),
	}, nil
}

// convert reprices an amount from one token into another via their USD
// spot prices: amount * price(from) / price(to), truncated.
func (e *Estimator) convert(ctx context.Context, amount *big.Int, fromToken, toToken string) (*big.Int, error) {
	if strings.EqualFold(fromToken, toToken) {
		return amount, nil
	}

	fromPrice, err := e.prices.Price(ctx, fromToken)
	if err != nil {
		return nil, err
	}
	toPrice, err := e.prices.Price(ctx, toToken)
	if err != nil {
		return nil, err
	}

	result := new(big.Rat).SetInt(amount)
	result.Mul(result, fromPrice)
	result.Quo(result, toPrice)

	return new(big.Int).Quo(result.Num(), result.Denom()), nil
}

func containsToken(tokens []string, token string) bool {
	for _, t := range tokens {
		if strings.EqualFold(t, token) {
			return true
		}
	}
	return false
}

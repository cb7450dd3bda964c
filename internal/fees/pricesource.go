// Package fees implements multi-chain fee estimation and token-denominated
// conversion backed by a bounded-TTL price cache.
package fees

import (
	"context"
	"fmt"
	"math/big"
	"strings"
)

// PriceSource looks up the spot price of a token in USD. Pluggable so a
// real oracle can replace the static table.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (*big.Rat, error)
}

// StaticPriceSource serves prices from a fixed table. The default table
// is the development fallback when no oracle is configured.
type StaticPriceSource struct {
	prices map[string]*big.Rat
}

// NewStaticPriceSource creates a static source from a symbol -> USD table.
// A nil table falls back to the built-in defaults.
func NewStaticPriceSource(prices map[string]*big.Rat) *StaticPriceSource {
	if prices == nil {
		prices = map[string]*big.Rat{
			"ETH":  big.NewRat(3200, 1),
			"BTC":  big.NewRat(64000, 1),
			"ZIV":  big.NewRat(1, 20),
			"USDC": big.NewRat(1, 1),
			"USDT": big.NewRat(1, 1),
		}
	}
	normalized := make(map[string]*big.Rat, len(prices))
	for sym, p := range prices {
		normalized[strings.ToUpper(sym)] = p
	}
	return &StaticPriceSource{prices: normalized}
}

// Price returns the USD price of a token symbol
func (s *StaticPriceSource) Price(_ context.Context, symbol string) (*big.Rat, error) {
	p, ok := s.prices[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("no price for token %q", symbol)
	}
	return p, nil
}

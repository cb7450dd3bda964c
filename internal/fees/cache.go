package fees

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/zivra/zivra-custody/internal/metrics"
)

// DefaultPriceTTL bounds price staleness when no TTL is configured.
const DefaultPriceTTL = 5 * time.Minute

type cacheEntry struct {
	price     *big.Rat
	fetchedAt time.Time
}

// PriceCache is a shared, read-mostly, time-boxed cache in front of a
// PriceSource. Entries refresh lazily on expiry; no background thread.
// Stale reads within the TTL window are an accepted tradeoff.
type PriceCache struct {
	source PriceSource
	ttl    time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewPriceCache creates a cache over source. A non-positive ttl uses
// DefaultPriceTTL.
func NewPriceCache(source PriceSource, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	return &PriceCache{
		source:  source,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Price returns the cached USD price for symbol, refreshing from the
// source when the entry is missing or older than the TTL.
func (c *PriceCache) Price(ctx context.Context, symbol string) (*big.Rat, error) {
	key := strings.ToUpper(symbol)

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()

	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		metrics.PriceCacheLookups.WithLabelValues("hit").Inc()
		return entry.price, nil
	}

	price, err := c.source.Price(ctx, key)
	if err != nil {
		// Serve the stale entry rather than fail when the source is down.
		if ok {
			metrics.PriceCacheLookups.WithLabelValues("stale").Inc()
			return entry.price, nil
		}
		metrics.PriceCacheLookups.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.PriceCacheLookups.WithLabelValues("miss").Inc()

	c.mu.Lock()
	c.entries[key] = cacheEntry{price: price, fetchedAt: c.now()}
	c.mu.Unlock()

	return price, nil
}

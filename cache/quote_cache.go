package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autotrade-worker/database/types"
)

// QuoteCache provides short-lived caching of fetched quotes so one price
// serves every intent on the same symbol within a cycle. Backed by Redis
// when available, otherwise by an in-process map with the same TTL.
type QuoteCache struct {
	redis *RedisClient
	ttl   time.Duration

	mu    sync.Mutex
	local map[string]localQuote
}

type localQuote struct {
	quote   types.Quote
	expires time.Time
}

// NewQuoteCache creates a quote cache. redis may be nil.
func NewQuoteCache(redis *RedisClient, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &QuoteCache{
		redis: redis,
		ttl:   ttl,
		local: make(map[string]localQuote),
	}
}

// Get returns the cached quote for a code and whether one was found.
func (c *QuoteCache) Get(ctx context.Context, code string) (*types.Quote, bool) {
	key := quoteKey(code)

	if c.redis != nil {
		var quote types.Quote
		if err := c.redis.Get(ctx, key, &quote); err == nil {
			return &quote, true
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.local[key]
	if !ok || time.Now().After(entry.expires) {
		delete(c.local, key)
		return nil, false
	}
	quote := entry.quote
	return &quote, true
}

// Put caches a quote under its code for the configured TTL.
func (c *QuoteCache) Put(ctx context.Context, quote types.Quote) {
	key := quoteKey(quote.Code)

	if c.redis != nil {
		// Best effort; the local map still covers a Redis outage.
		_ = c.redis.Set(ctx, key, quote, c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[key] = localQuote{quote: quote, expires: time.Now().Add(c.ttl)}
}

func quoteKey(code string) string {
	return fmt.Sprintf("quote:%s", code)
}

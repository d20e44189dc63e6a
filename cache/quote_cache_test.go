package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotrade-worker/database/types"
)

func TestQuoteCachePutGet(t *testing.T) {
	c := NewQuoteCache(nil, time.Minute)
	ctx := context.Background()

	_, ok := c.Get(ctx, "AAPL")
	assert.False(t, ok)

	price := 190.5
	c.Put(ctx, types.Quote{Code: "AAPL", Price: &price, Source: "stooq"})

	quote, ok := c.Get(ctx, "AAPL")
	require.True(t, ok)
	require.NotNil(t, quote.Price)
	assert.Equal(t, 190.5, *quote.Price)
	assert.Equal(t, "stooq", quote.Source)
}

func TestQuoteCacheExpiry(t *testing.T) {
	c := NewQuoteCache(nil, 10*time.Millisecond)
	ctx := context.Background()

	price := 1.0
	c.Put(ctx, types.Quote{Code: "AAPL", Price: &price})
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get(ctx, "AAPL")
	assert.False(t, ok)
}

func TestQuoteCacheDefaultTTL(t *testing.T) {
	c := NewQuoteCache(nil, 0)
	assert.Equal(t, 30*time.Second, c.ttl)
}

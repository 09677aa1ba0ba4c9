package rpc

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	mintgate "github.com/mintgate/mintgate"
	"github.com/mintgate/mintgate/metrics"
)

// BlockhashCache memoizes the most recent blockhash for a short TTL.
//
// There is deliberately no single-flight: concurrent misses each fetch and
// the last writer wins, which is harmless because any sufficiently fresh
// blockhash is valid. An expired value is never served; upstream failure on
// refresh propagates to the caller.
type BlockhashCache struct {
	gateway *Gateway
	ttl     time.Duration
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	value     string
	fetchedAt time.Time
}

// CacheOption configures a BlockhashCache.
type CacheOption func(*BlockhashCache)

// WithCacheClock replaces the cache's time source. Tests use this to cross
// the TTL without sleeping.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *BlockhashCache) {
		c.now = now
	}
}

// WithCacheLogger sets the cache logger.
func WithCacheLogger(log *zap.Logger) CacheOption {
	return func(c *BlockhashCache) {
		c.log = log
	}
}

// WithCacheMetrics sets the cache collectors.
func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *BlockhashCache) {
		c.metrics = m
	}
}

// NewBlockhashCache creates an empty cache. A non-positive ttl falls back to
// the default.
func NewBlockhashCache(gateway *Gateway, ttl time.Duration, opts ...CacheOption) *BlockhashCache {
	if ttl <= 0 {
		ttl = mintgate.DefaultBlockhashTTL
	}
	c := &BlockhashCache{
		gateway: gateway,
		ttl:     ttl,
		now:     time.Now,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached blockhash when it is younger than the TTL, otherwise
// fetches a fresh one through the gateway and overwrites the cell.
func (c *BlockhashCache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.value != "" && c.now().Sub(c.fetchedAt) < c.ttl {
		value := c.value
		c.mu.Unlock()
		c.metrics.BlockhashLookup(metrics.LookupHit)
		return value, nil
	}
	c.mu.Unlock()

	value, err := c.fetch(ctx)
	if err != nil {
		c.metrics.BlockhashLookup(metrics.LookupError)
		return "", err
	}
	c.metrics.BlockhashLookup(metrics.LookupMiss)

	c.mu.Lock()
	c.value = value
	c.fetchedAt = c.now()
	c.mu.Unlock()

	c.log.Debug("blockhash refreshed", zap.String("blockhash", value))
	return value, nil
}

func (c *BlockhashCache) fetch(ctx context.Context) (string, error) {
	req := NewRequest(MethodGetLatestBlockhash, map[string]string{"commitment": mintgate.CommitmentFinalized})
	resp, err := c.gateway.Call(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.StatusCode == mintgate.StatusAllUpstreamsFailed {
		return "", mintgate.ErrUpstreamUnavailable()
	}
	if resp.StatusCode != http.StatusOK {
		return "", mintgate.ErrUpstreamError(
			fmt.Sprintf("getLatestBlockhash returned status %d", resp.StatusCode), resp.StatusCode)
	}
	if _, message, found := ResponseError(resp.Body); found {
		return "", mintgate.ErrUpstreamError(
			fmt.Sprintf("getLatestBlockhash failed: %s", message), http.StatusBadGateway)
	}

	blockhash := Result(resp.Body).Get("value.blockhash").String()
	if blockhash == "" {
		return "", mintgate.ErrUpstreamError("getLatestBlockhash response missing blockhash", http.StatusBadGateway)
	}
	return blockhash, nil
}

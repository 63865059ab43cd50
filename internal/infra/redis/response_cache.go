package redis

import (
	"context"
	"time"

	"market-ai-pipeline/internal/infra/gateway"

	"github.com/rs/zerolog"
)

const responseKeyPrefix = "completion_response:"

var _ gateway.ResponseCache = (*ResponseCache)(nil)

// ResponseCache is a Redis-backed response cache so multiple pipeline
// processes share one dedup tier. TTL is enforced by Redis itself; errors are
// treated as misses or silent write no-ops.
type ResponseCache struct {
	client RedisClient
	ttl    time.Duration
	log    *zerolog.Logger
}

func NewResponseCache(client RedisClient, ttl time.Duration, logger *zerolog.Logger) *ResponseCache {
	l := logger.With().Str("component", "RedisResponseCache").Logger()
	return &ResponseCache{client: client, ttl: ttl, log: &l}
}

func (c *ResponseCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.client.Get(ctx, responseKeyPrefix+key)
	if err != nil {
		return "", false
	}
	return v, true
}

func (c *ResponseCache) Set(ctx context.Context, key, response string) {
	if err := c.client.Set(ctx, responseKeyPrefix+key, response, c.ttl); err != nil {
		c.log.Warn().Err(err).Msg("response cache write failed")
	}
}

func (c *ResponseCache) Size(ctx context.Context) int {
	keys, err := c.client.Keys(ctx, responseKeyPrefix+"*")
	if err != nil {
		return 0
	}
	return len(keys)
}

package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/readysetcloud/newsletter-service-sub011/internal/pkg/logger"
)

// Getter is the tenant lookup consumed by the cache and by handlers.
type Getter interface {
	Get(ctx context.Context, tenantID string) (*Tenant, error)
}

// Cache is an explicit, TTL-bounded tenant cache in front of the ledger
// store. Lifecycle is owned by the process that constructs it; there is no
// ambient module-scope state surviving across invocations.
type Cache struct {
	inner Getter
	redis *redis.Client
	ttl   time.Duration
}

// NewCache wraps a tenant Getter with a redis cache.
func NewCache(inner Getter, client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{inner: inner, redis: client, ttl: ttl}
}

func cacheKey(tenantID string) string {
	return fmt.Sprintf("tenant:%s", tenantID)
}

// Get returns the cached tenant when fresh, falling back to the inner store
// and repopulating on miss. Cache failures degrade to direct reads.
func (c *Cache) Get(ctx context.Context, tenantID string) (*Tenant, error) {
	data, err := c.redis.Get(ctx, cacheKey(tenantID)).Bytes()
	if err == nil {
		var t Tenant
		if jsonErr := json.Unmarshal(data, &t); jsonErr == nil {
			return &t, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logger.Warn("tenant cache read failed", "tenant", tenantID, "err", err)
	}

	t, err := c.inner.Get(ctx, tenantID)
	if err != nil || t == nil {
		return t, err
	}

	if data, jsonErr := json.Marshal(t); jsonErr == nil {
		if setErr := c.redis.Set(ctx, cacheKey(tenantID), data, c.ttl).Err(); setErr != nil {
			logger.Warn("tenant cache write failed", "tenant", tenantID, "err", setErr)
		}
	}

	return t, nil
}

// Invalidate drops a tenant from the cache, e.g. after a count rewrite.
func (c *Cache) Invalidate(ctx context.Context, tenantID string) {
	if err := c.redis.Del(ctx, cacheKey(tenantID)).Err(); err != nil {
		logger.Warn("tenant cache invalidate failed", "tenant", tenantID, "err", err)
	}
}

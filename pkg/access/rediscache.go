package access

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/flowdeck/pkg/grants"
	"github.com/platinummonkey/flowdeck/pkg/observability"
)

// RedisCache is a shared read-through cache over a GrantResolver for
// multi-replica deployments. Cached values are the JSON-encoded grant;
// a stored "null" caches the "no access signal" answer. Invalidation
// scans the affected resource's key pattern so every replica sees the
// eviction.
type RedisCache struct {
	next    GrantResolver
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewRedisCache creates a new Redis cache layer over next
func NewRedisCache(next GrantResolver, redisAddr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		next:  next,
		redis: client,
		ttl:   ttl,
	}, nil
}

// NewRedisCacheWithClient creates a Redis cache over an existing client
func NewRedisCacheWithClient(next GrantResolver, client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		next:  next,
		redis: client,
		ttl:   ttl,
	}
}

// WithMetrics instruments cache lookups. A nil metrics is a no-op.
func (c *RedisCache) WithMetrics(m *observability.Metrics) *RedisCache {
	c.metrics = m
	return c
}

func (c *RedisCache) observeLookup(hit bool, resource string) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.CacheHitsTotal.WithLabelValues("redis", resource).Inc()
		return
	}
	c.metrics.CacheMissesTotal.WithLabelValues("redis", resource).Inc()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.redis.Close()
}

// Client exposes the underlying Redis client, for health checks
func (c *RedisCache) Client() *redis.Client {
	return c.redis
}

// ResolveProject resolves through the cache
func (c *RedisCache) ResolveProject(ctx context.Context, userID, projectID int64) (*grants.ProjectGrant, error) {
	cacheKey := fmt.Sprintf("grant:project:%d:%d", userID, projectID)

	cached, err := c.redis.Get(ctx, cacheKey).Result()
	if err == nil {
		var grant *grants.ProjectGrant
		if err := json.Unmarshal([]byte(cached), &grant); err == nil {
			c.observeLookup(true, "project")
			return grant, nil
		}
	}
	c.observeLookup(false, "project")

	grant, err := c.next.ResolveProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(grant); err == nil {
		c.redis.Set(ctx, cacheKey, data, c.ttl)
	}

	return grant, nil
}

// ResolveFlow resolves through the cache
func (c *RedisCache) ResolveFlow(ctx context.Context, userID int64, flowID string) (*grants.FlowGrant, error) {
	cacheKey := fmt.Sprintf("grant:flow:%d:%s", userID, flowID)

	cached, err := c.redis.Get(ctx, cacheKey).Result()
	if err == nil {
		var grant *grants.FlowGrant
		if err := json.Unmarshal([]byte(cached), &grant); err == nil {
			c.observeLookup(true, "flow")
			return grant, nil
		}
	}
	c.observeLookup(false, "flow")

	grant, err := c.next.ResolveFlow(ctx, userID, flowID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(grant); err == nil {
		c.redis.Set(ctx, cacheKey, data, c.ttl)
	}

	return grant, nil
}

// InvalidateProject evicts every cached resolution of the project, for
// all users. Flow entries are evicted wholesale since project deletion
// cascades over its flows.
func (c *RedisCache) InvalidateProject(ctx context.Context, projectID int64) error {
	if err := c.deletePattern(ctx, fmt.Sprintf("grant:project:*:%d", projectID)); err != nil {
		return err
	}
	return c.deletePattern(ctx, "grant:flow:*")
}

// InvalidateFlow evicts every cached resolution of the flow
func (c *RedisCache) InvalidateFlow(ctx context.Context, flowID string) error {
	return c.deletePattern(ctx, fmt.Sprintf("grant:flow:*:%s", flowID))
}

// InvalidateAll evicts every cached resolution
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	return c.deletePattern(ctx, "grant:*")
}

func (c *RedisCache) deletePattern(ctx context.Context, pattern string) error {
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to evict cache key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return nil
}

package access

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/flowdeck/pkg/grants"
	"github.com/platinummonkey/flowdeck/pkg/observability"
)

// Invalidator is implemented by cache layers so the lifecycle
// coordinator can evict stale resolutions after grant-affecting writes.
type Invalidator interface {
	InvalidateProject(ctx context.Context, projectID int64) error
	InvalidateFlow(ctx context.Context, flowID string) error
	// InvalidateAll evicts everything; used after group-wide changes
	// that can touch resolutions across many resources at once.
	InvalidateAll(ctx context.Context) error
}

// projectEntry wraps a cached project resolution. The pointer may be
// nil: "no access signal" is itself a cacheable answer.
type projectEntry struct {
	grant *grants.ProjectGrant
}

type flowEntry struct {
	grant *grants.FlowGrant
}

// MemoryCache is an in-process read-through cache over a GrantResolver,
// backed by an expirable LRU. Invalidation is coarse: any
// grant-affecting write purges the affected resource's entries for all
// users by purging the whole cache, which is cheap at this cache's
// size and always correct.
type MemoryCache struct {
	next     GrantResolver
	projects *lru.LRU[string, projectEntry]
	flows    *lru.LRU[string, flowEntry]
	metrics  *observability.Metrics
}

// NewMemoryCache creates a new memory cache over next
func NewMemoryCache(next GrantResolver, maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries < 16 {
		maxEntries = 16
	}
	return &MemoryCache{
		next:     next,
		projects: lru.NewLRU[string, projectEntry](maxEntries, nil, ttl),
		flows:    lru.NewLRU[string, flowEntry](maxEntries, nil, ttl),
	}
}

// WithMetrics instruments cache lookups. A nil metrics is a no-op.
func (c *MemoryCache) WithMetrics(m *observability.Metrics) *MemoryCache {
	c.metrics = m
	return c
}

func (c *MemoryCache) observeLookup(hit bool, resource string) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.CacheHitsTotal.WithLabelValues("memory", resource).Inc()
		return
	}
	c.metrics.CacheMissesTotal.WithLabelValues("memory", resource).Inc()
}

// ResolveProject resolves through the cache
func (c *MemoryCache) ResolveProject(ctx context.Context, userID, projectID int64) (*grants.ProjectGrant, error) {
	key := fmt.Sprintf("%d:%d", userID, projectID)

	if entry, ok := c.projects.Get(key); ok {
		c.observeLookup(true, "project")
		return entry.grant, nil
	}
	c.observeLookup(false, "project")

	grant, err := c.next.ResolveProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	c.projects.Add(key, projectEntry{grant: grant})
	return grant, nil
}

// ResolveFlow resolves through the cache
func (c *MemoryCache) ResolveFlow(ctx context.Context, userID int64, flowID string) (*grants.FlowGrant, error) {
	key := fmt.Sprintf("%d:%s", userID, flowID)

	if entry, ok := c.flows.Get(key); ok {
		c.observeLookup(true, "flow")
		return entry.grant, nil
	}
	c.observeLookup(false, "flow")

	grant, err := c.next.ResolveFlow(ctx, userID, flowID)
	if err != nil {
		return nil, err
	}

	c.flows.Add(key, flowEntry{grant: grant})
	return grant, nil
}

// InvalidateProject evicts all cached project resolutions. Project
// deletion also cascades to flows, so flow entries go too.
func (c *MemoryCache) InvalidateProject(ctx context.Context, projectID int64) error {
	c.projects.Purge()
	c.flows.Purge()
	return nil
}

// InvalidateFlow evicts all cached flow resolutions
func (c *MemoryCache) InvalidateFlow(ctx context.Context, flowID string) error {
	c.flows.Purge()
	return nil
}

// InvalidateAll evicts every cached resolution
func (c *MemoryCache) InvalidateAll(ctx context.Context) error {
	c.projects.Purge()
	c.flows.Purge()
	return nil
}

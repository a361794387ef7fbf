package access

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/flowdeck/pkg/grants"
	"github.com/platinummonkey/flowdeck/pkg/observability"
)

// countingResolver records how often the backing resolver is hit
type countingResolver struct {
	projectCalls int
	flowCalls    int
	projectGrant *grants.ProjectGrant
	flowGrant    *grants.FlowGrant
}

func (r *countingResolver) ResolveProject(ctx context.Context, userID, projectID int64) (*grants.ProjectGrant, error) {
	r.projectCalls++
	return r.projectGrant, nil
}

func (r *countingResolver) ResolveFlow(ctx context.Context, userID int64, flowID string) (*grants.FlowGrant, error) {
	r.flowCalls++
	return r.flowGrant, nil
}

func TestMemoryCache_ReadThrough(t *testing.T) {
	backing := &countingResolver{projectGrant: grants.OwnerProjectGrant(1, 2)}
	cache := NewMemoryCache(backing, 64, time.Minute)
	ctx := context.Background()

	first, err := cache.ResolveProject(ctx, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := cache.ResolveProject(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, backing.projectCalls, "second resolve should be served from cache")

	// Different principal misses
	_, err = cache.ResolveProject(ctx, 9, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, backing.projectCalls)
}

func TestMemoryCache_RecordsHitsAndMisses(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	backing := &countingResolver{projectGrant: grants.OwnerProjectGrant(1, 2)}
	cache := NewMemoryCache(backing, 64, time.Minute).WithMetrics(metrics)
	ctx := context.Background()

	_, err := cache.ResolveProject(ctx, 1, 2)
	require.NoError(t, err)
	_, err = cache.ResolveProject(ctx, 1, 2)
	require.NoError(t, err)

	hits := metrics.CacheHitsTotal.WithLabelValues("memory", "project")
	misses := metrics.CacheMissesTotal.WithLabelValues("memory", "project")
	assert.Equal(t, float64(1), testutil.ToFloat64(hits))
	assert.Equal(t, float64(1), testutil.ToFloat64(misses))
}

func TestMemoryCache_CachesNoSignal(t *testing.T) {
	backing := &countingResolver{projectGrant: nil}
	cache := NewMemoryCache(backing, 64, time.Minute)
	ctx := context.Background()

	grant, err := cache.ResolveProject(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, grant)

	grant, err = cache.ResolveProject(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, grant)
	assert.Equal(t, 1, backing.projectCalls, "nil resolution must be cached too")
}

func TestMemoryCache_Invalidation(t *testing.T) {
	backing := &countingResolver{
		projectGrant: grants.OwnerProjectGrant(1, 2),
		flowGrant:    grants.OwnerFlowGrant(1, "f-1"),
	}
	cache := NewMemoryCache(backing, 64, time.Minute)
	ctx := context.Background()

	_, err := cache.ResolveProject(ctx, 1, 2)
	require.NoError(t, err)
	_, err = cache.ResolveFlow(ctx, 1, "f-1")
	require.NoError(t, err)

	require.NoError(t, cache.InvalidateProject(ctx, 2))

	_, err = cache.ResolveProject(ctx, 1, 2)
	require.NoError(t, err)
	_, err = cache.ResolveFlow(ctx, 1, "f-1")
	require.NoError(t, err)
	assert.Equal(t, 2, backing.projectCalls, "project entry must be evicted")
	assert.Equal(t, 2, backing.flowCalls, "project invalidation cascades to flows")
}

func TestMemoryCache_FlowInvalidationLeavesProjects(t *testing.T) {
	backing := &countingResolver{
		projectGrant: grants.OwnerProjectGrant(1, 2),
		flowGrant:    grants.OwnerFlowGrant(1, "f-1"),
	}
	cache := NewMemoryCache(backing, 64, time.Minute)
	ctx := context.Background()

	_, err := cache.ResolveProject(ctx, 1, 2)
	require.NoError(t, err)
	_, err = cache.ResolveFlow(ctx, 1, "f-1")
	require.NoError(t, err)

	require.NoError(t, cache.InvalidateFlow(ctx, "f-1"))

	_, err = cache.ResolveProject(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, backing.projectCalls, "project entries survive flow invalidation")

	_, err = cache.ResolveFlow(ctx, 1, "f-1")
	require.NoError(t, err)
	assert.Equal(t, 2, backing.flowCalls)
}

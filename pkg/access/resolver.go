package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/flowdeck/pkg/grants"
	"github.com/platinummonkey/flowdeck/pkg/observability"
	"github.com/platinummonkey/flowdeck/pkg/storage"
)

// GrantResolver resolves the effective grant for a (principal,
// resource) pair. A nil grant with a nil error means the principal has
// no access signal for the resource; callers must treat that as "may
// not act", never as an error.
type GrantResolver interface {
	ResolveProject(ctx context.Context, userID, projectID int64) (*grants.ProjectGrant, error)
	ResolveFlow(ctx context.Context, userID int64, flowID string) (*grants.FlowGrant, error)
}

// Resolver implements GrantResolver directly against the stores
type Resolver struct {
	users   *storage.UserStore
	grants  *grants.Store
	metrics *observability.Metrics
}

// NewResolver creates a new resolver
func NewResolver(users *storage.UserStore, grantStore *grants.Store) *Resolver {
	return &Resolver{
		users:  users,
		grants: grantStore,
	}
}

// WithMetrics instruments resolutions. A nil metrics is a no-op.
func (r *Resolver) WithMetrics(m *observability.Metrics) *Resolver {
	r.metrics = m
	return r
}

// observeResolution records one completed resolution. source names where
// the answer came from: the user grant, the group fallback, or "none"
// when no signal exists.
func (r *Resolver) observeResolution(resource, source string, start time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.ResolutionsTotal.WithLabelValues(resource, source).Inc()
	r.metrics.ResolutionDuration.WithLabelValues(resource).Observe(time.Since(start).Seconds())
}

// ResolveProject returns the effective project grant for a user. The
// user grant wins even when it is more restrictive than the group's.
func (r *Resolver) ResolveProject(ctx context.Context, userID, projectID int64) (*grants.ProjectGrant, error) {
	start := time.Now()

	grant, err := r.grants.GetUserProjectGrant(ctx, userID, projectID)
	if err == nil {
		r.observeResolution("project", "user", start)
		return grant, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve project grant: %w", err)
	}

	groupID, err := r.groupOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	if groupID == nil {
		r.observeResolution("project", "none", start)
		return nil, nil
	}

	grant, err = r.grants.GetGroupProjectGrant(ctx, *groupID, projectID)
	if err == nil {
		r.observeResolution("project", "group", start)
		return grant, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		r.observeResolution("project", "none", start)
		return nil, nil
	}
	return nil, fmt.Errorf("failed to resolve project grant: %w", err)
}

// ResolveFlow returns the effective flow grant for a user, with the
// same user-over-group precedence as ResolveProject.
func (r *Resolver) ResolveFlow(ctx context.Context, userID int64, flowID string) (*grants.FlowGrant, error) {
	start := time.Now()

	grant, err := r.grants.GetUserFlowGrant(ctx, userID, flowID)
	if err == nil {
		r.observeResolution("flow", "user", start)
		return grant, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve flow grant: %w", err)
	}

	groupID, err := r.groupOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	if groupID == nil {
		r.observeResolution("flow", "none", start)
		return nil, nil
	}

	grant, err = r.grants.GetGroupFlowGrant(ctx, *groupID, flowID)
	if err == nil {
		r.observeResolution("flow", "group", start)
		return grant, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		r.observeResolution("flow", "none", start)
		return nil, nil
	}
	return nil, fmt.Errorf("failed to resolve flow grant: %w", err)
}

// groupOf returns the user's group id, or nil when the user belongs to
// no group. An unknown user is a hard failure.
func (r *Resolver) groupOf(ctx context.Context, userID int64) (*int64, error) {
	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load principal: %w", err)
	}
	return user.GroupID, nil
}

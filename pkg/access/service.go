package access

import (
	"context"

	"github.com/platinummonkey/flowdeck/pkg/grants"
	"github.com/platinummonkey/flowdeck/pkg/storage"
)

// Service is the read-side surface handed to external callers. It
// accepts external public identifiers and maps them onto the internal
// resolver, which works on internal ids.
type Service struct {
	resolver *Resolver
	cached   GrantResolver
	projects *storage.ProjectStore
}

// NewService creates a new access service. resolver answers point
// resolutions; if cached is non-nil it is used for those instead
// (listings always go to the store for fresh ordering).
func NewService(resolver *Resolver, cached GrantResolver, projects *storage.ProjectStore) *Service {
	if cached == nil {
		cached = resolver
	}
	return &Service{
		resolver: resolver,
		cached:   cached,
		projects: projects,
	}
}

// ResolveProjectPermission resolves the effective grant for a project
// named by its public identifier. A nil grant means "no access signal".
func (s *Service) ResolveProjectPermission(ctx context.Context, userID int64, projectPublicID string) (*grants.ProjectGrant, error) {
	project, err := s.projects.GetProjectByPublicID(ctx, projectPublicID)
	if err != nil {
		return nil, err
	}
	return s.cached.ResolveProject(ctx, userID, project.ID)
}

// ResolveFlowPermission resolves the effective grant for a flow. Flows
// are keyed by their public identifier directly.
func (s *Service) ResolveFlowPermission(ctx context.Context, userID int64, flowID string) (*grants.FlowGrant, error) {
	return s.cached.ResolveFlow(ctx, userID, flowID)
}

// ListVisibleProjects returns every project the user may see
func (s *Service) ListVisibleProjects(ctx context.Context, userID int64) ([]VisibleProject, error) {
	return s.resolver.ListVisibleProjects(ctx, userID)
}

// ListVisibleFlows returns every flow the user may see in the project
// named by its public identifier.
func (s *Service) ListVisibleFlows(ctx context.Context, userID int64, projectPublicID string) ([]VisibleFlow, error) {
	project, err := s.projects.GetProjectByPublicID(ctx, projectPublicID)
	if err != nil {
		return nil, err
	}
	return s.resolver.ListVisibleFlows(ctx, userID, project.ID)
}

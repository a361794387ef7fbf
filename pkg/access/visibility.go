package access

import (
	"context"
	"fmt"

	"github.com/platinummonkey/flowdeck/pkg/grants"
	"github.com/platinummonkey/flowdeck/pkg/storage"
)

// VisibleProject pairs a project with the effective grant flags the
// principal sees it through.
type VisibleProject struct {
	Project storage.Project     `json:"project"`
	Grant   grants.ProjectGrant `json:"grant"`
}

// VisibleFlow pairs a flow with the effective grant flags the principal
// sees it through.
type VisibleFlow struct {
	Flow  storage.Flow     `json:"flow"`
	Grant grants.FlowGrant `json:"grant"`
}

// ListVisibleProjects returns every project the user may see: all
// user-granted projects first, then projects reachable only through
// the user's group, each appearing exactly once.
func (r *Resolver) ListVisibleProjects(ctx context.Context, userID int64) ([]VisibleProject, error) {
	projects, grantList, err := r.grants.ListUserProjectGrants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list visible projects: %w", err)
	}

	visible := make([]VisibleProject, 0, len(projects))
	seen := make(map[int64]struct{}, len(projects))
	for i, project := range projects {
		visible = append(visible, VisibleProject{Project: project, Grant: grantList[i]})
		seen[project.ID] = struct{}{}
	}

	groupID, err := r.groupOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	if groupID == nil {
		return visible, nil
	}

	groupProjects, groupGrants, err := r.grants.ListGroupProjectGrants(ctx, *groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list visible projects: %w", err)
	}

	for i, project := range groupProjects {
		if _, ok := seen[project.ID]; ok {
			continue
		}
		visible = append(visible, VisibleProject{Project: project, Grant: groupGrants[i]})
		seen[project.ID] = struct{}{}
	}

	return visible, nil
}

// ListVisibleFlows returns every flow in a project the user may see,
// with the same user-first ordering and dedup as ListVisibleProjects.
func (r *Resolver) ListVisibleFlows(ctx context.Context, userID, projectID int64) ([]VisibleFlow, error) {
	flows, grantList, err := r.grants.ListUserFlowGrants(ctx, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list visible flows: %w", err)
	}

	visible := make([]VisibleFlow, 0, len(flows))
	seen := make(map[string]struct{}, len(flows))
	for i, flow := range flows {
		visible = append(visible, VisibleFlow{Flow: flow, Grant: grantList[i]})
		seen[flow.ID] = struct{}{}
	}

	groupID, err := r.groupOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	if groupID == nil {
		return visible, nil
	}

	groupFlows, groupGrants, err := r.grants.ListGroupFlowGrants(ctx, *groupID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list visible flows: %w", err)
	}

	for i, flow := range groupFlows {
		if _, ok := seen[flow.ID]; ok {
			continue
		}
		visible = append(visible, VisibleFlow{Flow: flow, Grant: groupGrants[i]})
		seen[flow.ID] = struct{}{}
	}

	return visible, nil
}

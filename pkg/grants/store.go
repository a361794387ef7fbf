package grants

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/flowdeck/pkg/storage"
)

// Store handles grant row persistence for all four grant tables
type Store struct {
	db storage.DBTX
}

// NewStore creates a new grant store
func NewStore(db storage.DBTX) *Store {
	return &Store{db: db}
}

// WithTx returns a store bound to the given transaction
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx}
}

// InsertProjectGrant inserts a user or group project grant depending on
// which principal field is set.
func (s *Store) InsertProjectGrant(ctx context.Context, grant *ProjectGrant) error {
	var query string
	var principal int64

	switch {
	case grant.UserID != nil:
		query = `
			INSERT INTO user_project_grants (user_id, project_id, deletable_project, creatable_flows, deletable_flows, readable_flows)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		principal = *grant.UserID
	case grant.GroupID != nil:
		query = `
			INSERT INTO group_project_grants (group_id, project_id, deletable_project, creatable_flows, deletable_flows, readable_flows)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		principal = *grant.GroupID
	default:
		return fmt.Errorf("project grant has no principal")
	}

	_, err := s.db.ExecContext(ctx, query,
		principal,
		grant.ProjectID,
		grant.DeletableProject,
		grant.CreatableFlows,
		grant.DeletableFlows,
		grant.ReadableFlows,
	)
	if err != nil {
		return fmt.Errorf("failed to insert project grant: %w", err)
	}

	return nil
}

// InsertFlowGrant inserts a user or group flow grant depending on which
// principal field is set.
func (s *Store) InsertFlowGrant(ctx context.Context, grant *FlowGrant) error {
	var query string
	var principal int64

	switch {
	case grant.UserID != nil:
		query = `
			INSERT INTO user_flow_grants (user_id, flow_id, readable_flow, updatable_flow, executable_flow)
			VALUES ($1, $2, $3, $4, $5)
		`
		principal = *grant.UserID
	case grant.GroupID != nil:
		query = `
			INSERT INTO group_flow_grants (group_id, flow_id, readable_flow, updatable_flow, executable_flow)
			VALUES ($1, $2, $3, $4, $5)
		`
		principal = *grant.GroupID
	default:
		return fmt.Errorf("flow grant has no principal")
	}

	_, err := s.db.ExecContext(ctx, query,
		principal,
		grant.FlowID,
		grant.ReadableFlow,
		grant.UpdatableFlow,
		grant.ExecutableFlow,
	)
	if err != nil {
		return fmt.Errorf("failed to insert flow grant: %w", err)
	}

	return nil
}

// GetUserProjectGrant retrieves the grant for (user, project)
func (s *Store) GetUserProjectGrant(ctx context.Context, userID, projectID int64) (*ProjectGrant, error) {
	query := `
		SELECT user_id, project_id, deletable_project, creatable_flows, deletable_flows, readable_flows
		FROM user_project_grants
		WHERE user_id = $1 AND project_id = $2
	`

	grant := &ProjectGrant{UserID: new(int64)}
	err := s.db.QueryRowContext(ctx, query, userID, projectID).Scan(
		grant.UserID,
		&grant.ProjectID,
		&grant.DeletableProject,
		&grant.CreatableFlows,
		&grant.DeletableFlows,
		&grant.ReadableFlows,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user project grant (%d, %d): %w", userID, projectID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user project grant: %w", err)
	}

	return grant, nil
}

// GetGroupProjectGrant retrieves the grant for (group, project)
func (s *Store) GetGroupProjectGrant(ctx context.Context, groupID, projectID int64) (*ProjectGrant, error) {
	query := `
		SELECT group_id, project_id, deletable_project, creatable_flows, deletable_flows, readable_flows
		FROM group_project_grants
		WHERE group_id = $1 AND project_id = $2
	`

	grant := &ProjectGrant{GroupID: new(int64)}
	err := s.db.QueryRowContext(ctx, query, groupID, projectID).Scan(
		grant.GroupID,
		&grant.ProjectID,
		&grant.DeletableProject,
		&grant.CreatableFlows,
		&grant.DeletableFlows,
		&grant.ReadableFlows,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group project grant (%d, %d): %w", groupID, projectID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group project grant: %w", err)
	}

	return grant, nil
}

// GetUserFlowGrant retrieves the grant for (user, flow)
func (s *Store) GetUserFlowGrant(ctx context.Context, userID int64, flowID string) (*FlowGrant, error) {
	query := `
		SELECT user_id, flow_id, readable_flow, updatable_flow, executable_flow
		FROM user_flow_grants
		WHERE user_id = $1 AND flow_id = $2
	`

	grant := &FlowGrant{UserID: new(int64)}
	err := s.db.QueryRowContext(ctx, query, userID, flowID).Scan(
		grant.UserID,
		&grant.FlowID,
		&grant.ReadableFlow,
		&grant.UpdatableFlow,
		&grant.ExecutableFlow,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user flow grant (%d, %s): %w", userID, flowID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user flow grant: %w", err)
	}

	return grant, nil
}

// GetGroupFlowGrant retrieves the grant for (group, flow)
func (s *Store) GetGroupFlowGrant(ctx context.Context, groupID int64, flowID string) (*FlowGrant, error) {
	query := `
		SELECT group_id, flow_id, readable_flow, updatable_flow, executable_flow
		FROM group_flow_grants
		WHERE group_id = $1 AND flow_id = $2
	`

	grant := &FlowGrant{GroupID: new(int64)}
	err := s.db.QueryRowContext(ctx, query, groupID, flowID).Scan(
		grant.GroupID,
		&grant.FlowID,
		&grant.ReadableFlow,
		&grant.UpdatableFlow,
		&grant.ExecutableFlow,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group flow grant (%d, %s): %w", groupID, flowID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group flow grant: %w", err)
	}

	return grant, nil
}

// ListUserProjectGrants lists a user's project grants joined with their
// projects, in project insertion order.
func (s *Store) ListUserProjectGrants(ctx context.Context, userID int64) ([]storage.Project, []ProjectGrant, error) {
	query := `
		SELECT p.id, p.public_id, p.name, p.creator_id, p.created_at,
		       g.user_id, g.deletable_project, g.creatable_flows, g.deletable_flows, g.readable_flows
		FROM projects p
		JOIN user_project_grants g ON p.id = g.project_id
		WHERE g.user_id = $1
		ORDER BY p.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list user project grants: %w", err)
	}
	defer rows.Close()

	return scanProjectGrants(rows, true)
}

// ListGroupProjectGrants lists a group's project grants joined with
// their projects, in project insertion order.
func (s *Store) ListGroupProjectGrants(ctx context.Context, groupID int64) ([]storage.Project, []ProjectGrant, error) {
	query := `
		SELECT p.id, p.public_id, p.name, p.creator_id, p.created_at,
		       g.group_id, g.deletable_project, g.creatable_flows, g.deletable_flows, g.readable_flows
		FROM projects p
		JOIN group_project_grants g ON p.id = g.project_id
		WHERE g.group_id = $1
		ORDER BY p.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list group project grants: %w", err)
	}
	defer rows.Close()

	return scanProjectGrants(rows, false)
}

func scanProjectGrants(rows *sql.Rows, fromUser bool) ([]storage.Project, []ProjectGrant, error) {
	var projects []storage.Project
	var grantList []ProjectGrant

	for rows.Next() {
		var project storage.Project
		var grant ProjectGrant
		var principal int64

		err := rows.Scan(
			&project.ID,
			&project.PublicID,
			&project.Name,
			&project.CreatorID,
			&project.CreatedAt,
			&principal,
			&grant.DeletableProject,
			&grant.CreatableFlows,
			&grant.DeletableFlows,
			&grant.ReadableFlows,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan project grant: %w", err)
		}

		grant.ProjectID = project.ID
		if fromUser {
			grant.UserID = &principal
		} else {
			grant.GroupID = &principal
		}

		projects = append(projects, project)
		grantList = append(grantList, grant)
	}

	return projects, grantList, rows.Err()
}

// ListUserFlowGrants lists a user's flow grants within one project,
// joined with their flows, in flow insertion order.
func (s *Store) ListUserFlowGrants(ctx context.Context, userID, projectID int64) ([]storage.Flow, []FlowGrant, error) {
	query := `
		SELECT f.id, f.project_id, f.name, f.creator_id, f.document, f.created_at,
		       g.user_id, g.readable_flow, g.updatable_flow, g.executable_flow
		FROM flows f
		JOIN user_flow_grants g ON f.id = g.flow_id
		WHERE g.user_id = $1 AND f.project_id = $2
		ORDER BY f.created_at ASC, f.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list user flow grants: %w", err)
	}
	defer rows.Close()

	return scanFlowGrants(rows, true)
}

// ListGroupFlowGrants lists a group's flow grants within one project,
// joined with their flows, in flow insertion order.
func (s *Store) ListGroupFlowGrants(ctx context.Context, groupID, projectID int64) ([]storage.Flow, []FlowGrant, error) {
	query := `
		SELECT f.id, f.project_id, f.name, f.creator_id, f.document, f.created_at,
		       g.group_id, g.readable_flow, g.updatable_flow, g.executable_flow
		FROM flows f
		JOIN group_flow_grants g ON f.id = g.flow_id
		WHERE g.group_id = $1 AND f.project_id = $2
		ORDER BY f.created_at ASC, f.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, groupID, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list group flow grants: %w", err)
	}
	defer rows.Close()

	return scanFlowGrants(rows, false)
}

func scanFlowGrants(rows *sql.Rows, fromUser bool) ([]storage.Flow, []FlowGrant, error) {
	var flows []storage.Flow
	var grantList []FlowGrant

	for rows.Next() {
		var flow storage.Flow
		var grant FlowGrant
		var principal int64

		err := rows.Scan(
			&flow.ID,
			&flow.ProjectID,
			&flow.Name,
			&flow.CreatorID,
			&flow.Document,
			&flow.CreatedAt,
			&principal,
			&grant.ReadableFlow,
			&grant.UpdatableFlow,
			&grant.ExecutableFlow,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan flow grant: %w", err)
		}

		grant.FlowID = flow.ID
		if fromUser {
			grant.UserID = &principal
		} else {
			grant.GroupID = &principal
		}

		flows = append(flows, flow)
		grantList = append(grantList, grant)
	}

	return flows, grantList, rows.Err()
}

// DeleteProjectGrants removes every user and group grant for a project
func (s *Store) DeleteProjectGrants(ctx context.Context, projectID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_project_grants WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete user project grants: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM group_project_grants WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete group project grants: %w", err)
	}
	return nil
}

// DeleteFlowGrants removes every user and group grant for a flow
func (s *Store) DeleteFlowGrants(ctx context.Context, flowID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_flow_grants WHERE flow_id = $1`, flowID); err != nil {
		return fmt.Errorf("failed to delete user flow grants: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM group_flow_grants WHERE flow_id = $1`, flowID); err != nil {
		return fmt.Errorf("failed to delete group flow grants: %w", err)
	}
	return nil
}

// DeleteGroupGrants removes every grant row held by a group, across
// both resource kinds. Used when the group itself is deleted.
func (s *Store) DeleteGroupGrants(ctx context.Context, groupID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM group_project_grants WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("failed to delete group project grants: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM group_flow_grants WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("failed to delete group flow grants: %w", err)
	}
	return nil
}

package lifecycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/flowdeck/pkg/access"
	"github.com/platinummonkey/flowdeck/pkg/grants"
	"github.com/platinummonkey/flowdeck/pkg/storage"
)

// Coordinator orchestrates atomic create/delete/update of projects and
// flows together with their grant rows.
type Coordinator struct {
	db          *sql.DB
	users       *storage.UserStore
	groups      *storage.GroupStore
	projects    *storage.ProjectStore
	flows       *storage.FlowStore
	grants      *grants.Store
	resolver    access.GrantResolver
	invalidator access.Invalidator
}

// NewCoordinator creates a new lifecycle coordinator. invalidator may
// be nil when no resolve cache is configured.
func NewCoordinator(db *sql.DB, resolver access.GrantResolver, invalidator access.Invalidator) *Coordinator {
	return &Coordinator{
		db:          db,
		users:       storage.NewUserStore(db),
		groups:      storage.NewGroupStore(db),
		projects:    storage.NewProjectStore(db),
		flows:       storage.NewFlowStore(db),
		grants:      grants.NewStore(db),
		resolver:    resolver,
		invalidator: invalidator,
	}
}

// CreateProject creates a project for the given creator together with
// the creator's owner grant and, when the creator belongs to a group,
// the group's restrictive default grant. The three inserts are one
// atomic unit. Fails with ErrPermissionDenied before any write when the
// creator's projects_creatable flag is off.
func (c *Coordinator) CreateProject(ctx context.Context, creatorID int64, name string) (*storage.Project, error) {
	creator, err := c.users.GetUser(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if !creator.ProjectsCreatable {
		return nil, fmt.Errorf("user %d may not create projects: %w", creatorID, ErrPermissionDenied)
	}

	project := &storage.Project{
		PublicID:  uuid.NewString(),
		Name:      name,
		CreatorID: creatorID,
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}

	if err := c.projects.WithTx(tx).CreateProject(ctx, project); err != nil {
		tx.Rollback()
		return nil, err
	}

	txGrants := c.grants.WithTx(tx)
	if err := txGrants.InsertProjectGrant(ctx, grants.OwnerProjectGrant(creatorID, project.ID)); err != nil {
		tx.Rollback()
		return nil, err
	}

	if creator.GroupID != nil {
		if err := txGrants.InsertProjectGrant(ctx, grants.DefaultGroupProjectGrant(*creator.GroupID, project.ID)); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit project creation: %w", err)
	}

	return project, nil
}

// CreateFlow creates a flow inside the project named by its public
// identifier, together with the creator's owner grant and the group's
// default grant when applicable. Requires creatable_flows on the
// creator's resolved project grant.
func (c *Coordinator) CreateFlow(ctx context.Context, creatorID int64, projectPublicID, name, document string) (*storage.Flow, error) {
	project, err := c.projects.GetProjectByPublicID(ctx, projectPublicID)
	if err != nil {
		return nil, err
	}

	grant, err := c.resolver.ResolveProject(ctx, creatorID, project.ID)
	if err != nil {
		return nil, err
	}
	if grant == nil || !grant.CreatableFlows {
		return nil, fmt.Errorf("user %d may not create flows in project %s: %w", creatorID, projectPublicID, ErrPermissionDenied)
	}

	creator, err := c.users.GetUser(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	flow := &storage.Flow{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		Name:      name,
		CreatorID: creatorID,
		Document:  document,
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}

	if err := c.flows.WithTx(tx).CreateFlow(ctx, flow); err != nil {
		tx.Rollback()
		return nil, err
	}

	txGrants := c.grants.WithTx(tx)
	if err := txGrants.InsertFlowGrant(ctx, grants.OwnerFlowGrant(creatorID, flow.ID)); err != nil {
		tx.Rollback()
		return nil, err
	}

	if creator.GroupID != nil {
		if err := txGrants.InsertFlowGrant(ctx, grants.DefaultGroupFlowGrant(*creator.GroupID, flow.ID)); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit flow creation: %w", err)
	}

	return flow, nil
}

// DeleteProject removes a project, every flow under it, and all grant
// rows for the project and its flows, in one transaction.
func (c *Coordinator) DeleteProject(ctx context.Context, userID int64, projectPublicID string) (Outcome, error) {
	project, err := c.projects.GetProjectByPublicID(ctx, projectPublicID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return OutcomeNotFound, err
		}
		return OutcomeStorageError, err
	}

	grant, err := c.resolver.ResolveProject(ctx, userID, project.ID)
	if err != nil {
		return OutcomeStorageError, err
	}
	if grant == nil || !grant.DeletableProject {
		return OutcomeDenied, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return OutcomeStorageError, fmt.Errorf("failed to start transaction: %w", err)
	}

	txGrants := c.grants.WithTx(tx)

	flowIDs, err := c.flows.WithTx(tx).DeleteFlowsByProject(ctx, project.ID)
	if err != nil {
		tx.Rollback()
		return OutcomeStorageError, err
	}
	for _, flowID := range flowIDs {
		if err := txGrants.DeleteFlowGrants(ctx, flowID); err != nil {
			tx.Rollback()
			return OutcomeStorageError, err
		}
	}

	if err := txGrants.DeleteProjectGrants(ctx, project.ID); err != nil {
		tx.Rollback()
		return OutcomeStorageError, err
	}

	if err := c.projects.WithTx(tx).DeleteProject(ctx, project.ID); err != nil {
		tx.Rollback()
		return OutcomeStorageError, err
	}

	if err := tx.Commit(); err != nil {
		return OutcomeStorageError, fmt.Errorf("failed to commit project deletion: %w", err)
	}

	c.invalidateProject(ctx, project.ID)
	return OutcomeOK, nil
}

// DeleteFlow removes a single flow and its grant rows in one
// transaction. Requires deletable_flows on the principal's resolved
// grant for the owning project.
func (c *Coordinator) DeleteFlow(ctx context.Context, userID int64, flowID string) (Outcome, error) {
	flow, err := c.flows.GetFlow(ctx, flowID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return OutcomeNotFound, err
		}
		return OutcomeStorageError, err
	}

	grant, err := c.resolver.ResolveProject(ctx, userID, flow.ProjectID)
	if err != nil {
		return OutcomeStorageError, err
	}
	if grant == nil || !grant.DeletableFlows {
		return OutcomeDenied, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return OutcomeStorageError, fmt.Errorf("failed to start transaction: %w", err)
	}

	if err := c.grants.WithTx(tx).DeleteFlowGrants(ctx, flowID); err != nil {
		tx.Rollback()
		return OutcomeStorageError, err
	}
	if err := c.flows.WithTx(tx).DeleteFlow(ctx, flowID); err != nil {
		tx.Rollback()
		return OutcomeStorageError, err
	}

	if err := tx.Commit(); err != nil {
		return OutcomeStorageError, fmt.Errorf("failed to commit flow deletion: %w", err)
	}

	c.invalidateFlow(ctx, flowID)
	return OutcomeOK, nil
}

// UpdateFlowDocument merges partial into the flow's document: keys in
// partial override, keys absent from partial are preserved. Requires
// updatable_flow on the principal's resolved flow grant.
func (c *Coordinator) UpdateFlowDocument(ctx context.Context, userID int64, flowID, partial string) (Outcome, error) {
	flow, err := c.flows.GetFlow(ctx, flowID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return OutcomeNotFound, err
		}
		return OutcomeStorageError, err
	}

	grant, err := c.resolver.ResolveFlow(ctx, userID, flowID)
	if err != nil {
		return OutcomeStorageError, err
	}
	if grant == nil || !grant.UpdatableFlow {
		return OutcomeDenied, nil
	}

	merged, err := mergeDocuments(flow.Document, partial)
	if err != nil {
		return OutcomeStorageError, err
	}

	if err := c.flows.UpdateDocument(ctx, flowID, merged); err != nil {
		return OutcomeStorageError, err
	}

	return OutcomeOK, nil
}

// DeleteGroup removes a group together with every grant row it holds
// and detaches its members, in one transaction. Leaving the grant rows
// behind would orphan them; the cascade keeps the store consistent.
func (c *Coordinator) DeleteGroup(ctx context.Context, groupID int64) error {
	if _, err := c.groups.GetGroup(ctx, groupID); err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	if err := c.grants.WithTx(tx).DeleteGroupGrants(ctx, groupID); err != nil {
		tx.Rollback()
		return err
	}

	txGroups := c.groups.WithTx(tx)
	if err := txGroups.DetachMembers(ctx, groupID); err != nil {
		tx.Rollback()
		return err
	}
	if err := txGroups.DeleteGroup(ctx, groupID); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group deletion: %w", err)
	}

	if c.invalidator != nil {
		c.invalidator.InvalidateAll(ctx)
	}
	return nil
}

func (c *Coordinator) invalidateProject(ctx context.Context, projectID int64) {
	if c.invalidator != nil {
		c.invalidator.InvalidateProject(ctx, projectID)
	}
}

func (c *Coordinator) invalidateFlow(ctx context.Context, flowID string) {
	if c.invalidator != nil {
		c.invalidator.InvalidateFlow(ctx, flowID)
	}
}

// mergeDocuments shallow-merges two JSON objects: keys in partial
// override keys in base, everything else in base survives.
func mergeDocuments(base, partial string) (string, error) {
	merged := make(map[string]json.RawMessage)
	if base != "" {
		if err := json.Unmarshal([]byte(base), &merged); err != nil {
			return "", fmt.Errorf("failed to decode stored document: %w", err)
		}
	}

	overlay := make(map[string]json.RawMessage)
	if err := json.Unmarshal([]byte(partial), &overlay); err != nil {
		return "", fmt.Errorf("failed to decode partial document: %w", err)
	}

	for key, value := range overlay {
		merged[key] = value
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return "", fmt.Errorf("failed to encode merged document: %w", err)
	}
	return string(out), nil
}

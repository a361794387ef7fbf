package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GroupStore handles group row persistence
type GroupStore struct {
	db DBTX
}

// NewGroupStore creates a new group store
func NewGroupStore(db DBTX) *GroupStore {
	return &GroupStore{db: db}
}

// WithTx returns a store bound to the given transaction
func (s *GroupStore) WithTx(tx *sql.Tx) *GroupStore {
	return &GroupStore{db: tx}
}

// CreateGroup inserts a new group row
func (s *GroupStore) CreateGroup(ctx context.Context, group *Group) error {
	query := `
		INSERT INTO groups (name, projects_creatable, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query, group.Name, group.ProjectsCreatable, now).Scan(&group.ID)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	group.CreatedAt = now
	return nil
}

// GetGroup retrieves a group by id
func (s *GroupStore) GetGroup(ctx context.Context, groupID int64) (*Group, error) {
	query := `
		SELECT id, name, projects_creatable, created_at
		FROM groups
		WHERE id = $1
	`

	var group Group
	err := s.db.QueryRowContext(ctx, query, groupID).Scan(
		&group.ID,
		&group.Name,
		&group.ProjectsCreatable,
		&group.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group %d: %w", groupID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return &group, nil
}

// DeleteGroup removes the group row. Grant-row cleanup and member
// detachment belong to the lifecycle coordinator's transaction; this
// method deletes only the row itself.
func (s *GroupStore) DeleteGroup(ctx context.Context, groupID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return requireRow(result, "group", groupID)
}

// DetachMembers clears group membership for every user in the group
func (s *GroupStore) DetachMembers(ctx context.Context, groupID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET group_id = NULL WHERE group_id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("failed to detach group members: %w", err)
	}
	return nil
}

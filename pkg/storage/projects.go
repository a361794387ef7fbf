package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ProjectStore handles project row persistence
type ProjectStore struct {
	db DBTX
}

// NewProjectStore creates a new project store
func NewProjectStore(db DBTX) *ProjectStore {
	return &ProjectStore{db: db}
}

// WithTx returns a store bound to the given transaction
func (s *ProjectStore) WithTx(tx *sql.Tx) *ProjectStore {
	return &ProjectStore{db: tx}
}

// CreateProject inserts a new project row. PublicID must already be
// set; the lifecycle coordinator generates it.
func (s *ProjectStore) CreateProject(ctx context.Context, project *Project) error {
	query := `
		INSERT INTO projects (public_id, name, creator_id, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		project.PublicID,
		project.Name,
		project.CreatorID,
		now,
	).Scan(&project.ID)

	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	project.CreatedAt = now
	return nil
}

// GetProject retrieves a project by internal id
func (s *ProjectStore) GetProject(ctx context.Context, projectID int64) (*Project, error) {
	query := `
		SELECT id, public_id, name, creator_id, created_at
		FROM projects
		WHERE id = $1
	`
	return s.getOne(ctx, query, projectID)
}

// GetProjectByPublicID retrieves a project by its external identifier
func (s *ProjectStore) GetProjectByPublicID(ctx context.Context, publicID string) (*Project, error) {
	query := `
		SELECT id, public_id, name, creator_id, created_at
		FROM projects
		WHERE public_id = $1
	`
	return s.getOne(ctx, query, publicID)
}

func (s *ProjectStore) getOne(ctx context.Context, query string, arg interface{}) (*Project, error) {
	var project Project
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&project.ID,
		&project.PublicID,
		&project.Name,
		&project.CreatorID,
		&project.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

// DeleteProject removes a project row. The cascade over flows and
// grant rows is owned by the lifecycle coordinator's transaction.
func (s *ProjectStore) DeleteProject(ctx context.Context, projectID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return requireRow(result, "project", projectID)
}

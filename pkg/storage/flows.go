package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// FlowStore handles flow row persistence
type FlowStore struct {
	db DBTX
}

// NewFlowStore creates a new flow store
func NewFlowStore(db DBTX) *FlowStore {
	return &FlowStore{db: db}
}

// WithTx returns a store bound to the given transaction
func (s *FlowStore) WithTx(tx *sql.Tx) *FlowStore {
	return &FlowStore{db: tx}
}

// CreateFlow inserts a new flow row. ID must already be set; the
// lifecycle coordinator generates it.
func (s *FlowStore) CreateFlow(ctx context.Context, flow *Flow) error {
	query := `
		INSERT INTO flows (id, project_id, name, creator_id, document, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if flow.Document == "" {
		flow.Document = "{}"
	}

	now := time.Now()
	_, err := s.db.ExecContext(ctx, query,
		flow.ID,
		flow.ProjectID,
		flow.Name,
		flow.CreatorID,
		flow.Document,
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to create flow: %w", err)
	}

	flow.CreatedAt = now
	return nil
}

// GetFlow retrieves a flow by its UUID
func (s *FlowStore) GetFlow(ctx context.Context, flowID string) (*Flow, error) {
	query := `
		SELECT id, project_id, name, creator_id, document, created_at
		FROM flows
		WHERE id = $1
	`

	var flow Flow
	err := s.db.QueryRowContext(ctx, query, flowID).Scan(
		&flow.ID,
		&flow.ProjectID,
		&flow.Name,
		&flow.CreatorID,
		&flow.Document,
		&flow.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("flow %s: %w", flowID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}

	return &flow, nil
}

// ListFlowsByProject lists all flows in a project in insertion order
func (s *FlowStore) ListFlowsByProject(ctx context.Context, projectID int64) ([]Flow, error) {
	query := `
		SELECT id, project_id, name, creator_id, document, created_at
		FROM flows
		WHERE project_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	defer rows.Close()

	var flows []Flow
	for rows.Next() {
		var flow Flow
		err := rows.Scan(
			&flow.ID,
			&flow.ProjectID,
			&flow.Name,
			&flow.CreatorID,
			&flow.Document,
			&flow.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		flows = append(flows, flow)
	}

	return flows, rows.Err()
}

// UpdateDocument replaces a flow's document payload
func (s *FlowStore) UpdateDocument(ctx context.Context, flowID string, document string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE flows SET document = $1 WHERE id = $2`, document, flowID)
	if err != nil {
		return fmt.Errorf("failed to update flow document: %w", err)
	}
	return requireRow(result, "flow", flowID)
}

// DeleteFlow removes a single flow row
func (s *FlowStore) DeleteFlow(ctx context.Context, flowID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE id = $1`, flowID)
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}
	return requireRow(result, "flow", flowID)
}

// DeleteFlowsByProject removes every flow row in a project and returns
// the ids of the removed flows so the caller can clean up their grant
// rows inside the same transaction.
func (s *FlowStore) DeleteFlowsByProject(ctx context.Context, projectID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM flows WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project flows: %w", err)
	}

	var flowIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan flow id: %w", err)
		}
		flowIDs = append(flowIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read project flows: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE project_id = $1`, projectID); err != nil {
		return nil, fmt.Errorf("failed to delete project flows: %w", err)
	}

	return flowIDs, nil
}

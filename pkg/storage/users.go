package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UserStore handles user row persistence
type UserStore struct {
	db DBTX
}

// NewUserStore creates a new user store
func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

// WithTx returns a store bound to the given transaction
func (s *UserStore) WithTx(tx *sql.Tx) *UserStore {
	return &UserStore{db: tx}
}

// CreateUser inserts a new user row
func (s *UserStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (group_id, name, email, password_hash, projects_creatable, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		user.GroupID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.ProjectsCreatable,
		now,
	).Scan(&user.ID)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.CreatedAt = now
	return nil
}

// GetUser retrieves a user by internal id
func (s *UserStore) GetUser(ctx context.Context, userID int64) (*User, error) {
	query := `
		SELECT id, group_id, name, email, password_hash, projects_creatable, created_at
		FROM users
		WHERE id = $1
	`
	return s.getOne(ctx, query, userID)
}

// GetUserByEmail retrieves a user by its unique email
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, group_id, name, email, password_hash, projects_creatable, created_at
		FROM users
		WHERE email = $1
	`
	return s.getOne(ctx, query, email)
}

func (s *UserStore) getOne(ctx context.Context, query string, arg interface{}) (*User, error) {
	var user User
	var groupID sql.NullInt64

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&groupID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.ProjectsCreatable,
		&user.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if groupID.Valid {
		id := groupID.Int64
		user.GroupID = &id
	}

	return &user, nil
}

// UpdateUserEmail changes a user's email address. The caller is
// expected to have confirmed the new address out of band.
func (s *UserStore) UpdateUserEmail(ctx context.Context, userID int64, email string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET email = $1 WHERE id = $2`, email, userID)
	if err != nil {
		return fmt.Errorf("failed to update user email: %w", err)
	}
	return requireRow(result, "user", userID)
}

// AssignGroup puts a user into a group, replacing any previous
// membership. A user belongs to at most one group.
func (s *UserStore) AssignGroup(ctx context.Context, userID, groupID int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET group_id = $1 WHERE id = $2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to assign user to group: %w", err)
	}
	return requireRow(result, "user", userID)
}

// LeaveGroup removes a user's group membership
func (s *UserStore) LeaveGroup(ctx context.Context, userID int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET group_id = NULL WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to remove user from group: %w", err)
	}
	return requireRow(result, "user", userID)
}

// requireRow converts a zero-row update into ErrNotFound
func requireRow(result sql.Result, kind string, id interface{}) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %v: %w", kind, id, ErrNotFound)
	}
	return nil
}

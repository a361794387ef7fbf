package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a required row does not exist. Callers
// that need "no grant" semantics instead of a hard failure translate it
// at the resolver layer.
var ErrNotFound = errors.New("not found")

// DBTX is the subset of database/sql used by the stores. Both *sql.DB
// and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// User represents an account that can own projects. A user belongs to
// at most one group; GroupID is nil for unaffiliated users.
type User struct {
	ID                 int64     `json:"id"`
	GroupID            *int64    `json:"group_id,omitempty"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"-"`
	ProjectsCreatable  bool      `json:"projects_creatable"`
	CreatedAt          time.Time `json:"created_at"`
}

// Group represents the single group a user may belong to. The
// ProjectsCreatable flag is carried for symmetry with users but is
// never consulted: the user-level flag always governs project creation.
type Group struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	ProjectsCreatable bool      `json:"projects_creatable"`
	CreatedAt         time.Time `json:"created_at"`
}

// Project represents a container of flows. PublicID is a random UUID
// and the only handle external callers ever see; the sequential ID is
// internal and used for grant-table joins only.
type Project struct {
	ID        int64     `json:"-"`
	PublicID  string    `json:"id"`
	Name      string    `json:"name"`
	CreatorID int64     `json:"creator_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Flow represents a flow inside a project. Flows are keyed directly by
// their UUID; there is no separate internal id. Document is an opaque
// JSON payload the engine stores but does not interpret.
type Flow struct {
	ID        string    `json:"id"`
	ProjectID int64     `json:"-"`
	Name      string    `json:"name"`
	CreatorID int64     `json:"creator_id"`
	Document  string    `json:"document"`
	CreatedAt time.Time `json:"created_at"`
}

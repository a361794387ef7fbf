package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Dialect selects the SQL flavor migrations are rendered in.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// DialectFromURL maps a storage URL to its migration dialect, matching
// the driver selection in Open.
func DialectFromURL(url string) Dialect {
	if strings.HasPrefix(url, "sqlite:") {
		return DialectSQLite
	}
	return DialectPostgres
}

// serialPK and now are the only two DDL fragments the dialects disagree
// on; everything else below is common SQL.
func (d Dialect) serialPK() string {
	if d == DialectSQLite {
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return "BIGSERIAL PRIMARY KEY"
}

func (d Dialect) now() string {
	if d == DialectSQLite {
		return "CURRENT_TIMESTAMP"
	}
	return "NOW()"
}

// GetMigrations returns all Flowdeck migrations rendered for the given
// dialect.
func GetMigrations(dialect Dialect) []Migration {
	serial := dialect.serialPK()
	now := dialect.now()

	return []Migration{
		{
			Version:     1,
			Description: "Create groups table",
			SQL: fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS groups (
					id %s,
					name VARCHAR(64) NOT NULL,
					projects_creatable BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT %s,
					UNIQUE(name)
				);
			`, serial, now),
		},
		{
			Version:     2,
			Description: "Create users table",
			SQL: fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS users (
					id %s,
					group_id BIGINT REFERENCES groups(id) ON DELETE SET NULL,
					name VARCHAR(64) NOT NULL,
					email VARCHAR(256) NOT NULL,
					password_hash VARCHAR(128) NOT NULL DEFAULT '',
					projects_creatable BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT %s,
					UNIQUE(email)
				);

				CREATE INDEX idx_users_group_id ON users(group_id);
			`, serial, now),
		},
		{
			Version:     3,
			Description: "Create projects table",
			SQL: fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS projects (
					id %s,
					public_id VARCHAR(36) NOT NULL,
					name VARCHAR(64) NOT NULL,
					creator_id BIGINT NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT %s,
					UNIQUE(public_id)
				);

				CREATE INDEX idx_projects_creator_id ON projects(creator_id);
			`, serial, now),
		},
		{
			Version:     4,
			Description: "Create flows table",
			SQL: fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS flows (
					id VARCHAR(36) PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id),
					name VARCHAR(64) NOT NULL,
					creator_id BIGINT NOT NULL,
					document TEXT NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT %s
				);

				CREATE INDEX idx_flows_project_id ON flows(project_id);
			`, now),
		},
		{
			Version:     5,
			Description: "Create project grant tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_project_grants (
					user_id BIGINT NOT NULL,
					project_id BIGINT NOT NULL,
					deletable_project BOOLEAN NOT NULL DEFAULT TRUE,
					creatable_flows BOOLEAN NOT NULL DEFAULT TRUE,
					deletable_flows BOOLEAN NOT NULL DEFAULT TRUE,
					readable_flows BOOLEAN NOT NULL DEFAULT TRUE,
					PRIMARY KEY (user_id, project_id)
				);

				CREATE TABLE IF NOT EXISTS group_project_grants (
					group_id BIGINT NOT NULL,
					project_id BIGINT NOT NULL,
					deletable_project BOOLEAN NOT NULL DEFAULT FALSE,
					creatable_flows BOOLEAN NOT NULL DEFAULT FALSE,
					deletable_flows BOOLEAN NOT NULL DEFAULT FALSE,
					readable_flows BOOLEAN NOT NULL DEFAULT TRUE,
					PRIMARY KEY (group_id, project_id)
				);

				CREATE INDEX idx_user_project_grants_project_id ON user_project_grants(project_id);
				CREATE INDEX idx_group_project_grants_project_id ON group_project_grants(project_id);
			`,
		},
		{
			Version:     6,
			Description: "Create flow grant tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_flow_grants (
					user_id BIGINT NOT NULL,
					flow_id VARCHAR(36) NOT NULL,
					readable_flow BOOLEAN NOT NULL DEFAULT TRUE,
					updatable_flow BOOLEAN NOT NULL DEFAULT TRUE,
					executable_flow BOOLEAN NOT NULL DEFAULT TRUE,
					PRIMARY KEY (user_id, flow_id)
				);

				CREATE TABLE IF NOT EXISTS group_flow_grants (
					group_id BIGINT NOT NULL,
					flow_id VARCHAR(36) NOT NULL,
					readable_flow BOOLEAN NOT NULL DEFAULT TRUE,
					updatable_flow BOOLEAN NOT NULL DEFAULT FALSE,
					executable_flow BOOLEAN NOT NULL DEFAULT TRUE,
					PRIMARY KEY (group_id, flow_id)
				);

				CREATE INDEX idx_user_flow_grants_flow_id ON user_flow_grants(flow_id);
				CREATE INDEX idx_group_flow_grants_flow_id ON group_flow_grants(flow_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB, dialect Dialect) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS flowdeck_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT %s
		)
	`, dialect.now()))
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM flowdeck_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations(dialect) {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO flowdeck_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

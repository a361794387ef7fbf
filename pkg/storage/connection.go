package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver for dev mode
)

// ConnectionConfig holds database connection configuration.
type ConnectionConfig struct {
	// URL is either a postgres:// URL or a sqlite path of the form
	// "sqlite:<file>" ("sqlite::memory:" for an in-memory dev store).
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// DefaultConnectionConfig returns connection defaults suitable for a
// single-instance deployment.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxConns:    25,
		MinConns:    5,
		Timeout:     10 * time.Second,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
	}
}

// Open opens, configures and pings a database connection. The driver is
// chosen from the URL scheme.
func Open(ctx context.Context, config ConnectionConfig) (*sql.DB, error) {
	driver, dsn, err := splitDriver(config.URL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}

	db.SetMaxOpenConns(config.MaxConns)
	db.SetMaxIdleConns(config.MinConns)
	db.SetConnMaxLifetime(config.MaxLifetime)
	db.SetConnMaxIdleTime(config.MaxIdleTime)

	// Each pooled connection to an in-memory sqlite database is its own
	// empty database; a single connection keeps the dev store coherent.
	if driver == "sqlite3" && strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// splitDriver maps a storage URL to a database/sql driver name and DSN.
func splitDriver(url string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres", url, nil
	case strings.HasPrefix(url, "sqlite:"):
		return "sqlite3", strings.TrimPrefix(url, "sqlite:"), nil
	case url == "":
		return "", "", fmt.Errorf("database URL is required")
	default:
		return "", "", fmt.Errorf("unsupported database URL: %s", url)
	}
}

// Package db implements the embedded SQLite store for trip sessions and
// telemetry samples.
package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection and exposes session/telemetry operations.
type DB struct {
	*sql.DB
}

// OpenDB opens the SQLite database at path without touching the schema.
// Foreign key enforcement is switched on so telemetry rows cannot reference
// a session that does not exist.
func OpenDB(path string) (*DB, error) {
	dsn := path
	if !strings.Contains(path, "?") {
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// A single writer connection keeps all storage writes serialized; SQLite
	// would otherwise interleave them across pooled connections.
	sqlDB.SetMaxOpenConns(1)

	return &DB{sqlDB}, nil
}

// NewDB opens the database and brings the schema to the latest migration
// version. It is safe to call on every process start; a database that cannot
// reach a working schema is reported as a *SchemaError.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, &SchemaError{Err: err}
	}

	return db, nil
}

// formatTime renders a timestamp as an ISO-8601 UTC string for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a stored ISO-8601 timestamp back into a time.Time.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}

// Package sqlitedb opens the SQLite database shared by the session store and the
// reference library, applying schema migrations tracked in user_version.
package sqlitedb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version. Bump it when adding migrations.
const CurrentSchemaVersion = 2

var migrations = []string{
	// 0 -> 1: draft sessions
	`
	CREATE TABLE IF NOT EXISTS sessions (
	  id         TEXT PRIMARY KEY,
	  status     TEXT NOT NULL,
	  state_json TEXT NOT NULL,
	  created_at INTEGER NOT NULL,
	  updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at DESC);
	`,
	// 1 -> 2: reference library
	`
	CREATE TABLE IF NOT EXISTS templates (
	  id            TEXT PRIMARY KEY,
	  document_type TEXT NOT NULL,
	  name          TEXT NOT NULL,
	  body          TEXT NOT NULL,
	  created_at    INTEGER NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_templates_type_name ON templates(document_type, name);

	CREATE TABLE IF NOT EXISTS clauses (
	  id            TEXT PRIMARY KEY,
	  document_type TEXT NOT NULL,
	  title         TEXT NOT NULL,
	  body          TEXT NOT NULL,
	  requires_key  TEXT,
	  position      INTEGER NOT NULL,
	  created_at    INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_clauses_type ON clauses(document_type, position);
	`,
}

// Open opens (creating if needed) the database file at path and migrates it.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}
	for v := version; v < len(migrations); v++ {
		if _, err := db.Exec(migrations[v]); err != nil {
			return fmt.Errorf("migration %d failed: %w", v+1, err)
		}
		if err := SetUserVersion(db, v+1); err != nil {
			return err
		}
	}
	return nil
}

func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

func SetUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

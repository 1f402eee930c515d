// Package index provides a SQLite-backed index of the story library with
// optional FTS5 full-text search over passages.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS stories (
	path            TEXT PRIMARY KEY,
	name            TEXT NOT NULL DEFAULT '',
	ifid            TEXT NOT NULL DEFAULT '',
	startnode       TEXT NOT NULL DEFAULT '',
	creator         TEXT NOT NULL DEFAULT '',
	creator_version TEXT NOT NULL DEFAULT '',
	checksum        TEXT NOT NULL DEFAULT '',
	passages        INTEGER NOT NULL DEFAULT 0,
	broken          INTEGER NOT NULL DEFAULT 0,
	compiled        TEXT NOT NULL DEFAULT '{}',
	updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS passages (
	story_path TEXT NOT NULL REFERENCES stories(path) ON DELETE CASCADE,
	ord        INTEGER NOT NULL,
	pid        TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	text       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (story_path, ord)
);

CREATE TABLE IF NOT EXISTS links (
	story_path  TEXT NOT NULL REFERENCES stories(path) ON DELETE CASCADE,
	source_pid  TEXT NOT NULL DEFAULT '',
	source_name TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL DEFAULT '',
	target      TEXT NOT NULL DEFAULT '',
	target_pid  TEXT NOT NULL DEFAULT '',
	broken      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_passages_name ON passages(story_path, name);
CREATE INDEX IF NOT EXISTS idx_links_story ON links(story_path);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(story_path, target);
CREATE INDEX IF NOT EXISTS idx_links_broken ON links(broken);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Package store persists projects, keyword result rows and the AI usage
// ledger in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3_kwcat"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	name                   TEXT NOT NULL DEFAULT '',
	topic                  TEXT NOT NULL DEFAULT '',
	ai_categories          TEXT,
	ai_categorization_done INTEGER NOT NULL DEFAULT 0,
	updated_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS keyword_results (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id    INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	keyword       TEXT NOT NULL,
	search_volume REAL,
	cpc           REAL,
	competition   TEXT,
	category      TEXT,
	UNIQUE(project_id, keyword)
);

CREATE TABLE IF NOT EXISTS raw_keyword_results (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id    INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	keyword       TEXT NOT NULL,
	search_volume REAL,
	cpc           REAL,
	competition   TEXT,
	category      TEXT,
	UNIQUE(project_id, keyword)
);

CREATE TABLE IF NOT EXISTS ai_usage_log (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT NOT NULL,
	project_id      INTEGER NOT NULL,
	provider        TEXT NOT NULL,
	model           TEXT NOT NULL DEFAULT '',
	input_tokens    INTEGER NOT NULL DEFAULT 0,
	output_tokens   INTEGER NOT NULL DEFAULT 0,
	latency_ms      INTEGER NOT NULL DEFAULT 0,
	success         INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT '',
	prompt_checksum TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_usage_project ON ai_usage_log(project_id);
`

var registerOnce sync.Once

// registerDriver installs a sqlite3 driver whose connections expose
// kw_lower(text). SQLite's built-in lower() only folds ASCII, so keyword
// matching goes through Go's Unicode-aware strings.ToLower instead.
func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("kw_lower", strings.ToLower, true)
			},
		})
	})
}

// DB wraps a sql.DB with project and keyword result operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	registerDriver()
	conn, err := sql.Open(driverName, dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping reports whether the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS chat_sessions (
		id                  TEXT PRIMARY KEY,
		device_id           TEXT NOT NULL,
		created_at_ns       INTEGER NOT NULL,
		ended_at_ns         INTEGER,
		last_activity_at_ns INTEGER NOT NULL,
		crisis_flag         INTEGER NOT NULL DEFAULT 0,
		crisis_flag_reason  TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_chat_sessions_device ON chat_sessions (device_id, created_at_ns);`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id             TEXT PRIMARY KEY,
		session_id     TEXT NOT NULL REFERENCES chat_sessions (id),
		seq            INTEGER NOT NULL,
		sender         TEXT NOT NULL,
		text           TEXT NOT NULL,
		safety_flag    TEXT NOT NULL DEFAULT 'none',
		suggested_tool TEXT,
		created_at_ns  INTEGER NOT NULL,
		UNIQUE (session_id, seq)
	);`,
}

// OpenSQLite abre (o crea) la base local y aplica el esquema.
// Una sola conexión abierta serializa las escrituras.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "companion.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	for _, stmt := range sqliteSchema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

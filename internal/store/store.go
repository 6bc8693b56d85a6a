// Package store owns the shared SQLite database: opening, schema, migrations.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Sentinel errors shared by the registry services.
var (
	// ErrNotFound is returned when a spec, org, or lookup target is absent.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for malformed input (empty name, bad enum, out-of-range score).
	ErrValidation = errors.New("validation error")
)

// Open opens (or creates) the registry database at dbPath and applies the
// schema plus best-effort migrations for older databases.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open registry db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	migrate(db)
	slog.Debug("Store: database ready", "path", dbPath)
	return db, nil
}

// OpenMemory opens an in-memory database. Used by tests and the seed command
// dry-run mode.
func OpenMemory() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}

// migrate applies best-effort column additions for databases created by
// earlier schema revisions. Errors are ignored (no-op if the column exists).
func migrate(db *sql.DB) {
	// Provenance columns arrived after the first schema revision.
	_, _ = db.Exec(`ALTER TABLE spec_objects ADD COLUMN source_type TEXT NOT NULL DEFAULT 'native'`)
	_, _ = db.Exec(`ALTER TABLE spec_objects ADD COLUMN source_url TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE spec_objects ADD COLUMN upstream_version TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE spec_objects ADD COLUMN source_ref TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE spec_objects ADD COLUMN sync_status TEXT NOT NULL DEFAULT 'synced'`)
	_, _ = db.Exec(`ALTER TABLE spec_objects ADD COLUMN last_sync DATETIME`)
	// Embedding rows gained an explicit chunk index.
	_, _ = db.Exec(`ALTER TABLE spec_embeddings ADD COLUMN chunk_index INTEGER NOT NULL DEFAULT 0`)
	// Conversation memory gained structured tool-call records.
	_, _ = db.Exec(`ALTER TABLE memory_conversations ADD COLUMN tool_calls TEXT`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_log(session_id)`)
}

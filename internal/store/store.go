// Package store provides the embedded local replica for clubsync.
//
// The store is a schema-typed SQLite database holding one table per synced
// entity type plus per-table sync cursors. It runs in embedded mode with
// WAL so UI reads stay concurrent with sync-engine writes.
//
// Every table shares the same column shape: the record envelope (id,
// payload fields, updated_at) plus sync metadata (dirty, tombstoned,
// reject_reason). Dirty and updated_at are only ever assigned through the
// change tracker; callers use Put/Tombstone and never touch the flags.
//
// Writes from the sync engine's pull phase go through MergeRemote, which
// applies a whole page and its cursor advance inside one transaction, so a
// crash mid-merge never leaves a table half-updated relative to its cursor.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/clubops/clubsync/internal/schema"
	"github.com/clubops/clubsync/internal/track"
)

// timeFormat is the persisted timestamp layout. Nanosecond precision keeps
// last-writer-wins comparisons faithful to the in-memory values.
const timeFormat = time.RFC3339Nano

// Store wraps the embedded SQLite database with sync-aware record access.
type Store struct {
	conn    *sql.DB
	path    string
	tracker *track.Tracker
}

// Open creates a store at the given path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If it doesn't exist it is created; call InitSchema before first use.
// If tracker is nil a wall-clock tracker is used.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	st, err := store.Open(".clubsync/local.db", nil)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string, tracker *track.Tracker) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if tracker == nil {
		tracker = track.New(nil)
	}

	st := &Store{
		conn:    conn,
		path:    path,
		tracker: tracker,
	}

	// WAL mode for concurrent reads
	if _, err := st.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := st.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return st, nil
}

// Tracker returns the change tracker stamping this store's writes.
func (s *Store) Tracker() *track.Tracker {
	return s.tracker
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates one table per synced entity type plus the cursor
// table. Idempotent - safe to call multiple times.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	for _, table := range schema.Tables() {
		ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			fields TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL,
			dirty INTEGER NOT NULL DEFAULT 0,
			tombstoned INTEGER NOT NULL DEFAULT 0,
			reject_reason TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_dirty ON %[1]s(dirty);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_tombstoned ON %[1]s(tombstoned);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_updated ON %[1]s(updated_at);
		`, table)

		if _, err := s.conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to initialize %s table: %w", table, err)
		}
	}

	cursors := `
	CREATE TABLE IF NOT EXISTS sync_cursors (
		tbl TEXT PRIMARY KEY,
		cursor TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := s.conn.ExecContext(ctx, cursors); err != nil {
		return fmt.Errorf("failed to initialize cursor table: %w", err)
	}

	return nil
}

// checkTable rejects table names that are not in the schema registry.
// Table names are interpolated into SQL, so this is the only gate.
func checkTable(table string) error {
	if !schema.KnownTable(table) {
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clubops/clubsync/internal/schema"
)

// GetCursor returns the pull watermark for a table, or "" if the table has
// never been pulled.
func (s *Store) GetCursor(ctx context.Context, table string) (string, error) {
	if err := checkTable(table); err != nil {
		return "", err
	}

	var cursor string
	err := s.conn.QueryRowContext(ctx,
		`SELECT cursor FROM sync_cursors WHERE tbl = ?`, table).Scan(&cursor)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cursor for %s: %w", table, err)
	}
	return cursor, nil
}

// SetCursor persists the pull watermark for a table.
//
// Normal operation advances cursors only through MergeRemote so the cursor
// and the merged data move together; SetCursor exists for the explicit
// full-resync path.
func (s *Store) SetCursor(ctx context.Context, table, cursor string) error {
	if err := checkTable(table); err != nil {
		return err
	}

	query := `
	INSERT INTO sync_cursors (tbl, cursor, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(tbl) DO UPDATE SET
		cursor = excluded.cursor,
		updated_at = excluded.updated_at
	`
	_, err := s.conn.ExecContext(ctx, query, table, cursor, s.tracker.Now().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("failed to set cursor for %s: %w", table, err)
	}
	return nil
}

// ResetCursors rewinds the cursors for the given tables (all tables when
// none are named) so the next cycle repulls from the beginning. This is the
// one sanctioned cursor rewind.
func (s *Store) ResetCursors(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		tables = schema.Tables()
	}
	for _, table := range tables {
		if err := checkTable(table); err != nil {
			return err
		}
		if _, err := s.conn.ExecContext(ctx,
			`DELETE FROM sync_cursors WHERE tbl = ?`, table); err != nil {
			return fmt.Errorf("failed to reset cursor for %s: %w", table, err)
		}
	}
	return nil
}

// setCursorTx advances a cursor inside the merge transaction.
func setCursorTx(ctx context.Context, tx *sql.Tx, table, cursor string, now time.Time) error {
	query := `
	INSERT INTO sync_cursors (tbl, cursor, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(tbl) DO UPDATE SET
		cursor = excluded.cursor,
		updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, table, cursor, now.Format(timeFormat)); err != nil {
		return fmt.Errorf("failed to advance cursor for %s: %w", table, err)
	}
	return nil
}

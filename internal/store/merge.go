package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clubops/clubsync/internal/schema"
)

// MergeBatch is one page of remote changes to reconcile into a table.
type MergeBatch struct {
	Records    []*schema.Record
	DeletedIDs []string
	NextCursor string
}

// Conflict describes a record where a remote change met a dirty local copy
// and last-writer-wins had to pick a side. RemoteWon conflicts mean a local
// edit was discarded; callers surface these for "your change was
// overridden" messaging.
type Conflict struct {
	ID              string
	LocalUpdatedAt  time.Time
	RemoteUpdatedAt time.Time
	RemoteWon       bool
}

// MergeResult summarizes what a MergeRemote call did.
type MergeResult struct {
	Inserted   int
	Updated    int
	Deleted    int
	LocalWins  int
	RemoteWins int
	Conflicts  []Conflict
}

// MergeRemote reconciles one pulled page into a table.
//
// The whole batch, including the cursor advance, is applied in a single
// transaction: after a crash the table is either pre-merge or fully merged,
// never in between, and the cursor never runs ahead of the data.
//
// Resolution per incoming record:
//   - no local copy: insert clean
//   - clean local copy: overwrite with the remote version
//   - dirty local copy: last-writer-wins on updated_at; ties favor the
//     remote so all devices converge without an identity tiebreak
//
// Remote deletions tombstone clean local copies immediately. A dirty local
// copy survives a remote delete (it will be re-pushed), except when it is
// itself a tombstone, in which case both sides already agree and the
// deletion is treated as acknowledged.
func (s *Store) MergeRemote(ctx context.Context, table string, batch MergeBatch) (*MergeResult, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer tx.Rollback()

	res := &MergeResult{}

	for _, remote := range batch.Records {
		if err := schema.ValidateRecord(table, remote); err != nil {
			return nil, fmt.Errorf("refusing to merge: %w", err)
		}
		if err := s.mergeRecord(ctx, tx, table, remote, res); err != nil {
			return nil, err
		}
	}

	for _, id := range batch.DeletedIDs {
		if err := s.mergeDeletion(ctx, tx, table, id, res); err != nil {
			return nil, err
		}
	}

	if batch.NextCursor != "" {
		if err := setCursorTx(ctx, tx, table, batch.NextCursor, s.tracker.Now()); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit merge: %w", err)
	}
	return res, nil
}

// mergeRecord applies one incoming remote record inside the merge tx.
func (s *Store) mergeRecord(ctx context.Context, tx *sql.Tx, table string, remote *schema.Record, res *MergeResult) error {
	local, err := getTx(ctx, tx, table, remote.ID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to read local %s record %s: %w", table, remote.ID, err)
	}

	if local != nil && local.Dirty {
		// Genuine conflict: both sides changed since the last sync.
		remoteWins := !remote.UpdatedAt.Before(local.UpdatedAt)
		res.Conflicts = append(res.Conflicts, Conflict{
			ID:              remote.ID,
			LocalUpdatedAt:  local.UpdatedAt,
			RemoteUpdatedAt: remote.UpdatedAt,
			RemoteWon:       remoteWins,
		})
		if !remoteWins {
			// Local edit stays dirty and supersedes the remote value
			// on the next push phase.
			res.LocalWins++
			return nil
		}
		res.RemoteWins++
	}

	if err := upsertRemoteTx(ctx, tx, table, remote); err != nil {
		return err
	}
	if local == nil {
		res.Inserted++
	} else {
		res.Updated++
	}
	return nil
}

// mergeDeletion applies one remote deletion inside the merge tx.
func (s *Store) mergeDeletion(ctx context.Context, tx *sql.Tx, table, id string, res *MergeResult) error {
	local, err := getTx(ctx, tx, table, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil // never seen locally, nothing to delete
		}
		return fmt.Errorf("failed to read local %s record %s: %w", table, id, err)
	}

	if local.Dirty && !local.Tombstoned {
		// A dirty local edit is not clobbered by a remote delete that
		// carries no timestamp; the edit re-pushes and resurrects.
		res.LocalWins++
		return nil
	}

	// Remote-acknowledged deletion: tombstone clean, purge-eligible.
	query := fmt.Sprintf(`UPDATE %s SET tombstoned = 1, dirty = 0 WHERE id = ?`, table)
	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to tombstone %s record %s: %w", table, id, err)
	}
	res.Deleted++
	return nil
}

// getTx reads one record inside a transaction. Returns sql.ErrNoRows when
// the record does not exist.
func getTx(ctx context.Context, tx *sql.Tx, table, id string) (*schema.Record, error) {
	query := fmt.Sprintf(
		`SELECT id, fields, updated_at, dirty, tombstoned FROM %s WHERE id = ?`, table)
	return scanRecord(tx.QueryRowContext(ctx, query, id))
}

// upsertRemoteTx writes a remote record as clean, authoritative state.
func upsertRemoteTx(ctx context.Context, tx *sql.Tx, table string, remote *schema.Record) error {
	tombstoned := 0
	if remote.Tombstoned {
		tombstoned = 1
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (id, fields, updated_at, dirty, tombstoned, reject_reason)
	VALUES (?, ?, ?, 0, ?, NULL)
	ON CONFLICT(id) DO UPDATE SET
		fields = excluded.fields,
		updated_at = excluded.updated_at,
		dirty = 0,
		tombstoned = excluded.tombstoned,
		reject_reason = NULL
	`, table)

	_, err := tx.ExecContext(ctx, query,
		remote.ID,
		string(remote.Fields),
		remote.UpdatedAt.UTC().Format(timeFormat),
		tombstoned,
	)
	if err != nil {
		return fmt.Errorf("failed to apply remote %s record %s: %w", table, remote.ID, err)
	}
	return nil
}

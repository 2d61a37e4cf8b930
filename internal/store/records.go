package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clubops/clubsync/internal/schema"
)

// ErrNotFound is returned when a record does not exist in the store.
var ErrNotFound = sql.ErrNoRows

// Rejection describes a record the remote refused to accept. The record
// stays dirty but is excluded from automatic re-push until it is written
// again locally.
type Rejection struct {
	Table  string
	ID     string
	Reason string
}

// Get retrieves a single record by ID, including tombstoned rows.
// Returns ErrNotFound if the record does not exist.
func (s *Store) Get(table, id string) (*schema.Record, error) {
	return s.GetContext(context.Background(), table, id)
}

// GetContext retrieves a single record with context support.
func (s *Store) GetContext(ctx context.Context, table, id string) (*schema.Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT id, fields, updated_at, dirty, tombstoned FROM %s WHERE id = ?`, table)

	rec, err := scanRecord(s.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s record %s: %w", table, id, err)
	}
	return rec, nil
}

// Put writes a locally-originated record.
//
// The record is validated against the table's typed shape, assigned a UUID
// if it has no ID yet (offline creation), and stamped dirty through the
// change tracker. Any previous rejection reason is cleared: the data
// changed, so the record is eligible for push again.
func (s *Store) Put(table string, rec *schema.Record) error {
	return s.PutContext(context.Background(), table, rec)
}

// PutContext writes a locally-originated record with context support.
func (s *Store) PutContext(ctx context.Context, table string, rec *schema.Record) error {
	if err := checkTable(table); err != nil {
		return err
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.tracker.StampLocal(rec)
	rec.Tombstoned = false

	if err := schema.ValidateRecord(table, rec); err != nil {
		return fmt.Errorf("cannot store invalid record: %w", err)
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (id, fields, updated_at, dirty, tombstoned, reject_reason)
	VALUES (?, ?, ?, 1, 0, NULL)
	ON CONFLICT(id) DO UPDATE SET
		fields = excluded.fields,
		updated_at = excluded.updated_at,
		dirty = 1,
		tombstoned = 0,
		reject_reason = NULL
	`, table)

	_, err := s.conn.ExecContext(ctx, query,
		rec.ID,
		string(rec.Fields),
		rec.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to put %s record %s: %w", table, rec.ID, err)
	}
	return nil
}

// Tombstone marks a record as locally deleted.
//
// The row is retained (dirty tombstone) until the deletion has been
// acknowledged by the remote, which prevents a concurrent pull from
// resurrecting it. Returns nil if the record doesn't exist (idempotent).
func (s *Store) Tombstone(table, id string) error {
	return s.TombstoneContext(context.Background(), table, id)
}

// TombstoneContext marks a record as locally deleted with context support.
func (s *Store) TombstoneContext(ctx context.Context, table, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf(`
	UPDATE %s SET dirty = 1, tombstoned = 1, updated_at = ?, reject_reason = NULL
	WHERE id = ?
	`, table)

	_, err := s.conn.ExecContext(ctx, query, s.tracker.Now().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("failed to tombstone %s record %s: %w", table, id, err)
	}
	return nil
}

// QueryDirty returns the records with unacknowledged local mutations,
// oldest first. Rejected records are excluded; they re-enter the dirty set
// when the underlying data changes.
//
// This set is recomputed from the rows themselves rather than kept as a
// separate queue, so "what must I push" stays consistent across crashes.
func (s *Store) QueryDirty(ctx context.Context, table string) ([]*schema.Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
	SELECT id, fields, updated_at, dirty, tombstoned FROM %s
	WHERE dirty = 1 AND reject_reason IS NULL
	ORDER BY updated_at ASC, id ASC
	`, table)

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query dirty %s records: %w", table, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// QueryAll returns all live (non-tombstoned) records of a table, optionally
// filtered by a predicate. This is the read path for the UI layer: it only
// ever sees merged-latest, non-deleted data.
func (s *Store) QueryAll(ctx context.Context, table string, pred func(*schema.Record) bool) ([]*schema.Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
	SELECT id, fields, updated_at, dirty, tombstoned FROM %s
	WHERE tombstoned = 0
	ORDER BY updated_at ASC, id ASC
	`, table)

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s records: %w", table, err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return recs, nil
	}

	filtered := recs[:0]
	for _, rec := range recs {
		if pred(rec) {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// AckPush records that the remote accepted a pushed record.
//
// The dirty flag is cleared and updated_at takes the server's value only if
// the row still matches the timestamp that was pushed. If the UI mutated
// the record while the push was in flight, the ack is a no-op and the newer
// edit stays dirty for the next cycle.
//
// For tombstones this acknowledges the deletion: the row stays tombstoned
// but becomes clean, making it eligible for purge.
func (s *Store) AckPush(ctx context.Context, table, id string, pushedAt, serverAt time.Time) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if serverAt.IsZero() {
		serverAt = pushedAt
	}

	query := fmt.Sprintf(`
	UPDATE %s SET dirty = 0, updated_at = ?
	WHERE id = ? AND dirty = 1 AND updated_at = ?
	`, table)

	_, err := s.conn.ExecContext(ctx, query,
		serverAt.UTC().Format(timeFormat),
		id,
		pushedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to ack push for %s record %s: %w", table, id, err)
	}
	return nil
}

// MarkRejected records a permanent rejection for a record. The record stays
// dirty but QueryDirty skips it until the next local write clears the
// reason.
func (s *Store) MarkRejected(ctx context.Context, table, id, reason string) error {
	if err := checkTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET reject_reason = ? WHERE id = ?`, table)
	if _, err := s.conn.ExecContext(ctx, query, reason, id); err != nil {
		return fmt.Errorf("failed to mark %s record %s rejected: %w", table, id, err)
	}
	return nil
}

// QueryRejected returns the rejection ledger for a table.
func (s *Store) QueryRejected(ctx context.Context, table string) ([]Rejection, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
	SELECT id, reject_reason FROM %s
	WHERE reject_reason IS NOT NULL
	ORDER BY id ASC
	`, table)

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rejected %s records: %w", table, err)
	}
	defer rows.Close()

	var out []Rejection
	for rows.Next() {
		r := Rejection{Table: table}
		if err := rows.Scan(&r.ID, &r.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan rejection: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rejections: %w", err)
	}
	return out, nil
}

// PendingCount returns the number of dirty records across all tables.
// Rejected records count as pending: they still hold unacknowledged state.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	total := 0
	for _, table := range schema.Tables() {
		var n int
		query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE dirty = 1`, table)
		if err := s.conn.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to count dirty %s records: %w", table, err)
		}
		total += n
	}
	return total, nil
}

// RecordCount returns the number of live records in a table.
func (s *Store) RecordCount(ctx context.Context, table string) (int, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}

	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tombstoned = 0`, table)
	if err := s.conn.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s records: %w", table, err)
	}
	return n, nil
}

// PurgeTombstones physically removes tombstones whose deletion both sides
// agree on (tombstoned and clean). Returns the number of purged rows.
func (s *Store) PurgeTombstones(ctx context.Context) (int64, error) {
	var purged int64
	for _, table := range schema.Tables() {
		query := fmt.Sprintf(`DELETE FROM %s WHERE tombstoned = 1 AND dirty = 0`, table)
		res, err := s.conn.ExecContext(ctx, query)
		if err != nil {
			return purged, fmt.Errorf("failed to purge %s tombstones: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return purged, fmt.Errorf("failed to count purged %s tombstones: %w", table, err)
		}
		purged += n
	}
	return purged, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanRecord.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one record row: id, fields, updated_at, dirty, tombstoned.
func scanRecord(row rowScanner) (*schema.Record, error) {
	var rec schema.Record
	var fields, updatedAt string
	var dirty, tombstoned int

	if err := row.Scan(&rec.ID, &fields, &updatedAt, &dirty, &tombstoned); err != nil {
		return nil, err
	}

	t, err := time.Parse(timeFormat, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	rec.UpdatedAt = t
	rec.Dirty = dirty != 0
	rec.Tombstoned = tombstoned != 0
	if fields != "" {
		rec.Fields = []byte(fields)
	}
	return &rec, nil
}

// scanRecords reads all record rows from a query result.
func scanRecords(rows *sql.Rows) ([]*schema.Record, error) {
	var recs []*schema.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return recs, nil
}

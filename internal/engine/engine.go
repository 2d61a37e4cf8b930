package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/clubops/clubsync/internal/remote"
	"github.com/clubops/clubsync/internal/schema"
	"github.com/clubops/clubsync/internal/store"
)

const (
	defaultPageSize  = 100
	defaultPushBatch = 50
)

// Engine runs sync cycles: push dirty local records, then pull remote
// changes and reconcile them into the store.
//
// Push always precedes pull within one cycle, so a device's own edits are
// not re-downloaded and misclassified as remote-wins conflicts against
// themselves. Push progress is never rolled back; pull progress is
// atomic per page via the store's merge transaction.
type Engine struct {
	store     *store.Store
	gw        Gateway
	logger    *log.Logger
	pageSize  int
	pushBatch int
}

// Option configures an Engine.
type Option func(*Engine)

// WithPageSize sets the pull page size.
func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithPushBatch sets the push batch size.
func WithPushBatch(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pushBatch = n
		}
	}
}

// New creates an Engine. If logger is nil, a default logger writing to
// stderr is used.
func New(st *store.Store, gw Gateway, logger *log.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	e := &Engine{
		store:     st,
		gw:        gw,
		logger:    logger,
		pageSize:  defaultPageSize,
		pushBatch: defaultPushBatch,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TableReport summarizes one table's cycle.
type TableReport struct {
	Table     string
	Pushed    int
	Accepted  int
	Rejected  []store.Rejection
	Pulled    int
	Deleted   int
	Conflicts []store.Conflict
	Err       error
}

// Report summarizes a full cycle over one or more tables.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Tables     []TableReport
	Purged     int64
}

// Err returns the combined error of all failed tables, or nil if every
// table completed.
func (r *Report) Err() error {
	var errs []error
	for _, tr := range r.Tables {
		if tr.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tr.Table, tr.Err))
		}
	}
	return errors.Join(errs...)
}

// Sync runs one cycle over the given tables (all registered tables when
// none are named), sequentially. A failing table aborts only its own
// cycle; the remaining tables still sync.
//
// After a fully successful cycle, tombstones both sides agree on are
// purged.
func (e *Engine) Sync(ctx context.Context, tables ...string) *Report {
	if len(tables) == 0 {
		tables = schema.Tables()
	}

	report := &Report{StartedAt: time.Now()}
	for _, table := range tables {
		tr := e.SyncTable(ctx, table)
		report.Tables = append(report.Tables, tr)
		if tr.Err != nil {
			e.logger.Printf("Sync of %s failed: %v", table, tr.Err)
		}
	}

	if report.Err() == nil {
		purged, err := e.store.PurgeTombstones(ctx)
		if err != nil {
			e.logger.Printf("Warning: tombstone purge failed: %v", err)
		}
		report.Purged = purged
	}

	report.FinishedAt = time.Now()
	return report
}

// SyncTable runs the two ordered phases for one table. On a transient
// failure the cycle aborts with the table's cursor untouched; the next
// cycle resumes cleanly. Already-acknowledged pushes stay acknowledged.
func (e *Engine) SyncTable(ctx context.Context, table string) TableReport {
	tr := TableReport{Table: table}

	if err := e.pushPhase(ctx, table, &tr); err != nil {
		tr.Err = fmt.Errorf("push phase: %w", err)
		return tr
	}
	if err := e.pullPhase(ctx, table, &tr); err != nil {
		tr.Err = fmt.Errorf("pull phase: %w", err)
		return tr
	}
	return tr
}

// pushPhase sends the table's dirty records in batches and applies the
// per-record outcomes.
func (e *Engine) pushPhase(ctx context.Context, table string, tr *TableReport) error {
	dirty, err := e.store.QueryDirty(ctx, table)
	if err != nil {
		return err
	}
	if len(dirty) == 0 {
		return nil
	}

	// Pushed timestamps are needed for the ack guard: an ack only lands
	// if the row was not edited again while the push was in flight.
	pushedAt := make(map[string]time.Time, len(dirty))
	for _, rec := range dirty {
		pushedAt[rec.ID] = rec.UpdatedAt
	}

	for start := 0; start < len(dirty); start += e.pushBatch {
		end := start + e.pushBatch
		if end > len(dirty) {
			end = len(dirty)
		}
		batch := dirty[start:end]

		res, err := e.gw.Push(ctx, table, batch)
		if err != nil {
			// Records in this and later batches stay dirty and
			// retry next cycle.
			return err
		}
		tr.Pushed += len(batch)

		for _, ack := range res.Accepted {
			local, ok := pushedAt[ack.ID]
			if !ok {
				e.logger.Printf("Warning: server acknowledged unpushed %s record %s", table, ack.ID)
				continue
			}
			if err := e.store.AckPush(ctx, table, ack.ID, local, ack.UpdatedAt); err != nil {
				return err
			}
			tr.Accepted++
		}

		for _, rej := range res.Rejected {
			if err := e.store.MarkRejected(ctx, table, rej.ID, rej.Reason); err != nil {
				return err
			}
			e.logger.Printf("Server rejected %s record %s: %s", table, rej.ID, rej.Reason)
			tr.Rejected = append(tr.Rejected, store.Rejection{Table: table, ID: rej.ID, Reason: rej.Reason})
		}
	}

	return nil
}

// pullPhase drains remote pages until the cursor stops advancing or a
// short page signals the end of history. Each page is merged, cursor
// advance included, in one store transaction.
func (e *Engine) pullPhase(ctx context.Context, table string, tr *TableReport) error {
	cursor, err := e.store.GetCursor(ctx, table)
	if err != nil {
		return err
	}

	for {
		page, err := e.gw.Pull(ctx, table, cursor, e.pageSize)
		if err != nil {
			return err
		}

		res, err := e.store.MergeRemote(ctx, table, store.MergeBatch{
			Records:    page.Records,
			DeletedIDs: page.DeletedIDs,
			NextCursor: page.NextCursor,
		})
		if err != nil {
			return err
		}

		tr.Pulled += len(page.Records)
		tr.Deleted += res.Deleted
		tr.Conflicts = append(tr.Conflicts, res.Conflicts...)
		for _, c := range res.Conflicts {
			if c.RemoteWon {
				// Telemetry for "your change was overridden"
				// messaging, not an error.
				e.logger.Printf("Conflict resolved: remote version of %s record %s won (local %v < remote %v)",
					table, c.ID, c.LocalUpdatedAt.Format(time.RFC3339), c.RemoteUpdatedAt.Format(time.RFC3339))
			}
		}

		if page.NextCursor == "" || page.NextCursor == cursor {
			return nil
		}
		cursor = page.NextCursor

		if len(page.Records)+len(page.DeletedIDs) < e.pageSize {
			return nil
		}
	}
}

// Transient reports whether a table failure was a retryable network
// condition rather than a payload problem.
func Transient(err error) bool {
	return remote.IsTransient(err)
}

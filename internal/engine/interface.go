// Package engine orchestrates sync cycles between the local store and the
// remote backend.
package engine

import (
	"context"

	"github.com/clubops/clubsync/internal/remote"
	"github.com/clubops/clubsync/internal/schema"
)

// Gateway is the slice of the remote boundary the engine needs. The
// production implementation is remote.Gateway; tests substitute an
// in-memory fake.
type Gateway interface {
	// Push sends a batch of dirty records to the table's endpoint.
	// Must be safe to retry: pushing the same (id, updated_at) twice
	// is a no-op on the server.
	Push(ctx context.Context, table string, records []*schema.Record) (*remote.PushResult, error)

	// Pull fetches the next page of changes after cursor. Pages are
	// strictly ordered and cursor-resumable.
	Pull(ctx context.Context, table, cursor string, limit int) (*remote.PullPage, error)
}

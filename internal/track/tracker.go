// Package track provides the change tracker: the single choke point that
// stamps sync metadata onto records.
//
// Every write into the local store passes through exactly one of the two
// stamping operations, so a record's dirty flag can never disagree with its
// provenance. Local writes become dirty with a fresh timestamp; remote
// writes become clean with the remote's timestamp. No other code assigns
// either field.
package track

import (
	"time"

	"github.com/clubops/clubsync/internal/schema"
)

// Clock returns the current time. Injectable so tests can control the
// timestamps used for conflict resolution.
type Clock func() time.Time

// Tracker stamps records with dirty/updated_at metadata according to the
// provenance of the write.
type Tracker struct {
	now Clock
}

// New creates a Tracker. If clock is nil, time.Now is used.
func New(clock Clock) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{now: clock}
}

// StampLocal marks a record as locally modified and not yet acknowledged:
// dirty is set and updated_at advances to the current time.
//
// Timestamps are stored in UTC so ordering comparisons are unaffected by
// the device timezone.
func (t *Tracker) StampLocal(rec *schema.Record) {
	rec.Dirty = true
	rec.UpdatedAt = t.now().UTC()
}

// StampRemote marks a record as acknowledged by the remote: dirty is
// cleared and updated_at takes the remote's authoritative value.
func (t *Tracker) StampRemote(rec *schema.Record, updatedAt time.Time) {
	rec.Dirty = false
	rec.UpdatedAt = updatedAt.UTC()
}

// Now returns the tracker's current time in UTC.
func (t *Tracker) Now() time.Time {
	return t.now().UTC()
}

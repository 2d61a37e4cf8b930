package track

import (
	"testing"
	"time"

	"github.com/clubops/clubsync/internal/schema"
)

func TestStampLocal(t *testing.T) {
	fixed := time.Date(2026, 2, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	tr := New(func() time.Time { return fixed })

	rec := &schema.Record{ID: "p-1", Fields: []byte(`{}`)}
	tr.StampLocal(rec)

	if !rec.Dirty {
		t.Error("StampLocal did not set dirty")
	}
	if !rec.UpdatedAt.Equal(fixed) {
		t.Errorf("UpdatedAt = %v, want %v", rec.UpdatedAt, fixed)
	}
	if rec.UpdatedAt.Location() != time.UTC {
		t.Errorf("UpdatedAt location = %v, want UTC", rec.UpdatedAt.Location())
	}
}

func TestStampRemote(t *testing.T) {
	tr := New(nil)
	server := time.Date(2026, 2, 1, 13, 0, 0, 0, time.UTC)

	rec := &schema.Record{ID: "p-1", Dirty: true, UpdatedAt: server.Add(-time.Hour)}
	tr.StampRemote(rec, server)

	if rec.Dirty {
		t.Error("StampRemote did not clear dirty")
	}
	if !rec.UpdatedAt.Equal(server) {
		t.Errorf("UpdatedAt = %v, want %v", rec.UpdatedAt, server)
	}
}

func TestNewDefaultsToWallClock(t *testing.T) {
	tr := New(nil)
	before := time.Now().Add(-time.Second)
	got := tr.Now()
	after := time.Now().Add(time.Second)

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want within [%v, %v]", got, before, after)
	}
}

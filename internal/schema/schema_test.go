package schema

import (
	"strings"
	"testing"
	"time"
)

func TestRecordValidate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		rec     Record
		wantErr string
	}{
		{
			name: "valid live record",
			rec:  Record{ID: "t-1", UpdatedAt: now, Fields: []byte(`{"name":"Reds"}`)},
		},
		{
			name: "valid tombstone without fields",
			rec:  Record{ID: "t-1", UpdatedAt: now, Tombstoned: true},
		},
		{
			name:    "missing id",
			rec:     Record{UpdatedAt: now, Fields: []byte(`{}`)},
			wantErr: "id is required",
		},
		{
			name:    "missing updated_at",
			rec:     Record{ID: "t-1", Fields: []byte(`{}`)},
			wantErr: "updated_at is required",
		},
		{
			name:    "live record without fields",
			rec:     Record{ID: "t-1", UpdatedAt: now},
			wantErr: "fields are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRecord(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		table   string
		rec     Record
		wantErr string
	}{
		{
			name:  "valid team",
			table: TableTeams,
			rec:   Record{ID: "t-1", UpdatedAt: now, Fields: []byte(`{"name":"Reds","season":"2026"}`)},
		},
		{
			name:  "valid attendance",
			table: TableAttendance,
			rec:   Record{ID: "a-1", UpdatedAt: now, Fields: []byte(`{"event_id":"e-1","player_id":"p-1","status":"present"}`)},
		},
		{
			name:  "tombstone skips payload validation",
			table: TablePlayers,
			rec:   Record{ID: "p-1", UpdatedAt: now, Tombstoned: true},
		},
		{
			name:    "unknown table",
			table:   "ratings",
			rec:     Record{ID: "r-1", UpdatedAt: now, Fields: []byte(`{}`)},
			wantErr: "unknown table",
		},
		{
			name:    "malformed json payload",
			table:   TableTeams,
			rec:     Record{ID: "t-1", UpdatedAt: now, Fields: []byte(`{"name":`)},
			wantErr: "malformed teams payload",
		},
		{
			name:    "domain validation failure",
			table:   TableEvents,
			rec:     Record{ID: "e-1", UpdatedAt: now, Fields: []byte(`{"team_id":"t-1","title":"Derby","kind":"party","starts_at":"2026-03-01T10:00:00Z"}`)},
			wantErr: "kind must be",
		},
		{
			name:    "player with negative number",
			table:   TablePlayers,
			rec:     Record{ID: "p-1", UpdatedAt: now, Fields: []byte(`{"team_id":"t-1","name":"Alice","number":-3}`)},
			wantErr: "number must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(tt.table, &tt.rec)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateRecord() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateRecord() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestKnownTable(t *testing.T) {
	for _, table := range Tables() {
		if !KnownTable(table) {
			t.Errorf("KnownTable(%q) = false, want true", table)
		}
	}
	if KnownTable("records; DROP TABLE teams") {
		t.Error("KnownTable accepted an unregistered name")
	}
}

func TestRecordEncodeDecodeRoundTrip(t *testing.T) {
	rec := &Record{ID: "e-1", UpdatedAt: time.Now()}
	in := &Event{
		TeamID:   "t-1",
		Title:    "Season opener",
		Kind:     "match",
		StartsAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Location: "Home ground",
	}

	if err := rec.Encode(in); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var out Event
	if err := rec.Decode(&out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out != *in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, *in)
	}
}

func TestRecordClone(t *testing.T) {
	rec := &Record{ID: "t-1", UpdatedAt: time.Now(), Fields: []byte(`{"name":"Reds"}`), Dirty: true}
	cp := rec.Clone()

	cp.Fields[2] = 'X'
	if string(rec.Fields) != `{"name":"Reds"}` {
		t.Error("Clone shares Fields backing array with original")
	}
	if !cp.Dirty {
		t.Error("Clone dropped the dirty flag")
	}
}

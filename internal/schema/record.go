// Package schema defines the synced record model shared by the local store,
// the remote gateway, and the sync engine.
//
// Every synced entity travels as a Record envelope: stable ID, conflict
// resolution timestamp, tombstone marker, and the domain fields as raw JSON.
// The envelope is what crosses the wire and what the store persists; the
// typed structs in entities.go give each table a concrete shape that is
// validated before a remote payload is allowed into the store.
package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the envelope carried by every synced entity.
//
// ID is assigned by whichever side creates the record (the client generates
// a UUID so creation works offline). UpdatedAt is the ordering key for
// last-writer-wins conflict resolution. Tombstoned marks a deleted record
// that must be retained until the deletion is acknowledged remotely.
//
// Dirty is local-only provenance state and never crosses the wire; it is
// written exclusively by the change tracker.
type Record struct {
	ID         string          `json:"id"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Tombstoned bool            `json:"tombstoned,omitempty"`
	Fields     json.RawMessage `json:"fields,omitempty"`

	Dirty bool `json:"-"`
}

// Validate checks the envelope invariants required of any synced record.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	if !r.Tombstoned && len(r.Fields) == 0 {
		return fmt.Errorf("fields are required for live records")
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := *r
	if r.Fields != nil {
		out.Fields = append(json.RawMessage(nil), r.Fields...)
	}
	return &out
}

// Encode marshals a typed entity into the record's Fields.
func (r *Record) Encode(entity any) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}
	r.Fields = data
	return nil
}

// Decode unmarshals the record's Fields into a typed entity.
func (r *Record) Decode(entity any) error {
	if len(r.Fields) == 0 {
		return fmt.Errorf("record %s has no fields", r.ID)
	}
	if err := json.Unmarshal(r.Fields, entity); err != nil {
		return fmt.Errorf("failed to unmarshal fields for %s: %w", r.ID, err)
	}
	return nil
}

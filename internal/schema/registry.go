package schema

import "fmt"

// Table names for all synced entity types. The local store creates one
// physical table per name; the remote backend exposes one endpoint per name.
const (
	TableTeams      = "teams"
	TablePlayers    = "players"
	TableEvents     = "events"
	TableAttendance = "attendance"
)

// validator is implemented by every typed entity.
type validator interface {
	Validate() error
}

// entityFor maps a table name to a fresh typed entity for decoding.
var entityFor = map[string]func() validator{
	TableTeams:      func() validator { return &Team{} },
	TablePlayers:    func() validator { return &Player{} },
	TableEvents:     func() validator { return &Event{} },
	TableAttendance: func() validator { return &Attendance{} },
}

// Tables returns all known table names in sync order.
//
// The order matters for referential sanity when a fresh client pulls
// everything: teams before players and events, attendance last.
func Tables() []string {
	return []string{TableTeams, TablePlayers, TableEvents, TableAttendance}
}

// KnownTable reports whether name is a registered synced table.
//
// The store builds SQL statements from table names, so every name must
// pass through this check before reaching a query string.
func KnownTable(name string) bool {
	_, ok := entityFor[name]
	return ok
}

// ValidateRecord checks the envelope and, for live records, decodes the
// fields into the table's typed entity and validates it.
//
// This is the boundary validation for loosely-shaped rows arriving from
// the remote backend: nothing enters the local store without passing it.
// Tombstones carry no fields and only need a valid envelope.
func ValidateRecord(table string, rec *Record) error {
	mk, ok := entityFor[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	if rec.Tombstoned {
		return nil
	}
	entity := mk()
	if err := rec.Decode(entity); err != nil {
		return fmt.Errorf("malformed %s payload: %w", table, err)
	}
	if err := entity.Validate(); err != nil {
		return fmt.Errorf("invalid %s record %s: %w", table, rec.ID, err)
	}
	return nil
}

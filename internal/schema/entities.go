package schema

import (
	"fmt"
	"time"
)

// Team is the domain shape of a record in the teams table.
type Team struct {
	Name     string `json:"name"`
	Season   string `json:"season,omitempty"`
	Sport    string `json:"sport,omitempty"`
	Archived bool   `json:"archived,omitempty"`
}

// Validate checks if the Team has valid field values.
func (t *Team) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(t.Name) > 200 {
		return fmt.Errorf("name must be 200 characters or less (got %d)", len(t.Name))
	}
	return nil
}

// Player is the domain shape of a record in the players table.
type Player struct {
	TeamID   string `json:"team_id"`
	Name     string `json:"name"`
	Number   int    `json:"number,omitempty"`
	Position string `json:"position,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Validate checks if the Player has valid field values.
func (p *Player) Validate() error {
	if p.TeamID == "" {
		return fmt.Errorf("team_id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Number < 0 {
		return fmt.Errorf("number must not be negative (got %d)", p.Number)
	}
	return nil
}

// Event is the domain shape of a record in the events table.
// Kind distinguishes matches from trainings and other gatherings.
type Event struct {
	TeamID   string    `json:"team_id"`
	Title    string    `json:"title"`
	Kind     string    `json:"kind"` // match, training, meeting
	StartsAt time.Time `json:"starts_at"`
	Location string    `json:"location,omitempty"`
	Notes    string    `json:"notes,omitempty"`
}

// Validate checks if the Event has valid field values.
func (e *Event) Validate() error {
	if e.TeamID == "" {
		return fmt.Errorf("team_id is required")
	}
	if e.Title == "" {
		return fmt.Errorf("title is required")
	}
	switch e.Kind {
	case "match", "training", "meeting":
	default:
		return fmt.Errorf("kind must be match, training or meeting (got %q)", e.Kind)
	}
	if e.StartsAt.IsZero() {
		return fmt.Errorf("starts_at is required")
	}
	return nil
}

// Attendance is the domain shape of a record in the attendance table.
// One record per (event, player) pair tracks presence and an optional note.
type Attendance struct {
	EventID  string `json:"event_id"`
	PlayerID string `json:"player_id"`
	Status   string `json:"status"` // present, absent, excused, unknown
	Note     string `json:"note,omitempty"`
}

// Validate checks if the Attendance has valid field values.
func (a *Attendance) Validate() error {
	if a.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if a.PlayerID == "" {
		return fmt.Errorf("player_id is required")
	}
	switch a.Status {
	case "present", "absent", "excused", "unknown":
	default:
		return fmt.Errorf("status must be present, absent, excused or unknown (got %q)", a.Status)
	}
	return nil
}

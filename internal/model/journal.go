package model

import "time"

// JournalAction names a recorded dispatch action.
type JournalAction string

const (
	JournalAssign   JournalAction = "assign"
	JournalUnassign JournalAction = "unassign"
	JournalAlert    JournalAction = "alert"
)

// JournalOutcome is the backend result of a recorded action.
type JournalOutcome string

const (
	OutcomeOK     JournalOutcome = "ok"
	OutcomeFailed JournalOutcome = "failed"
)

// JournalEntry is one audit record of a mutating dashboard action. Latitude
// and Longitude are set for assignments; Recipients and Area for alerts.
type JournalEntry struct {
	ID         string         `json:"id"`
	Action     JournalAction  `json:"action"`
	TeamID     string         `json:"team_id,omitempty"`
	Latitude   *float64       `json:"latitude,omitempty"`
	Longitude  *float64       `json:"longitude,omitempty"`
	Area       string         `json:"area,omitempty"`
	Recipients int            `json:"recipients,omitempty"`
	Outcome    JournalOutcome `json:"outcome"`
	Detail     string         `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

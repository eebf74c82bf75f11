// Package interaction holds the dashboard's single interaction mode and its
// transition function. Exactly one mode is active at a time.
package interaction

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Kind discriminates Mode.
type Kind string

const (
	KindIdle       Kind = "idle"
	KindDrawing    Kind = "drawing"
	KindComposing  Kind = "composing"
	KindAssigning  Kind = "assigning"
	KindPreviewing Kind = "previewing"
)

// Mode is the current interaction mode. TeamID is set only for Assigning and
// Previewing.
type Mode struct {
	Kind   Kind   `json:"kind"`
	TeamID string `json:"teamId,omitempty"`
}

// Idle is the neutral mode.
func Idle() Mode { return Mode{Kind: KindIdle} }

// Drawing is the rectangle draw mode.
func Drawing() Mode { return Mode{Kind: KindDrawing} }

// Composing is the alert composer mode.
func Composing() Mode { return Mode{Kind: KindComposing} }

// Assigning is the click-to-place mode for one team.
func Assigning(teamID string) Mode { return Mode{Kind: KindAssigning, TeamID: teamID} }

// Previewing is the available-team preview for one team.
func Previewing(teamID string) Mode { return Mode{Kind: KindPreviewing, TeamID: teamID} }

// Is reports whether m has kind k.
func (m Mode) Is(k Kind) bool { return m.Kind == k }

// AssigningTeam returns the team being placed, if any.
func (m Mode) AssigningTeam() (string, bool) {
	if m.Kind == KindAssigning {
		return m.TeamID, true
	}
	return "", false
}

func (m Mode) String() string {
	if m.TeamID != "" {
		return fmt.Sprintf("%s(%s)", m.Kind, m.TeamID)
	}
	return string(m.Kind)
}

// ErrBusy is returned when the event is not allowed in the current mode.
var ErrBusy = eris.New("interaction: another interaction is in progress")

// ErrComposerOpen is returned when drawing is toggled while an alert is being
// composed.
var ErrComposerOpen = eris.New("interaction: discard or send the current alert first")

// ErrWardLayerInactive is returned for ward actions while a team is being
// assigned.
var ErrWardLayerInactive = eris.New("interaction: ward layer is inactive while assigning")

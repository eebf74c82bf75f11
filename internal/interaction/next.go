package interaction

// Event is an input to Next.
type Event interface {
	event()
}

// ToggleDraw is the draw button.
type ToggleDraw struct{}

// DrawCommitted fires when a rectangle is finished.
type DrawCommitted struct{}

// OpenComposer opens the composer for a ward.
type OpenComposer struct{}

// CloseComposer fires after a successful send or a discard.
type CloseComposer struct{}

// StartAssign enters click-to-place for a team.
type StartAssign struct{ TeamID string }

// CancelAssign is the cancel control of the assigning banner.
type CancelAssign struct{}

// MapClick is a click on the map surface.
type MapClick struct{}

// Escape is the Escape key.
type Escape struct{}

// Preview selects a team from the available-team list.
type Preview struct{ TeamID string }

// ClosePreview closes the preview callout.
type ClosePreview struct{}

// TeamsHidden fires when the team layer is filtered out.
type TeamsHidden struct{}

// TeamsReplaced fires when the team collection changes. Present holds
// the ids that still exist.
type TeamsReplaced struct{ Present map[string]bool }

// AssignSettled fires when a direct assignment for a team completes.
type AssignSettled struct{ TeamID string }

func (ToggleDraw) event()    {}
func (DrawCommitted) event() {}
func (OpenComposer) event()  {}
func (CloseComposer) event() {}
func (StartAssign) event()   {}
func (CancelAssign) event()  {}
func (MapClick) event()      {}
func (Escape) event()        {}
func (Preview) event()       {}
func (ClosePreview) event()  {}
func (TeamsHidden) event()   {}
func (TeamsReplaced) event() {}
func (AssignSettled) event() {}

// Next returns the mode that follows m on e. It is a pure function; an error
// means the event is refused and m stays current.
func Next(m Mode, e Event) (Mode, error) {
	switch ev := e.(type) {
	case ToggleDraw:
		switch m.Kind {
		case KindDrawing:
			return Idle(), nil
		case KindComposing:
			return m, ErrComposerOpen
		default:
			return Drawing(), nil
		}

	case DrawCommitted:
		if m.Kind != KindDrawing {
			return m, ErrBusy
		}
		return Composing(), nil

	case OpenComposer:
		switch m.Kind {
		case KindIdle, KindPreviewing:
			return Composing(), nil
		case KindAssigning:
			return m, ErrWardLayerInactive
		default:
			return m, ErrBusy
		}

	case CloseComposer:
		if m.Kind == KindComposing {
			return Idle(), nil
		}
		return m, nil

	case StartAssign:
		switch m.Kind {
		case KindIdle, KindPreviewing, KindAssigning:
			return Assigning(ev.TeamID), nil
		default:
			return m, ErrBusy
		}

	case CancelAssign, MapClick:
		if m.Kind == KindAssigning {
			return Idle(), nil
		}
		return m, nil

	case Escape:
		switch m.Kind {
		case KindAssigning, KindDrawing, KindPreviewing:
			return Idle(), nil
		default:
			return m, nil
		}

	case Preview:
		switch m.Kind {
		case KindIdle, KindPreviewing:
			return Previewing(ev.TeamID), nil
		default:
			return m, ErrBusy
		}

	case ClosePreview, TeamsHidden:
		if m.Kind == KindPreviewing {
			return Idle(), nil
		}
		return m, nil

	case TeamsReplaced:
		if (m.Kind == KindAssigning || m.Kind == KindPreviewing) && !ev.Present[m.TeamID] {
			return Idle(), nil
		}
		return m, nil

	case AssignSettled:
		if m.Kind == KindPreviewing && m.TeamID == ev.TeamID {
			return Idle(), nil
		}
		return m, nil
	}
	return m, nil
}

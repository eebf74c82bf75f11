package dashboard

import (
	"time"

	"github.com/sells-group/dispatch-console/internal/alert"
	"github.com/sells-group/dispatch-console/internal/density"
	"github.com/sells-group/dispatch-console/internal/interaction"
	"github.com/sells-group/dispatch-console/internal/model"
	"github.com/sells-group/dispatch-console/internal/selection"
)

// Button actions. The renderer posts the action back to the matching route.
const (
	ActionAssign       = "assign"
	ActionReassign     = "reassign"
	ActionUnassign     = "unassign"
	ActionMove         = "move"
	ActionAlertArea    = "alert_area"
	ActionAssignLeader = "assign_leader"
	ActionAssignClick  = "assign_click"
	ActionClose        = "close"
	ActionCancelAssign = "cancel_assign"
)

// Team marker icons.
const (
	IconLeaderFree     = "leader_free"
	IconLeaderAssigned = "leader_assigned"
	IconAssigned       = "assigned_target"
)

// Button is an action offered inside a callout.
type Button struct {
	Action string `json:"action"`
	Label  string `json:"label"`
	TeamID string `json:"teamId,omitempty"`
	Ward   *int   `json:"ward,omitempty"`
}

// ShelterMarker is a located shelter.
type ShelterMarker struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Position      model.LatLng `json:"position"`
	RescuedCount  int          `json:"rescuedCount"`
	TotalCapacity *int         `json:"totalCapacity"`
}

// TeamMarker is a team's leader marker and, when assigned, its target marker
// and the dashed line between them.
type TeamMarker struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	LeaderName      string        `json:"leaderName"`
	Status          string        `json:"status"`
	Icon            string        `json:"icon"`
	Leader          *model.LatLng `json:"leader,omitempty"`
	Assigned        *model.LatLng `json:"assigned,omitempty"`
	LeaderButtons   []Button      `json:"leaderButtons"`
	AssignedButtons []Button      `json:"assignedButtons,omitempty"`
}

// WardView is one styled ward. Interactive is false while a team is being
// assigned so ward clicks are not taken as placement clicks.
type WardView struct {
	Index       int      `json:"index"`
	Name        string   `json:"name"`
	Count       int      `json:"count"`
	Color       string   `json:"color"`
	Interactive bool     `json:"interactive"`
	Buttons     []Button `json:"buttons,omitempty"`
}

// AvailableTeam is an entry in the available-teams list.
type AvailableTeam struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	LeaderName string `json:"leaderName"`
}

// PreviewCallout is the previewed team's callout.
type PreviewCallout struct {
	TeamID     string       `json:"teamId"`
	TeamName   string       `json:"teamName"`
	LeaderName string       `json:"leaderName"`
	Position   model.LatLng `json:"position"`
	Buttons    []Button     `json:"buttons"`
}

// AssignStatus is the floating control shown while placing a team.
type AssignStatus struct {
	TeamID   string   `json:"teamId"`
	TeamName string   `json:"teamName"`
	Buttons  []Button `json:"buttons"`
}

// ComposerView is the open alert composer.
type ComposerView struct {
	Area       selection.Area      `json:"area"`
	Entities   []model.PointEntity `json:"entities"`
	Recipients []string            `json:"recipients"`
	Message    string              `json:"message"`
	CanSend    bool                `json:"canSend"`
}

// View is the rendered dashboard.
type View struct {
	Mode       interaction.Mode    `json:"mode"`
	Viewport   Viewport            `json:"viewport"`
	Filters    Filters             `json:"filters"`
	Shelters   []ShelterMarker     `json:"shelters"`
	Teams      []TeamMarker        `json:"teams"`
	Points     []model.PointEntity `json:"points"`
	Wards      []WardView          `json:"wards"`
	Legend     []density.Band      `json:"legend"`
	Baseline   string              `json:"baseline"`
	Available  []AvailableTeam     `json:"availableTeams"`
	Preview    *PreviewCallout     `json:"preview,omitempty"`
	Assigning  *AssignStatus       `json:"assigning,omitempty"`
	Overlay    *selection.Rect     `json:"overlay,omitempty"`
	Composer   *ComposerView       `json:"composer,omitempty"`
	Notices    []Notice            `json:"notices"`
	LoadErrors map[string]string   `json:"loadErrors,omitempty"`
	LoadedAt   time.Time           `json:"loadedAt"`
}

// View renders the current state.
func (d *Dashboard) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := View{
		Mode:      d.mode,
		Viewport:  d.viewport.clone(),
		Filters:   d.filters,
		Shelters:  []ShelterMarker{},
		Teams:     []TeamMarker{},
		Points:    []model.PointEntity{},
		Wards:     []WardView{},
		Legend:    d.opts.Bands.Steps(),
		Baseline:  d.opts.Bands.Baseline(),
		Available: []AvailableTeam{},
		Notices:   append([]Notice{}, d.notices...),
		LoadedAt:  d.loadedAt,
	}
	if len(d.loadErrors) > 0 {
		v.LoadErrors = make(map[string]string, len(d.loadErrors))
		for k, e := range d.loadErrors {
			v.LoadErrors[k] = e
		}
	}

	if d.filters.Shelters {
		for _, s := range d.shelters {
			if !s.Located() {
				continue
			}
			v.Shelters = append(v.Shelters, ShelterMarker{
				ID:            s.ID,
				Name:          s.Name,
				Position:      model.LatLng{Lat: *s.Lat, Lng: *s.Lng},
				RescuedCount:  s.RescuedCount,
				TotalCapacity: s.TotalCapacity,
			})
		}
	}

	if d.filters.Teams {
		for _, t := range d.roster.Teams() {
			v.Teams = append(v.Teams, teamMarker(t))
		}
	}

	if d.filters.Points {
		v.Points = append(v.Points, d.points...)
	}

	if d.filters.Density {
		v.Wards = d.wardViews()
	}

	for _, t := range d.roster.Available() {
		v.Available = append(v.Available, AvailableTeam{ID: t.ID, Name: t.Name, LeaderName: t.Leader.Name})
	}

	switch d.mode.Kind {
	case interaction.KindPreviewing:
		if t, ok := d.roster.Get(d.mode.TeamID); ok && d.filters.Teams {
			v.Preview = d.previewCallout(t)
		}
	case interaction.KindAssigning:
		v.Assigning = &AssignStatus{
			TeamID:   d.mode.TeamID,
			TeamName: d.teamName(d.mode.TeamID),
			Buttons:  []Button{{Action: ActionCancelAssign, Label: "Cancel"}},
		}
	}

	if o, ok := d.tool.Overlay(); ok {
		r := o.Rect()
		v.Overlay = &r
	}

	if area, ok := d.composer.Area(); ok {
		v.Composer = composerView(&d.composer, area)
	}
	return v
}

func teamMarker(t model.Team) TeamMarker {
	m := TeamMarker{
		ID:         t.ID,
		Name:       t.Name,
		LeaderName: t.Leader.Name,
		Status:     t.StatusLabel,
		Icon:       IconLeaderFree,
	}
	if loc, ok := t.Leader.Location(); ok {
		m.Leader = &loc
	}
	target, assigned := t.Assignment()
	if !assigned {
		m.LeaderButtons = []Button{{Action: ActionAssign, Label: "Assign Location", TeamID: t.ID}}
		return m
	}
	m.Icon = IconLeaderAssigned
	m.Assigned = &target
	m.LeaderButtons = []Button{
		{Action: ActionReassign, Label: "Reassign", TeamID: t.ID},
		{Action: ActionUnassign, Label: "Remove Assignment", TeamID: t.ID},
	}
	m.AssignedButtons = []Button{
		{Action: ActionMove, Label: "Move Assigned", TeamID: t.ID},
		{Action: ActionUnassign, Label: "Unassign", TeamID: t.ID},
	}
	return m
}

// wardViews styles each ward by density. The caller holds d.mu.
func (d *Dashboard) wardViews() []WardView {
	counts := d.density()
	interactive := !d.mode.Is(interaction.KindAssigning)

	out := make([]WardView, 0, len(d.polys))
	for _, p := range d.polys {
		count := counts[p.Index]
		w := WardView{
			Index:       p.Index,
			Name:        p.Name,
			Count:       count,
			Color:       d.opts.Bands.Color(count),
			Interactive: interactive,
		}
		if interactive {
			idx := p.Index
			w.Buttons = []Button{{Action: ActionAlertArea, Label: "Send alert to this area", Ward: &idx}}
		}
		out = append(out, w)
	}
	return out
}

// previewCallout builds the preview for t. The caller holds d.mu.
func (d *Dashboard) previewCallout(t model.Team) *PreviewCallout {
	pos, located := t.Leader.Location()
	if !located {
		pos = d.opts.Center
	}
	c := &PreviewCallout{
		TeamID:     t.ID,
		TeamName:   t.Name,
		LeaderName: t.Leader.Name,
		Position:   pos,
	}
	if located {
		c.Buttons = append(c.Buttons, Button{Action: ActionAssignLeader, Label: "Assign to leader location", TeamID: t.ID})
	}
	c.Buttons = append(c.Buttons,
		Button{Action: ActionAssignClick, Label: "Assign by clicking", TeamID: t.ID},
		Button{Action: ActionClose, Label: "Close"},
	)
	return c
}

func composerView(c *alert.Composer, area selection.Area) *ComposerView {
	entities := c.Entities()
	if entities == nil {
		entities = []model.PointEntity{}
	}
	recipients := c.Recipients()
	if recipients == nil {
		recipients = []string{}
	}
	return &ComposerView{
		Area:       area,
		Entities:   entities,
		Recipients: recipients,
		Message:    c.Message(),
		CanSend:    c.CanSend(),
	}
}

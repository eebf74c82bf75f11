// Package roster holds the rescue team collection as an immutable value.
// Every change returns a new Roster, so any value already handed out is a
// stable snapshot that can be restored verbatim.
package roster

import (
	"github.com/sells-group/dispatch-console/internal/model"
)

// Roster is an immutable, ordered team collection. The zero value is empty.
// Team member maps are shared between snapshots and must be treated as
// read-only.
type Roster struct {
	teams []model.Team
}

// New copies teams into a roster.
func New(teams []model.Team) Roster {
	return Roster{teams: append([]model.Team(nil), teams...)}
}

// Len returns the number of teams.
func (r Roster) Len() int { return len(r.teams) }

// Teams returns a copy of the teams in order.
func (r Roster) Teams() []model.Team {
	return append([]model.Team(nil), r.teams...)
}

// Get returns the team with id.
func (r Roster) Get(id string) (model.Team, bool) {
	for _, t := range r.teams {
		if t.ID == id {
			return t, true
		}
	}
	return model.Team{}, false
}

// IDs returns the set of team ids.
func (r Roster) IDs() map[string]bool {
	ids := make(map[string]bool, len(r.teams))
	for _, t := range r.teams {
		ids[t.ID] = true
	}
	return ids
}

// Available returns the teams without an assignment target.
func (r Roster) Available() []model.Team {
	var out []model.Team
	for _, t := range r.teams {
		if !t.Assigned() {
			out = append(out, t)
		}
	}
	return out
}

// WithAssignment returns a roster where team id targets at. A nil at clears
// the assignment. Unknown ids leave the roster unchanged.
func (r Roster) WithAssignment(id string, at *model.LatLng) Roster {
	return r.update(id, func(t *model.Team) {
		if at == nil {
			t.AssignedLatitude, t.AssignedLongitude = nil, nil
			return
		}
		t.AssignedLatitude, t.AssignedLongitude = at.Ptr()
	})
}

// WithoutAssignment returns a roster where team id has no assignment.
func (r Roster) WithoutAssignment(id string) Roster {
	return r.WithAssignment(id, nil)
}

// WithAssignmentFrom returns a roster where team id carries the assignment it
// has in snapshot. Other teams keep their current values.
func (r Roster) WithAssignmentFrom(id string, snapshot Roster) Roster {
	prev, ok := snapshot.Get(id)
	if !ok {
		return r
	}
	if target, ok := prev.Assignment(); ok {
		return r.WithAssignment(id, &target)
	}
	return r.WithoutAssignment(id)
}

func (r Roster) update(id string, fn func(t *model.Team)) Roster {
	idx := -1
	for i := range r.teams {
		if r.teams[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return r
	}
	next := r.Teams()
	fn(&next[idx])
	return Roster{teams: next}
}

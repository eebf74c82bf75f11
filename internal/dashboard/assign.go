package dashboard

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-console/internal/interaction"
	"github.com/sells-group/dispatch-console/internal/metrics"
	"github.com/sells-group/dispatch-console/internal/model"
	"github.com/sells-group/dispatch-console/internal/roster"
	"github.com/sells-group/dispatch-console/pkg/rescueapi"
)

// StartAssigning puts the whole map into click-to-place mode for teamID. A
// team already being placed is replaced.
func (d *Dashboard) StartAssigning(teamID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.roster.Get(teamID); !ok {
		return eris.Wrapf(ErrUnknownTeam, "team %s", teamID)
	}
	return d.transition(interaction.StartAssign{TeamID: teamID})
}

// CancelAssigning leaves click-to-place mode without side effects.
func (d *Dashboard) CancelAssigning() {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.transition(interaction.CancelAssign{})
}

// Click handles a plain map click. While assigning, the team is placed at
// the clicked coordinate optimistically, the mode returns to idle and the
// backend is called; a failure restores the team's previous assignment. It
// reports whether an assignment was attempted.
func (d *Dashboard) Click(ctx context.Context, at model.LatLng) (bool, error) {
	if !validLatLng(at) {
		return false, ErrInvalidCoordinate
	}

	d.mu.Lock()
	teamID, ok := d.mode.AssigningTeam()
	if !ok {
		d.mu.Unlock()
		return false, nil
	}
	_ = d.transition(interaction.MapClick{})
	change := d.stage(teamID, &at)
	d.mu.Unlock()

	return true, d.commitAssign(ctx, teamID, at, change)
}

// AssignToLeader assigns teamID to its leader's current coordinate, skipping
// the click-to-place step. A preview of the team is closed.
func (d *Dashboard) AssignToLeader(ctx context.Context, teamID string) error {
	d.mu.Lock()
	team, ok := d.roster.Get(teamID)
	if !ok {
		d.mu.Unlock()
		return eris.Wrapf(ErrUnknownTeam, "team %s", teamID)
	}
	at, ok := team.Leader.Location()
	if !ok {
		d.mu.Unlock()
		return eris.Wrapf(ErrNoLeaderLocation, "team %s", teamID)
	}
	_ = d.transition(interaction.AssignSettled{TeamID: teamID})
	change := d.stage(teamID, &at)
	d.mu.Unlock()

	return d.commitAssign(ctx, teamID, at, change)
}

// pendingChange is an optimistic assignment awaiting the backend. A nil
// target clears the assignment.
type pendingChange struct {
	seq    uint64
	target *model.LatLng
}

// staged is what an action needs to settle its optimistic write.
type staged struct {
	seq      uint64
	rev      uint64
	snapshot roster.Roster
}

// stage applies an optimistic change for teamID and registers it as pending.
// The caller holds d.mu.
func (d *Dashboard) stage(teamID string, target *model.LatLng) staged {
	d.changeSeq++
	d.pending[teamID] = pendingChange{seq: d.changeSeq, target: target}
	st := staged{seq: d.changeSeq, rev: d.rosterRev, snapshot: d.roster}
	d.roster = d.roster.WithAssignment(teamID, target)
	return st
}

// settle drops teamID's pending change and reports whether it was still the
// latest change for that team. Settling counts as a roster write for every
// other in-flight action. The caller holds d.mu.
func (d *Dashboard) settle(teamID string, st staged) bool {
	d.rosterRev++
	p, ok := d.pending[teamID]
	if !ok || p.seq != st.seq {
		return false
	}
	delete(d.pending, teamID)
	return true
}

// withPending lays every pending change over r. Teams no longer in r are
// skipped. The caller holds d.mu.
func (d *Dashboard) withPending(r roster.Roster) roster.Roster {
	for id, p := range d.pending {
		r = r.WithAssignment(id, p.target)
	}
	return r
}

// commitAssign issues the assignment. The call outlives cancellation of ctx
// so a request that went through is never rolled back locally; the backend
// client's timeout bounds it. On failure the team's assignment is restored
// from the snapshot, unless a later action on the team has superseded this
// one.
func (d *Dashboard) commitAssign(ctx context.Context, teamID string, at model.LatLng, st staged) error {
	_, err := d.backend.AssignTeam(context.WithoutCancel(ctx), teamID, at.Lat, at.Lng)

	lat, lng := at.Ptr()
	entry := model.JournalEntry{
		Action:    model.JournalAssign,
		TeamID:    teamID,
		Latitude:  lat,
		Longitude: lng,
		Outcome:   model.OutcomeOK,
	}

	d.mu.Lock()
	latest := d.settle(teamID, st)
	if err != nil {
		if latest {
			d.roster = d.roster.WithAssignmentFrom(teamID, st.snapshot)
		}
		detail := rescueapi.Detail(err, "")
		d.notify(NoticeError, "Error assigning team: "+detail)
		d.mu.Unlock()

		metrics.RollbacksTotal.WithLabelValues(string(model.JournalAssign)).Inc()
		zap.L().Warn("dashboard: assignment rolled back",
			zap.String("team_id", teamID),
			zap.Float64("lat", at.Lat),
			zap.Float64("lng", at.Lng),
			zap.Error(err),
		)
		entry.Outcome, entry.Detail = model.OutcomeFailed, detail
		d.record(ctx, entry)
		return eris.Wrapf(err, "dashboard: assign team %s", teamID)
	}
	d.notify(NoticeInfo, fmt.Sprintf("%s assigned to %.5f, %.5f", d.teamName(teamID), at.Lat, at.Lng))
	d.mu.Unlock()

	zap.L().Info("dashboard: team assigned", zap.String("team_id", teamID))
	d.record(ctx, entry)
	return nil
}

// Unassign clears teamID's assignment optimistically. On failure the roster
// as it was before the action is restored when nothing else has written it
// since; otherwise only this team's assignment is restored, so fresh loads
// and other settled actions stand.
func (d *Dashboard) Unassign(ctx context.Context, teamID string) error {
	d.mu.Lock()
	if _, ok := d.roster.Get(teamID); !ok {
		d.mu.Unlock()
		return eris.Wrapf(ErrUnknownTeam, "team %s", teamID)
	}
	st := d.stage(teamID, nil)
	d.mu.Unlock()

	err := d.backend.UnassignTeam(context.WithoutCancel(ctx), teamID)
	entry := model.JournalEntry{Action: model.JournalUnassign, TeamID: teamID, Outcome: model.OutcomeOK}

	d.mu.Lock()
	untouched := d.rosterRev == st.rev
	latest := d.settle(teamID, st)
	if err != nil {
		switch {
		case !latest:
		case untouched:
			d.roster = d.withPending(st.snapshot)
		default:
			d.roster = d.roster.WithAssignmentFrom(teamID, st.snapshot)
		}
		detail := rescueapi.Detail(err, "")
		d.notify(NoticeError, "Error: "+detail)
		d.mu.Unlock()

		metrics.RollbacksTotal.WithLabelValues(string(model.JournalUnassign)).Inc()
		zap.L().Warn("dashboard: unassignment rolled back", zap.String("team_id", teamID), zap.Error(err))
		entry.Outcome, entry.Detail = model.OutcomeFailed, detail
		d.record(ctx, entry)
		return eris.Wrapf(err, "dashboard: unassign team %s", teamID)
	}
	d.notify(NoticeInfo, d.teamName(teamID)+" unassigned")
	d.mu.Unlock()

	d.record(ctx, entry)
	return nil
}

// Preview opens the informational callout for teamID and recenters the map
// on its leader, or on the default center when the leader is unlocated.
func (d *Dashboard) Preview(teamID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.filters.Teams {
		return ErrTeamsHidden
	}
	team, ok := d.roster.Get(teamID)
	if !ok {
		return eris.Wrapf(ErrUnknownTeam, "team %s", teamID)
	}
	if err := d.transition(interaction.Preview{TeamID: teamID}); err != nil {
		return err
	}
	center, ok := team.Leader.Location()
	if !ok {
		center = d.opts.Center
	}
	d.viewport.Center = center
	d.viewport.Zoom = d.opts.PreviewZoom
	return nil
}

// ClosePreview closes the preview callout.
func (d *Dashboard) ClosePreview() {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.transition(interaction.ClosePreview{})
}

// teamName returns the display name of teamID. The caller holds d.mu.
func (d *Dashboard) teamName(teamID string) string {
	if t, ok := d.roster.Get(teamID); ok && t.Name != "" {
		return t.Name
	}
	return teamID
}

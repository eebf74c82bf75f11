// Package dashboard is the single state container behind one operator's map
// screen. It owns the interaction mode, the team roster, the point and ward
// layers, the draw tool and the alert composer, and renders them into a
// view-model for the browser.
//
// Every exported method is safe for concurrent use. The state lock is never
// held across a backend call, so an assignment and an unassignment can be in
// flight at the same time; each rolls back from its own captured snapshot.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-console/internal/alert"
	"github.com/sells-group/dispatch-console/internal/density"
	"github.com/sells-group/dispatch-console/internal/interaction"
	"github.com/sells-group/dispatch-console/internal/metrics"
	"github.com/sells-group/dispatch-console/internal/model"
	"github.com/sells-group/dispatch-console/internal/roster"
	"github.com/sells-group/dispatch-console/internal/selection"
	"github.com/sells-group/dispatch-console/internal/transform"
	"github.com/sells-group/dispatch-console/internal/ward"
)

var (
	// ErrUnknownTeam is returned for a team id not in the roster.
	ErrUnknownTeam       = eris.New("dashboard: unknown team")
	// ErrNoLeaderLocation blocks assign-to-leader when the leader is unlocated.
	ErrNoLeaderLocation  = eris.New("dashboard: team leader has no location")
	// ErrUnknownWard is returned for a ward index outside the boundary set.
	ErrUnknownWard       = eris.New("dashboard: unknown ward")
	// ErrDensityHidden blocks ward alerts while the density layer is off.
	ErrDensityHidden     = eris.New("dashboard: density layer is hidden")
	// ErrTeamsHidden blocks previews while the team layer is off.
	ErrTeamsHidden       = eris.New("dashboard: team layer is hidden")
	// ErrInvalidCoordinate rejects NaN or out of range coordinates.
	ErrInvalidCoordinate = eris.New("dashboard: invalid coordinate")
)

// Backend is the set of rescue backend mutations the dashboard issues.
type Backend interface {
	AssignTeam(ctx context.Context, teamID string, lat, lng float64) (map[string]any, error)
	UnassignTeam(ctx context.Context, teamID string) error
	SendAlert(ctx context.Context, message string, numbers []string) (map[string]any, error)
}

// Journal records the outcome of every mutating action.
type Journal interface {
	Append(ctx context.Context, e model.JournalEntry) (*model.JournalEntry, error)
}

// Options configures a Dashboard.
type Options struct {
	// Center is the initial map center and the preview fallback.
	Center model.LatLng
	// Zoom is the initial zoom level.
	Zoom int
	// PreviewZoom is the zoom used when recentering on a previewed team.
	PreviewZoom int
	// PointSource selects victims or messages for the point layer.
	PointSource model.PointSource
	// Bands colors ward density. Zero value uses density.DefaultBands.
	Bands density.Bands
	// MaxNotices bounds the notice list. Default: 20.
	MaxNotices int
	// Journal, if set, receives one entry per mutating action outcome.
	Journal Journal
}

// Filters toggles the map layers.
type Filters struct {
	Shelters bool `json:"shelters"`
	Teams    bool `json:"rescueTeams"`
	Points   bool `json:"victims"`
	Density  bool `json:"density"`
}

// AllLayers shows every layer.
func AllLayers() Filters {
	return Filters{Shelters: true, Teams: true, Points: true, Density: true}
}

// Dashboard is the state container.
type Dashboard struct {
	backend Backend
	opts    Options

	mu       sync.Mutex
	mode     interaction.Mode
	filters  Filters
	roster   roster.Roster
	shelters []model.Shelter
	points   []model.PointEntity
	pointVer uint64
	polys    []ward.Polygon
	rawWards []byte
	polyVer  uint64
	memo     *density.Memo
	viewport *Viewport
	tool     *selection.Tool
	composer alert.Composer
	notices  []Notice

	// pending holds optimistic changes still awaiting the backend, keyed by
	// team id. Apply lays them over every fresh roster.
	pending   map[string]pendingChange
	changeSeq uint64
	// rosterRev counts fresh loads and settled actions. A failed unassign
	// compares it to decide how much of its snapshot to restore.
	rosterRev uint64

	loadErrors map[string]string
	loadedAt   time.Time
}

// New creates an idle dashboard with every layer visible.
func New(backend Backend, opts Options) *Dashboard {
	if opts.MaxNotices <= 0 {
		opts.MaxNotices = 20
	}
	if opts.PreviewZoom <= 0 {
		opts.PreviewZoom = 15
	}
	if opts.Zoom <= 0 {
		opts.Zoom = 12
	}
	if opts.PointSource == "" {
		opts.PointSource = model.PointSourceVictims
	}
	if len(opts.Bands.Steps()) == 0 {
		opts.Bands = density.DefaultBands()
	}

	vp := newViewport(opts.Center, opts.Zoom)
	return &Dashboard{
		backend:  backend,
		opts:     opts,
		mode:     interaction.Idle(),
		filters:  AllLayers(),
		pending:  make(map[string]pendingChange),
		memo:     density.NewMemo(metrics.DensityComputations.Inc),
		viewport: vp,
		tool:     selection.NewTool(vp),
	}
}

// Mode returns the current interaction mode.
func (d *Dashboard) Mode() interaction.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Roster returns the current team roster snapshot.
func (d *Dashboard) Roster() roster.Roster {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.roster
}

// Points returns the point layer entities.
func (d *Dashboard) Points() []model.PointEntity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.PointEntity(nil), d.points...)
}

// Density returns the per-ward point counts, recomputed only when the ward or
// point layer changed since the last call.
func (d *Dashboard) Density() density.Counts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.density()
}

func (d *Dashboard) density() density.Counts {
	return d.memo.Get(d.polyVer, d.polys, d.pointVer, d.points)
}

// Apply replaces the entity layers with a fresh load. A failed source keeps
// the layer empty and is reported in the view. Assignments still awaiting
// the backend are laid over the new roster. An assigning or previewing mode
// whose team is gone is reset.
func (d *Dashboard) Apply(b transform.Bundle, loadErrors map[string]error, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.shelters = b.Shelters
	d.roster = d.withPending(roster.New(b.Teams))
	d.rosterRev++
	d.points = b.Points(d.opts.PointSource)
	d.pointVer++

	d.loadErrors = make(map[string]string, len(loadErrors))
	for name, err := range loadErrors {
		d.loadErrors[name] = err.Error()
	}
	d.loadedAt = at

	_ = d.transition(interaction.TeamsReplaced{Present: d.roster.IDs()})
}

// FailedSources lists the sources that failed in the latest load, sorted.
func (d *Dashboard) FailedSources() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.loadErrors))
	for name := range d.loadErrors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SetBoundaries replaces the ward layer. raw is the GeoJSON passed through to
// the renderer; its feature order matches polys.
func (d *Dashboard) SetBoundaries(polys []ward.Polygon, raw []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.polys = polys
	d.rawWards = raw
	d.polyVer++
}

// Boundaries returns the raw ward GeoJSON.
func (d *Dashboard) Boundaries() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rawWards
}

// SetFilters changes layer visibility. Hiding teams closes a preview.
func (d *Dashboard) SetFilters(f Filters) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filters = f
	if !f.Teams {
		_ = d.transition(interaction.TeamsHidden{})
	}
}

// transition applies e to the mode. Refusals are logged and returned. The
// caller holds d.mu.
func (d *Dashboard) transition(e interaction.Event) error {
	next, err := interaction.Next(d.mode, e)
	if err != nil {
		zap.L().Debug("dashboard: transition refused",
			zap.Stringer("mode", d.mode),
			zap.String("event", fmt.Sprintf("%T", e)),
			zap.Error(err),
		)
		return err
	}
	if next != d.mode {
		zap.L().Debug("dashboard: mode changed",
			zap.Stringer("from", d.mode),
			zap.Stringer("to", next),
		)
	}
	d.mode = next
	return nil
}

// record appends a journal entry. Journal failures are logged and never
// reach the operator.
func (d *Dashboard) record(ctx context.Context, e model.JournalEntry) {
	if d.opts.Journal == nil {
		return
	}
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()
	if _, err := d.opts.Journal.Append(context.WithoutCancel(ctx), e); err != nil {
		zap.L().Warn("dashboard: journal append failed",
			zap.String("action", string(e.Action)),
			zap.Error(err),
		)
	}
}

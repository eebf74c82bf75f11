// Package selection implements the rectangle draw gesture used to pick an
// area of the map, and the area value handed to the alert composer.
package selection

import (
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dispatch-console/internal/model"
)

// State is the draw tool's lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateDrawing   State = "drawing"
	StateCommitted State = "committed"
)

// Cursor affordances set on the surface.
const (
	CursorDefault   = ""
	CursorCrosshair = "crosshair"
)

var (
	// ErrNotIdle is returned by Begin when a draw is already active or committed.
	ErrNotIdle     = eris.New("selection: draw already in progress")
	// ErrNotDrawing is returned by pointer events outside the drawing state.
	ErrNotDrawing  = eris.New("selection: not drawing")
	// ErrNotAnchored is returned by PointerUp before any PointerDown.
	ErrNotAnchored = eris.New("selection: no anchor corner")
)

// Surface is the map surface that owns the pan gesture and pointer cursor.
type Surface interface {
	SetPanEnabled(enabled bool)
	SetCursor(cursor string)
}

// Overlay is the visible rectangle on the map.
type Overlay struct {
	ID     uuid.UUID `json:"id"`
	Bounds orb.Bound `json:"-"`
}

// Rect returns the overlay bounds as a Rect.
func (o Overlay) Rect() Rect {
	return RectOf(o.Bounds)
}

// Rect is a bounding box in latitude/longitude terms.
type Rect struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// RectOf converts an orb bound (x = longitude, y = latitude).
func RectOf(b orb.Bound) Rect {
	return Rect{South: b.Min.Lat(), West: b.Min.Lon(), North: b.Max.Lat(), East: b.Max.Lon()}
}

// Tool is the rectangle draw state machine. All methods are safe for
// concurrent use.
type Tool struct {
	mu      sync.Mutex
	surface Surface
	state   State
	anchor  orb.Point
	overlay *Overlay
}

// NewTool creates an idle tool bound to surface.
func NewTool(surface Surface) *Tool {
	return &Tool{surface: surface, state: StateIdle}
}

// State returns the current state.
func (t *Tool) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Overlay returns a copy of the visible overlay, if any.
func (t *Tool) Overlay() (Overlay, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.overlay == nil {
		return Overlay{}, false
	}
	return *t.overlay, true
}

// Begin enters drawing: panning is disabled and the cursor becomes a crosshair.
func (t *Tool) Begin() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateIdle {
		return ErrNotIdle
	}
	t.state = StateDrawing
	t.surface.SetPanEnabled(false)
	t.surface.SetCursor(CursorCrosshair)
	return nil
}

// PointerDown anchors one corner and shows a zero-size overlay. A second
// pointer-down restarts the rectangle from the new corner.
func (t *Tool) PointerDown(at model.LatLng) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateDrawing {
		return ErrNotDrawing
	}
	t.anchor = toPoint(at)
	t.overlay = &Overlay{ID: uuid.New(), Bounds: t.anchor.Bound()}
	return nil
}

// PointerMove stretches the overlay to at. Moves before the anchor is set
// are ignored.
func (t *Tool) PointerMove(at model.LatLng) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateDrawing {
		return ErrNotDrawing
	}
	if t.overlay == nil {
		return nil
	}
	t.overlay.Bounds = span(t.anchor, toPoint(at))
	return nil
}

// PointerUp finalizes the rectangle, restores panning and returns the
// committed overlay. Bounds are normalized to min/max corners.
func (t *Tool) PointerUp(at model.LatLng) (Overlay, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateDrawing {
		return Overlay{}, ErrNotDrawing
	}
	if t.overlay == nil {
		return Overlay{}, ErrNotAnchored
	}
	t.overlay.Bounds = span(t.anchor, toPoint(at))
	t.state = StateCommitted
	t.release()
	return *t.overlay, nil
}

// Escape cancels an in-progress draw, removing any overlay. It reports
// whether a draw was cancelled; outside drawing it does nothing.
func (t *Tool) Escape() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateDrawing {
		return false
	}
	t.reset()
	return true
}

// Discard removes the overlay and returns to idle from any state.
func (t *Tool) Discard() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()
}

func (t *Tool) reset() {
	if t.state == StateDrawing {
		t.release()
	}
	t.state = StateIdle
	t.overlay = nil
	t.anchor = orb.Point{}
}

func (t *Tool) release() {
	t.surface.SetPanEnabled(true)
	t.surface.SetCursor(CursorDefault)
}

func toPoint(ll model.LatLng) orb.Point {
	return orb.Point{ll.Lng, ll.Lat}
}

func span(a, b orb.Point) orb.Bound {
	return orb.MultiPoint{a, b}.Bound()
}

// Within returns the points inside bound, edges included, in input order.
func Within(bound orb.Bound, points []model.PointEntity) []model.PointEntity {
	var out []model.PointEntity
	for _, p := range points {
		if bound.Contains(toPoint(p.LatLng())) {
			out = append(out, p)
		}
	}
	return out
}

// AreaKind distinguishes ward selections from drawn rectangles.
type AreaKind string

const (
	AreaWard      AreaKind = "ward"
	AreaRectangle AreaKind = "rectangle"
)

// Area is the region an alert is composed for.
type Area struct {
	Kind      AreaKind   `json:"kind"`
	WardIndex int        `json:"wardIndex"`
	WardName  string     `json:"wardName,omitempty"`
	Rect      *Rect      `json:"rect,omitempty"`
	OverlayID *uuid.UUID `json:"overlayId,omitempty"`
}

// WardArea selects a ward by index and name.
func WardArea(index int, name string) Area {
	return Area{Kind: AreaWard, WardIndex: index, WardName: name}
}

// RectangleArea selects a committed overlay.
func RectangleArea(o Overlay) Area {
	r := o.Rect()
	id := o.ID
	return Area{Kind: AreaRectangle, Rect: &r, OverlayID: &id}
}

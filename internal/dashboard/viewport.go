package dashboard

import (
	"math"

	"github.com/sells-group/dispatch-console/internal/model"
	"github.com/sells-group/dispatch-console/internal/selection"
	"github.com/sells-group/dispatch-console/internal/ward"
)

// Viewport is the server-side model of the map surface: where it is
// centered, its zoom, the visible bounds reported by the renderer, and the
// pan and cursor affordances the draw tool takes over. It implements
// selection.Surface and is only touched under the dashboard lock.
type Viewport struct {
	Center     model.LatLng `json:"center"`
	Zoom       int          `json:"zoom"`
	Bounds     *ward.Bounds `json:"bounds,omitempty"`
	PanEnabled bool         `json:"panEnabled"`
	Cursor     string       `json:"cursor"`
}

var _ selection.Surface = (*Viewport)(nil)

func newViewport(center model.LatLng, zoom int) *Viewport {
	return &Viewport{Center: center, Zoom: zoom, PanEnabled: true, Cursor: selection.CursorDefault}
}

// SetPanEnabled toggles the map drag gesture.
func (v *Viewport) SetPanEnabled(enabled bool) { v.PanEnabled = enabled }

// SetCursor sets the pointer cursor over the map.
func (v *Viewport) SetCursor(cursor string) { v.Cursor = cursor }

// SetViewport records the renderer's current view. A zero zoom keeps the
// current zoom; nil bounds keep the current bounds.
func (d *Dashboard) SetViewport(center model.LatLng, zoom int, bounds *ward.Bounds) error {
	if !validLatLng(center) {
		return ErrInvalidCoordinate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewport.Center = center
	if zoom > 0 {
		d.viewport.Zoom = zoom
	}
	if bounds != nil {
		b := *bounds
		d.viewport.Bounds = &b
	}
	return nil
}

// Viewport returns a copy of the current viewport.
func (d *Dashboard) Viewport() Viewport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewport.clone()
}

func (v *Viewport) clone() Viewport {
	c := *v
	if v.Bounds != nil {
		b := *v.Bounds
		c.Bounds = &b
	}
	return c
}

func validLatLng(p model.LatLng) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

package dashboard

import (
	"github.com/sells-group/dispatch-console/internal/interaction"
	"github.com/sells-group/dispatch-console/internal/model"
	"github.com/sells-group/dispatch-console/internal/selection"
)

// ToggleDraw starts the rectangle draw, or cancels one in progress. It
// reports whether the map is now drawing.
func (d *Dashboard) ToggleDraw() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.mode
	if err := d.transition(interaction.ToggleDraw{}); err != nil {
		return false, err
	}
	if !d.mode.Is(interaction.KindDrawing) {
		d.tool.Escape()
		return false, nil
	}
	if err := d.tool.Begin(); err != nil {
		d.mode = prev
		return false, err
	}
	return true, nil
}

// PointerDown anchors the rectangle.
func (d *Dashboard) PointerDown(at model.LatLng) error {
	if !validLatLng(at) {
		return ErrInvalidCoordinate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tool.PointerDown(at)
}

// PointerMove stretches the rectangle.
func (d *Dashboard) PointerMove(at model.LatLng) error {
	if !validLatLng(at) {
		return ErrInvalidCoordinate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tool.PointerMove(at)
}

// PointerUp commits the rectangle and opens the alert composer seeded with
// the point entities inside it.
func (d *Dashboard) PointerUp(at model.LatLng) (selection.Area, error) {
	if !validLatLng(at) {
		return selection.Area{}, ErrInvalidCoordinate
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	overlay, err := d.tool.PointerUp(at)
	if err != nil {
		return selection.Area{}, err
	}
	if err := d.transition(interaction.DrawCommitted{}); err != nil {
		d.tool.Discard()
		return selection.Area{}, err
	}
	area := selection.RectangleArea(overlay)
	d.composer.Open(area, selection.Within(overlay.Bounds, d.points))
	return area, nil
}

// Escape cancels assigning, drawing or previewing. A committed composer is
// left alone; it is closed by DiscardAlert.
func (d *Dashboard) Escape() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tool.Escape()
	_ = d.transition(interaction.Escape{})
}

package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dispatch-console/internal/alert"
	"github.com/sells-group/dispatch-console/internal/interaction"
	"github.com/sells-group/dispatch-console/internal/model"
	"github.com/sells-group/dispatch-console/internal/selection"
	"github.com/sells-group/dispatch-console/pkg/rescueapi"
)

func drawRect(t *testing.T, d *Dashboard, from, to model.LatLng) selection.Area {
	t.Helper()
	drawing, err := d.ToggleDraw()
	require.NoError(t, err)
	require.True(t, drawing)
	require.NoError(t, d.PointerDown(from))
	require.NoError(t, d.PointerMove(to))
	area, err := d.PointerUp(to)
	require.NoError(t, err)
	return area
}

func TestDrawTakesOverSurface(t *testing.T) {
	d, _ := newTestDashboard(t, &fakeBackend{})

	drawing, err := d.ToggleDraw()
	require.NoError(t, err)
	require.True(t, drawing)
	vp := d.Viewport()
	assert.False(t, vp.PanEnabled)
	assert.Equal(t, selection.CursorCrosshair, vp.Cursor)
	assert.Equal(t, interaction.Drawing(), d.Mode())

	require.NoError(t, d.PointerDown(model.LatLng{Lat: 0, Lng: 0}))
	require.NoError(t, d.PointerMove(model.LatLng{Lat: 1, Lng: 1}))
	assert.NotNil(t, d.View().Overlay)

	d.Escape()
	vp = d.Viewport()
	assert.True(t, vp.PanEnabled)
	assert.Equal(t, selection.CursorDefault, vp.Cursor)
	assert.Equal(t, interaction.Idle(), d.Mode())
	assert.Nil(t, d.View().Overlay)
}

func TestToggleDrawTwiceCancels(t *testing.T) {
	d, _ := newTestDashboard(t, &fakeBackend{})

	_, err := d.ToggleDraw()
	require.NoError(t, err)
	drawing, err := d.ToggleDraw()
	require.NoError(t, err)
	assert.False(t, drawing)
	assert.True(t, d.Viewport().PanEnabled)
	assert.Equal(t, interaction.Idle(), d.Mode())
}

func TestPointerOutsideDrawing(t *testing.T) {
	d, _ := newTestDashboard(t, &fakeBackend{})
	assert.ErrorIs(t, d.PointerDown(model.LatLng{Lat: 1, Lng: 1}), selection.ErrNotDrawing)
	_, err := d.PointerUp(model.LatLng{Lat: 1, Lng: 1})
	assert.ErrorIs(t, err, selection.ErrNotDrawing)
}

func TestRectangleOpensComposer(t *testing.T) {
	d, _ := newTestDashboard(t, &fakeBackend{})

	area := drawRect(t, d, model.LatLng{Lat: 1, Lng: 1}, model.LatLng{Lat: 0, Lng: 0})
	assert.Equal(t, selection.AreaRectangle, area.Kind)
	require.NotNil(t, area.Rect)
	assert.Equal(t, interaction.Composing(), d.Mode())
	assert.True(t, d.Viewport().PanEnabled, "pointer up restores panning")

	view := d.View()
	require.NotNil(t, view.Composer)
	require.NotNil(t, view.Overlay)
	assert.Len(t, view.Composer.Entities, 2)
	assert.Equal(t, []string{"+911"}, view.Composer.Recipients)
	assert.False(t, view.Composer.CanSend)

	_, err := d.ToggleDraw()
	assert.ErrorIs(t, err, interaction.ErrComposerOpen)
}

func TestSendAlertValidation(t *testing.T) {
	fb := &fakeBackend{}
	d, _ := newTestDashboard(t, fb)
	ctx := context.Background()

	_, err := d.SendAlert(ctx)
	assert.ErrorIs(t, err, ErrNoComposer)
	assert.ErrorIs(t, d.SetAlertMessage("x"), ErrNoComposer)

	drawRect(t, d, model.LatLng{Lat: 0, Lng: 0}, model.LatLng{Lat: 1, Lng: 1})
	_, err = d.SendAlert(ctx)
	assert.ErrorIs(t, err, alert.ErrEmptyMessage)
	assert.True(t, IsValidation(err))

	require.NoError(t, d.SetAlertMessage("   "))
	_, err = d.SendAlert(ctx)
	assert.ErrorIs(t, err, alert.ErrEmptyMessage)
	assert.Empty(t, fb.alerts)

	last := d.Notices()[len(d.Notices())-1]
	assert.Equal(t, "Enter an alert message before sending.", last.Message)
}

func TestSendAlertNoContacts(t *testing.T) {
	fb := &fakeBackend{}
	d, _ := newTestDashboard(t, fb)

	b := testBundle()
	b.Victims = []model.Victim{{AuthID: "V9", PhoneNumber: "", Latitude: 0.5, Longitude: 0.5}}
	d.Apply(b, nil, time.Now())

	drawRect(t, d, model.LatLng{Lat: 0, Lng: 0}, model.LatLng{Lat: 1, Lng: 1})
	require.NoError(t, d.SetAlertMessage("Evacuate now"))
	_, err := d.SendAlert(context.Background())
	assert.ErrorIs(t, err, alert.ErrNoRecipients)
	assert.Empty(t, fb.alerts)
}

func TestSendAlertEmptySelection(t *testing.T) {
	fb := &fakeBackend{}
	d, _ := newTestDashboard(t, fb)

	drawRect(t, d, model.LatLng{Lat: 50, Lng: 50}, model.LatLng{Lat: 51, Lng: 51})
	require.NoError(t, d.SetAlertMessage("Evacuate now"))
	_, err := d.SendAlert(context.Background())
	assert.ErrorIs(t, err, alert.ErrEmptySelection)
	assert.Empty(t, fb.alerts)
}

func TestSendAlertSuccessClearsComposer(t *testing.T) {
	fb := &fakeBackend{}
	d, j := newTestDashboard(t, fb)

	drawRect(t, d, model.LatLng{Lat: 0, Lng: 0}, model.LatLng{Lat: 2, Lng: 2})
	require.NoError(t, d.SetAlertMessage("  Move to higher ground "))
	res, err := d.SendAlert(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sent": 2}, res)

	require.Len(t, fb.alerts, 1)
	assert.Equal(t, "Move to higher ground", fb.alerts[0].Message)
	assert.Equal(t, []string{"+911", "+913"}, fb.alerts[0].Recipients)

	view := d.View()
	assert.Nil(t, view.Composer)
	assert.Nil(t, view.Overlay)
	assert.Equal(t, interaction.Idle(), view.Mode)
	last := view.Notices[len(view.Notices)-1]
	assert.Equal(t, "Alert sent successfully to 2 recipients.", last.Message)

	require.Len(t, j.entries, 1)
	assert.Equal(t, model.JournalAlert, j.entries[0].Action)
	assert.Equal(t, 2, j.entries[0].Recipients)
	assert.Contains(t, j.entries[0].Area, "rect:")
}

func TestSendAlertOutlivesCancelledRequest(t *testing.T) {
	fb := &fakeBackend{}
	d, _ := newTestDashboard(t, fb)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	drawRect(t, d, model.LatLng{Lat: 0, Lng: 0}, model.LatLng{Lat: 2, Lng: 2})
	require.NoError(t, d.SetAlertMessage("Evacuate"))
	_, err := d.SendAlert(ctx)
	require.NoError(t, err)

	assert.Equal(t, []error{nil}, fb.ctxErrs)
	assert.Nil(t, d.View().Composer)
}

func TestSendAlertFailureKeepsComposer(t *testing.T) {
	fb := &fakeBackend{alertErr: &rescueapi.APIError{StatusCode: 502}}
	d, j := newTestDashboard(t, fb)

	drawRect(t, d, model.LatLng{Lat: 0, Lng: 0}, model.LatLng{Lat: 1, Lng: 1})
	require.NoError(t, d.SetAlertMessage("Evacuate"))
	_, err := d.SendAlert(context.Background())
	require.Error(t, err)
	assert.False(t, IsValidation(err))

	view := d.View()
	require.NotNil(t, view.Composer)
	assert.Equal(t, "Evacuate", view.Composer.Message)
	assert.NotNil(t, view.Overlay)
	assert.Equal(t, interaction.Composing(), view.Mode)
	last := view.Notices[len(view.Notices)-1]
	assert.Equal(t, "An error occurred while sending the alert.", last.Message)

	require.Len(t, j.entries, 1)
	assert.Equal(t, model.OutcomeFailed, j.entries[0].Outcome)

	d.DiscardAlert()
	view = d.View()
	assert.Nil(t, view.Composer)
	assert.Nil(t, view.Overlay)
	assert.Equal(t, interaction.Idle(), view.Mode)
}

func TestWardAlert(t *testing.T) {
	fb := &fakeBackend{}
	d, j := newTestDashboard(t, fb)

	area, err := d.WardAlert(0)
	require.NoError(t, err)
	assert.Equal(t, selection.WardArea(0, "WardA"), area)
	assert.Equal(t, interaction.Composing(), d.Mode())

	view := d.View()
	require.NotNil(t, view.Composer)
	assert.Len(t, view.Composer.Entities, 2)
	assert.Nil(t, view.Overlay)

	require.NoError(t, d.SetAlertMessage("Flood warning"))
	_, err = d.SendAlert(context.Background())
	require.NoError(t, err)
	require.Len(t, fb.alerts, 1)
	assert.Equal(t, []string{"+911"}, fb.alerts[0].Recipients)
	assert.Equal(t, "ward:0:WardA", j.entries[0].Area)

	_, err = d.WardAlert(7)
	assert.ErrorIs(t, err, ErrUnknownWard)
}

func TestWardAlertRefused(t *testing.T) {
	d, _ := newTestDashboard(t, &fakeBackend{})

	require.NoError(t, d.StartAssigning("T"))
	_, err := d.WardAlert(0)
	assert.ErrorIs(t, err, interaction.ErrWardLayerInactive)
	assert.Equal(t, interaction.Assigning("T"), d.Mode())

	d.CancelAssigning()
	d.SetFilters(Filters{Teams: true})
	_, err = d.WardAlert(0)
	assert.ErrorIs(t, err, ErrDensityHidden)
}

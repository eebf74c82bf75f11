package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-console/internal/alert"
	"github.com/sells-group/dispatch-console/internal/density"
	"github.com/sells-group/dispatch-console/internal/interaction"
	"github.com/sells-group/dispatch-console/internal/metrics"
	"github.com/sells-group/dispatch-console/internal/model"
	"github.com/sells-group/dispatch-console/internal/selection"
	"github.com/sells-group/dispatch-console/internal/ward"
	"github.com/sells-group/dispatch-console/pkg/rescueapi"
)

// ErrNoComposer is returned by composer actions when no alert is open.
var ErrNoComposer = eris.New("dashboard: no alert is being composed")

var validationNotices = map[error]string{
	alert.ErrEmptyMessage:   "Enter an alert message before sending.",
	alert.ErrEmptySelection: "No one is inside the selected area.",
	alert.ErrNoRecipients:   "No valid phone numbers found for the selected area.",
}

// WardAlert opens the alert composer for the ward at index, seeded with the
// point entities inside it. It is refused while the density layer is hidden
// and while a team is being assigned.
func (d *Dashboard) WardAlert(index int) (selection.Area, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.filters.Density {
		return selection.Area{}, ErrDensityHidden
	}
	poly, ok := d.wardAt(index)
	if !ok {
		return selection.Area{}, eris.Wrapf(ErrUnknownWard, "index %d", index)
	}
	if err := d.transition(interaction.OpenComposer{}); err != nil {
		return selection.Area{}, err
	}
	area := selection.WardArea(poly.Index, poly.Name)
	d.composer.Open(area, density.Contained(poly, d.points))
	return area, nil
}

func (d *Dashboard) wardAt(index int) (ward.Polygon, bool) {
	if index >= 0 && index < len(d.polys) && d.polys[index].Index == index {
		return d.polys[index], true
	}
	for _, p := range d.polys {
		if p.Index == index {
			return p, true
		}
	}
	return ward.Polygon{}, false
}

// SetAlertMessage replaces the composer message.
func (d *Dashboard) SetAlertMessage(msg string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.composer.Active() {
		return ErrNoComposer
	}
	d.composer.SetMessage(msg)
	return nil
}

// SendAlert validates the composer and issues one broadcast to every
// contactable entity in the selection. Validation failures make no network
// call. On success the composer, overlay and mode are cleared; on failure
// they are kept so the operator can retry.
//
// The broadcast runs on a copy of the composer taken under the lock, and it
// outlives cancellation of ctx; the backend client's timeout bounds it.
func (d *Dashboard) SendAlert(ctx context.Context) (map[string]any, error) {
	d.mu.Lock()
	if !d.composer.Active() {
		d.mu.Unlock()
		return nil, ErrNoComposer
	}
	draft := d.composer
	d.mu.Unlock()

	area, _ := draft.Area()
	seq := draft.Seq()
	recipients := draft.Recipients()

	res, err := draft.Send(context.WithoutCancel(ctx), d.backend)
	if IsValidation(err) {
		d.mu.Lock()
		d.notify(NoticeError, validationNotice(err))
		d.mu.Unlock()
		return nil, err
	}
	metrics.AlertRecipients.Observe(float64(len(recipients)))

	entry := model.JournalEntry{
		Action:     model.JournalAlert,
		Area:       describeArea(area),
		Recipients: len(recipients),
		Outcome:    model.OutcomeOK,
	}

	d.mu.Lock()
	if err != nil {
		detail := rescueapi.Detail(err, "An error occurred while sending the alert.")
		d.notify(NoticeError, detail)
		d.mu.Unlock()

		zap.L().Warn("dashboard: alert broadcast failed",
			zap.Int("recipients", len(recipients)),
			zap.Error(err),
		)
		entry.Outcome, entry.Detail = model.OutcomeFailed, detail
		d.record(ctx, entry)
		return nil, eris.Wrap(err, "dashboard: send alert")
	}
	if d.composer.ClearIf(seq) {
		d.tool.Discard()
		_ = d.transition(interaction.CloseComposer{})
	}
	d.notify(NoticeInfo, fmt.Sprintf("Alert sent successfully to %d recipients.", len(recipients)))
	d.mu.Unlock()

	zap.L().Info("dashboard: alert sent", zap.Int("recipients", len(recipients)))
	d.record(ctx, entry)
	return res, nil
}

// DiscardAlert clears the composer and removes any drawn overlay.
func (d *Dashboard) DiscardAlert() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.composer.Discard()
	d.tool.Discard()
	_ = d.transition(interaction.CloseComposer{})
}

// IsValidation reports whether err is a local composer validation failure.
func IsValidation(err error) bool {
	return validationNotice(err) != ""
}

func validationNotice(err error) string {
	if err == nil {
		return ""
	}
	for target, msg := range validationNotices {
		if errors.Is(err, target) {
			return msg
		}
	}
	return ""
}

func describeArea(a selection.Area) string {
	switch a.Kind {
	case selection.AreaWard:
		return fmt.Sprintf("ward:%d:%s", a.WardIndex, a.WardName)
	case selection.AreaRectangle:
		if a.Rect != nil {
			return fmt.Sprintf("rect:%.5f,%.5f,%.5f,%.5f", a.Rect.South, a.Rect.West, a.Rect.North, a.Rect.East)
		}
	}
	return string(a.Kind)
}

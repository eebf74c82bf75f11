// Package alert composes area alert broadcasts from a selection of point
// entities.
package alert

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dispatch-console/internal/model"
	"github.com/sells-group/dispatch-console/internal/selection"
)

var (
	// ErrEmptyMessage blocks a send with a blank message.
	ErrEmptyMessage   = eris.New("alert: message is empty")
	// ErrEmptySelection blocks a send with nothing selected.
	ErrEmptySelection = eris.New("alert: no area or entities selected")
	// ErrNoRecipients blocks a send when no selected entity has a contact.
	ErrNoRecipients   = eris.New("alert: no valid contact numbers found for the selected area")
)

// Broadcaster delivers one alert to many recipients.
type Broadcaster interface {
	SendAlert(ctx context.Context, message string, recipients []string) (map[string]any, error)
}

// Request is a validated broadcast. Seq identifies the composer session it
// was prepared from.
type Request struct {
	Message    string
	Recipients []string
	Seq        uint64
}

// Composer holds one alert being composed. It is not safe for concurrent use.
type Composer struct {
	area     *selection.Area
	entities []model.PointEntity
	message  string
	seq      uint64
}

// Open starts a new composition for area seeded with entities, replacing any
// previous one. The message is kept.
func (c *Composer) Open(area selection.Area, entities []model.PointEntity) {
	c.area = &area
	c.entities = append([]model.PointEntity(nil), entities...)
	c.seq++
}

// Active reports whether an area is selected.
func (c *Composer) Active() bool { return c.area != nil }

// Area returns the selected area.
func (c *Composer) Area() (selection.Area, bool) {
	if c.area == nil {
		return selection.Area{}, false
	}
	return *c.area, true
}

// Entities returns the selected entities.
func (c *Composer) Entities() []model.PointEntity {
	return append([]model.PointEntity(nil), c.entities...)
}

// Message returns the current message text.
func (c *Composer) Message() string { return c.message }

// SetMessage replaces the message text.
func (c *Composer) SetMessage(msg string) { c.message = msg }

// Seq returns the composer session counter.
func (c *Composer) Seq() uint64 { return c.seq }

// CanSend reports whether the send action is enabled: a non-blank message
// and a non-empty selection.
func (c *Composer) CanSend() bool {
	return strings.TrimSpace(c.message) != "" && c.area != nil && len(c.entities) > 0
}

// Recipients returns the contact identifiers of the selected entities,
// skipping entities without one. Order follows the selection.
func (c *Composer) Recipients() []string {
	return Recipients(c.entities)
}

// Recipients extracts non-blank contact identifiers from entities.
func Recipients(entities []model.PointEntity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		if contact := strings.TrimSpace(e.Contact); contact != "" {
			out = append(out, contact)
		}
	}
	return out
}

// Prepare validates the composition without any network call.
func (c *Composer) Prepare() (Request, error) {
	msg := strings.TrimSpace(c.message)
	if msg == "" {
		return Request{}, ErrEmptyMessage
	}
	if c.area == nil || len(c.entities) == 0 {
		return Request{}, ErrEmptySelection
	}
	recipients := c.Recipients()
	if len(recipients) == 0 {
		return Request{}, ErrNoRecipients
	}
	return Request{Message: msg, Recipients: recipients, Seq: c.seq}, nil
}

// Send validates and issues exactly one broadcast. On success the composer is
// cleared; on failure it is left as it was.
func (c *Composer) Send(ctx context.Context, b Broadcaster) (map[string]any, error) {
	req, err := c.Prepare()
	if err != nil {
		return nil, err
	}
	res, err := b.SendAlert(ctx, req.Message, req.Recipients)
	if err != nil {
		return nil, eris.Wrap(err, "alert: broadcast")
	}
	c.ClearIf(req.Seq)
	return res, nil
}

// Discard clears the composer unconditionally.
func (c *Composer) Discard() {
	c.area = nil
	c.entities = nil
	c.message = ""
	c.seq++
}

// ClearIf discards the composer only if it is still the session seq. It
// reports whether it cleared.
func (c *Composer) ClearIf(seq uint64) bool {
	if c.seq != seq {
		return false
	}
	c.Discard()
	return true
}

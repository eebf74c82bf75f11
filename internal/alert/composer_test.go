package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dispatch-console/internal/model"
	"github.com/sells-group/dispatch-console/internal/selection"
)

type fakeBroadcaster struct {
	calls [][]string
	msgs  []string
	err   error
}

func (f *fakeBroadcaster) SendAlert(_ context.Context, message string, recipients []string) (map[string]any, error) {
	f.calls = append(f.calls, recipients)
	f.msgs = append(f.msgs, message)
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"sent": len(recipients)}, nil
}

func entities() []model.PointEntity {
	return []model.PointEntity{
		{ID: "v1", Contact: "+911"},
		{ID: "v2"},
		{ID: "v3", Contact: "  "},
		{ID: "v4", Contact: "+914"},
	}
}

func TestComposer_EmptyMessageIsNoop(t *testing.T) {
	var c Composer
	c.Open(selection.WardArea(0, "A"), entities())
	c.SetMessage("   ")

	b := &fakeBroadcaster{}
	_, err := c.Send(context.Background(), b)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, b.calls)
	assert.False(t, c.CanSend())
	assert.True(t, c.Active())
}

func TestComposer_EmptySelection(t *testing.T) {
	var c Composer
	c.SetMessage("Flood warning")
	b := &fakeBroadcaster{}

	_, err := c.Send(context.Background(), b)
	assert.ErrorIs(t, err, ErrEmptySelection)

	c.Open(selection.WardArea(0, "A"), nil)
	assert.False(t, c.CanSend())
	_, err = c.Send(context.Background(), b)
	assert.ErrorIs(t, err, ErrEmptySelection)
	assert.Empty(t, b.calls)
}

func TestComposer_NoRecipientsRefusedLocally(t *testing.T) {
	var c Composer
	c.Open(selection.WardArea(0, "A"), []model.PointEntity{{ID: "v2"}, {ID: "v3", Contact: " "}})
	c.SetMessage("Evacuate")
	assert.True(t, c.CanSend())

	b := &fakeBroadcaster{}
	_, err := c.Send(context.Background(), b)
	assert.ErrorIs(t, err, ErrNoRecipients)
	assert.Empty(t, b.calls)
	assert.Equal(t, "Evacuate", c.Message(), "state kept after local refusal")
}

func TestComposer_SendsOnceWithContactableIdentifiers(t *testing.T) {
	var c Composer
	c.Open(selection.WardArea(2, "Dadar"), entities())
	c.SetMessage(" Evacuate now ")

	b := &fakeBroadcaster{}
	res, err := c.Send(context.Background(), b)
	require.NoError(t, err)
	require.Len(t, b.calls, 1)
	assert.Equal(t, []string{"+911", "+914"}, b.calls[0])
	assert.Equal(t, "Evacuate now", b.msgs[0])
	assert.Equal(t, 2, res["sent"])

	assert.False(t, c.Active())
	assert.Empty(t, c.Message())
	assert.Empty(t, c.Entities())
}

func TestComposer_FailureKeepsState(t *testing.T) {
	var c Composer
	c.Open(selection.WardArea(2, "Dadar"), entities())
	c.SetMessage("Evacuate")

	b := &fakeBroadcaster{err: errors.New("sms gateway down")}
	_, err := c.Send(context.Background(), b)
	require.Error(t, err)
	assert.Len(t, b.calls, 1)
	assert.True(t, c.Active())
	assert.Equal(t, "Evacuate", c.Message())
	assert.Len(t, c.Entities(), 4)
}

func TestComposer_DiscardAlwaysClears(t *testing.T) {
	var c Composer
	c.Open(selection.WardArea(1, "Worli"), entities())
	c.SetMessage("x")
	c.Discard()

	assert.False(t, c.Active())
	_, ok := c.Area()
	assert.False(t, ok)
	assert.Empty(t, c.Message())
}

func TestComposer_ClearIfStaleSession(t *testing.T) {
	var c Composer
	c.Open(selection.WardArea(1, "Worli"), entities())
	c.SetMessage("x")
	req, err := c.Prepare()
	require.NoError(t, err)

	c.Open(selection.WardArea(2, "Dadar"), entities())
	assert.False(t, c.ClearIf(req.Seq))
	assert.True(t, c.Active())

	assert.True(t, c.ClearIf(c.Seq()))
	assert.False(t, c.Active())
}

func TestRecipients(t *testing.T) {
	assert.Equal(t, []string{"+911", "+914"}, Recipients(entities()))
	assert.Empty(t, Recipients(nil))
}

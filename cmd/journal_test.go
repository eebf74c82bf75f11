package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/dispatch-console/internal/model"
)

func TestFormatJournalList(t *testing.T) {
	now := time.Date(2024, 7, 1, 6, 30, 0, 0, time.UTC)
	lat, lng := 19.07612, 72.87765
	entries := []model.JournalEntry{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Action:    model.JournalAssign,
			TeamID:    "T1",
			Latitude:  &lat,
			Longitude: &lng,
			Outcome:   model.OutcomeOK,
			CreatedAt: now,
		},
		{
			ID:         "def12345-6789-0000-0000-000000000000",
			Action:     model.JournalAlert,
			Area:       "ward:3:Colaba",
			Recipients: 12,
			Outcome:    model.OutcomeFailed,
			Detail:     "An error occurred while sending the alert through the gateway.",
			CreatedAt:  now.Add(time.Minute),
		},
		{
			ID:        "ghi",
			Action:    model.JournalUnassign,
			TeamID:    "T2",
			Outcome:   model.OutcomeOK,
			CreatedAt: now,
		},
	}

	var buf bytes.Buffer
	formatJournalList(&buf, entries)

	output := buf.String()
	assert.Contains(t, output, "ACTION")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-")
	assert.Contains(t, output, "T1 @ 19.07612,72.87765")
	assert.Contains(t, output, "ward:3:Colaba (12 recipients)")
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "An error occurred while sending the a...")
	assert.Contains(t, output, "2024-07-01 06:31")
	assert.Contains(t, output, "ghi")
}

func TestJournalTarget_UnassignHasNoCoordinates(t *testing.T) {
	assert.Equal(t, "T2", journalTarget(model.JournalEntry{Action: model.JournalUnassign, TeamID: "T2"}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "12345678", truncateID("12345678-aaaa"))
	assert.Equal(t, "1234", truncateID("1234"))
}

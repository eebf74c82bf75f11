package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTeamStatus(t *testing.T) {
	tests := []struct {
		label string
		want  TeamStatus
	}{
		{"", TeamStatusFree},
		{"Free", TeamStatusFree},
		{"AVAILABLE", TeamStatusFree},
		{"Assigned", TeamStatusEngaged},
		{"On Mission", TeamStatusEngaged},
		{" engaged ", TeamStatusEngaged},
		{"Unavailable", TeamStatusDisabled},
		{"disabled", TeamStatusDisabled},
		{"resting", TeamStatusUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseTeamStatus(tt.label), "label %q", tt.label)
	}
}

func TestTeam_Assignment(t *testing.T) {
	lat, lng := LatLng{Lat: 11, Lng: 21}.Ptr()
	team := Team{ID: "t1", AssignedLatitude: lat}
	assert.False(t, team.Assigned())

	team.AssignedLongitude = lng
	got, ok := team.Assignment()
	assert.True(t, ok)
	assert.Equal(t, LatLng{Lat: 11, Lng: 21}, got)
}

func TestVictim_Point(t *testing.T) {
	p := Victim{AuthID: "v1", Name: "A", PhoneNumber: "+91", IsActive: true, Latitude: 1, Longitude: 2}.Point()
	assert.Equal(t, KindVictim, p.Kind)
	assert.Equal(t, "+91", p.Contact)
	assert.Equal(t, "active", p.Status)
}

package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Ptr returns pointers to both axes, for the nullable fields of Team.
func (p LatLng) Ptr() (*float64, *float64) {
	lat, lng := p.Lat, p.Lng
	return &lat, &lng
}

// TeamStatus is the normalized status of a rescue team.
type TeamStatus string

const (
	TeamStatusFree     TeamStatus = "Free"
	TeamStatusEngaged  TeamStatus = "Engaged"
	TeamStatusDisabled TeamStatus = "Disabled"
	TeamStatusUnknown  TeamStatus = "Unknown"
)

// statusLabels maps folded backend labels to normalized statuses.
var statusLabels = map[string]TeamStatus{
	"free":        TeamStatusFree,
	"available":   TeamStatusFree,
	"assigned":    TeamStatusEngaged,
	"engaged":     TeamStatusEngaged,
	"on mission":  TeamStatusEngaged,
	"on_mission":  TeamStatusEngaged,
	"busy":        TeamStatusEngaged,
	"unavailable": TeamStatusDisabled,
	"disabled":    TeamStatusDisabled,
}

// ParseTeamStatus maps a backend status label onto a TeamStatus.
// Matching is case-insensitive; an empty label means Free.
func ParseTeamStatus(label string) TeamStatus {
	label = strings.TrimSpace(label)
	if label == "" {
		return TeamStatusFree
	}
	if s, ok := statusLabels[cases.Fold().String(label)]; ok {
		return s
	}
	return TeamStatusUnknown
}

// Shelter is the canonical shelter view-model. Coordinates are nil when the
// backend record carries no usable location.
type Shelter struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Lat           *float64 `json:"lat"`
	Lng           *float64 `json:"lng"`
	TotalCapacity *int     `json:"totalCapacity"`
	RescuedCount  int      `json:"rescuedCount"`
}

// Located reports whether the shelter can be placed on the map.
func (s Shelter) Located() bool {
	return s.Lat != nil && s.Lng != nil
}

// Leader is the team leader as embedded in a team record.
type Leader struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Location returns the leader coordinate if both axes are known.
func (l Leader) Location() (LatLng, bool) {
	if l.Latitude == nil || l.Longitude == nil {
		return LatLng{}, false
	}
	return LatLng{Lat: *l.Latitude, Lng: *l.Longitude}, true
}

// Team is the canonical rescue team view-model.
type Team struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Leader            Leader            `json:"leader"`
	Status            TeamStatus        `json:"status"`
	StatusLabel       string            `json:"statusLabel"`
	AssignedLatitude  *float64          `json:"assignedLatitude"`
	AssignedLongitude *float64          `json:"assignedLongitude"`
	Members           map[string]string `json:"members"`
}

// Assignment returns the assignment target if the team has one.
func (t Team) Assignment() (LatLng, bool) {
	if t.AssignedLatitude == nil || t.AssignedLongitude == nil {
		return LatLng{}, false
	}
	return LatLng{Lat: *t.AssignedLatitude, Lng: *t.AssignedLongitude}, true
}

// Assigned reports whether the team has an assignment target.
func (t Team) Assigned() bool {
	_, ok := t.Assignment()
	return ok
}

// Victim is a located person in need, as reported by the victims endpoint.
type Victim struct {
	AuthID      string  `json:"authId"`
	Name        string  `json:"name"`
	Gender      string  `json:"gender,omitempty"`
	DateOfBirth string  `json:"dateOfBirth,omitempty"`
	BloodGroup  string  `json:"bloodGroup,omitempty"`
	City        string  `json:"city,omitempty"`
	PhoneNumber string  `json:"phoneNumber,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	IsActive    bool    `json:"isActive"`
	CreatedAt   string  `json:"createdAt,omitempty"`
	UpdatedAt   string  `json:"updatedAt,omitempty"`
}

// Point returns the victim as a point entity.
func (v Victim) Point() PointEntity {
	status := "inactive"
	if v.IsActive {
		status = "active"
	}
	return PointEntity{
		Kind:      KindVictim,
		ID:        v.AuthID,
		Name:      v.Name,
		Contact:   v.PhoneNumber,
		Status:    status,
		Latitude:  v.Latitude,
		Longitude: v.Longitude,
	}
}

// Message is a located inbound SMS.
type Message struct {
	ID        string  `json:"id"`
	Sender    string  `json:"sender"`
	Type      string  `json:"type,omitempty"`
	Battery   *int    `json:"battery,omitempty"`
	Body      string  `json:"message"`
	Timestamp string  `json:"timestamp,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Point returns the message as a point entity; the sender is the contact.
func (m Message) Point() PointEntity {
	return PointEntity{
		Kind:      KindMessage,
		ID:        m.ID,
		Name:      m.Sender,
		Contact:   m.Sender,
		Body:      m.Body,
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
	}
}

// EntityKind tags a PointEntity.
type EntityKind string

const (
	KindVictim  EntityKind = "victim"
	KindMessage EntityKind = "message"
)

// PointEntity is any map-rendered record with a single coordinate. Contact is
// the identifier used for alert broadcasts and may be empty.
type PointEntity struct {
	Kind      EntityKind `json:"kind"`
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Contact   string     `json:"contact,omitempty"`
	Status    string     `json:"status,omitempty"`
	Body      string     `json:"body,omitempty"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
}

// LatLng returns the entity coordinate.
func (p PointEntity) LatLng() LatLng {
	return LatLng{Lat: p.Latitude, Lng: p.Longitude}
}

// PointSource selects which backend collection feeds the point layer.
type PointSource string

const (
	PointSourceVictims  PointSource = "victims"
	PointSourceMessages PointSource = "messages"
)

// Package transform maps raw backend records onto the dashboard's canonical
// view-model. Record shapes drift between backend versions, so every field is
// read through an ordered list of candidate keys.
package transform

import (
	"fmt"
	"strconv"

	"github.com/sells-group/dispatch-console/internal/geopoint"
	"github.com/sells-group/dispatch-console/internal/model"
)

// Raw holds undecoded backend collections.
type Raw struct {
	Shelters []map[string]any
	Teams    []map[string]any
	Victims  []map[string]any
	Messages []map[string]any
}

// Bundle is the canonical output of All.
type Bundle struct {
	Shelters []model.Shelter `json:"shelters"`
	Teams    []model.Team    `json:"rescueTeams"`
	Victims  []model.Victim  `json:"victims"`
	Messages []model.Message `json:"messages"`
}

// Points returns the point entities of the given source.
func (b Bundle) Points(source model.PointSource) []model.PointEntity {
	switch source {
	case model.PointSourceMessages:
		out := make([]model.PointEntity, 0, len(b.Messages))
		for _, m := range b.Messages {
			out = append(out, m.Point())
		}
		return out
	default:
		out := make([]model.PointEntity, 0, len(b.Victims))
		for _, v := range b.Victims {
			out = append(out, v.Point())
		}
		return out
	}
}

// All transforms every collection in raw.
func All(raw Raw) Bundle {
	b := Bundle{
		Shelters: make([]model.Shelter, 0, len(raw.Shelters)),
		Teams:    make([]model.Team, 0, len(raw.Teams)),
		Victims:  make([]model.Victim, 0, len(raw.Victims)),
		Messages: make([]model.Message, 0, len(raw.Messages)),
	}
	for _, rec := range raw.Shelters {
		b.Shelters = append(b.Shelters, Shelter(rec))
	}
	for _, rec := range raw.Teams {
		b.Teams = append(b.Teams, Team(rec))
	}
	for _, rec := range raw.Victims {
		if v, ok := Victim(rec); ok {
			b.Victims = append(b.Victims, v)
		}
	}
	for _, rec := range raw.Messages {
		if m, ok := Message(rec); ok {
			b.Messages = append(b.Messages, m)
		}
	}
	return b
}

// Shelter transforms one shelter record. A shelter without a usable location
// is kept with nil coordinates.
func Shelter(rec map[string]any) model.Shelter {
	s := model.Shelter{
		ID:   firstText(rec, "id", "_id", "shelterId", "name"),
		Name: orDefault(firstText(rec, "name", "title"), "Shelter"),
	}
	if p := geopoint.Extract(rec); p != nil {
		s.Lat, s.Lng = p.Lat, p.Lng
	}
	if c := firstPresent(rec, "totalCapacity", "capacity", "maxCapacity"); c != nil {
		if n := geopoint.Number(c); n != nil {
			capacity := int(*n)
			s.TotalCapacity = &capacity
		}
	}
	s.RescuedCount = occupancy(rec)
	return s
}

func occupancy(rec map[string]any) int {
	if members, ok := rec["rescuedMembers"].([]any); ok {
		return len(members)
	}
	if c := firstPresent(rec, "currentOccupancy", "rescuedCount"); c != nil {
		if n := geopoint.Number(c); n != nil {
			return int(*n)
		}
	}
	return 0
}

// Team transforms one team record. Leader and assignment coordinates stay nil
// when unknown.
func Team(rec map[string]any) model.Team {
	leaderRec, _ := rec["leader"].(map[string]any)

	t := model.Team{
		ID:   firstText(rec, "teamId", "id", "_id", "teamName"),
		Name: orDefault(firstText(rec, "teamName", "name"), "Rescue Team"),
		Leader: model.Leader{
			ID: orDefault(orDefault(firstText(leaderRec, "id"), firstText(rec, "leaderId")), "unknown"),
		},
		StatusLabel: firstText(rec, "status"),
		Members:     members(rec["members"]),
	}

	t.Leader.Name = firstText(leaderRec, "name")
	if t.Leader.Name == "" && leaderRec != nil {
		t.Leader.Name = firstText(rec, "leaderId")
	}
	t.Leader.Name = orDefault(t.Leader.Name, "Leader")

	if p := geopoint.Extract(leaderRec); p != nil {
		t.Leader.Latitude, t.Leader.Longitude = p.Lat, p.Lng
	}

	if t.StatusLabel == "" {
		t.StatusLabel = string(model.TeamStatusFree)
	}
	t.Status = model.ParseTeamStatus(t.StatusLabel)

	t.AssignedLatitude = geopoint.Number(rec["assignedLatitude"])
	t.AssignedLongitude = geopoint.Number(rec["assignedLongitude"])
	return t
}

func members(v any) map[string]string {
	out := map[string]string{}
	switch m := v.(type) {
	case map[string]any:
		for k, val := range m {
			out[k] = text(val)
		}
	case []any:
		for i, val := range m {
			out[strconv.Itoa(i)] = text(val)
		}
	}
	return out
}

// Victim transforms one victim record. ok is false when either axis of the
// location is missing.
func Victim(rec map[string]any) (model.Victim, bool) {
	loc, ok := geopoint.Extract(rec).LatLng()
	if !ok {
		return model.Victim{}, false
	}
	active, _ := rec["isActive"].(bool)
	return model.Victim{
		AuthID:      firstText(rec, "authId", "id", "_id"),
		Name:        firstText(rec, "name"),
		Gender:      firstText(rec, "gender"),
		DateOfBirth: firstText(rec, "dateOfBirth"),
		BloodGroup:  firstText(rec, "bloodGroup"),
		City:        firstText(rec, "city"),
		PhoneNumber: firstText(rec, "phoneNumber"),
		Latitude:    loc.Lat,
		Longitude:   loc.Lng,
		IsActive:    active,
		CreatedAt:   firstText(rec, "createdAt"),
		UpdatedAt:   firstText(rec, "updatedAt"),
	}, true
}

// Message transforms one inbound message record. The location is read from
// the record itself, else from its nested location object.
func Message(rec map[string]any) (model.Message, bool) {
	loc, ok := geopoint.Extract(rec).LatLng()
	if !ok {
		loc, ok = geopoint.Extract(firstPresent(rec, "Location", "location")).LatLng()
	}
	if !ok {
		return model.Message{}, false
	}

	m := model.Message{
		ID:        firstText(rec, "_id", "id", "ID", "MessageID"),
		Sender:    firstText(rec, "Sender", "sender"),
		Type:      firstText(rec, "Type", "type"),
		Body:      firstText(rec, "Message", "message"),
		Timestamp: firstText(rec, "Timestamp", "timestamp"),
		Latitude:  loc.Lat,
		Longitude: loc.Lng,
	}
	if b := geopoint.Number(firstPresent(rec, "Battery", "battery")); b != nil {
		battery := int(*b)
		m.Battery = &battery
	}
	return m, true
}

// firstText returns the first candidate key whose value renders to a
// non-empty string, or "".
func firstText(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := text(rec[k]); s != "" {
			return s
		}
	}
	return ""
}

// firstPresent returns the first non-nil value among the candidate keys.
func firstPresent(rec map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// text renders scalar identifiers. Zero numbers and false render as "" so
// they fall through to the next candidate.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return ""
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		return firstText(t, "name", "id")
	default:
		if n := geopoint.Number(v); n != nil {
			if *n == 0 {
				return ""
			}
			return strconv.FormatFloat(*n, 'f', -1, 64)
		}
		return fmt.Sprint(v)
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// Package geopoint extracts coordinates from the many location shapes the
// rescue backend has used across versions.
package geopoint

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/sells-group/dispatch-console/internal/model"
)

// Point is an extracted coordinate. Either axis is nil when its value could
// not be coerced to a number.
type Point struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// Valid reports whether both axes are numeric.
func (p *Point) Valid() bool {
	return p != nil && p.Lat != nil && p.Lng != nil
}

// LatLng converts a valid point. ok is false when either axis is missing.
func (p *Point) LatLng() (model.LatLng, bool) {
	if !p.Valid() {
		return model.LatLng{}, false
	}
	return model.LatLng{Lat: *p.Lat, Lng: *p.Lng}, true
}

// strategy tries one location shape against a record. matched is false when
// the record does not have that shape.
type strategy func(rec map[string]any) (p *Point, matched bool)

// strategies run in priority order; the first shape that matches wins even
// if its values fail coercion.
var strategies = []strategy{
	keyPair("latitude", "longitude"),
	keyPair("lat", "lng"),
	latWithLon,
}

func keyPair(latKey, lngKey string) strategy {
	return func(rec map[string]any) (*Point, bool) {
		lat, okLat := rec[latKey]
		lng, okLng := rec[lngKey]
		if !okLat || !okLng {
			return nil, false
		}
		return &Point{Lat: Number(lat), Lng: Number(lng)}, true
	}
}

func latWithLon(rec map[string]any) (*Point, bool) {
	lat, ok := rec["lat"]
	if !ok {
		return nil, false
	}
	if lon, ok := rec["lon"]; ok && lon != nil {
		return &Point{Lat: Number(lat), Lng: Number(lon)}, true
	}
	if long, ok := rec["long"]; ok {
		return &Point{Lat: Number(lat), Lng: Number(long)}, true
	}
	if _, ok := rec["lon"]; ok {
		return &Point{Lat: Number(lat)}, true
	}
	return nil, false
}

// Extract returns the coordinate carried by v, or nil if v has no recognized
// location shape. It never panics.
func Extract(v any) (p *Point) {
	defer func() {
		if recover() != nil {
			p = nil
		}
	}()
	return extract(v, 0)
}

// maxDepth bounds recursion through nested sequences.
const maxDepth = 8

func extract(v any, depth int) *Point {
	if v == nil || depth > maxDepth {
		return nil
	}

	switch t := v.(type) {
	case json.RawMessage:
		return extractRaw(t, depth)
	case []byte:
		return extractRaw(t, depth)
	case map[string]any:
		for _, s := range strategies {
			if p, ok := s(t); ok {
				return p
			}
		}
		return nil
	case []any:
		if len(t) == 0 {
			return nil
		}
		return extract(t[0], depth+1)
	case []map[string]any:
		if len(t) == 0 {
			return nil
		}
		return extract(t[0], depth+1)
	}

	// Other sequence or map types (typed slices, map[string]float64, ...).
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return nil
		}
		return extract(rv.Index(0).Interface(), depth+1)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		rec := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			rec[iter.Key().String()] = iter.Value().Interface()
		}
		return extract(rec, depth)
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return extract(rv.Elem().Interface(), depth)
	}
	return nil
}

func extractRaw(raw []byte, depth int) *Point {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}
	return extract(decoded, depth)
}

// Number coerces v to a finite float64, returning nil when it cannot.
// Numeric strings are accepted after trimming; booleans and blank strings are not.
func Number(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	case *float64:
		if n == nil {
			return nil
		}
		f = *n
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

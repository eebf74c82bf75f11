// Package ward loads administrative boundary polygons and answers
// point-in-polygon queries against them.
package ward

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-console/internal/model"
)

// DefaultNameField is the feature property holding the ward display name.
const DefaultNameField = "name"

// UnknownName labels wards whose name property is missing.
const UnknownName = "Unknown"

// ErrUnsupportedGeometry is returned by Contains for geometries other than
// Polygon and MultiPolygon.
var ErrUnsupportedGeometry = eris.New("ward: unsupported geometry type")

// ErrNoGeometry is returned by Contains when the feature geometry could not
// be decoded.
var ErrNoGeometry = eris.New("ward: feature has no geometry")

// Polygon is one boundary feature. Index is the feature's position in the
// source collection and is stable for the lifetime of the set.
type Polygon struct {
	Index      int            `json:"index"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
	Geometry   geom.T         `json:"-"`
}

type featureCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

type feature struct {
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// ParseFeatureCollection decodes a GeoJSON FeatureCollection. Features are
// decoded one at a time; a malformed feature keeps its slot with a nil
// geometry. Only an unreadable envelope is an error.
func ParseFeatureCollection(data []byte, nameField string) ([]Polygon, error) {
	if nameField == "" {
		nameField = DefaultNameField
	}

	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "ward: decode feature collection")
	}
	if fc.Type != "" && fc.Type != "FeatureCollection" {
		return nil, eris.Errorf("ward: expected FeatureCollection, got %s", fc.Type)
	}

	polys := make([]Polygon, len(fc.Features))
	for i, raw := range fc.Features {
		polys[i] = Polygon{Index: i, Name: UnknownName}

		var f feature
		if err := json.Unmarshal(raw, &f); err != nil {
			zap.L().Debug("ward: skipping malformed feature", zap.Int("index", i), zap.Error(err))
			continue
		}
		polys[i].Properties = f.Properties
		polys[i].Name = nameOf(f.Properties, nameField)

		if len(f.Geometry) == 0 || string(f.Geometry) == "null" {
			continue
		}
		var g geom.T
		if err := geojson.Unmarshal(f.Geometry, &g); err != nil {
			zap.L().Debug("ward: skipping malformed geometry", zap.Int("index", i), zap.Error(err))
			continue
		}
		polys[i].Geometry = g
	}
	return polys, nil
}

func nameOf(props map[string]any, field string) string {
	if s, ok := props[field].(string); ok && s != "" {
		return s
	}
	return UnknownName
}

// LoadFile reads boundaries from a local GeoJSON file or shapefile, chosen by
// extension. It returns the polygons and the GeoJSON bytes for rendering.
func LoadFile(path, nameField string) ([]Polygon, []byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "ward: read %s", path)
		}
		polys, err := ParseFeatureCollection(data, nameField)
		if err != nil {
			return nil, nil, err
		}
		return polys, data, nil
	case ".shp":
		polys, err := LoadShapefile(path, nameField)
		if err != nil {
			return nil, nil, err
		}
		data, err := EncodeFeatureCollection(polys)
		if err != nil {
			return nil, nil, err
		}
		return polys, data, nil
	default:
		return nil, nil, eris.Errorf("ward: unsupported boundary file %s", path)
	}
}

// EncodeFeatureCollection renders polygons back to GeoJSON, preserving order.
func EncodeFeatureCollection(polys []Polygon) ([]byte, error) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(polys))}
	for _, p := range polys {
		props := make(map[string]any, len(p.Properties)+1)
		for k, v := range p.Properties {
			props[k] = v
		}
		if _, ok := props[DefaultNameField]; !ok {
			props[DefaultNameField] = p.Name
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   p.Geometry,
			Properties: props,
		})
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, eris.Wrap(err, "ward: encode feature collection")
	}
	return data, nil
}

// Contains reports whether pt lies inside the polygon. Points on a ring
// boundary count as inside; points strictly inside a hole do not.
func (p Polygon) Contains(pt model.LatLng) (bool, error) {
	c := geom.Coord{pt.Lng, pt.Lat}
	switch g := p.Geometry.(type) {
	case nil:
		return false, ErrNoGeometry
	case *geom.Polygon:
		return polygonContains(g, c), nil
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			if polygonContains(g.Polygon(i), c) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, eris.Wrapf(ErrUnsupportedGeometry, "ward %d: %T", p.Index, g)
	}
}

func polygonContains(poly *geom.Polygon, c geom.Coord) bool {
	if poly == nil || poly.NumLinearRings() == 0 {
		return false
	}
	layout := poly.Layout()
	shell := poly.LinearRing(0)
	if !shell.Bounds().OverlapsPoint(layout, c) {
		return false
	}
	if xy.LocatePointInRing(layout, c, shell.FlatCoords()) == location.Exterior {
		return false
	}
	for i := 1; i < poly.NumLinearRings(); i++ {
		if xy.LocatePointInRing(layout, c, poly.LinearRing(i).FlatCoords()) == location.Interior {
			return false
		}
	}
	return true
}

// Bounds is an axis-aligned viewport in degrees.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// FilterIntersecting keeps the polygons whose bounding box overlaps b.
// Polygons without geometry are dropped. Indexes are left unchanged.
func FilterIntersecting(polys []Polygon, b Bounds) []Polygon {
	view := geom.NewBounds(geom.XY).Set(b.West, b.South, b.East, b.North)
	out := make([]Polygon, 0, len(polys))
	for _, p := range polys {
		if p.Geometry == nil {
			continue
		}
		if p.Geometry.Bounds().Overlaps(geom.XY, view) {
			out = append(out, p)
		}
	}
	return out
}

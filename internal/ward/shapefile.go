package ward

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// LoadShapefile reads ward polygons from an ESRI shapefile. nameField is
// matched case-insensitively against the DBF columns. Records whose shape is
// not a polygon keep their slot with a nil geometry.
func LoadShapefile(path, nameField string) ([]Polygon, error) {
	if nameField == "" {
		nameField = DefaultNameField
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ward: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	nameIdx := -1
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(names[i], nameField) {
			nameIdx = i
		}
	}

	var polys []Polygon
	for reader.Next() {
		_, shape := reader.Shape()

		p := Polygon{
			Index:      len(polys),
			Name:       UnknownName,
			Properties: make(map[string]any, len(fields)),
		}
		for i, n := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				p.Properties[n] = val
			}
		}
		if nameIdx >= 0 {
			if s, ok := p.Properties[names[nameIdx]].(string); ok {
				p.Name = s
			}
			p.Properties[DefaultNameField] = p.Name
		}

		if poly, ok := shape.(*shp.Polygon); ok {
			if mp := shapeToMultiPolygon(poly); mp != nil {
				p.Geometry = mp
			}
		} else {
			zap.L().Debug("ward: skipping non-polygon shape", zap.Int("index", p.Index))
		}
		polys = append(polys, p)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "ward: read shapefile %s", path)
	}
	return polys, nil
}

// shapeToMultiPolygon converts a shapefile polygon to a MultiPolygon. Shapefile
// shells wind clockwise and holes counter-clockwise; each hole is attached to
// the shell that precedes it.
func shapeToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	var current *geom.Polygon

	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("ward: skipping malformed polygon part", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			zap.L().Debug("ward: skipping degenerate ring", zap.Int32("part", i))
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if current != nil && xy.IsRingCounterClockwise(geom.XY, flat) {
			if err := current.Push(ring); err != nil {
				zap.L().Debug("ward: skipping malformed hole", zap.Int32("part", i), zap.Error(err))
			}
			continue
		}

		flush()
		current = geom.NewPolygon(geom.XY)
		if err := current.Push(ring); err != nil {
			zap.L().Debug("ward: skipping malformed shell", zap.Int32("part", i), zap.Error(err))
			current = nil
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

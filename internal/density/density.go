// Package density bins point entities into ward polygons for the choropleth
// layer.
package density

import (
	"math"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-console/internal/model"
	"github.com/sells-group/dispatch-console/internal/ward"
)

// Counts maps polygon index to the number of contained points.
type Counts map[int]int

// Total returns the sum of all per-polygon counts, which equals the number of
// (point, polygon) containment pairs.
func (c Counts) Total() int {
	var n int
	for _, v := range c {
		n += v
	}
	return n
}

// Aggregate counts, for every polygon, the points it contains. A point inside
// several overlapping polygons counts toward each of them. A polygon whose
// containment test fails is treated as not containing the point.
func Aggregate(polys []ward.Polygon, points []model.PointEntity) Counts {
	counts := make(Counts, len(polys))
	for _, p := range polys {
		counts[p.Index] = 0
	}

	var failures int
	for _, pt := range points {
		if !validCoord(pt) {
			continue
		}
		ll := pt.LatLng()
		for _, p := range polys {
			in, err := p.Contains(ll)
			if err != nil {
				failures++
				continue
			}
			if in {
				counts[p.Index]++
			}
		}
	}
	if failures > 0 {
		zap.L().Debug("density: containment tests failed", zap.Int("failures", failures))
	}
	return counts
}

// Contained returns the points inside one polygon, in input order.
func Contained(poly ward.Polygon, points []model.PointEntity) []model.PointEntity {
	var out []model.PointEntity
	for _, pt := range points {
		if !validCoord(pt) {
			continue
		}
		if in, err := poly.Contains(pt.LatLng()); err == nil && in {
			out = append(out, pt)
		}
	}
	return out
}

func validCoord(pt model.PointEntity) bool {
	for _, v := range []float64{pt.Latitude, pt.Longitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Memo caches the last aggregation keyed on the versions of both inputs.
// Callers bump a version whenever they replace the corresponding collection.
type Memo struct {
	mu        sync.Mutex
	polyVer   uint64
	pointVer  uint64
	counts    Counts
	computed  bool
	onCompute func()
}

// NewMemo returns an empty memo. onCompute, if non-nil, is called after every
// recomputation.
func NewMemo(onCompute func()) *Memo {
	return &Memo{onCompute: onCompute}
}

// Get returns the counts for the given input versions, recomputing only when
// either version differs from the cached one.
func (m *Memo) Get(polyVer uint64, polys []ward.Polygon, pointVer uint64, points []model.PointEntity) Counts {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.computed && m.polyVer == polyVer && m.pointVer == pointVer {
		return m.counts
	}
	m.counts = Aggregate(polys, points)
	m.polyVer, m.pointVer, m.computed = polyVer, pointVer, true
	if m.onCompute != nil {
		m.onCompute()
	}
	return m.counts
}

// ErrBandsNotDescending is returned by NewBands when thresholds are not
// strictly descending.
var ErrBandsNotDescending = eris.New("density: thresholds must be strictly descending")

// Band is one color step: counts strictly greater than Above get Color.
type Band struct {
	Above int    `json:"above" mapstructure:"above"`
	Color string `json:"color" mapstructure:"color"`
}

// Bands is a step function from count to color.
type Bands struct {
	steps    []Band
	baseline string
}

// DefaultBands returns the standard ward palette.
func DefaultBands() Bands {
	b, _ := NewBands([]Band{
		{Above: 50, Color: "#4a0c04"},
		{Above: 25, Color: "#800026"},
		{Above: 10, Color: "#BD0026"},
		{Above: 5, Color: "#E31A1C"},
		{Above: 1, Color: "#FC4E2A"},
		{Above: 0, Color: "#FD8D3C"},
	}, "#FFEDA0")
	return b
}

// NewBands validates steps (highest threshold first) and returns the step
// function. Strictly descending thresholds keep Rank monotonic in count.
func NewBands(steps []Band, baseline string) (Bands, error) {
	for i := 1; i < len(steps); i++ {
		if steps[i].Above >= steps[i-1].Above {
			return Bands{}, eris.Wrapf(ErrBandsNotDescending, "step %d (%d) after %d", i, steps[i].Above, steps[i-1].Above)
		}
	}
	return Bands{steps: append([]Band(nil), steps...), baseline: baseline}, nil
}

// Color returns the fill color for count.
func (b Bands) Color(count int) string {
	for _, s := range b.steps {
		if count > s.Above {
			return s.Color
		}
	}
	return b.baseline
}

// Rank returns the band ordinal for count: 0 for the baseline, len(steps) for
// the highest band. Rank never decreases as count grows.
func (b Bands) Rank(count int) int {
	for i, s := range b.steps {
		if count > s.Above {
			return len(b.steps) - i
		}
	}
	return 0
}

// Steps returns a copy of the configured steps.
func (b Bands) Steps() []Band {
	return append([]Band(nil), b.steps...)
}

// Baseline returns the color for counts at or below every threshold.
func (b Bands) Baseline() string {
	return b.baseline
}

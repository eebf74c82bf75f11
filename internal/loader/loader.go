// Package loader fetches map data from the rescue backend. Each source loads
// independently: a failed source yields an empty collection and an error
// entry, never blocking the others.
package loader

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dispatch-console/internal/fetcher"
	"github.com/sells-group/dispatch-console/internal/metrics"
	"github.com/sells-group/dispatch-console/internal/model"
	"github.com/sells-group/dispatch-console/internal/transform"
	"github.com/sells-group/dispatch-console/internal/ward"
	"github.com/sells-group/dispatch-console/pkg/rescueapi"
)

// Source names used in Result.Errors and the load failure metric.
const (
	SourceShelters   = "shelters"
	SourceTeams      = "teams"
	SourceVictims    = "victims"
	SourceMessages   = "messages"
	SourceBoundaries = "boundaries"
)

// Boundary source kinds.
const (
	BoundariesStatic  = "static"
	BoundariesDynamic = "dynamic"
	BoundariesFile    = "file"
)

// Backend is the subset of the rescue backend the loader reads.
type Backend interface {
	Shelters(ctx context.Context) ([]map[string]any, error)
	Teams(ctx context.Context) ([]map[string]any, error)
	Victims(ctx context.Context) ([]map[string]any, error)
	Messages(ctx context.Context) ([]map[string]any, error)
	StaticBoundaries(ctx context.Context) ([]byte, error)
	Boundaries(ctx context.Context, zoom int, b rescueapi.Bounds) ([]byte, error)
}

// Options configures a Loader.
type Options struct {
	PointSource       model.PointSource
	BoundarySource    string
	BoundaryPath      string
	BoundaryNameField string
}

// Result is one load of the entity collections.
type Result struct {
	Bundle   transform.Bundle
	Errors   map[string]error
	LoadedAt time.Time
}

// Failed lists the sources that failed, sorted.
func (r Result) Failed() []string {
	out := make([]string, 0, len(r.Errors))
	for name := range r.Errors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Viewport is the visible map area used for dynamic boundary loads.
type Viewport struct {
	Zoom   int
	Bounds ward.Bounds
}

// Boundaries is one load of the ward layer. Raw is the GeoJSON passed through
// to the renderer.
type Boundaries struct {
	Polygons []ward.Polygon
	Raw      []byte
}

// Loader loads map data.
type Loader struct {
	backend Backend
	opts    Options
}

// New creates a Loader.
func New(backend Backend, opts Options) *Loader {
	if opts.PointSource == "" {
		opts.PointSource = model.PointSourceVictims
	}
	if opts.BoundarySource == "" {
		opts.BoundarySource = BoundariesStatic
	}
	if opts.BoundaryNameField == "" {
		opts.BoundaryNameField = ward.DefaultNameField
	}
	return &Loader{backend: backend, opts: opts}
}

// PointSource returns the configured point collection.
func (l *Loader) PointSource() model.PointSource { return l.opts.PointSource }

// Load fetches shelters, teams and the configured point collection
// concurrently and transforms them.
func (l *Loader) Load(ctx context.Context) Result {
	var (
		mu   sync.Mutex
		raw  transform.Raw
		errs = map[string]error{}
	)

	fetch := func(name string, fn func(context.Context) ([]map[string]any, error), dst *[]map[string]any) func() error {
		return func() error {
			recs, err := fn(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[name] = err
				metrics.LoadFailuresTotal.WithLabelValues(name).Inc()
				zap.L().Warn("loader: source failed", zap.String("source", name), zap.Error(err))
				return nil
			}
			*dst = recs
			return nil
		}
	}

	// Goroutines never return an error, so one failing source cannot cancel
	// the others through a shared context.
	var g errgroup.Group
	g.Go(fetch(SourceShelters, l.backend.Shelters, &raw.Shelters))
	g.Go(fetch(SourceTeams, l.backend.Teams, &raw.Teams))
	if l.opts.PointSource == model.PointSourceMessages {
		g.Go(fetch(SourceMessages, l.backend.Messages, &raw.Messages))
	} else {
		g.Go(fetch(SourceVictims, l.backend.Victims, &raw.Victims))
	}
	_ = g.Wait()

	res := Result{Bundle: transform.All(raw), Errors: errs, LoadedAt: time.Now()}
	zap.L().Debug("loader: loaded",
		zap.Int("shelters", len(res.Bundle.Shelters)),
		zap.Int("teams", len(res.Bundle.Teams)),
		zap.Int("victims", len(res.Bundle.Victims)),
		zap.Int("messages", len(res.Bundle.Messages)),
		zap.Strings("failed", res.Failed()),
	)
	return res
}

// Dynamic reports whether boundaries depend on the viewport.
func (l *Loader) Dynamic() bool { return l.opts.BoundarySource == BoundariesDynamic }

// Boundaries loads the ward layer from the configured source. vp is used only
// by the dynamic source, which also drops wards lying wholly outside vp.
// Polygon indexes keep pointing into Raw.
func (l *Loader) Boundaries(ctx context.Context, vp Viewport) (Boundaries, error) {
	var (
		raw []byte
		err error
	)
	switch l.opts.BoundarySource {
	case BoundariesFile:
		polys, data, ferr := l.loadFile(ctx)
		if ferr != nil {
			metrics.LoadFailuresTotal.WithLabelValues(SourceBoundaries).Inc()
			return Boundaries{}, eris.Wrap(ferr, "loader: boundary file")
		}
		return Boundaries{Polygons: polys, Raw: data}, nil
	case BoundariesDynamic:
		raw, err = l.backend.Boundaries(ctx, vp.Zoom, rescueapi.Bounds{
			South: vp.Bounds.South,
			West:  vp.Bounds.West,
			North: vp.Bounds.North,
			East:  vp.Bounds.East,
		})
	default:
		raw, err = l.backend.StaticBoundaries(ctx)
	}
	if err != nil {
		metrics.LoadFailuresTotal.WithLabelValues(SourceBoundaries).Inc()
		return Boundaries{}, eris.Wrap(err, "loader: fetch boundaries")
	}

	polys, err := ward.ParseFeatureCollection(raw, l.opts.BoundaryNameField)
	if err != nil {
		metrics.LoadFailuresTotal.WithLabelValues(SourceBoundaries).Inc()
		return Boundaries{}, eris.Wrap(err, "loader: parse boundaries")
	}
	if l.Dynamic() && vp.Bounds != (ward.Bounds{}) {
		polys = ward.FilterIntersecting(polys, vp.Bounds)
	}
	return Boundaries{Polygons: polys, Raw: raw}, nil
}

// loadFile reads the boundary file, downloading it first when the path is an
// http, https or ftp URL.
func (l *Loader) loadFile(ctx context.Context) ([]ward.Polygon, []byte, error) {
	path := l.opts.BoundaryPath
	if !fetcher.IsRemote(path) {
		return ward.LoadFile(path, l.opts.BoundaryNameField)
	}

	dir, err := os.MkdirTemp("", "dispatch-wards-*")
	if err != nil {
		return nil, nil, eris.Wrap(err, "loader: create download dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	local, err := fetcher.FetchBoundary(ctx, path, dir, fetcher.Options{})
	if err != nil {
		return nil, nil, err
	}
	return ward.LoadFile(local, l.opts.BoundaryNameField)
}

// Sink receives each completed load.
type Sink func(Result)

// Run loads immediately and then on every tick of interval until ctx is done.
// A zero interval loads once and returns.
func (l *Loader) Run(ctx context.Context, interval time.Duration, sink Sink) {
	sink(l.Load(ctx))
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sink(l.Load(ctx))
		}
	}
}

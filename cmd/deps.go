package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-console/internal/dashboard"
	"github.com/sells-group/dispatch-console/internal/loader"
	"github.com/sells-group/dispatch-console/internal/model"
	"github.com/sells-group/dispatch-console/internal/resilience"
	"github.com/sells-group/dispatch-console/internal/store"
	"github.com/sells-group/dispatch-console/pkg/rescueapi"
)

// initBackend builds the rescue backend client from cfg.Backend.
func initBackend() rescueapi.Client {
	b := cfg.Backend
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Failures: b.BreakerFailures,
		Reset:    b.BreakerReset(),
		OnChange: func(from, to resilience.State) {
			zap.L().Warn("backend circuit state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return rescueapi.NewClient(b.BaseURL,
		rescueapi.WithToken(b.Token),
		rescueapi.WithTimeout(b.Timeout()),
		rescueapi.WithRateLimit(b.RatePerSec, b.Burst),
		rescueapi.WithBreaker(breaker),
		rescueapi.WithRetry(resilience.RetryPolicy{
			Attempts: b.RetryAttempts,
			Initial:  250 * time.Millisecond,
			Jitter:   0.2,
			Name:     "rescueapi",
		}),
	)
}

func initLoader(backend loader.Backend) *loader.Loader {
	return loader.New(backend, loader.Options{
		PointSource:       model.PointSource(cfg.Map.PointSource),
		BoundarySource:    cfg.Boundaries.Source,
		BoundaryPath:      cfg.Boundaries.Path,
		BoundaryNameField: cfg.Boundaries.NameField,
	})
}

// initJournal opens the configured journal. It returns a nil Store when the
// journal is disabled.
func initJournal(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Journal.Driver, cfg.Journal.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open journal")
	}
	return st, nil
}

func dashboardOptions(journal dashboard.Journal) (dashboard.Options, error) {
	bands, err := cfg.Density.Bands()
	if err != nil {
		return dashboard.Options{}, err
	}
	return dashboard.Options{
		Center:      model.LatLng{Lat: cfg.Map.CenterLat, Lng: cfg.Map.CenterLng},
		Zoom:        cfg.Map.Zoom,
		PreviewZoom: cfg.Map.PreviewZoom,
		PointSource: model.PointSource(cfg.Map.PointSource),
		Bands:       bands,
		MaxNotices:  cfg.Map.MaxNotices,
		Journal:     journal,
	}, nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-console/internal/api"
	"github.com/sells-group/dispatch-console/internal/dashboard"
	"github.com/sells-group/dispatch-console/internal/loader"
	"github.com/sells-group/dispatch-console/internal/monitoring"
	"github.com/sells-group/dispatch-console/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dispatch console API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		journal, err := initJournal(ctx)
		if err != nil {
			return err
		}
		var (
			dashJournal dashboard.Journal
			lister      api.JournalLister
		)
		if journal != nil {
			defer journal.Close() //nolint:errcheck
			dashJournal = journal
			lister = journal
		}

		opts, err := dashboardOptions(dashJournal)
		if err != nil {
			return err
		}

		backend := initBackend()
		ld := initLoader(backend)
		dash := dashboard.New(backend, opts)

		if !ld.Dynamic() {
			loadBoundaries(ctx, ld, dash)
		}
		go ld.Run(ctx, cfg.Poll.Interval(), func(res loader.Result) {
			dash.Apply(res.Bundle, res.Errors, res.LoadedAt)
		})

		startMonitoring(ctx, journal, dash)

		srv := api.New(dash, ld, lister, api.Options{
			CORSOrigins:    cfg.Server.CORSOrigins,
			RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSecs) * time.Second,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("backend", cfg.Backend.BaseURL),
			zap.String("point_source", cfg.Map.PointSource),
			zap.String("boundaries", cfg.Boundaries.Source),
		)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// loadBoundaries installs the static or file ward layer once. A failure
// leaves the density layer empty; the map itself still works.
func loadBoundaries(ctx context.Context, ld *loader.Loader, dash *dashboard.Dashboard) {
	b, err := ld.Boundaries(ctx, loader.Viewport{})
	if err != nil {
		zap.L().Warn("ward boundaries unavailable", zap.Error(err))
		return
	}
	dash.SetBoundaries(b.Polygons, b.Raw)
	zap.L().Info("ward boundaries loaded", zap.Int("wards", len(b.Polygons)))
}

// startMonitoring runs the health checker when a webhook is configured. The
// checker reads the journal, so it stays off without one.
func startMonitoring(ctx context.Context, journal store.Store, dash *dashboard.Dashboard) {
	mc := cfg.Monitoring
	if mc.WebhookURL == "" {
		return
	}
	if journal == nil {
		zap.L().Warn("monitoring webhook configured but journal is disabled; health checks off")
		return
	}
	checker := monitoring.NewChecker(monitoring.NewCollector(journal, dash), monitoring.NewAlerter(mc), mc)
	go checker.Run(ctx)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// Package api exposes the dashboard to the browser renderer over HTTP. Every
// gesture is posted here and every mutating route answers with the freshly
// rendered view.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/sells-group/dispatch-console/internal/dashboard"
	"github.com/sells-group/dispatch-console/internal/loader"
	"github.com/sells-group/dispatch-console/internal/metrics"
	"github.com/sells-group/dispatch-console/internal/model"
	"github.com/sells-group/dispatch-console/internal/store"
)

// Loader is the part of the map data loader the API drives.
type Loader interface {
	Load(ctx context.Context) loader.Result
	Dynamic() bool
	Boundaries(ctx context.Context, vp loader.Viewport) (loader.Boundaries, error)
}

// JournalLister reads the dispatch journal.
type JournalLister interface {
	List(ctx context.Context, filter store.JournalFilter) ([]model.JournalEntry, error)
}

// Options configures the HTTP surface.
type Options struct {
	// CORSOrigins lists the renderer origins allowed to call the API.
	CORSOrigins []string
	// RequestTimeout bounds each request. Default: 30s.
	RequestTimeout time.Duration
}

// Server routes renderer requests to a Dashboard.
type Server struct {
	dash     *dashboard.Dashboard
	loader   Loader
	journal  JournalLister
	validate *validator.Validate
	opts     Options
}

// New creates a Server. journal may be nil when the journal is disabled.
func New(dash *dashboard.Dashboard, ld Loader, journal JournalLister, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{
		dash:     dash,
		loader:   ld,
		journal:  journal,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		opts:     opts,
	}
}

// Router builds the chi router with middleware and every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/map", func(r chi.Router) {
			r.Get("/", s.handleView)
			r.Get("/boundaries", s.handleBoundaries)
			r.Put("/filters", s.handleFilters)
			r.Put("/viewport", s.handleViewport)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/click", s.handleClick)
			r.Post("/escape", s.handleEscape)
		})

		r.Post("/draw/toggle", s.handleDrawToggle)
		r.Post("/draw/pointer", s.handleDrawPointer)

		r.Route("/teams/{teamID}", func(r chi.Router) {
			r.Post("/assign-mode", s.handleStartAssigning)
			r.Post("/assign-leader", s.handleAssignLeader)
			r.Post("/unassign", s.handleUnassign)
			r.Post("/preview", s.handlePreview)
		})
		r.Delete("/assign-mode", s.handleCancelAssigning)
		r.Delete("/preview", s.handleClosePreview)

		r.Post("/wards/{index}/alert", s.handleWardAlert)
		r.Route("/alert", func(r chi.Router) {
			r.Put("/message", s.handleAlertMessage)
			r.Post("/send", s.handleAlertSend)
			r.Delete("/", s.handleAlertDiscard)
		})

		r.Get("/notices", s.handleNotices)
		r.Delete("/notices/{noticeID}", s.handleDismissNotice)
		r.Get("/journal", s.handleJournal)
	})
	return r
}

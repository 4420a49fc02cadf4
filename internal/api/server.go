// Package api exposes trails, reviews, recommendations and import runs over
// a JSON HTTP API.
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/trailscout/internal/config"
	"github.com/sells-group/trailscout/internal/geo"
	"github.com/sells-group/trailscout/internal/model"
	"github.com/sells-group/trailscout/internal/recommend"
	"github.com/sells-group/trailscout/internal/scorer"
	"github.com/sells-group/trailscout/internal/store"
	"github.com/sells-group/trailscout/internal/trails"
)

// Importer starts OSM imports on behalf of the API.
type Importer interface {
	StartOSM(ctx context.Context, bbox geo.BBox) (*model.ImportRun, error)
	RunOSM(ctx context.Context, run *model.ImportRun, bbox geo.BBox) (*model.ImportRun, error)
}

// Deps are the services the API serves. Tiles and Importer may be nil, in
// which case their routes are not registered.
type Deps struct {
	Trails      trails.Store
	Runs        store.Store
	Recommender *recommend.Service
	Profiles    *scorer.Profiles
	Importer    Importer
	Tiles       http.Handler
	Regions     map[string]string
}

// Server holds the API handlers.
type Server struct {
	deps Deps
	cfg  config.ServerConfig

	// base is the parent context of imports started by POST /imports, which
	// background tracks.
	base       context.Context
	background sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithBaseContext sets the context background imports run under. Cancelling
// it stops them and their runs end failed.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Server) { s.base = ctx }
}

// NewServer creates an API server.
func NewServer(cfg config.ServerConfig, deps Deps, opts ...Option) *Server {
	s := &Server{deps: deps, cfg: cfg, base: context.Background()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(instrument)
	r.Use(chimiddleware.Recoverer)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(corsMiddleware(s.cfg.CORSOrigins))
	}
	if s.cfg.RateLimitPerMin > 0 {
		r.Use(rateLimit(s.cfg.RateLimitPerMin))
	}

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	if s.deps.Tiles != nil {
		r.Handle("/tiles/*", s.deps.Tiles)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/trails", func(r chi.Router) {
			r.Get("/", s.handleListTrails)
			r.Get("/nearby", s.handleNearby)
			r.Get("/search", s.handleSearch)
			r.Get("/{id}", s.handleGetTrail)
			r.Get("/{id}/reviews", s.handleListReviews)
			r.Post("/{id}/reviews", s.handleAddReview)
		})

		r.Post("/recommendations", s.handleRecommend)
		r.Get("/users/{userID}/recommendations", s.handleUserRecommend)
		r.Put("/users/{userID}/preferences", s.handlePutPreferences)
		r.Get("/scoring/profiles", s.handleProfiles)

		r.Route("/imports", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Get("/{id}", s.handleGetRun)
			if s.deps.Importer != nil {
				r.Post("/", s.handleStartImport)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	return r
}

// Wait blocks until imports started through the API have finished or ctx is
// done.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "api: wait for background imports")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

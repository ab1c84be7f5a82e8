// Package server implements the flowlane viewer API.
//
// A client opens a viewer session with POST /sessions and drives it with
// select and scroll requests. Every read refreshes the session from the
// server's graph source first, so polling the snapshot follows a live graph.
//
//	GET    /healthz
//	GET    /graph
//	GET    /render?format=svg&selected=3
//	POST   /sessions
//	GET    /sessions/{id}/snapshot
//	GET    /sessions/{id}/timeline.svg
//	POST   /sessions/{id}/select
//	POST   /sessions/{id}/scroll
//	DELETE /sessions/{id}
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/flowlane/pkg/graph"
	"github.com/matzehuels/flowlane/pkg/pipeline"
	"github.com/matzehuels/flowlane/pkg/session"
	"github.com/matzehuels/flowlane/pkg/timeline"
)

// DefaultCleanupInterval is how often expired viewer sessions are swept.
const DefaultCleanupInterval = time.Minute

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore replaces the in-memory session store.
func WithStore(st session.Store) Option {
	return func(s *Server) {
		if st != nil {
			s.store = st
		}
	}
}

// WithRunner sets the pipeline runner used by /render.
func WithRunner(r *pipeline.Runner) Option {
	return func(s *Server) {
		if r != nil {
			s.runner = r
		}
	}
}

// WithViewOptions sets the default view options of new sessions.
func WithViewOptions(o timeline.Options) Option {
	return func(s *Server) { s.view = o }
}

// WithSessionTTL sets the idle lifetime of viewer sessions.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Server) { s.ttl = d }
}

// Server serves the viewer API for one graph source.
type Server struct {
	source graph.Source
	clock  graph.Clock
	store  session.Store
	runner *pipeline.Runner
	view   timeline.Options
	ttl    time.Duration
	logger *log.Logger
	router chi.Router
}

// New builds a server over src.
func New(src graph.Source, opts ...Option) (*Server, error) {
	if src == nil {
		return nil, errors.New("server: nil graph source")
	}
	s := &Server{
		source: src,
		clock:  graph.ClockOf(src),
		store:  session.NewMemoryStore(),
		view:   timeline.DefaultOptions(),
		ttl:    session.DefaultTTL,
		logger: log.New(io.Discard),
	}
	for _, o := range opts {
		o(s)
	}
	if s.runner == nil {
		s.runner = pipeline.NewRunner(nil, nil, s.logger)
	}
	// The copy follows the source clock without touching the caller's runner.
	runner := *s.runner
	runner.Clock = s.clock
	s.runner = &runner
	s.view.SetDefaults()
	if err := s.view.Validate(); err != nil {
		return nil, err
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Get("/graph", s.handleGraph)
	r.Get("/render", s.handleRender)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/snapshot", s.handleSnapshot)
			r.Get("/timeline.svg", s.handleTimelineSVG)
			r.Post("/select", s.handleSelect)
			r.Post("/scroll", s.handleScroll)
			r.Delete("/", s.handleDeleteSession)
		})
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. Expired sessions are swept in the background.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go session.RunCleanup(ctx, s.store, DefaultCleanupInterval)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("viewer API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		s.logger.Info("shutting down viewer API")
		return srv.Shutdown(shutdownCtx)
	}
}

// Close releases the runner's cache.
func (s *Server) Close() error {
	return s.runner.Close()
}

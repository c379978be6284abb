// Package ui serves the lineage graph over HTTP: the interactive page, JSON
// endpoints and a live-reload stream fed by watch mode.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/sqlgraph/internal/engine"
	"github.com/leapstack-labs/sqlgraph/internal/ui/notifier"
	"github.com/leapstack-labs/sqlgraph/internal/ui/router"
	"github.com/leapstack-labs/sqlgraph/pkg/lineage"
)

// Server holds the most recent graph and serves it.
type Server struct {
	engine   *engine.Engine
	port     int
	watch    bool
	title    string
	logger   *slog.Logger
	notifier *notifier.Notifier

	mu      sync.RWMutex
	graph   *lineage.Graph
	version uint64
}

// Config holds configuration for the server.
type Config struct {
	Engine *engine.Engine
	// Graph is the initial graph; the server builds one on Serve when nil.
	Graph  *lineage.Graph
	Port   int
	Watch  bool
	Title  string
	Logger *slog.Logger
}

// NewServer creates a new server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		engine:   cfg.Engine,
		port:     cfg.Port,
		watch:    cfg.Watch,
		title:    cfg.Title,
		logger:   logger,
		notifier: notifier.New(),
	}
	if cfg.Graph != nil {
		s.SetGraph(cfg.Graph)
	}
	return s
}

// Graph returns the current graph and its version. Version 0 means no graph
// has been built yet; an empty graph is returned in that case.
func (s *Server) Graph() (*lineage.Graph, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.graph == nil {
		return lineage.Aggregate(nil), 0
	}
	return s.graph, s.version
}

// SetGraph replaces the served graph and notifies live pages.
func (s *Server) SetGraph(g *lineage.Graph) {
	s.mu.Lock()
	s.graph = g
	s.version++
	v := s.version
	s.mu.Unlock()

	s.notifier.Broadcast(v)
}

// Title returns the page title.
func (s *Server) Title() string {
	return s.title
}

// DefaultCatalog returns the catalog used to qualify partial table names.
func (s *Server) DefaultCatalog() string {
	if s.engine == nil {
		return ""
	}
	return s.engine.DefaultCatalog()
}

// Notifier returns the server's rebuild notifier.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		router.RequestLogger(s.logger),
		middleware.Recoverer,
		middleware.Compress(5, "text/html", "application/json", "text/plain"),
	)
	router.SetupRoutes(r, s, s.notifier, s.logger)
	return r
}

// Serve builds the graph if needed, starts the HTTP server and blocks until
// the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if _, v := s.Graph(); v == 0 && s.engine != nil {
		res, err := s.engine.Run(ctx)
		if err != nil {
			return err
		}
		s.SetGraph(res.Graph)
	}

	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting server", slog.String("addr", fmt.Sprintf("http://localhost:%d", s.port)))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch && s.engine != nil {
		eg.Go(func() error {
			return s.engine.Watch(egctx, s.onRebuild)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) onRebuild(res *engine.Result, err error) {
	if err != nil {
		s.logger.Error("rebuild failed, keeping previous graph", slog.String("error", err.Error()))
		return
	}
	s.SetGraph(res.Graph)
	s.logger.Info("graph rebuilt",
		slog.Int("nodes", len(res.Graph.Nodes)),
		slog.Int("edges", res.Graph.EdgeCount()),
	)
}

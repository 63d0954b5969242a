// Package server exposes the completion engine over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/sqlscope/internal/completion"
	"github.com/leapstack-labs/sqlscope/internal/config"
	"github.com/leapstack-labs/sqlscope/internal/server/notifier"
	"github.com/leapstack-labs/sqlscope/pkg/catalog"
	"golang.org/x/sync/errgroup"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server is the HTTP API server.
type Server struct {
	engine    *completion.Engine
	static    *catalog.Static
	addr      string
	watchPath string
	logger    *slog.Logger
	notifier  *notifier.Notifier
}

// Config holds configuration for the API server.
type Config struct {
	Engine *completion.Engine
	Addr   string
	// Static and WatchPath enable reloading the static catalog when the
	// file changes. Both must be set.
	Static    *catalog.Static
	WatchPath string
	Logger    *slog.Logger
}

// New creates a new API server instance.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = config.DefaultServerAddr
	}
	return &Server{
		engine:    cfg.Engine,
		static:    cfg.Static,
		addr:      addr,
		watchPath: cfg.WatchPath,
		logger:    logger,
		notifier:  notifier.New(),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/parse", s.handleParse)
		r.Post("/visible", s.handleVisible)
		r.Post("/complete", s.handleComplete)
		r.Post("/hover", s.handleHover)
		r.Get("/tables", s.handleTables)
		r.Get("/events", s.handleEvents)
	})
	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on an existing listener until the context is
// cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting API server", slog.String("addr", "http://"+ln.Addr().String()))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.static != nil && s.watchPath != "" {
		eg.Go(func() error {
			return config.WatchFile(egctx, s.watchPath, config.DefaultDebounce, s.logger, s.reloadCatalog)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Notifier returns the server's notifier for streamed events.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// reloadCatalog re-reads the static catalog file and tells subscribers.
func (s *Server) reloadCatalog() {
	if err := s.static.Reload(s.watchPath); err != nil {
		s.logger.Error("catalog reload failed", slog.Any("error", err))
		s.notifier.Broadcast(notifier.Event{Kind: notifier.CatalogFailed, Message: err.Error()})
		return
	}
	s.logger.Info("catalog reloaded", slog.String("path", s.watchPath))
	s.notifier.Broadcast(notifier.Event{Kind: notifier.CatalogReloaded})
}

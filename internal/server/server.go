// Package server exposes merge points over HTTP.
//
// Routes, for a merge point P:
//
//	POST /merge/P              {keys: [...]} -> {identities: [...]}
//	GET  /merge/P/union        union view
//	GET  /merge/P/records      merge records in insertion order
//	GET  /merge/P/reconcile    dangling records
//	POST /merge/P/purge        {identities: [...]} -> {deleted: n}
//	GET  /merge/P/:id          one merge record
//
// POST /merge and GET /merge/union target the default (first configured)
// merge point.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/mergepoint/internal/config"
)

// ShutdownTimeout bounds graceful shutdown in Run.
const ShutdownTimeout = 5 * time.Second

// Server serves the merge points of one configuration.
type Server struct {
	points *config.Points
	logger *slog.Logger
	engine *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds the router for points.
func New(points *config.Points, opts ...Option) *Server {
	s := &Server{
		points: points,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(s.logger))
	s.engine = engine
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	h := &handler{points: s.points, logger: s.logger}

	s.engine.GET("/healthz", h.health)

	rg := s.engine.Group("/merge")
	rg.POST("", h.insert)
	rg.GET("/union", h.union)

	rg.POST("/:point", h.insert)
	rg.GET("/:point/union", h.union)
	rg.GET("/:point/records", h.records)
	rg.GET("/:point/reconcile", h.reconcile)
	rg.POST("/:point/purge", h.purge)
	rg.GET("/:point/:id", h.get)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("merge point API listening", "addr", addr, "merge_points", s.points.Names())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down merge point API")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

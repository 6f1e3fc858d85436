// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package api serves the analysis pipeline over HTTP for running
// FilingLens as a local service. The server holds no job state: every
// request is one in-memory pipeline run.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/harborline/filinglens/services/research"
	"github.com/harborline/filinglens/services/research/agent"
	"github.com/harborline/filinglens/services/research/telemetry"
)

const (
	defaultPort            = 8799
	defaultShutdownTimeout = 10 * time.Second
	serviceName            = "filinglens"
)

// QueryAgent answers natural-language research queries. It is the
// slice of agent.Agent the query endpoint needs.
type QueryAgent interface {
	Process(ctx context.Context, query string) (*agent.Answer, error)
}

// Server exposes the pipeline, document search, the cache, and the
// research agent over a gin router. Endpoints whose collaborator was
// not configured answer 503 instead of disappearing from the route
// table.
type Server struct {
	port     int
	engine   *gin.Engine
	pipeline *research.Pipeline
	searcher agent.DocumentSearcher
	stats    agent.StatsProvider
	agent    QueryAgent
	logger   *slog.Logger
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithPort sets the listen port. Non-positive values keep the default.
func WithPort(port int) Option {
	return func(s *Server) {
		if port > 0 {
			s.port = port
		}
	}
}

// WithLogger sets the request and lifecycle logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSearcher enables GET /api/v1/documents/search.
func WithSearcher(searcher agent.DocumentSearcher) Option {
	return func(s *Server) { s.searcher = searcher }
}

// WithStats enables GET /api/v1/cache/stats.
func WithStats(stats agent.StatsProvider) Option {
	return func(s *Server) { s.stats = stats }
}

// WithAgent enables POST /api/v1/query.
func WithAgent(queryAgent QueryAgent) Option {
	return func(s *Server) { s.agent = queryAgent }
}

// NewServer builds the router around a ready pipeline.
func NewServer(pipeline *research.Pipeline, opts ...Option) (*Server, error) {
	if pipeline == nil {
		return nil, errors.New("pipeline is required")
	}

	s := &Server{
		port:     defaultPort,
		pipeline: pipeline,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), otelgin.Middleware(serviceName), s.requestLogger())
	s.engine = engine
	s.registerRoutes()
	return s, nil
}

// Handler returns the router as a plain http.Handler, for tests and
// embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// requestLogger emits one structured line per request, correlated with
// the active trace when tracing is enabled.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger := telemetry.LoggerWithTrace(c.Request.Context(), s.logger)
		logger.Info("Request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests
// before returning.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("API server listening", "addr", srv.Addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}

// errorBody is the JSON error envelope every endpoint uses.
func errorBody(message string, err error) gin.H {
	body := gin.H{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	return body
}

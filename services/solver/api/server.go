// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api serves the solvers over HTTP.
//
// Routes:
//
//	GET  /v1/health
//	POST /v1/solve/reachability
//	POST /v1/solve/weighted
//	POST /v1/solve/scheduled
//	GET  /v1/solve/:id
//	GET  /v1/solve/stream   (websocket)
//	GET  /metrics
//
// Identical concurrent solve requests share one computation.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianSolver/services/solver"
	"github.com/AleutianAI/AleutianSolver/services/solver/objective"
	"github.com/AleutianAI/AleutianSolver/services/solver/store"
	"github.com/AleutianAI/AleutianSolver/services/solver/telemetry"
)

// Config configures the server.
type Config struct {
	// ServiceName names the otelgin spans.
	ServiceName string

	// RateLimit is requests per second across all clients. Zero disables
	// limiting.
	RateLimit float64

	// Burst is the token bucket size.
	Burst int

	// SolveTimeout bounds a single solve.
	// Default: 5m
	SolveTimeout time.Duration

	// MaxBodyBytes caps request bodies.
	// Default: 32 MiB
	MaxBodyBytes int64

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a permissive configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:  "aleutian-solver",
		SolveTimeout: 5 * time.Minute,
		MaxBodyBytes: 32 << 20,
	}
}

// ResultStore persists finished solves. *store.Store satisfies it.
type ResultStore interface {
	Put(ctx context.Context, rec store.Record) error
	Get(ctx context.Context, id string) (*store.Record, error)
}

// Server is the HTTP front end.
type Server struct {
	cfg      Config
	opts     solver.Options
	results  ResultStore
	limiter  *rate.Limiter
	flight   singleflight.Group
	upgrader websocket.Upgrader
	router   *gin.Engine
}

// New builds a server. results may be nil, in which case solves are not
// stored and GET /v1/solve/:id answers 503.
func New(cfg Config, opts solver.Options, results ResultStore) (*Server, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("solver options: %w", err)
	}
	if cfg.SolveTimeout <= 0 {
		cfg.SolveTimeout = DefaultConfig().SolveTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultConfig().ServiceName
	}

	s := &Server{
		cfg:     cfg,
		opts:    opts,
		results: results,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(otelgin.Middleware(cfg.ServiceName))
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))

	v1 := s.router.Group("/v1")
	v1.GET("/health", s.handleHealth)

	solve := v1.Group("/solve")
	solve.Use(s.rateLimit(), s.limitBody())
	solve.POST("/reachability", s.handleSolve(objective.KindReachability))
	solve.POST("/weighted", s.handleSolve(objective.KindWeighted))
	solve.POST("/scheduled", s.handleSolve(objective.KindScheduled))
	solve.GET("/stream", s.handleStream)
	solve.GET("/:id", s.handleGet)
}

// Router returns the gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("solver API listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("solver API shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// rateLimit rejects requests beyond the token bucket with 429.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		if !s.limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	solvers, err := solver.NewDefaultRegistry(s.opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"solvers": solvers.Identifiers(),
		"store":   s.results != nil,
	})
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intellisense assembles the Intellisense HTTP service.
//
// # Description
//
// The service owns one graph store and one agent for its lifetime and
// exposes them over HTTP:
//
//	POST /graph/query       node neighborhood lookup
//	GET  /graph/all         whole graph, node-link form
//	POST /graph/nodes       add or update a node
//	POST /graph/edges       add or update an edge
//	GET  /graph/ws          live graph feed (websocket)
//	POST /chat              agent echo
//	POST /document/analyze  summary and length
//	GET  /health            liveness and graph size
//	GET  /metrics           Prometheus exposition
//
// # Usage
//
//	svc, err := intellisense.New(cfg, intellisense.Options{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	return svc.Run(ctx) // returns after ctx is cancelled and shutdown completes
package intellisense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/Intellisense/services/intellisense/agent"
	"github.com/AleutianAI/Intellisense/services/intellisense/config"
	"github.com/AleutianAI/Intellisense/services/intellisense/graph"
	"github.com/AleutianAI/Intellisense/services/intellisense/handlers"
	"github.com/AleutianAI/Intellisense/services/intellisense/middleware"
	"github.com/AleutianAI/Intellisense/services/intellisense/observability"
	"github.com/AleutianAI/Intellisense/services/intellisense/routes"
	"github.com/AleutianAI/Intellisense/services/intellisense/telemetry"
)

// ServiceName identifies the service in traces, metrics, and logs.
const ServiceName = "intellisense"

const readHeaderTimeout = 10 * time.Second

// =============================================================================
// Service Interface
// =============================================================================

// Service is a runnable Intellisense HTTP server.
type Service interface {
	// Run listens on the configured address and serves until ctx is
	// cancelled, then shuts down gracefully within the configured timeout.
	// Returns nil after a clean shutdown.
	Run(ctx context.Context) error

	// Serve is Run on an existing listener. The listener is closed on return.
	Serve(ctx context.Context, ln net.Listener) error

	// Router returns the configured gin engine.
	Router() *gin.Engine

	// Store returns the graph backing the service.
	Store() *graph.Store
}

// Options carries construction-time dependencies that do not belong in
// the configuration file.
//
// # Fields
//
//   - Logger: Access and lifecycle logs. Nil uses slog.Default().
//   - Registry: Prometheus registry for collectors and /metrics. Nil uses
//     the global registry.
//   - Processor: Chat agent backend. Nil uses agent.EchoProcessor.
//   - Version: Reported in telemetry resources. Empty reports "dev".
type Options struct {
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Processor agent.Processor
	Version   string
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config config.Config
	logger *slog.Logger

	store   *graph.Store
	agent   *agent.Service
	metrics *observability.Metrics
	router  *gin.Engine

	telemetryShutdown func(context.Context) error

	feedDone    chan struct{}
	closeFeeds  func()
	cleanupOnce sync.Once
}

// New validates cfg and builds a Service.
//
// # Description
//
// Initializes telemetry, Prometheus collectors, the graph store, the agent,
// and the router with recovery, tracing, request-ID, and access-log
// middleware. Nothing listens until Run or Serve is called.
//
// # Outputs
//
//   - Service: Ready to run.
//   - error: Wraps config.ErrInvalidConfig or a telemetry setup failure.
func New(cfg config.Config, opts Options) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	s := &service{
		config:   cfg,
		logger:   logger,
		store:    graph.NewStore(),
		agent:    agent.NewService(opts.Processor, cfg.Agent.MaxWorkers),
		feedDone: make(chan struct{}),
	}
	s.closeFeeds = sync.OnceFunc(func() { close(s.feedDone) })

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if opts.Registry != nil {
		registerer, gatherer = opts.Registry, opts.Registry
	}

	shutdown, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    ServiceName,
		ServiceVersion: version,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Registerer:     registerer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.telemetryShutdown = shutdown

	if cfg.Telemetry.EnableMetrics {
		s.metrics = observability.NewMetrics(registerer)
		s.logger.Info("Initialized Prometheus metrics")
	} else {
		gatherer = nil
	}

	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}
	s.router = gin.New()
	s.router.Use(
		gin.Recovery(),
		otelgin.Middleware(ServiceName),
		middleware.RequestID(),
		middleware.AccessLog(s.logger),
	)
	routes.SetupRoutes(s.router, routes.Dependencies{
		Store:    s.store,
		Agent:    s.agent,
		Metrics:  s.metrics,
		Gatherer: gatherer,
		Feed: handlers.FeedOptions{
			Buffer: cfg.Server.FeedBuffer,
			Done:   s.feedDone,
		},
	})

	return s, nil
}

// Run listens on the configured host and port, then serves.
func (s *service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		s.cleanup()
		return fmt.Errorf("listen on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled or the server fails.
//
// # Description
//
// On cancellation the server stops accepting connections, signals open
// graph feeds to close, and waits for in-flight requests up to
// ShutdownTimeout. Telemetry is flushed on every return path.
func (s *service) Serve(ctx context.Context, ln net.Listener) error {
	defer s.cleanup()

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	// Hijacked websocket connections are invisible to Shutdown.
	srv.RegisterOnShutdown(s.closeFeeds)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("Starting intellisense server",
		"addr", ln.Addr().String(),
		"agent_workers", s.agent.MaxWorkers())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)

	case <-ctx.Done():
	}

	s.logger.Info("Shutting down intellisense server", "timeout", s.config.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}

	s.logger.Info("Intellisense server stopped")
	return nil
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) Store() *graph.Store {
	return s.store
}

// cleanup closes feeds and flushes telemetry. Safe to call repeatedly.
func (s *service) cleanup() {
	s.cleanupOnce.Do(func() {
		s.closeFeeds()
		if s.telemetryShutdown == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		if err := s.telemetryShutdown(ctx); err != nil {
			s.logger.Warn("Telemetry shutdown error", "error", err)
		}
	})
}

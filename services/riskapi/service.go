// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package riskapi serves ingredient risk labels over HTTP.
//
// The service wires the assessor (label parser, catalog and labeler) and an
// explainer behind a Gin router with request IDs, access logging, CORS,
// tracing and Prometheus metrics. Optional extensions add API key
// authentication and audit logging to the /v1 routes.
//
// # Usage
//
//	svc, err := riskapi.New(riskapi.Config{Port: 8000}, riskapi.Dependencies{
//	    Catalog: cat,
//	    Labeler: labeler,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run(ctx))
package riskapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/ingredientrisk/pkg/extensions"
	"github.com/AleutianAI/ingredientrisk/pkg/telemetry"
	"github.com/AleutianAI/ingredientrisk/services/assessor"
	"github.com/AleutianAI/ingredientrisk/services/catalog"
	"github.com/AleutianAI/ingredientrisk/services/explainer"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/middleware"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/observability"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/routes"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
)

// Service defines the lifecycle of the risk API.
//
// # Thread Safety
//
// Run blocks and should be called once per instance. Router may be used
// concurrently with Run.
type Service interface {
	// Run serves HTTP until ctx is canceled, then shuts down gracefully.
	Run(ctx context.Context) error

	// Router returns the configured Gin engine, mainly for tests.
	Router() *gin.Engine
}

// Config holds service options. Zero values take defaults.
type Config struct {
	// Port is the HTTP server port. Default: 8000
	Port int

	// Version is reported by GET / and in trace resources. Default: "1.0.0"
	Version string

	// ServiceName identifies the service in traces. Default: "ingredientrisk-api"
	ServiceName string

	// BatchConcurrency bounds parallel assessments in one batch request.
	// Default: 4
	BatchConcurrency int

	// ExplainRPS and ExplainBurst bound POST /v1/explain across all
	// clients. ExplainRPS < 0 disables the limit. Default: 2 rps, burst 4
	ExplainRPS   float64
	ExplainBurst int

	// RequestTimeout bounds each request. Default: 30s
	RequestTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown. Default: 10s
	ShutdownTimeout time.Duration

	// TraceExporter is "otlp", "stdout" or "none". Default: "none"
	TraceExporter string

	// OTLPEndpoint is the collector endpoint for the otlp exporter.
	OTLPEndpoint string

	// GinMode is "debug", "release" or "test". Empty leaves Gin's mode alone.
	GinMode string
}

// Dependencies are the collaborators the service is built from.
type Dependencies struct {
	// Catalog resolves label names. Required.
	Catalog catalog.Catalog

	// Labeler applies the labeling rules. Required.
	Labeler *risk_labeler.RiskLabeler

	// Explainer backs POST /v1/explain. Defaults to the template explainer.
	Explainer explainer.Explainer

	// ExplainerName labels the explainer in responses and metrics.
	// Default: "template"
	ExplainerName string

	// Logger receives access and service logs. Default: slog.Default()
	Logger *slog.Logger

	// Registry collects the service metrics. Default: a new registry with
	// the Go and process collectors.
	Registry *prometheus.Registry

	// Metrics, if set, must already be registered with Registry. Callers
	// pass it to record events outside request handling, such as catalog
	// reloads.
	Metrics *observability.Metrics

	// Extensions authenticate and audit /v1 requests. Default: no-ops.
	Extensions extensions.ServiceOptions
}

type service struct {
	config         Config
	logger         *slog.Logger
	router         *gin.Engine
	metrics        *observability.Metrics
	audit          extensions.AuditLogger
	tracerShutdown func(context.Context) error
}

// New builds a Service from cfg and deps.
func New(cfg Config, deps Dependencies) (Service, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if deps.Labeler == nil {
		return nil, errors.New("labeler is required")
	}

	cfg = applyConfigDefaults(cfg)
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := deps.Registry
	if reg == nil && deps.Metrics != nil {
		return nil, errors.New("metrics require the registry they are registered with")
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	exp := deps.Explainer
	name := deps.ExplainerName
	if exp == nil {
		exp = explainer.NewTemplateExplainer(deps.Labeler.Rules())
		name = "template"
	}
	if name == "" {
		name = "template"
	}

	shutdown, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.Version,
		TraceExporter:  cfg.TraceExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	a, err := assessor.New(deps.Catalog, deps.Labeler, logger)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, fmt.Errorf("failed to create assessor: %w", err)
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics(reg)
	}

	ext := deps.Extensions.Normalize()
	s := &service{
		config:         cfg,
		logger:         logger,
		metrics:        metrics,
		audit:          ext.AuditLogger,
		tracerShutdown: shutdown,
	}

	var lister catalog.Lister
	if l, ok := deps.Catalog.(catalog.Lister); ok {
		lister = l
		s.metrics.CatalogEntries.Set(float64(l.Len()))
	}

	var limiter *rate.Limiter
	if cfg.ExplainRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ExplainRPS), cfg.ExplainBurst)
	}

	s.router = gin.New()
	s.router.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.ServiceName),
		middleware.RequestID(),
		middleware.AccessLog(logger),
		middleware.CORS(),
		middleware.Timeout(cfg.RequestTimeout),
	)
	routes.SetupRoutes(s.router, routes.Deps{
		Assessor:         a,
		Rules:            deps.Labeler.Rules(),
		Catalog:          lister,
		Explainer:        exp,
		ExplainerName:    name,
		ExplainLimiter:   limiter,
		Metrics:          s.metrics,
		MetricsHandler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Version:          cfg.Version,
		BatchConcurrency: cfg.BatchConcurrency,
		Extensions:       ext,
		Logger:           logger,
	})

	return s, nil
}

// Run serves until ctx is canceled or the listener fails.
func (s *service) Run(ctx context.Context) error {
	defer s.cleanup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting risk API server", "port", s.config.Port, "version", s.config.Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down risk API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) cleanup() {
	if err := s.audit.Flush(context.Background()); err != nil {
		s.logger.Warn("Audit flush error", "error", err)
	}
	if s.tracerShutdown == nil {
		return
	}
	if err := s.tracerShutdown(context.Background()); err != nil {
		s.logger.Warn("Tracer shutdown error", "error", err)
	}
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "ingredientrisk-api"
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 4
	}
	if cfg.ExplainRPS == 0 {
		cfg.ExplainRPS = 2
	}
	if cfg.ExplainBurst <= 0 {
		cfg.ExplainBurst = 4
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.TraceExporter == "" {
		cfg.TraceExporter = telemetry.ExporterNone
	}
	return cfg
}

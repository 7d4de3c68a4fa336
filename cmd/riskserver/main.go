// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command riskserver starts the ingredient risk HTTP API.
//
// # Environment Variables
//
//   - RISKAPI_PORT: HTTP server port (default: 8000)
//   - RULES_PATH: labeling rules YAML (default: embedded rules)
//   - CATALOG_PATH: ingredient catalog YAML (default: embedded seed)
//   - CATALOG_WATCH: reload CATALOG_PATH when it changes (default: false)
//   - CATALOG_DB: BadgerDB directory; takes precedence over CATALOG_PATH
//   - LLM_BACKEND_TYPE: openai, ollama or none (default: none)
//   - EXPLAIN_RPS, EXPLAIN_BURST: /v1/explain rate limit (default: 2, 4)
//   - BATCH_CONCURRENCY: parallel assessments per batch (default: 4)
//   - REQUEST_TIMEOUT: per-request deadline, e.g. "30s"
//   - RISKAPI_API_KEYS: "client:key,..." pairs; enables API key auth on /v1
//   - RISKAPI_AUDIT: log one audit record per /v1 request (default: false)
//   - GIN_MODE: debug, release or test (default: release)
//   - LOG_LEVEL, LOG_FORMAT, LOG_DIR: see pkg/logging
//   - OTEL_TRACES_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT: see pkg/telemetry
//
// # Usage
//
//	go build -o riskserver ./cmd/riskserver
//	CATALOG_PATH=./catalog.yaml CATALOG_WATCH=true ./riskserver
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/ingredientrisk/pkg/logging"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/AleutianAI/ingredientrisk/services/riskapi"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	logger, err := logging.New(logging.ConfigFromEnv("riskserver"))
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger.Slog()); err != nil {
		slog.Error("riskserver stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg serverConfig, logger *slog.Logger) error {
	rules, err := loadRules(cfg.RulesPath)
	if err != nil {
		return err
	}
	labeler, err := risk_labeler.NewRiskLabeler(rules, risk_labeler.WithLogger(logger))
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	cat, closeCatalog, err := openCatalog(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer closeCatalog()

	exp, expName, err := newExplainer(cfg.LLMBackend, rules)
	if err != nil {
		return err
	}

	slog.Info("Starting riskserver",
		"port", cfg.API.Port,
		"rules_version", rules.Version(),
		"catalog", cfg.catalogSource(),
		"explainer", expName,
		"auth", len(cfg.APIKeys) > 0,
	)

	svc, err := riskapi.New(cfg.API, riskapi.Dependencies{
		Catalog:       cat,
		Labeler:       labeler,
		Explainer:     exp,
		ExplainerName: expName,
		Logger:        logger,
		Registry:      reg,
		Metrics:       metrics,
		Extensions:    cfg.extensions(logger),
	})
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}

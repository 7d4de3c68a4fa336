// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/AleutianAI/ingredientrisk/pkg/extensions"
	"github.com/AleutianAI/ingredientrisk/pkg/telemetry"
	"github.com/AleutianAI/ingredientrisk/services/llm"
	"github.com/AleutianAI/ingredientrisk/services/riskapi"
)

const version = "1.0.0"

// serverConfig is everything riskserver reads from the environment.
type serverConfig struct {
	API          riskapi.Config
	RulesPath    string
	CatalogPath  string
	CatalogWatch bool
	CatalogDB    string
	LLMBackend   string

	// APIKeys maps client ID to key. Empty disables authentication.
	APIKeys  map[string]string
	AuditLog bool
}

func loadConfig() (serverConfig, error) {
	var (
		cfg serverConfig
		err error
	)
	tel := telemetry.ConfigFromEnv("ingredientrisk-api", version)
	cfg.API = riskapi.Config{
		Version:       version,
		ServiceName:   tel.ServiceName,
		TraceExporter: tel.TraceExporter,
		OTLPEndpoint:  tel.OTLPEndpoint,
		GinMode:       getEnvString("GIN_MODE", "release"),
	}
	if cfg.API.Port, err = getEnvInt("RISKAPI_PORT", 8000); err != nil {
		return cfg, err
	}
	if cfg.API.BatchConcurrency, err = getEnvInt("BATCH_CONCURRENCY", 4); err != nil {
		return cfg, err
	}
	if cfg.API.ExplainRPS, err = getEnvFloat("EXPLAIN_RPS", 2); err != nil {
		return cfg, err
	}
	if cfg.API.ExplainBurst, err = getEnvInt("EXPLAIN_BURST", 4); err != nil {
		return cfg, err
	}
	if cfg.API.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.CatalogWatch, err = getEnvBool("CATALOG_WATCH", false); err != nil {
		return cfg, err
	}
	cfg.RulesPath = os.Getenv("RULES_PATH")
	cfg.CatalogPath = os.Getenv("CATALOG_PATH")
	cfg.CatalogDB = os.Getenv("CATALOG_DB")
	cfg.LLMBackend = getEnvString("LLM_BACKEND_TYPE", llm.BackendNone)
	if keys := os.Getenv("RISKAPI_API_KEYS"); keys != "" {
		if cfg.APIKeys, err = extensions.ParseAPIKeys(keys); err != nil {
			return cfg, fmt.Errorf("RISKAPI_API_KEYS: %w", err)
		}
	}
	if cfg.AuditLog, err = getEnvBool("RISKAPI_AUDIT", false); err != nil {
		return cfg, err
	}

	if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
		return cfg, fmt.Errorf("RISKAPI_PORT %d out of range", cfg.API.Port)
	}
	if cfg.CatalogWatch && cfg.CatalogPath == "" {
		return cfg, fmt.Errorf("CATALOG_WATCH requires CATALOG_PATH")
	}
	return cfg, nil
}

func (c serverConfig) catalogSource() string {
	switch {
	case c.CatalogDB != "":
		return "badger:" + c.CatalogDB
	case c.CatalogPath != "" && c.CatalogWatch:
		return "watch:" + c.CatalogPath
	case c.CatalogPath != "":
		return "file:" + c.CatalogPath
	default:
		return "embedded"
	}
}

// extensions builds the auth and audit hooks from the config.
func (c serverConfig) extensions(logger *slog.Logger) extensions.ServiceOptions {
	opts := extensions.DefaultOptions()
	if len(c.APIKeys) > 0 {
		opts = opts.WithAuth(extensions.NewAPIKeyAuthProvider(c.APIKeys))
	}
	if c.AuditLog {
		opts = opts.WithAudit(extensions.NewSlogAuditLogger(logger))
	}
	return opts
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

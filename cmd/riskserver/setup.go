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
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/AleutianAI/ingredientrisk/services/catalog"
	"github.com/AleutianAI/ingredientrisk/services/explainer"
	"github.com/AleutianAI/ingredientrisk/services/llm"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/observability"
)

func loadRules(path string) (*risk_labeler.Rules, error) {
	if path == "" {
		return risk_labeler.DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return risk_labeler.LoadRules(data)
}

// openCatalog builds the catalog selected by cfg. The returned close
// function is never nil.
func openCatalog(ctx context.Context, cfg serverConfig, logger *slog.Logger, m *observability.Metrics) (catalog.Catalog, func(), error) {
	switch {
	case cfg.CatalogDB != "":
		bc := catalog.DefaultBadgerConfig(cfg.CatalogDB)
		bc.Logger = logger
		db, err := catalog.OpenBadger(bc)
		if err != nil {
			return nil, func() {}, err
		}
		closeDB := func() {
			if err := db.Close(); err != nil {
				logger.Warn("Failed to close catalog database", "error", err)
			}
		}
		if db.Len() == 0 {
			seed, err := seedCatalog(cfg.CatalogPath)
			if err != nil {
				closeDB()
				return nil, func() {}, err
			}
			n, err := db.Import(ctx, seed)
			if err != nil {
				closeDB()
				return nil, func() {}, fmt.Errorf("failed to seed catalog database: %w", err)
			}
			logger.Info("Seeded empty catalog database", "entries", n)
		}
		m.CatalogEntries.Set(float64(db.Len()))
		return db, closeDB, nil

	case cfg.CatalogWatch:
		w, err := catalog.NewWatchedCatalog(cfg.CatalogPath, &catalog.WatchOptions{
			Logger:   logger,
			OnReload: m.RecordCatalogReload,
		})
		if err != nil {
			return nil, func() {}, err
		}
		if err := w.Start(ctx); err != nil {
			w.Stop()
			return nil, func() {}, err
		}
		m.CatalogEntries.Set(float64(w.Len()))
		return w, w.Stop, nil

	default:
		mc, err := seedCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, func() {}, err
		}
		m.CatalogEntries.Set(float64(mc.Len()))
		return mc, func() {}, nil
	}
}

func seedCatalog(path string) (*catalog.MemoryCatalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}

// newExplainer returns the LLM explainer for backend, or the template
// explainer when no backend is configured.
func newExplainer(backend string, rules *risk_labeler.Rules) (explainer.Explainer, string, error) {
	client, err := llm.NewFromEnv(backend)
	if err != nil {
		return nil, "", fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	if client == nil {
		return explainer.NewTemplateExplainer(rules), "template", nil
	}
	e, err := explainer.NewLLMExplainer(client, rules)
	if err != nil {
		return nil, "", err
	}
	return e, backend, nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset generates labeled ingredient-list rows of the form
// (text, risk_level) and reads and writes them as CSV or XLSX.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/AleutianAI/ingredientrisk/services/catalog"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
)

// Row is one labeled example.
type Row struct {
	Text  string                 `json:"text"`
	Level risk_labeler.RiskLevel `json:"risk_level"`
}

// Config controls sampling.
type Config struct {
	// Rows is the number of rows to produce when PerLevel is zero.
	Rows int

	// PerLevel, when positive, asks for exactly this many rows per risk
	// level. Rows is ignored.
	PerLevel int

	// MinItems and MaxItems bound the ingredients per row. Defaults 1 and 12.
	MinItems int
	MaxItems int

	// Seed makes generation reproducible.
	Seed uint64

	// MaxAttempts caps the number of sampled lists. Default: 1000 per
	// requested row.
	MaxAttempts int
}

// ErrQuotaNotReached is returned when balanced sampling exhausts its
// attempt budget before every level has PerLevel rows.
var ErrQuotaNotReached = errors.New("balanced sampling did not fill every level")

// Generator samples ingredient lists from a catalog and labels them.
type Generator struct {
	pool    []risk_labeler.Ingredient
	labeler *risk_labeler.RiskLabeler
	cfg     Config
	logger  *slog.Logger
}

// NewGenerator prepares a generator. Catalog entries the labeler cannot
// classify are left out of the sampling pool and logged.
func NewGenerator(entries []catalog.Entry, labeler *risk_labeler.RiskLabeler, cfg Config, logger *slog.Logger) (*Generator, error) {
	if labeler == nil {
		return nil, errors.New("labeler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinItems <= 0 {
		cfg.MinItems = 1
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 12
	}
	if cfg.MinItems > cfg.MaxItems {
		return nil, fmt.Errorf("min items %d exceeds max items %d", cfg.MinItems, cfg.MaxItems)
	}
	if cfg.Rows <= 0 && cfg.PerLevel <= 0 {
		return nil, errors.New("either rows or per-level count must be positive")
	}

	g := &Generator{labeler: labeler, cfg: cfg, logger: logger}
	for _, e := range entries {
		if _, err := labeler.ClassifyIngredient(e.Ingredient); err != nil {
			logger.Warn("skipping unlabelable catalog entry", "ingredient", e.Name, "error", err)
			continue
		}
		g.pool = append(g.pool, e.Ingredient)
	}
	if len(g.pool) == 0 {
		return nil, errors.New("no labelable ingredients to sample from")
	}
	return g, nil
}

// Generate produces the configured rows. The same seed, pool and config
// always yield the same rows.
func (g *Generator) Generate(ctx context.Context) ([]Row, error) {
	rng := rand.New(rand.NewPCG(g.cfg.Seed, g.cfg.Seed^0x9e3779b97f4a7c15))

	want := g.cfg.Rows
	if g.cfg.PerLevel > 0 {
		want = g.cfg.PerLevel * len(risk_labeler.AllLevels)
	}
	attempts := g.cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1000 * want
	}

	rows := make([]Row, 0, want)
	filled := make(map[risk_labeler.RiskLevel]int, len(risk_labeler.AllLevels))
	for i := 0; i < attempts && len(rows) < want; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return rows, err
			}
		}

		list := g.sample(rng)
		level, err := g.labeler.ClassifyList(list)
		if err != nil {
			return rows, fmt.Errorf("label sampled list: %w", err)
		}
		if g.cfg.PerLevel > 0 && filled[level] >= g.cfg.PerLevel {
			continue
		}
		filled[level]++
		rows = append(rows, Row{Text: joinNames(list), Level: level})
	}

	if len(rows) < want {
		g.logger.Warn("dataset generation stopped early", "rows", len(rows), "wanted", want, "per_level", filled)
		return rows, fmt.Errorf("%w: got %d of %d rows", ErrQuotaNotReached, len(rows), want)
	}
	return rows, nil
}

func (g *Generator) sample(rng *rand.Rand) []risk_labeler.Ingredient {
	n := g.cfg.MinItems + rng.IntN(g.cfg.MaxItems-g.cfg.MinItems+1)
	if n > len(g.pool) {
		n = len(g.pool)
	}
	idx := rng.Perm(len(g.pool))[:n]
	out := make([]risk_labeler.Ingredient, n)
	for i, j := range idx {
		out[i] = g.pool[j]
	}
	return out
}

func joinNames(list []risk_labeler.Ingredient) string {
	names := make([]string, len(list))
	for i, ing := range list {
		names[i] = ing.Name
		if ing.HasAdditive() {
			names[i] = fmt.Sprintf("%s (%s)", ing.Name, ing.AdditiveCode)
		}
	}
	return strings.Join(names, ", ")
}

// Counts tallies rows per level.
func Counts(rows []Row) map[risk_labeler.RiskLevel]int {
	out := make(map[risk_labeler.RiskLevel]int, len(risk_labeler.AllLevels))
	for _, r := range rows {
		out[r.Level]++
	}
	return out
}

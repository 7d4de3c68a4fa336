// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package assessor resolves label text against the ingredient catalog and
// labels the result.
package assessor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/AleutianAI/ingredientrisk/services/catalog"
	"github.com/AleutianAI/ingredientrisk/services/label_parser"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Source says how an item's attributes were obtained.
type Source string

const (
	SourceCatalog   Source = "catalog"
	SourceQualifier Source = "qualifier"
	SourceAdditive  Source = "additive_code"
	SourceInput     Source = "input"
)

// UnresolvedError lists label names that neither the catalog nor the
// additive registry could resolve.
type UnresolvedError struct {
	Names []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unknown ingredients: %s", strings.Join(e.Names, ", "))
}

func (e *UnresolvedError) Unwrap() error {
	return catalog.ErrNotFound
}

// Item is one labeled ingredient of a report.
type Item struct {
	Label      string                  `json:"label,omitempty"`
	Ingredient risk_labeler.Ingredient `json:"ingredient"`
	Additive   *risk_labeler.Additive  `json:"additive,omitempty"`
	Level      risk_labeler.RiskLevel  `json:"risk_level"`
	Category   string                  `json:"risk_category"`
	Rule       risk_labeler.Rule       `json:"rule"`
	Source     Source                  `json:"source"`
}

// Report is the outcome of assessing one ingredient list.
//
// PredID and Probabilities keep the response shape of the classifier API
// this service replaces: PredID is Level-1 and Probabilities is one-hot
// over the keys "0".."4".
type Report struct {
	Text          string                 `json:"text,omitempty"`
	Level         risk_labeler.RiskLevel `json:"risk_level"`
	Category      string                 `json:"risk_category"`
	PredID        int                    `json:"pred_id"`
	Probabilities map[string]float64     `json:"probabilities"`
	Items         []Item                 `json:"ingredients"`
	Driver        int                    `json:"driver"`
}

// DriverItem returns the item that set the report's level.
func (r *Report) DriverItem() Item {
	return r.Items[r.Driver]
}

// Assessor ties together the parser, the catalog and the labeler.
//
// Thread Safety: Safe for concurrent use if the catalog is.
type Assessor struct {
	catalog catalog.Catalog
	labeler *risk_labeler.RiskLabeler
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New creates an Assessor.
func New(cat catalog.Catalog, labeler *risk_labeler.RiskLabeler, logger *slog.Logger) (*Assessor, error) {
	if cat == nil {
		return nil, errors.New("catalog is required")
	}
	if labeler == nil {
		return nil, errors.New("labeler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assessor{
		catalog: cat,
		labeler: labeler,
		logger:  logger,
		tracer:  otel.Tracer("ingredientrisk/assessor"),
	}, nil
}

// Labeler returns the labeler in use.
func (a *Assessor) Labeler() *risk_labeler.RiskLabeler {
	return a.labeler
}

// Assess parses text, resolves every entry and labels the list.
//
// # Errors
//
//   - label_parser.ErrEmptyText when the text holds no entries.
//   - *UnresolvedError (matches catalog.ErrNotFound) naming every unknown entry.
//   - risk_labeler.ErrClassification when a resolved ingredient matches no rule.
func (a *Assessor) Assess(ctx context.Context, text string) (*Report, error) {
	ctx, span := a.tracer.Start(ctx, "assessor.Assess")
	defer span.End()

	entries, err := label_parser.Parse(text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("assessor.entries", len(entries)))

	resolved, err := a.resolve(ctx, entries)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		return nil, err
	}

	report, err := a.label(resolved)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "labeling failed")
		return nil, err
	}
	report.Text = strings.TrimSpace(text)
	span.SetAttributes(attribute.Int("assessor.risk_level", int(report.Level)))
	return report, nil
}

// AssessIngredients labels already structured ingredients.
func (a *Assessor) AssessIngredients(ctx context.Context, ings []risk_labeler.Ingredient) (*Report, error) {
	_, span := a.tracer.Start(ctx, "assessor.AssessIngredients",
		trace.WithAttributes(attribute.Int("assessor.entries", len(ings))))
	defer span.End()

	items := make([]Item, len(ings))
	for i, ing := range ings {
		items[i] = Item{Ingredient: ing, Source: SourceInput}
	}
	report, err := a.label(items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "labeling failed")
		return nil, err
	}
	return report, nil
}

// resolve maps parsed entries to ingredients.
//
// The entry name is looked up first. Qualifiers found in the catalog are
// added as constituents. A label additive code not already carried by the
// resolved ingredient is added as its own item, built from the additive
// registry.
//
// Every name that resolves to nothing is reported in one UnresolvedError,
// with two exceptions: an entry name that only describes the entry's
// additive code ("mystery dye (102)"), and generic class words from the
// rules ("antioxidant (mixed tocopherols)") when something else in the
// entry resolved.
func (a *Assessor) resolve(ctx context.Context, entries []label_parser.Entry) ([]Item, error) {
	var (
		items   []Item
		unknown []string
		seen    = make(map[string]bool)
	)
	report := func(name string) {
		if !seen[name] {
			seen[name] = true
			unknown = append(unknown, name)
		}
	}
	rules := a.labeler.Rules()

	for _, e := range entries {
		found := false

		ing, err := a.lookup(ctx, e.Name)
		if err != nil {
			return nil, err
		}
		if ing != nil {
			items = append(items, Item{Label: e.Raw, Ingredient: *ing, Source: SourceCatalog})
			found = true
		}

		var missing []string
		for _, q := range e.Qualifiers {
			qi, err := a.lookup(ctx, q)
			if err != nil {
				return nil, err
			}
			switch {
			case qi != nil:
				items = append(items, Item{Label: e.Raw, Ingredient: *qi, Source: SourceQualifier})
				found = true
			case !rules.IsGenericName(q):
				missing = append(missing, q)
			}
		}

		if e.AdditiveCode.Present() && (ing == nil || ing.AdditiveCode != e.AdditiveCode) {
			items = append(items, Item{Label: e.Raw, Ingredient: a.fromCode(e), Source: SourceAdditive})
			found = true
		}

		nameOK := ing != nil || e.AdditiveCode.Present() || (found && rules.IsGenericName(e.Name))
		if !nameOK {
			report(e.Name)
		}
		for _, q := range missing {
			report(q)
		}
	}

	if len(unknown) > 0 {
		a.logger.Info("label contains unknown ingredients", "unknown", unknown)
		return nil, &UnresolvedError{Names: unknown}
	}
	return items, nil
}

func (a *Assessor) lookup(ctx context.Context, name string) (*risk_labeler.Ingredient, error) {
	ing, err := a.catalog.GetIngredient(ctx, name)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog lookup %q: %w", name, err)
	}
	return &ing, nil
}

// fromCode builds an ingredient for a label entry known only by its code.
// Codes missing from the registry are treated as synthetic.
func (a *Assessor) fromCode(e label_parser.Entry) risk_labeler.Ingredient {
	synthetic := true
	name := e.Name
	if add, ok := a.labeler.Rules().Additive(e.AdditiveCode); ok {
		synthetic = add.Synthetic
		if strings.HasPrefix(name, "ins ") {
			name = add.Name
		}
	}
	return risk_labeler.Ingredient{
		Name:         name,
		IsArtificial: synthetic,
		IsProcessed:  true,
		AdditiveCode: e.AdditiveCode,
	}
}

func (a *Assessor) label(items []Item) (*Report, error) {
	ings := make([]risk_labeler.Ingredient, len(items))
	for i, it := range items {
		ings[i] = it.Ingredient
	}

	res, err := a.labeler.AssessList(ings)
	if err != nil {
		return nil, err
	}

	rules := a.labeler.Rules()
	for i := range items {
		as := res.Items[i]
		items[i].Level = as.Level
		items[i].Category = as.Level.String()
		items[i].Rule = as.Rule
		if add, ok := rules.Additive(as.Ingredient.AdditiveCode); ok {
			items[i].Additive = &add
		}
	}

	return &Report{
		Level:         res.Level,
		Category:      res.Level.String(),
		PredID:        res.Level.PredID(),
		Probabilities: oneHot(res.Level),
		Items:         items,
		Driver:        res.Driver,
	}, nil
}

func oneHot(level risk_labeler.RiskLevel) map[string]float64 {
	out := make(map[string]float64, len(risk_labeler.AllLevels))
	for _, l := range risk_labeler.AllLevels {
		p := 0.0
		if l == level {
			p = 1.0
		}
		out[strconv.Itoa(l.PredID())] = p
	}
	return out
}

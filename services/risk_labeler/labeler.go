// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package risk_labeler maps ingredient attributes to a 1-5 risk level and
// reduces ingredient lists to the level of their riskiest member.
package risk_labeler

import (
	"fmt"
	"log/slog"
)

// RiskLabeler applies the labeling rules.
//
// It holds no mutable state; one instance can serve any number of goroutines.
type RiskLabeler struct {
	rules  *Rules
	logger *slog.Logger
}

// Option customizes a RiskLabeler.
type Option func(*RiskLabeler)

// WithLogger sets the logger used to report unmatched attribute combinations.
func WithLogger(logger *slog.Logger) Option {
	return func(l *RiskLabeler) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewRiskLabeler creates a labeler over an already loaded rule set.
func NewRiskLabeler(rules *Rules, opts ...Option) (*RiskLabeler, error) {
	if rules == nil {
		return nil, fmt.Errorf("labeling rules are required")
	}
	l := &RiskLabeler{rules: rules, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// NewDefaultRiskLabeler creates a labeler over the embedded rules.
func NewDefaultRiskLabeler(opts ...Option) (*RiskLabeler, error) {
	rules, err := DefaultRules()
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded labeling rules: %w", err)
	}
	return NewRiskLabeler(rules, opts...)
}

// Rules returns the rule set the labeler applies.
func (l *RiskLabeler) Rules() *Rules {
	return l.rules
}

// Assess labels one ingredient and reports which rule decided it.
//
// Rules are tried in priority order; the first match wins:
//
//  1. harmful additive code                       -> HighRisk
//  2. artificial, processed, with an additive     -> Concerning
//  3. processed with an additive, or refined name -> Moderate
//  4. natural and processed                       -> Safe
//  5. natural, unprocessed, no additive           -> VeryLow
//
// Anything else is a *ClassificationError.
func (l *RiskLabeler) Assess(ing Ingredient) (Assessment, error) {
	if !ing.AdditiveCode.Valid() {
		return Assessment{}, fmt.Errorf("%w: %q has additive code %d outside the INS range",
			ErrInvalidIngredient, ing.Name, int(ing.AdditiveCode))
	}

	level, rule, ok := l.match(ing)
	if !ok {
		l.logger.Warn("ingredient attributes match no labeling rule",
			"ingredient", ing.Name,
			"is_artificial", ing.IsArtificial,
			"is_processed", ing.IsProcessed,
			"additive_code", int(ing.AdditiveCode),
		)
		return Assessment{}, &ClassificationError{Ingredient: ing}
	}
	return Assessment{Ingredient: ing, Level: level, Rule: rule}, nil
}

func (l *RiskLabeler) match(ing Ingredient) (RiskLevel, Rule, bool) {
	hasCode := ing.HasAdditive()
	switch {
	case hasCode && l.rules.IsHarmful(ing.AdditiveCode):
		return HighRisk, RuleHarmfulAdditive, true
	case ing.IsArtificial && ing.IsProcessed && hasCode:
		return Concerning, RuleArtificialProcessedAdditive, true
	case (ing.IsProcessed && hasCode) || l.rules.IsRefined(ing.Name):
		return Moderate, RuleRefinedOrMildAdditive, true
	case !ing.IsArtificial && ing.IsProcessed:
		return Safe, RuleNaturalProcessed, true
	case !ing.IsArtificial && !ing.IsProcessed && !hasCode:
		return VeryLow, RuleWholeFood, true
	default:
		return 0, "", false
	}
}

// ClassifyIngredient returns the risk level of one ingredient.
func (l *RiskLabeler) ClassifyIngredient(ing Ingredient) (RiskLevel, error) {
	a, err := l.Assess(ing)
	if err != nil {
		return 0, err
	}
	return a.Level, nil
}

// AssessList labels every ingredient and aggregates with the max-risk rule.
//
// An empty list returns ErrEmptyList. The first ingredient that cannot be
// labeled aborts the whole list; no partial level is reported.
func (l *RiskLabeler) AssessList(ings []Ingredient) (ListAssessment, error) {
	if len(ings) == 0 {
		return ListAssessment{}, ErrEmptyList
	}

	result := ListAssessment{Items: make([]Assessment, 0, len(ings))}
	for i, ing := range ings {
		a, err := l.Assess(ing)
		if err != nil {
			return ListAssessment{}, fmt.Errorf("ingredient %d: %w", i+1, err)
		}
		if a.Level > result.Level {
			result.Level = a.Level
			result.Driver = i
		}
		result.Items = append(result.Items, a)
	}
	return result, nil
}

// ClassifyList returns the highest risk level among ings.
func (l *RiskLabeler) ClassifyList(ings []Ingredient) (RiskLevel, error) {
	res, err := l.AssessList(ings)
	if err != nil {
		return 0, err
	}
	return res.Level, nil
}

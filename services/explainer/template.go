// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package explainer

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/ingredientrisk/services/assessor"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
)

var classPurpose = map[risk_labeler.AdditiveClass]string{
	risk_labeler.ClassColour:           "adds colour",
	risk_labeler.ClassPreservative:     "extends shelf life",
	risk_labeler.ClassAntioxidant:      "slows rancidity",
	risk_labeler.ClassSweetener:        "sweetens without sugar",
	risk_labeler.ClassFlavourEnhancer:  "boosts savoury flavour",
	risk_labeler.ClassEmulsifier:       "keeps fat and water mixed",
	risk_labeler.ClassStabilizer:       "keeps texture stable",
	risk_labeler.ClassAcidityRegulator: "controls acidity",
	risk_labeler.ClassRaisingAgent:     "makes dough rise",
	risk_labeler.ClassThickener:        "thickens",
}

// TemplateExplainer builds explanations offline from the labeling rules.
// Output depends only on the report and the rules.
type TemplateExplainer struct {
	rules *risk_labeler.Rules
}

// NewTemplateExplainer creates a TemplateExplainer.
func NewTemplateExplainer(rules *risk_labeler.Rules) *TemplateExplainer {
	return &TemplateExplainer{rules: rules}
}

// Explain implements Explainer.
func (e *TemplateExplainer) Explain(ctx context.Context, report *assessor.Report) (string, error) {
	if report == nil || len(report.Items) == 0 {
		return "", ErrNoReport
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var b strings.Builder
	driver := report.DriverItem()
	fmt.Fprintf(&b, "Overall: %s (%d/5), driven by %s.\n",
		report.Category, int(report.Level), driver.Ingredient.Name)

	seen := make(map[string]bool, len(report.Items))
	for _, it := range report.Items {
		if seen[it.Ingredient.Name] {
			continue
		}
		seen[it.Ingredient.Name] = true
		fmt.Fprintf(&b, "- %s [%s]: %s\n", it.Ingredient.Name, it.Category, e.line(it))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (e *TemplateExplainer) line(it assessor.Item) string {
	purpose := "ingredient"
	if it.Additive != nil {
		if p, ok := classPurpose[it.Additive.Class]; ok {
			purpose = fmt.Sprintf("%s (%s)", p, it.Additive.Code)
		}
	}

	switch it.Rule {
	case risk_labeler.RuleHarmfulAdditive:
		group := "harmful additives"
		if e.rules != nil {
			if g, ok := e.rules.HarmfulGroup(it.Ingredient.AdditiveCode); ok {
				group = g
			}
		}
		return fmt.Sprintf("%s. Concern: %s is on the harmful list (%s). Safer option: choose products without it.",
			purpose, it.Ingredient.AdditiveCode, group)
	case risk_labeler.RuleArtificialProcessedAdditive:
		return fmt.Sprintf("%s. Concern: synthetic additive. Safer option: products with fewer additives.", purpose)
	case risk_labeler.RuleRefinedOrMildAdditive:
		if !it.Ingredient.HasAdditive() {
			return "refined ingredient. Concern: stripped of fibre and nutrients. Safer option: a whole or less refined alternative."
		}
		return fmt.Sprintf("%s. Concern: mild processed additive, generally considered low risk.", purpose)
	case risk_labeler.RuleNaturalProcessed:
		return "natural ingredient with some processing. Concern: minimal."
	case risk_labeler.RuleWholeFood:
		return "whole food. No concern."
	default:
		return purpose + "."
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package explainer produces short human-readable explanations of an
// assessment report, either through an LLM or from a fixed template.
package explainer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/ingredientrisk/services/assessor"
	"github.com/AleutianAI/ingredientrisk/services/llm"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
)

// Explainer turns a report into prose.
type Explainer interface {
	Explain(ctx context.Context, report *assessor.Report) (string, error)
}

// ErrNoReport is returned when Explain is called without a report.
var ErrNoReport = errors.New("no report to explain")

// LLMExplainer asks a language model for the explanation.
type LLMExplainer struct {
	client llm.LLMClient
	rules  *risk_labeler.Rules
	params llm.GenerationParams
}

// NewLLMExplainer creates an explainer over client. rules is used to add
// additive facts to the prompt and may be nil.
func NewLLMExplainer(client llm.LLMClient, rules *risk_labeler.Rules) (*LLMExplainer, error) {
	if client == nil {
		return nil, errors.New("llm client is required")
	}
	return &LLMExplainer{
		client: client,
		rules:  rules,
		params: llm.GenerationParams{
			Temperature: llm.Float32(0.3),
			MaxTokens:   llm.Int(600),
		},
	}, nil
}

// Explain implements Explainer. Backend failures are returned wrapped; the
// error text is never passed off as an explanation.
func (e *LLMExplainer) Explain(ctx context.Context, report *assessor.Report) (string, error) {
	if report == nil || len(report.Items) == 0 {
		return "", ErrNoReport
	}
	out, err := e.client.Generate(ctx, BuildPrompt(report, e.rules), e.params)
	if err != nil {
		return "", fmt.Errorf("generate explanation: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// BuildPrompt renders the explanation request for report.
func BuildPrompt(report *assessor.Report, rules *risk_labeler.Rules) string {
	names := make([]string, 0, len(report.Items))
	for _, it := range report.Items {
		names = append(names, it.Ingredient.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Food safety expert: Briefly explain these ingredients (%s) at risk level %d (%s).\n",
		strings.Join(names, ", "), int(report.Level), report.Category)

	var facts []string
	for _, it := range report.Items {
		if it.Additive == nil {
			continue
		}
		fact := fmt.Sprintf("- %s: %s, %s", it.Ingredient.Name, it.Additive.Code, it.Additive.Name)
		if rules != nil {
			if group, ok := rules.HarmfulGroup(it.Additive.Code); ok {
				fact += ", listed as harmful (" + group + ")"
			}
		}
		facts = append(facts, fact)
	}
	if len(facts) > 0 {
		b.WriteString("Known additives:\n")
		b.WriteString(strings.Join(facts, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("For each ingredient: name, purpose, concern, safer option if any. Be concise.")
	return b.String()
}

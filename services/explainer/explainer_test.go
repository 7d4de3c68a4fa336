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
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/ingredientrisk/services/assessor"
	"github.com/AleutianAI/ingredientrisk/services/catalog"
	"github.com/AleutianAI/ingredientrisk/services/llm"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLLM struct {
	prompt string
	params llm.GenerationParams
	reply  string
	err    error
}

func (m *mockLLM) Generate(_ context.Context, prompt string, params llm.GenerationParams) (string, error) {
	m.prompt = prompt
	m.params = params
	return m.reply, m.err
}

func testReport(t *testing.T, text string) (*assessor.Report, *risk_labeler.Rules) {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	labeler, err := risk_labeler.NewDefaultRiskLabeler()
	require.NoError(t, err)
	a, err := assessor.New(cat, labeler, nil)
	require.NoError(t, err)
	report, err := a.Assess(context.Background(), text)
	require.NoError(t, err)
	return report, labeler.Rules()
}

func TestLLMExplainer_Explain(t *testing.T) {
	report, rules := testReport(t, "sugar, emulsifier (322), colour (INS 133)")
	m := &mockLLM{reply: "  Sugar: sweetener...\n"}

	e, err := NewLLMExplainer(m, rules)
	require.NoError(t, err)

	out, err := e.Explain(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, "Sugar: sweetener...", out)

	assert.True(t, strings.HasPrefix(m.prompt, "Food safety expert: Briefly explain these ingredients (sugar, emulsifier, colour) at risk level 5 (High Risk)."))
	assert.Contains(t, m.prompt, "- colour: INS 133, brilliant blue FCF, listed as harmful (synthetic dyes)")
	assert.Contains(t, m.prompt, "- emulsifier: INS 322, lecithin\n")
	assert.True(t, strings.HasSuffix(m.prompt, "Be concise."))

	require.NotNil(t, m.params.Temperature)
	assert.InDelta(t, 0.3, *m.params.Temperature, 0.0001)
	assert.Equal(t, 600, *m.params.MaxTokens)
}

func TestLLMExplainer_BackendError(t *testing.T) {
	report, rules := testReport(t, "sugar")
	backendErr := errors.New("rate limited upstream")
	e, err := NewLLMExplainer(&mockLLM{err: backendErr}, rules)
	require.NoError(t, err)

	out, err := e.Explain(context.Background(), report)
	assert.ErrorIs(t, err, backendErr)
	assert.Empty(t, out)
}

func TestLLMExplainer_Validation(t *testing.T) {
	_, err := NewLLMExplainer(nil, nil)
	assert.Error(t, err)

	e, err := NewLLMExplainer(&mockLLM{}, nil)
	require.NoError(t, err)
	_, err = e.Explain(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoReport)
}

func TestTemplateExplainer(t *testing.T) {
	report, rules := testReport(t, "spinach, iodized salt, maida, emulsifier (471), preservative (E211), spinach")
	e := NewTemplateExplainer(rules)

	out, err := e.Explain(context.Background(), report)
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 6, out)
	assert.Equal(t, "Overall: High Risk (5/5), driven by preservative.", lines[0])
	assert.Equal(t, "- fresh spinach [Very Safe]: whole food. No concern.", lines[1])
	assert.Contains(t, lines[2], "iodized salt [Safe]")
	assert.Contains(t, lines[3], "refined wheat flour [Moderate]: refined ingredient")
	assert.Contains(t, lines[4], "emulsifier [Concerning]: keeps fat and water mixed (INS 471)")
	assert.Contains(t, lines[5], "INS 211 is on the harmful list (preservatives)")

	again, err := e.Explain(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

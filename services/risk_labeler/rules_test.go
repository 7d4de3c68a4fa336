// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package risk_labeler

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules_HarmfulSet(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)

	want := []AdditiveCode{102, 110, 122, 124, 133, 211, 320, 321, 627, 631, 635, 950, 951, 955}
	assert.Equal(t, want, rules.HarmfulCodes())

	group, ok := rules.HarmfulGroup(951)
	assert.True(t, ok)
	assert.Equal(t, "artificial sweeteners", group)

	assert.False(t, rules.IsHarmful(300))
	assert.False(t, rules.IsHarmful(471))
	assert.False(t, rules.IsHarmful(NoAdditive))
}

func TestDefaultRules_Registry(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)

	a, ok := rules.Additive(211)
	require.True(t, ok)
	assert.Equal(t, "sodium benzoate", a.Name)
	assert.Equal(t, ClassPreservative, a.Class)
	assert.True(t, a.Harmful, "registry entries inherit the harmful flag")

	a, ok = rules.Additive(322)
	require.True(t, ok)
	assert.False(t, a.Synthetic)
	assert.False(t, a.Harmful)

	_, ok = rules.Additive(999)
	assert.False(t, ok)

	all := rules.Additives()
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Code, all[i].Code)
	}
}

func TestDefaultRules_Refined(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)

	assert.True(t, rules.IsRefined("Liquid Glucose"))
	assert.True(t, rules.IsRefined("  palm   oil "))
	assert.False(t, rules.IsRefined("whole wheat flour"))
	assert.Contains(t, rules.RefinedNames(), "refined wheat flour")
}

func TestDefaultRules_GenericNames(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)

	assert.True(t, rules.IsGenericName("Emulsifier"))
	assert.True(t, rules.IsGenericName("  acidity   regulator "))
	assert.False(t, rules.IsGenericName("tartrazine"))
	assert.False(t, rules.IsGenericName("mystery dye"))

	_, err = LoadRules([]byte("harmful_additives:\n  - {group: dyes, codes: [102]}\ngeneric_names: [\"  \"]\n"))
	assert.Error(t, err)
}

func TestRules_HashAndRaw(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rules.Hash(), "sha256:"))
	assert.Len(t, rules.Hash(), len("sha256:")+64)
	assert.Equal(t, "1.0", rules.Version())

	raw := rules.Raw()
	raw[0] = 'X'
	assert.NotEqual(t, raw[0], rules.Raw()[0], "Raw must return a copy")
}

func TestLoadRules_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"Not YAML", "harmful_additives: [", "unmarshal"},
		{"No harmful set", "version: x\nadditives: []\n", "no harmful additives"},
		{"Harmful code out of range", "harmful_additives:\n  - {group: g, codes: [5]}\n", "invalid additive code"},
		{
			name:    "Duplicate additive",
			doc:     "harmful_additives:\n  - {group: g, codes: [102]}\nadditives:\n  - {code: 300, name: a, class: antioxidant}\n  - {code: 300, name: b, class: antioxidant}\n",
			wantErr: "defined twice",
		},
		{
			name:    "Unknown class",
			doc:     "harmful_additives:\n  - {group: g, codes: [102]}\nadditives:\n  - {code: 300, name: a, class: glitter}\n",
			wantErr: "invalid value for additive class",
		},
		{
			name:    "Empty refined name",
			doc:     "harmful_additives:\n  - {group: g, codes: [102]}\nrefined_ingredients:\n  - \"  \"\n",
			wantErr: "empty name",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadRules([]byte(tc.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadRules_CustomRefinedList(t *testing.T) {
	doc := "harmful_additives:\n  - {group: dyes, codes: [102]}\nrefined_ingredients:\n  - refined sugar\n"
	rules, err := LoadRules([]byte(doc))
	require.NoError(t, err)

	labeler, err := NewRiskLabeler(rules)
	require.NoError(t, err)

	level, err := labeler.ClassifyIngredient(Ingredient{Name: "refined sugar", IsProcessed: true})
	require.NoError(t, err)
	assert.Equal(t, Moderate, level)

	level, err = labeler.ClassifyIngredient(Ingredient{Name: "palm oil", IsProcessed: true})
	require.NoError(t, err)
	assert.Equal(t, Safe, level, "palm oil is only refined when the rules say so")
}

func TestRiskLevel(t *testing.T) {
	assert.Equal(t, "Very Safe", VeryLow.String())
	assert.Equal(t, "High Risk", HighRisk.String())
	assert.Equal(t, "Unknown", RiskLevel(0).String())
	assert.Equal(t, 0, VeryLow.PredID())
	assert.Equal(t, 4, HighRisk.PredID())
	assert.Equal(t, Concerning, MaxLevelOf(Safe, Concerning))

	_, err := ParseRiskLevel(6)
	assert.Error(t, err)
	l, err := ParseRiskLevel(3)
	require.NoError(t, err)
	assert.Equal(t, Moderate, l)

	var decoded struct {
		Level RiskLevel `json:"risk_level"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"risk_level":4}`), &decoded))
	assert.Equal(t, Concerning, decoded.Level)
	assert.Error(t, json.Unmarshal([]byte(`{"risk_level":9}`), &decoded))

	out, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"risk_level":4}`, string(out))
}

func TestNewIngredient(t *testing.T) {
	ing, err := NewIngredient("  sugar ", false, true, NoAdditive)
	require.NoError(t, err)
	assert.Equal(t, "sugar", ing.Name)
	assert.False(t, ing.HasAdditive())

	_, err = NewIngredient("", false, false, NoAdditive)
	assert.Error(t, err)

	_, err = NewIngredient("dye", true, true, 12)
	assert.Error(t, err)

	ing, err = NewIngredient("dye", true, true, 133)
	require.NoError(t, err)
	assert.Equal(t, "INS 133", ing.AdditiveCode.String())
}

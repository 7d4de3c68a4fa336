// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assessor

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/ingredientrisk/services/catalog"
	"github.com/AleutianAI/ingredientrisk/services/label_parser"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCatalog struct{}

func (failingCatalog) GetIngredient(context.Context, string) (risk_labeler.Ingredient, error) {
	return risk_labeler.Ingredient{}, errors.New("storage offline")
}

func newTestAssessor(t *testing.T) *Assessor {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	labeler, err := risk_labeler.NewDefaultRiskLabeler()
	require.NoError(t, err)
	a, err := New(cat, labeler, nil)
	require.NoError(t, err)
	return a
}

func TestAssess_LabelText(t *testing.T) {
	a := newTestAssessor(t)

	report, err := a.Assess(context.Background(),
		"Refined wheat flour, sugar, edible vegetable oil (palmolein), emulsifier (322), synthetic food colour (INS 133)")
	require.NoError(t, err)

	assert.Equal(t, risk_labeler.HighRisk, report.Level)
	assert.Equal(t, "High Risk", report.Category)
	assert.Equal(t, 4, report.PredID)
	assert.Equal(t, 1.0, report.Probabilities["4"])
	assert.Equal(t, 0.0, report.Probabilities["0"])
	assert.Len(t, report.Probabilities, 5)

	require.Len(t, report.Items, 6)
	levels := make([]risk_labeler.RiskLevel, len(report.Items))
	for i, it := range report.Items {
		levels[i] = it.Level
	}
	assert.Equal(t, []risk_labeler.RiskLevel{3, 2, 2, 3, 3, 5}, levels)

	assert.Equal(t, SourceQualifier, report.Items[3].Source)
	assert.Equal(t, "palmolein", report.Items[3].Ingredient.Name)

	lecithin := report.Items[4]
	assert.Equal(t, SourceAdditive, lecithin.Source)
	assert.False(t, lecithin.Ingredient.IsArtificial)
	require.NotNil(t, lecithin.Additive)
	assert.Equal(t, "lecithin", lecithin.Additive.Name)

	driver := report.DriverItem()
	assert.Equal(t, "synthetic food colour", driver.Ingredient.Name)
	assert.Equal(t, risk_labeler.RuleHarmfulAdditive, driver.Rule)
}

func TestAssess_WholeFoods(t *testing.T) {
	a := newTestAssessor(t)

	report, err := a.Assess(context.Background(), "Spinach, tomatoes, garlic")
	require.NoError(t, err)
	assert.Equal(t, risk_labeler.VeryLow, report.Level)
	assert.Equal(t, "Very Safe", report.Category)
	assert.Equal(t, 0, report.PredID)
}

func TestAssess_CatalogCodeNotDuplicated(t *testing.T) {
	a := newTestAssessor(t)

	report, err := a.Assess(context.Background(), "citric acid (330)")
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, SourceCatalog, report.Items[0].Source)
	assert.Equal(t, risk_labeler.Moderate, report.Level)
}

func TestAssess_CodeOnlyEntries(t *testing.T) {
	a := newTestAssessor(t)

	report, err := a.Assess(context.Background(), "(INS 471)")
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, "mono- and diglycerides of fatty acids", report.Items[0].Ingredient.Name)
	assert.Equal(t, risk_labeler.Concerning, report.Level)

	report, err = a.Assess(context.Background(), "thickener (1999)")
	require.NoError(t, err)
	assert.True(t, report.Items[0].Ingredient.IsArtificial, "unregistered codes are treated as synthetic")
	assert.Nil(t, report.Items[0].Additive)
	assert.Equal(t, risk_labeler.Concerning, report.Level)
}

func TestAssess_Unresolved(t *testing.T) {
	a := newTestAssessor(t)

	_, err := a.Assess(context.Background(), "unobtainium, sugar, mystery dust (glitter)")
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrNotFound))

	var ue *UnresolvedError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, []string{"unobtainium", "mystery dust", "glitter"}, ue.Names)
	assert.Contains(t, err.Error(), "unobtainium, mystery dust, glitter")
}

func TestAssess_PartlyResolvedEntries(t *testing.T) {
	a := newTestAssessor(t)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"Unknown qualifier under a known name", "sugar (tartrazin)", []string{"tartrazin"}},
		{"Unknown name over a known qualifier", "mystery dye (sugar)", []string{"mystery dye"}},
		{"Qualifier repeated across codes reported once", "emulsifiers (322, 471, glitter)", []string{"glitter"}},
		{"Generic name alone", "antioxidant", []string{"antioxidant"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Assess(context.Background(), tc.text)
			var ue *UnresolvedError
			require.True(t, errors.As(err, &ue), "got %v", err)
			assert.Equal(t, tc.want, ue.Names)
		})
	}
}

func TestAssess_GenericNames(t *testing.T) {
	a := newTestAssessor(t)

	report, err := a.Assess(context.Background(), "antioxidant (mixed tocopherols), sugar (colour, salt)")
	require.NoError(t, err)
	require.Len(t, report.Items, 3, "class words are not labeled")
	assert.Equal(t, "mixed tocopherols", report.Items[0].Ingredient.Name)
	assert.Equal(t, risk_labeler.Moderate, report.Level)
}

func TestAssess_NestedCodes(t *testing.T) {
	a := newTestAssessor(t)

	tests := []struct {
		name       string
		text       string
		wantLevel  risk_labeler.RiskLevel
		wantDriver string
	}{
		{"Bare code two levels down", "cocoa powder (sugar, colour (102))", risk_labeler.HighRisk, "colour"},
		{"Bare code beside a qualifier", "edible vegetable oil (palmolein, antioxidant (319))", risk_labeler.Concerning, "antioxidant"},
		{"Class word and code three levels down", "edible vegetable oil (palmolein (antioxidant 319))", risk_labeler.Concerning, "antioxidant"},
		{"Prefixed code nested", "cocoa powder (sugar, colour (INS 102))", risk_labeler.HighRisk, "colour"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			report, err := a.Assess(context.Background(), tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.wantLevel, report.Level)
			assert.Equal(t, tc.wantDriver, report.DriverItem().Ingredient.Name)
			assert.Equal(t, SourceAdditive, report.DriverItem().Source)
		})
	}
}

func TestAssess_EmptyText(t *testing.T) {
	a := newTestAssessor(t)

	_, err := a.Assess(context.Background(), "   ")
	assert.ErrorIs(t, err, label_parser.ErrEmptyText)
}

func TestAssess_CatalogFailure(t *testing.T) {
	labeler, err := risk_labeler.NewDefaultRiskLabeler()
	require.NoError(t, err)
	a, err := New(failingCatalog{}, labeler, nil)
	require.NoError(t, err)

	_, err = a.Assess(context.Background(), "sugar")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage offline")
	assert.False(t, errors.Is(err, catalog.ErrNotFound))
}

func TestAssessIngredients(t *testing.T) {
	a := newTestAssessor(t)
	ctx := context.Background()

	report, err := a.AssessIngredients(ctx, []risk_labeler.Ingredient{
		{Name: "fresh spinach"},
		{Name: "emulsifier", IsArtificial: true, IsProcessed: true, AdditiveCode: 471},
	})
	require.NoError(t, err)
	assert.Equal(t, risk_labeler.Concerning, report.Level)
	assert.Equal(t, 1, report.Driver)
	assert.Equal(t, SourceInput, report.Items[0].Source)

	_, err = a.AssessIngredients(ctx, nil)
	assert.ErrorIs(t, err, risk_labeler.ErrEmptyList)

	_, err = a.AssessIngredients(ctx, []risk_labeler.Ingredient{{Name: "artificial flavour", IsArtificial: true}})
	assert.ErrorIs(t, err, risk_labeler.ErrClassification)
}

func TestNew_RequiresDependencies(t *testing.T) {
	labeler, err := risk_labeler.NewDefaultRiskLabeler()
	require.NoError(t, err)

	_, err = New(nil, labeler, nil)
	assert.Error(t, err)
	_, err = New(failingCatalog{}, nil, nil)
	assert.Error(t, err)
}

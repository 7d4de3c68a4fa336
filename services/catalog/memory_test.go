// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_SeedCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Greater(t, c.Len(), 50)

	ctx := context.Background()
	ing, err := c.GetIngredient(ctx, "  Maida ")
	require.NoError(t, err)
	assert.Equal(t, "refined wheat flour", ing.Name)
	assert.True(t, ing.IsProcessed)

	ing, err = c.GetIngredient(ctx, "Brilliant Blue")
	require.NoError(t, err)
	assert.Equal(t, risk_labeler.AdditiveCode(133), ing.AdditiveCode)
}

func TestDefault_EverySeedEntryIsLabelable(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	labeler, err := risk_labeler.NewDefaultRiskLabeler()
	require.NoError(t, err)

	entries, err := c.List(context.Background())
	require.NoError(t, err)
	for _, e := range entries {
		_, err := labeler.ClassifyIngredient(e.Ingredient)
		assert.NoError(t, err, e.Name)
	}
}

func TestMemoryCatalog_NotFound(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	_, err = c.GetIngredient(context.Background(), "unobtainium")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "unobtainium")
}

func TestMemoryCatalog_CanceledContext(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.GetIngredient(ctx, "sugar")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewMemoryCatalog_Validation(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantErr string
	}{
		{
			name:    "Empty name",
			entries: []Entry{{Ingredient: risk_labeler.Ingredient{Name: " "}}},
			wantErr: "entry 1",
		},
		{
			name:    "Bad additive code",
			entries: []Entry{{Ingredient: risk_labeler.Ingredient{Name: "x", AdditiveCode: 7}}},
			wantErr: "entry 1",
		},
		{
			name: "Alias collides with a name",
			entries: []Entry{
				{Ingredient: risk_labeler.Ingredient{Name: "sugar"}},
				{Ingredient: risk_labeler.Ingredient{Name: "cane sugar"}, Aliases: []string{"Sugar"}},
			},
			wantErr: "used by both",
		},
		{
			name:    "Empty alias",
			entries: []Entry{{Ingredient: risk_labeler.Ingredient{Name: "salt"}, Aliases: []string{""}}},
			wantErr: "empty alias",
		},
		{
			name:    "Name with control characters",
			entries: []Entry{{Ingredient: risk_labeler.Ingredient{Name: "salt\x00"}}},
			wantErr: "invalid ingredient name",
		},
		{
			name:    "Alias with key separator",
			entries: []Entry{{Ingredient: risk_labeler.Ingredient{Name: "salt"}, Aliases: []string{"alias:salt"}}},
			wantErr: "invalid ingredient name",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewMemoryCatalog(tc.entries)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewMemoryCatalog_DoesNotMutateInput(t *testing.T) {
	in := []Entry{{Ingredient: risk_labeler.Ingredient{Name: "Sea Salt"}, Aliases: []string{"SALT"}}}
	c, err := NewMemoryCatalog(in)
	require.NoError(t, err)

	assert.Equal(t, "Sea Salt", in[0].Name)
	assert.Equal(t, []string{"SALT"}, in[0].Aliases)

	list, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "sea salt", list[0].Name)
	assert.Equal(t, []string{"salt"}, list[0].Aliases)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	doc := "ingredients:\n  - {name: Kale}\n  - {name: sodium benzoate, is_artificial: true, is_processed: true, additive_code: 211}\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	ing, err := c.GetIngredient(context.Background(), "kale")
	require.NoError(t, err)
	assert.False(t, ing.IsProcessed)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("ingredients: ["), 0600))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

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
	"testing"

	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestBadger(t *testing.T) *BadgerCatalog {
	t.Helper()
	c, err := OpenBadger(InMemoryBadgerConfig())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestBadgerCatalog_PutAndGet(t *testing.T) {
	c := openTestBadger(t)
	ctx := context.Background()

	err := c.Put(ctx, Entry{
		Ingredient: risk_labeler.Ingredient{Name: "Potassium Sorbate", IsArtificial: true, IsProcessed: true, AdditiveCode: 202},
		Aliases:    []string{"E202"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	ing, err := c.GetIngredient(ctx, "potassium sorbate")
	require.NoError(t, err)
	assert.Equal(t, risk_labeler.AdditiveCode(202), ing.AdditiveCode)

	ing, err = c.GetIngredient(ctx, "e202")
	require.NoError(t, err)
	assert.Equal(t, "potassium sorbate", ing.Name)

	_, err = c.GetIngredient(ctx, "sorbic acid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerCatalog_ReplaceDropsOldAliases(t *testing.T) {
	c := openTestBadger(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, Entry{Ingredient: risk_labeler.Ingredient{Name: "maida", IsProcessed: true}, Aliases: []string{"white flour"}}))
	require.NoError(t, c.Put(ctx, Entry{Ingredient: risk_labeler.Ingredient{Name: "maida", IsProcessed: true}, Aliases: []string{"all purpose flour"}}))
	assert.Equal(t, 1, c.Len())

	_, err := c.GetIngredient(ctx, "white flour")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.GetIngredient(ctx, "all purpose flour")
	assert.NoError(t, err)
}

func TestBadgerCatalog_AliasConflicts(t *testing.T) {
	c := openTestBadger(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, Entry{Ingredient: risk_labeler.Ingredient{Name: "sugar", IsProcessed: true}, Aliases: []string{"cane sugar"}}))

	err := c.Put(ctx, Entry{Ingredient: risk_labeler.Ingredient{Name: "jaggery", IsProcessed: true}, Aliases: []string{"cane sugar"}})
	assert.ErrorContains(t, err, "already belongs")

	err = c.Put(ctx, Entry{Ingredient: risk_labeler.Ingredient{Name: "cane sugar", IsProcessed: true}})
	assert.ErrorContains(t, err, "already an alias")

	err = c.Put(ctx, Entry{Ingredient: risk_labeler.Ingredient{Name: "honey"}, Aliases: []string{"sugar"}})
	assert.ErrorContains(t, err, "already an ingredient name")
}

func TestBadgerCatalog_Delete(t *testing.T) {
	c := openTestBadger(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, Entry{Ingredient: risk_labeler.Ingredient{Name: "ghee", IsProcessed: true}, Aliases: []string{"clarified butter"}}))
	require.NoError(t, c.Delete(ctx, "GHEE"))
	assert.Equal(t, 0, c.Len())

	_, err := c.GetIngredient(ctx, "clarified butter")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.Delete(ctx, "ghee"), ErrNotFound)
}

func TestBadgerCatalog_ImportSeed(t *testing.T) {
	c := openTestBadger(t)
	ctx := context.Background()

	seed, err := Default()
	require.NoError(t, err)

	n, err := c.Import(ctx, seed)
	require.NoError(t, err)
	assert.Equal(t, seed.Len(), n)
	assert.Equal(t, seed.Len(), c.Len())

	want, err := seed.List(ctx)
	require.NoError(t, err)
	got, err := c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ing, err := c.GetIngredient(ctx, "msg")
	require.NoError(t, err)
	assert.Equal(t, "monosodium glutamate", ing.Name)
}

func TestBadgerCatalog_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultBadgerConfig(dir)
	cfg.GCInterval = 0
	c, err := OpenBadger(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, Entry{Ingredient: risk_labeler.Ingredient{Name: "turmeric powder", IsProcessed: true}}))
	require.NoError(t, c.Close())

	c2, err := OpenBadger(cfg)
	require.NoError(t, err)
	defer c2.Close()

	assert.Equal(t, 1, c2.Len())
	ing, err := c2.GetIngredient(ctx, "turmeric powder")
	require.NoError(t, err)
	assert.True(t, ing.IsProcessed)
}

func TestOpenBadger_RequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)
}

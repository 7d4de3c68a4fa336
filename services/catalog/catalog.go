// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog provides the ingredient lookup collaborator: given a label
// name it returns the ingredient's attributes, or ErrNotFound.
//
// Three implementations are provided:
//
//	MemoryCatalog  - read-only, built from YAML (embedded seed or a file)
//	BadgerCatalog  - persistent, editable, backed by BadgerDB
//	WatchedCatalog - a YAML file reloaded whenever it changes on disk
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/ingredientrisk/pkg/validation"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
)

// ErrNotFound is returned when a name matches no catalog entry.
var ErrNotFound = errors.New("ingredient not found")

// Catalog resolves ingredient names to ingredient attributes.
//
// Implementations must be safe for concurrent use.
type Catalog interface {
	// GetIngredient returns the ingredient registered under name or one of
	// its aliases. Unknown names return an error wrapping ErrNotFound.
	GetIngredient(ctx context.Context, name string) (risk_labeler.Ingredient, error)
}

// Lister is implemented by catalogs that can enumerate their entries.
type Lister interface {
	// List returns every entry ordered by canonical name.
	List(ctx context.Context) ([]Entry, error)

	// Len returns the number of canonical entries.
	Len() int
}

// Entry is one catalog record: an ingredient plus alternative spellings.
type Entry struct {
	risk_labeler.Ingredient `yaml:",inline"`
	Aliases                 []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// Validate checks the entry's name and additive code, and normalizes the
// canonical name and aliases in place.
func (e *Entry) Validate() error {
	ing, err := risk_labeler.NewIngredient(e.Name, e.IsArtificial, e.IsProcessed, e.AdditiveCode)
	if err != nil {
		return err
	}
	e.Ingredient = ing
	e.Ingredient.Name = Key(ing.Name)
	if err := validation.ValidateIngredientName(e.Name); err != nil {
		return err
	}

	aliases := e.Aliases[:0]
	for _, a := range e.Aliases {
		k := Key(a)
		if k == "" {
			return fmt.Errorf("ingredient %q has an empty alias", e.Name)
		}
		if err := validation.ValidateIngredientName(k); err != nil {
			return fmt.Errorf("ingredient %q alias: %w", e.Name, err)
		}
		if k != e.Name {
			aliases = append(aliases, k)
		}
	}
	e.Aliases = aliases
	return nil
}

// Key returns the lookup form of a name.
func Key(name string) string {
	return risk_labeler.NormalizeName(name)
}

func notFound(name string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, name)
}

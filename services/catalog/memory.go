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
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"gopkg.in/yaml.v3"
)

//go:embed seed/ingredients.yaml
var seedCatalog []byte

// File is the YAML layout of a catalog document.
type File struct {
	Ingredients []Entry `yaml:"ingredients"`
}

// MemoryCatalog is an immutable in-memory catalog.
type MemoryCatalog struct {
	entries map[string]Entry
	index   map[string]string // name or alias -> canonical name
}

// NewMemoryCatalog builds a catalog from entries.
//
// Names and aliases are normalized; a name or alias claimed by two entries
// is rejected.
func NewMemoryCatalog(entries []Entry) (*MemoryCatalog, error) {
	c := &MemoryCatalog{
		entries: make(map[string]Entry, len(entries)),
		index:   make(map[string]string, len(entries)),
	}
	for i := range entries {
		e := entries[i]
		e.Aliases = append([]string(nil), e.Aliases...)
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i+1, err)
		}
		for _, k := range append([]string{e.Name}, e.Aliases...) {
			if owner, dup := c.index[k]; dup {
				return nil, fmt.Errorf("catalog name %q is used by both %q and %q", k, owner, e.Name)
			}
			c.index[k] = e.Name
		}
		c.entries[e.Name] = e
	}
	return c, nil
}

// Parse builds a catalog from a YAML document.
func Parse(data []byte) (*MemoryCatalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}
	return NewMemoryCatalog(f.Ingredients)
}

// LoadFile reads and parses a YAML catalog file.
func LoadFile(path string) (*MemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Default returns the catalog embedded in the binary.
func Default() (*MemoryCatalog, error) {
	return Parse(seedCatalog)
}

// SeedYAML returns a copy of the embedded seed catalog document.
func SeedYAML() []byte {
	return append([]byte(nil), seedCatalog...)
}

// GetIngredient implements Catalog.
func (c *MemoryCatalog) GetIngredient(ctx context.Context, name string) (risk_labeler.Ingredient, error) {
	if err := ctx.Err(); err != nil {
		return risk_labeler.Ingredient{}, err
	}
	canonical, ok := c.index[Key(name)]
	if !ok {
		return risk_labeler.Ingredient{}, notFound(name)
	}
	return c.entries[canonical].Ingredient, nil
}

// List implements Lister.
func (c *MemoryCatalog) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		e.Aliases = append([]string(nil), e.Aliases...)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Len implements Lister.
func (c *MemoryCatalog) Len() int {
	return len(c.entries)
}

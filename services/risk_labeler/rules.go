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
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/ingredientrisk/services/risk_labeler/enforcement"
	"gopkg.in/yaml.v3"
)

// RulesFile mirrors the on-disk layout of labeling_rules.yaml.
type RulesFile struct {
	Version            string         `yaml:"version"`
	HarmfulAdditives   []HarmfulGroup `yaml:"harmful_additives"`
	Additives          []Additive     `yaml:"additives"`
	RefinedIngredients []string       `yaml:"refined_ingredients"`
	GenericNames       []string       `yaml:"generic_names"`
}

// HarmfulGroup is a named set of harmful additive codes.
type HarmfulGroup struct {
	Group string         `yaml:"group"`
	Codes []AdditiveCode `yaml:"codes"`
}

// Rules is the read-only configuration the labeler consults.
//
// A Rules value is built once by LoadRules and never mutated afterwards, so a
// single pointer can be shared by every labeler and request goroutine.
type Rules struct {
	version   string
	hash      string
	raw       []byte
	harmful   map[AdditiveCode]string
	additives map[AdditiveCode]Additive
	refined   map[string]struct{}
	generic   map[string]struct{}
}

// LoadRules parses and validates a rules document.
func LoadRules(data []byte) (*Rules, error) {
	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the labeling rules: %w", err)
	}
	if len(file.HarmfulAdditives) == 0 {
		return nil, fmt.Errorf("labeling rules define no harmful additives")
	}

	sum := sha256.Sum256(data)
	r := &Rules{
		version:   file.Version,
		hash:      fmt.Sprintf("sha256:%x", sum),
		raw:       append([]byte(nil), data...),
		harmful:   make(map[AdditiveCode]string),
		additives: make(map[AdditiveCode]Additive, len(file.Additives)),
		refined:   make(map[string]struct{}, len(file.RefinedIngredients)),
		generic:   make(map[string]struct{}, len(file.GenericNames)),
	}

	for _, group := range file.HarmfulAdditives {
		for _, code := range group.Codes {
			if !code.Present() || !code.Valid() {
				return nil, fmt.Errorf("harmful group %q: invalid additive code %d", group.Group, int(code))
			}
			r.harmful[code] = group.Group
		}
	}

	for _, a := range file.Additives {
		if !a.Code.Present() || !a.Code.Valid() {
			return nil, fmt.Errorf("additive %q: invalid code %d", a.Name, int(a.Code))
		}
		if _, dup := r.additives[a.Code]; dup {
			return nil, fmt.Errorf("additive code %d is defined twice", int(a.Code))
		}
		_, a.Harmful = r.harmful[a.Code]
		r.additives[a.Code] = a
	}

	for _, name := range file.RefinedIngredients {
		key := NormalizeName(name)
		if key == "" {
			return nil, fmt.Errorf("refined ingredient list contains an empty name")
		}
		r.refined[key] = struct{}{}
	}

	for _, name := range file.GenericNames {
		key := NormalizeName(name)
		if key == "" {
			return nil, fmt.Errorf("generic name list contains an empty name")
		}
		r.generic[key] = struct{}{}
	}

	return r, nil
}

// DefaultRules loads the rules embedded in the binary.
func DefaultRules() (*Rules, error) {
	return LoadRules(enforcement.LabelingRules)
}

// Version returns the rules file version string.
func (r *Rules) Version() string { return r.version }

// Hash returns the sha256 fingerprint of the rules document.
func (r *Rules) Hash() string { return r.hash }

// Raw returns a copy of the source document.
func (r *Rules) Raw() []byte { return append([]byte(nil), r.raw...) }

// IsHarmful reports whether code belongs to the harmful set.
func (r *Rules) IsHarmful(code AdditiveCode) bool {
	_, ok := r.harmful[code]
	return ok
}

// HarmfulGroup returns the group name of a harmful code.
func (r *Rules) HarmfulGroup(code AdditiveCode) (string, bool) {
	g, ok := r.harmful[code]
	return g, ok
}

// Additive looks up a registry entry.
func (r *Rules) Additive(code AdditiveCode) (Additive, bool) {
	a, ok := r.additives[code]
	return a, ok
}

// IsRefined reports whether name is on the refined-ingredient list.
func (r *Rules) IsRefined(name string) bool {
	_, ok := r.refined[NormalizeName(name)]
	return ok
}

// IsGenericName reports whether name is a functional class word such as
// "emulsifier" that describes other label items rather than naming an
// ingredient.
func (r *Rules) IsGenericName(name string) bool {
	_, ok := r.generic[NormalizeName(name)]
	return ok
}

// HarmfulCodes returns the harmful set in ascending order.
func (r *Rules) HarmfulCodes() []AdditiveCode {
	codes := make([]AdditiveCode, 0, len(r.harmful))
	for c := range r.harmful {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Additives returns the registry ordered by code.
func (r *Rules) Additives() []Additive {
	out := make([]Additive, 0, len(r.additives))
	for _, a := range r.additives {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// RefinedNames returns the normalized refined-ingredient names, sorted.
func (r *Rules) RefinedNames() []string {
	out := make([]string, 0, len(r.refined))
	for n := range r.refined {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NormalizeName lower-cases a name, trims it and collapses inner whitespace.
// Catalog keys and refined-list entries are compared in this form.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

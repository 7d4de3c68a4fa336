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
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// RiskLevel is the 1-5 risk score assigned to an ingredient or ingredient list.
// Higher values are riskier; the zero value is not a valid level.
type RiskLevel int

const (
	VeryLow    RiskLevel = 1
	Safe       RiskLevel = 2
	Moderate   RiskLevel = 3
	Concerning RiskLevel = 4
	HighRisk   RiskLevel = 5
)

// MinLevel and MaxLevel bound the valid range.
const (
	MinLevel = VeryLow
	MaxLevel = HighRisk
)

// AllLevels lists every level in ascending order.
var AllLevels = []RiskLevel{VeryLow, Safe, Moderate, Concerning, HighRisk}

// String returns the display category for the level.
func (l RiskLevel) String() string {
	switch l {
	case VeryLow:
		return "Very Safe"
	case Safe:
		return "Safe"
	case Moderate:
		return "Moderate"
	case Concerning:
		return "Concerning"
	case HighRisk:
		return "High Risk"
	default:
		return "Unknown"
	}
}

// Valid reports whether l is within 1..5.
func (l RiskLevel) Valid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// PredID is the zero-based class index used by the prediction API (level-1).
func (l RiskLevel) PredID() int {
	return int(l) - 1
}

// ParseRiskLevel converts an integer score into a RiskLevel.
func ParseRiskLevel(n int) (RiskLevel, error) {
	l := RiskLevel(n)
	if !l.Valid() {
		return 0, fmt.Errorf("invalid risk level %d: must be between %d and %d", n, MinLevel, MaxLevel)
	}
	return l, nil
}

// MaxLevelOf returns the higher of two levels.
func MaxLevelOf(a, b RiskLevel) RiskLevel {
	if a > b {
		return a
	}
	return b
}

// AdditiveCode is an INS/E-number. Zero means the ingredient carries no additive code.
type AdditiveCode int

// NoAdditive marks an ingredient without an additive code.
const NoAdditive AdditiveCode = 0

// INS numbers in use start at 100 (curcumin) and stay below 2000.
const (
	minAdditiveCode AdditiveCode = 100
	maxAdditiveCode AdditiveCode = 1999
)

// Present reports whether a code is set.
func (c AdditiveCode) Present() bool {
	return c != NoAdditive
}

// Valid reports whether the code is absent or within the INS range.
func (c AdditiveCode) Valid() bool {
	return c == NoAdditive || (c >= minAdditiveCode && c <= maxAdditiveCode)
}

func (c AdditiveCode) String() string {
	if !c.Present() {
		return "none"
	}
	return fmt.Sprintf("INS %d", int(c))
}

// Ingredient holds the attributes the labeling rules look at.
//
// Ingredients are plain values: copying one never aliases state, so a value
// handed to the labeler cannot change underneath it.
type Ingredient struct {
	Name         string       `json:"name" yaml:"name"`
	IsArtificial bool         `json:"is_artificial" yaml:"is_artificial"`
	IsProcessed  bool         `json:"is_processed" yaml:"is_processed"`
	AdditiveCode AdditiveCode `json:"additive_code,omitempty" yaml:"additive_code,omitempty"`
}

// NewIngredient validates the additive code and returns an Ingredient.
func NewIngredient(name string, artificial, processed bool, code AdditiveCode) (Ingredient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Ingredient{}, fmt.Errorf("ingredient name is required")
	}
	if !code.Valid() {
		return Ingredient{}, fmt.Errorf("ingredient %q: invalid additive code %d", name, int(code))
	}
	return Ingredient{
		Name:         name,
		IsArtificial: artificial,
		IsProcessed:  processed,
		AdditiveCode: code,
	}, nil
}

// HasAdditive reports whether the ingredient carries an additive code.
func (i Ingredient) HasAdditive() bool {
	return i.AdditiveCode.Present()
}

// Rule identifies the decision step that assigned a level.
type Rule string

const (
	RuleHarmfulAdditive             Rule = "harmful_additive"
	RuleArtificialProcessedAdditive Rule = "artificial_processed_additive"
	RuleRefinedOrMildAdditive       Rule = "refined_or_mild_additive"
	RuleNaturalProcessed            Rule = "natural_processed"
	RuleWholeFood                   Rule = "whole_food"
)

// Assessment is the labeling outcome for a single ingredient.
type Assessment struct {
	Ingredient Ingredient `json:"ingredient"`
	Level      RiskLevel  `json:"risk_level"`
	Rule       Rule       `json:"rule"`
}

// ListAssessment is the outcome for an ingredient list.
//
// Level is the maximum over Items. Driver is the index of the first item
// that reached that maximum.
type ListAssessment struct {
	Items  []Assessment `json:"items"`
	Level  RiskLevel    `json:"risk_level"`
	Driver int          `json:"driver"`
}

// AdditiveClass groups additives by technological function.
type AdditiveClass string

const (
	ClassColour           AdditiveClass = "colour"
	ClassPreservative     AdditiveClass = "preservative"
	ClassAntioxidant      AdditiveClass = "antioxidant"
	ClassSweetener        AdditiveClass = "sweetener"
	ClassFlavourEnhancer  AdditiveClass = "flavour_enhancer"
	ClassEmulsifier       AdditiveClass = "emulsifier"
	ClassStabilizer       AdditiveClass = "stabilizer"
	ClassAcidityRegulator AdditiveClass = "acidity_regulator"
	ClassRaisingAgent     AdditiveClass = "raising_agent"
	ClassThickener        AdditiveClass = "thickener"
)

// UnmarshalYAML rejects unknown additive classes so typos in the rules file
// fail at load time.
func (c *AdditiveClass) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	incoming := AdditiveClass(s)
	switch incoming {
	case ClassColour, ClassPreservative, ClassAntioxidant, ClassSweetener, ClassFlavourEnhancer,
		ClassEmulsifier, ClassStabilizer, ClassAcidityRegulator, ClassRaisingAgent, ClassThickener:
		*c = incoming
		return nil
	default:
		return fmt.Errorf("invalid value for additive class: %q", incoming)
	}
}

// Additive describes one entry of the additive registry.
type Additive struct {
	Code      AdditiveCode  `yaml:"code" json:"code"`
	Name      string        `yaml:"name" json:"name"`
	Class     AdditiveClass `yaml:"class" json:"class"`
	Synthetic bool          `yaml:"synthetic" json:"synthetic"`
	Harmful   bool          `yaml:"harmful" json:"harmful"`
}

// UnmarshalJSON accepts integer scores 1..5.
func (l *RiskLevel) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("risk level must be an integer: %w", err)
	}
	parsed, err := ParseRiskLevel(n)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

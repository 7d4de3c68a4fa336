// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-supplied identifiers before they become
// database keys or rule lookups.
//
// Catalog names are stored as BadgerDB keys and echoed in API responses,
// so they are restricted to printable label text.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxNameLength bounds ingredient names and aliases, in bytes.
const MaxNameLength = 128

// namePattern matches label text: letters or digits first, then letters,
// digits, spaces and common label punctuation. Commas, semicolons,
// brackets and percent signs are excluded because the label parser treats
// them as structure, so a name holding one could never be found from label
// text.
var namePattern = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N}\p{M} .'&/+\-]*$`)

// additivePattern matches "211", "E211", "INS 211" and suffixed forms
// like "E160a" or "INS 150d".
var additivePattern = regexp.MustCompile(`(?i)^(?:ins|e)?\s*(\d{3,4})[a-z]?$`)

// ValidateIngredientName rejects empty, oversized or non-printable names.
//
// Example:
//
//	if err := validation.ValidateIngredientName(name); err != nil {
//	    return fmt.Errorf("catalog put: %w", err)
//	}
func ValidateIngredientName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("ingredient name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("ingredient name is %d bytes long (max %d)", len(name), MaxNameLength)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid ingredient name %q (letters, digits, spaces and .'&/+- only)", name)
	}
	return nil
}

// ParseAdditiveCode extracts the INS number from user input. Range checks
// are left to the caller.
func ParseAdditiveCode(s string) (int, error) {
	m := additivePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid additive code %q (want e.g. 211, E211 or INS 211)", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("invalid additive code %q: %w", s, err)
	}
	return n, nil
}

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
	"errors"
	"fmt"
)

var (
	// ErrEmptyList is returned when a list classification receives no ingredients.
	ErrEmptyList = errors.New("ingredient list is empty")

	// ErrClassification is the sentinel wrapped by every ClassificationError.
	ErrClassification = errors.New("ingredient matches no labeling rule")

	// ErrInvalidIngredient is returned for ingredients that fail basic validation.
	ErrInvalidIngredient = errors.New("invalid ingredient")
)

// ClassificationError reports an attribute combination no rule covers.
type ClassificationError struct {
	Ingredient Ingredient
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %q: no labeling rule matches (artificial=%t processed=%t additive=%s)",
		e.Ingredient.Name, e.Ingredient.IsArtificial, e.Ingredient.IsProcessed, e.Ingredient.AdditiveCode)
}

func (e *ClassificationError) Unwrap() error {
	return ErrClassification
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/AleutianAI/ingredientrisk/services/catalog"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/datatypes"
	"github.com/gin-gonic/gin"
)

// HandleRoot describes the service.
func HandleRoot(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Ingredient Risk Classifier API",
			"version": version,
			"docs":    "/v1/rules",
			"health":  "/health",
		})
	}
}

// HandleHealth reports liveness along with the loaded rules and the
// catalog size. cat may be nil when the catalog cannot be counted.
func HandleHealth(rules *risk_labeler.Rules, cat catalog.Lister) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := datatypes.HealthResponse{
			Status:       "healthy",
			RulesVersion: rules.Version(),
			RulesHash:    rules.Hash(),
		}
		if cat != nil {
			resp.CatalogEntries = cat.Len()
		}
		c.JSON(http.StatusOK, resp)
	}
}

// HandleRules returns the active labeling rules.
func HandleRules(rules *risk_labeler.Rules) gin.HandlerFunc {
	resp := datatypes.RulesResponse{
		Version:            rules.Version(),
		Hash:               rules.Hash(),
		HarmfulAdditives:   rules.HarmfulCodes(),
		Additives:          rules.Additives(),
		RefinedIngredients: rules.RefinedNames(),
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, resp)
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the request and response bodies of the risk API.
package datatypes

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/ingredientrisk/services/assessor"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/go-playground/validator/v10"
)

const (
	// MaxTextBytes bounds the label text accepted per request.
	MaxTextBytes = 8 * 1024

	// MaxBatchSize bounds the texts accepted by the batch endpoint.
	MaxBatchSize = 100

	// MaxIngredients bounds the structured ingredients per classify request.
	MaxIngredients = 200
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("notblank", notBlank)
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Validate checks a request body against its validate tags.
func Validate(req any) error {
	if err := validate.Struct(req); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed %q validation", fe.Namespace(), fe.Tag())
		}
		return err
	}
	return nil
}

// PredictRequest is the body of POST /v1/predict and POST /v1/explain.
type PredictRequest struct {
	Text string `json:"text" validate:"max=8192"`
}

// BatchPredictRequest is the body of POST /v1/predict/batch.
type BatchPredictRequest struct {
	Texts []string `json:"texts" validate:"required,min=1,max=100,dive,max=8192"`
}

// IngredientInput is one structured ingredient of a classify request.
type IngredientInput struct {
	Name         string `json:"name" validate:"required,notblank,max=200"`
	IsArtificial bool   `json:"is_artificial"`
	IsProcessed  bool   `json:"is_processed"`
	AdditiveCode int    `json:"additive_code" validate:"omitempty,min=100,max=1999"`
}

// Ingredient converts the input into a labeler ingredient.
func (in IngredientInput) Ingredient() (risk_labeler.Ingredient, error) {
	return risk_labeler.NewIngredient(in.Name, in.IsArtificial, in.IsProcessed, risk_labeler.AdditiveCode(in.AdditiveCode))
}

// ClassifyRequest is the body of POST /v1/classify.
type ClassifyRequest struct {
	Ingredients []IngredientInput `json:"ingredients" validate:"required,min=1,max=200,dive"`
}

// PredictResponse is returned by the predict and classify endpoints.
//
// The embedded report supplies text, pred_id, risk_level, risk_category,
// probabilities and ingredients. Error is always null on success.
type PredictResponse struct {
	RequestID string `json:"request_id"`
	*assessor.Report
	Error *string `json:"error"`
}

// BatchResult is the outcome for one text of a batch.
type BatchResult struct {
	Index  int              `json:"index"`
	Status int              `json:"status"`
	Report *assessor.Report `json:"report,omitempty"`
	Error  *ErrorResponse   `json:"error,omitempty"`
}

// BatchPredictResponse is returned by POST /v1/predict/batch.
type BatchPredictResponse struct {
	RequestID string        `json:"request_id"`
	Results   []BatchResult `json:"results"`
	Failed    int           `json:"failed"`
}

// ExplainResponse is returned by POST /v1/explain.
type ExplainResponse struct {
	PredictResponse
	Explanation string `json:"explanation"`
	Explainer   string `json:"explainer"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error              string   `json:"error"`
	Code               string   `json:"code"`
	RequestID          string   `json:"request_id,omitempty"`
	UnknownIngredients []string `json:"unknown_ingredients,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	RulesVersion   string `json:"rules_version"`
	RulesHash      string `json:"rules_hash"`
	CatalogEntries int    `json:"catalog_entries"`
}

// RulesResponse is returned by GET /v1/rules.
type RulesResponse struct {
	Version            string                      `json:"version"`
	Hash               string                      `json:"hash"`
	HarmfulAdditives   []risk_labeler.AdditiveCode `json:"harmful_additives"`
	Additives          []risk_labeler.Additive     `json:"additives"`
	RefinedIngredients []string                    `json:"refined_ingredients"`
}

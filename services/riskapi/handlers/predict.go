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
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/ingredientrisk/services/assessor"
	"github.com/AleutianAI/ingredientrisk/services/label_parser"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/datatypes"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/middleware"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/observability"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// Assessor is the labeling backend the handlers call.
type Assessor interface {
	Assess(ctx context.Context, text string) (*assessor.Report, error)
	AssessIngredients(ctx context.Context, ings []risk_labeler.Ingredient) (*assessor.Report, error)
}

// HandlePredict labels free label text.
//
// POST /v1/predict {"text": "..."}
//
// Responses: 200 with a PredictResponse; 400 for empty or oversized text;
// 422 when an ingredient is unknown or unclassifiable.
func HandlePredict(a Assessor, m *observability.Metrics) gin.HandlerFunc {
	const endpoint = "predict"
	return func(c *gin.Context) {
		start := time.Now()
		var err error
		defer func() { m.ObserveRequest(endpoint, start, err) }()

		var req datatypes.PredictRequest
		if err = c.ShouldBindJSON(&req); err != nil {
			abortBadRequest(c, endpoint, m, "invalid request body: "+err.Error())
			return
		}
		if err = datatypes.Validate(req); err != nil {
			abortBadRequest(c, endpoint, m, err.Error())
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			err = label_parser.ErrEmptyText
			abortWithError(c, endpoint, m, err)
			return
		}

		report, err := a.Assess(c.Request.Context(), req.Text)
		if err != nil {
			abortWithError(c, endpoint, m, err)
			return
		}
		m.RecordPrediction(report.Category)
		c.JSON(http.StatusOK, datatypes.PredictResponse{
			RequestID: middleware.GetRequestID(c),
			Report:    report,
		})
	}
}

// HandlePredictBatch labels several texts concurrently, at most
// concurrency at a time. A failing text does not fail the batch; its
// result carries the error instead.
//
// POST /v1/predict/batch {"texts": ["...", "..."]}
func HandlePredictBatch(a Assessor, m *observability.Metrics, concurrency int) gin.HandlerFunc {
	const endpoint = "predict_batch"
	if concurrency <= 0 {
		concurrency = 4
	}
	return func(c *gin.Context) {
		start := time.Now()
		var err error
		defer func() { m.ObserveRequest(endpoint, start, err) }()

		var req datatypes.BatchPredictRequest
		if err = c.ShouldBindJSON(&req); err != nil {
			abortBadRequest(c, endpoint, m, "invalid request body: "+err.Error())
			return
		}
		if err = datatypes.Validate(req); err != nil {
			abortBadRequest(c, endpoint, m, err.Error())
			return
		}

		results := make([]datatypes.BatchResult, len(req.Texts))
		g, ctx := errgroup.WithContext(c.Request.Context())
		g.SetLimit(concurrency)
		for i, text := range req.Texts {
			g.Go(func() error {
				results[i] = assessOne(ctx, a, i, text)
				return nil
			})
		}
		_ = g.Wait()

		resp := datatypes.BatchPredictResponse{
			RequestID: middleware.GetRequestID(c),
			Results:   results,
		}
		for _, r := range results {
			if r.Error != nil {
				resp.Failed++
				m.RecordError(endpoint, r.Error.Code)
				continue
			}
			m.RecordPrediction(r.Report.Category)
		}
		c.JSON(http.StatusOK, resp)
	}
}

func assessOne(ctx context.Context, a Assessor, i int, text string) datatypes.BatchResult {
	var (
		report *assessor.Report
		err    error
	)
	if strings.TrimSpace(text) == "" {
		err = label_parser.ErrEmptyText
	} else {
		report, err = a.Assess(ctx, text)
	}
	if err != nil {
		status, resp := toErrorResponse(err)
		return datatypes.BatchResult{Index: i, Status: status, Error: &resp}
	}
	return datatypes.BatchResult{Index: i, Status: http.StatusOK, Report: report}
}

// HandleClassify labels structured ingredients.
//
// POST /v1/classify {"ingredients": [{"name": ..., "is_artificial": ...,
// "is_processed": ..., "additive_code": ...}]}
func HandleClassify(a Assessor, m *observability.Metrics) gin.HandlerFunc {
	const endpoint = "classify"
	return func(c *gin.Context) {
		start := time.Now()
		var err error
		defer func() { m.ObserveRequest(endpoint, start, err) }()

		var req datatypes.ClassifyRequest
		if err = c.ShouldBindJSON(&req); err != nil {
			abortBadRequest(c, endpoint, m, "invalid request body: "+err.Error())
			return
		}
		if err = datatypes.Validate(req); err != nil {
			abortBadRequest(c, endpoint, m, err.Error())
			return
		}

		ings := make([]risk_labeler.Ingredient, len(req.Ingredients))
		for i, in := range req.Ingredients {
			if ings[i], err = in.Ingredient(); err != nil {
				abortBadRequest(c, endpoint, m, err.Error())
				return
			}
		}

		report, err := a.AssessIngredients(c.Request.Context(), ings)
		if err != nil {
			abortWithError(c, endpoint, m, err)
			return
		}
		m.RecordPrediction(report.Category)
		c.JSON(http.StatusOK, datatypes.PredictResponse{
			RequestID: middleware.GetRequestID(c),
			Report:    report,
		})
	}
}

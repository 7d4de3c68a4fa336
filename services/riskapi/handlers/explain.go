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
	"strings"
	"time"

	"github.com/AleutianAI/ingredientrisk/services/explainer"
	"github.com/AleutianAI/ingredientrisk/services/label_parser"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/datatypes"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/middleware"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/observability"
	"github.com/gin-gonic/gin"
)

// HandleExplain labels the text and asks the explainer to describe the
// result. backend names the explainer in the response and in metrics.
//
// POST /v1/explain {"text": "..."}
//
// Responses: as /v1/predict, plus 502 when the explainer fails.
func HandleExplain(a Assessor, e explainer.Explainer, backend string, m *observability.Metrics) gin.HandlerFunc {
	const endpoint = "explain"
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

		ctx := c.Request.Context()
		report, err := a.Assess(ctx, req.Text)
		if err != nil {
			abortWithError(c, endpoint, m, err)
			return
		}
		m.RecordPrediction(report.Category)

		text, err := e.Explain(ctx, report)
		m.RecordExplanation(backend, err)
		if err != nil {
			requestID := middleware.GetRequestID(c)
			c.Error(err)
			m.RecordError(endpoint, CodeExplainFailed)
			c.AbortWithStatusJSON(http.StatusBadGateway, datatypes.ErrorResponse{
				Error:     "explanation backend failed",
				Code:      CodeExplainFailed,
				RequestID: requestID,
			})
			return
		}

		c.JSON(http.StatusOK, datatypes.ExplainResponse{
			PredictResponse: datatypes.PredictResponse{
				RequestID: middleware.GetRequestID(c),
				Report:    report,
			},
			Explanation: text,
			Explainer:   backend,
		})
	}
}

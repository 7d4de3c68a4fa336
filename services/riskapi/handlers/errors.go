// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP handlers of the risk API.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/ingredientrisk/services/assessor"
	"github.com/AleutianAI/ingredientrisk/services/label_parser"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/datatypes"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/middleware"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/observability"
	"github.com/gin-gonic/gin"
)

// Error codes reported in ErrorResponse.Code and the errors_total metric.
const (
	CodeBadRequest        = "bad_request"
	CodeEmptyInput        = "empty_input"
	CodeInvalidIngredient = "invalid_ingredient"
	CodeUnknownIngredient = "unknown_ingredient"
	CodeUnclassifiable    = "unclassifiable"
	CodeTimeout           = "timeout"
	CodeExplainFailed     = "explain_failed"
	CodeInternal          = "internal"
)

// toErrorResponse maps a domain error to an HTTP status and body.
func toErrorResponse(err error) (int, datatypes.ErrorResponse) {
	resp := datatypes.ErrorResponse{Error: err.Error()}

	var unresolved *assessor.UnresolvedError
	switch {
	case errors.Is(err, label_parser.ErrEmptyText), errors.Is(err, risk_labeler.ErrEmptyList):
		resp.Code = CodeEmptyInput
		return http.StatusBadRequest, resp
	case errors.As(err, &unresolved):
		resp.Code = CodeUnknownIngredient
		resp.UnknownIngredients = unresolved.Names
		return http.StatusUnprocessableEntity, resp
	case errors.Is(err, risk_labeler.ErrClassification):
		resp.Code = CodeUnclassifiable
		return http.StatusUnprocessableEntity, resp
	case errors.Is(err, risk_labeler.ErrInvalidIngredient):
		resp.Code = CodeInvalidIngredient
		return http.StatusBadRequest, resp
	case errors.Is(err, context.DeadlineExceeded):
		resp.Code = CodeTimeout
		return http.StatusGatewayTimeout, resp
	default:
		resp.Code = CodeInternal
		resp.Error = "internal error"
		return http.StatusInternalServerError, resp
	}
}

// abortWithError writes the error response for err and records it.
func abortWithError(c *gin.Context, endpoint string, m *observability.Metrics, err error) {
	status, resp := toErrorResponse(err)
	resp.RequestID = middleware.GetRequestID(c)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "endpoint", endpoint, "request_id", resp.RequestID, "error", err)
	}
	m.RecordError(endpoint, resp.Code)
	c.AbortWithStatusJSON(status, resp)
}

func abortBadRequest(c *gin.Context, endpoint string, m *observability.Metrics, msg string) {
	m.RecordError(endpoint, CodeBadRequest)
	c.AbortWithStatusJSON(http.StatusBadRequest, datatypes.ErrorResponse{
		Error:     msg,
		Code:      CodeBadRequest,
		RequestID: middleware.GetRequestID(c),
	})
}

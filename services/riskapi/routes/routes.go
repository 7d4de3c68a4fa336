// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"log/slog"
	"net/http"

	"github.com/AleutianAI/ingredientrisk/pkg/extensions"
	"github.com/AleutianAI/ingredientrisk/services/catalog"
	"github.com/AleutianAI/ingredientrisk/services/explainer"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/handlers"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/middleware"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/observability"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Deps carries what the route handlers need.
type Deps struct {
	Assessor         handlers.Assessor
	Rules            *risk_labeler.Rules
	Catalog          catalog.Lister
	Explainer        explainer.Explainer
	ExplainerName    string
	ExplainLimiter   *rate.Limiter
	Metrics          *observability.Metrics
	MetricsHandler   http.Handler
	Version          string
	BatchConcurrency int

	// Extensions guard and audit the /v1 group. Nil fields are no-ops.
	Extensions extensions.ServiceOptions
	Logger     *slog.Logger
}

func SetupRoutes(router *gin.Engine, d Deps) {
	router.GET("/", handlers.HandleRoot(d.Version))
	router.GET("/health", handlers.HandleHealth(d.Rules, d.Catalog))
	if d.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(d.MetricsHandler))
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ext := d.Extensions.Normalize()

	// API version 1 group
	v1 := router.Group("/v1",
		middleware.Auth(ext.AuthProvider, ext.AuditLogger),
		middleware.Audit(ext.AuditLogger, logger),
	)
	{
		v1.GET("/rules", handlers.HandleRules(d.Rules))
		v1.POST("/predict", handlers.HandlePredict(d.Assessor, d.Metrics))
		v1.POST("/predict/batch", handlers.HandlePredictBatch(d.Assessor, d.Metrics, d.BatchConcurrency))
		v1.POST("/classify", handlers.HandleClassify(d.Assessor, d.Metrics))
		if d.Explainer != nil {
			v1.POST("/explain", middleware.RateLimit(d.ExplainLimiter),
				handlers.HandleExplain(d.Assessor, d.Explainer, d.ExplainerName, d.Metrics))
		}
	}
}

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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AleutianAI/ingredientrisk/services/assessor"
	"github.com/AleutianAI/ingredientrisk/services/catalog"
	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/datatypes"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/middleware"
	"github.com/AleutianAI/ingredientrisk/services/riskapi/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubExplainer struct {
	text string
	err  error
}

func (s stubExplainer) Explain(_ context.Context, report *assessor.Report) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text + " " + report.Category, nil
}

type fixture struct {
	router  *gin.Engine
	metrics *observability.Metrics
	catalog *catalog.MemoryCatalog
	rules   *risk_labeler.Rules
}

func newFixture(t *testing.T, exp stubExplainer) *fixture {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	labeler, err := risk_labeler.NewDefaultRiskLabeler()
	require.NoError(t, err)
	a, err := assessor.New(cat, labeler, nil)
	require.NoError(t, err)

	m := observability.NewMetrics(prometheus.NewRegistry())
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/", HandleRoot("1.0.0"))
	r.GET("/health", HandleHealth(labeler.Rules(), cat))
	r.GET("/v1/rules", HandleRules(labeler.Rules()))
	r.POST("/v1/predict", HandlePredict(a, m))
	r.POST("/v1/predict/batch", HandlePredictBatch(a, m, 2))
	r.POST("/v1/classify", HandleClassify(a, m))
	r.POST("/v1/explain", HandleExplain(a, exp, "template", m))

	return &fixture{router: r, metrics: m, catalog: cat, rules: labeler.Rules()}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHandlePredict(t *testing.T) {
	f := newFixture(t, stubExplainer{})

	w := f.do(t, http.MethodPost, "/v1/predict", `{"text":"Spinach, tomatoes, garlic"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Spinach, tomatoes, garlic", body["text"])
	assert.EqualValues(t, 1, body["risk_level"])
	assert.EqualValues(t, 0, body["pred_id"])
	assert.Equal(t, "Very Safe", body["risk_category"])
	assert.Nil(t, body["error"])
	assert.Contains(t, body, "error")
	assert.NotEmpty(t, body["request_id"])
	assert.Len(t, body["ingredients"], 3)

	probs, ok := body["probabilities"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, probs["0"])

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PredictionsTotal.WithLabelValues("Very Safe")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("predict", "success")))
}

func TestHandlePredict_Errors(t *testing.T) {
	f := newFixture(t, stubExplainer{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"Malformed JSON", `{"text":`, http.StatusBadRequest, CodeBadRequest},
		{"Blank text", `{"text":"   "}`, http.StatusBadRequest, CodeEmptyInput},
		{"Missing text", `{}`, http.StatusBadRequest, CodeEmptyInput},
		{"Oversized text", `{"text":"` + strings.Repeat("a", datatypes.MaxTextBytes+1) + `"}`, http.StatusBadRequest, CodeBadRequest},
		{"Unknown ingredient", `{"text":"sugar, unobtainium"}`, http.StatusUnprocessableEntity, CodeUnknownIngredient},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/v1/predict", tc.body)
			assert.Equal(t, tc.wantStatus, w.Code)
			resp := decode[datatypes.ErrorResponse](t, w)
			assert.Equal(t, tc.wantCode, resp.Code)
			assert.NotEmpty(t, resp.RequestID)
		})
	}

	w := f.do(t, http.MethodPost, "/v1/predict", `{"text":"sugar, unobtainium"}`)
	resp := decode[datatypes.ErrorResponse](t, w)
	assert.Equal(t, []string{"unobtainium"}, resp.UnknownIngredients)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ErrorsTotal.WithLabelValues("predict", CodeUnknownIngredient)))
}

func TestHandlePredictBatch(t *testing.T) {
	f := newFixture(t, stubExplainer{})

	w := f.do(t, http.MethodPost, "/v1/predict/batch",
		`{"texts":["Spinach","","unobtainium","sugar, tartrazine (INS 102)"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[datatypes.BatchPredictResponse](t, w)
	require.Len(t, resp.Results, 4)
	assert.Equal(t, 2, resp.Failed)

	statuses := make([]int, len(resp.Results))
	for i, r := range resp.Results {
		assert.Equal(t, i, r.Index)
		statuses[i] = r.Status
	}
	assert.Equal(t, []int{200, 400, 422, 200}, statuses)

	assert.Equal(t, risk_labeler.VeryLow, resp.Results[0].Report.Level)
	assert.Equal(t, risk_labeler.HighRisk, resp.Results[3].Report.Level)
	assert.Equal(t, CodeEmptyInput, resp.Results[1].Error.Code)
	assert.Equal(t, []string{"unobtainium"}, resp.Results[2].Error.UnknownIngredients)
}

func TestHandlePredictBatch_Validation(t *testing.T) {
	f := newFixture(t, stubExplainer{})

	w := f.do(t, http.MethodPost, "/v1/predict/batch", `{"texts":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	texts, err := json.Marshal(map[string][]string{"texts": make([]string, datatypes.MaxBatchSize+1)})
	require.NoError(t, err)
	w = f.do(t, http.MethodPost, "/v1/predict/batch", string(texts))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeBadRequest, decode[datatypes.ErrorResponse](t, w).Code)
}

func TestHandleClassify(t *testing.T) {
	f := newFixture(t, stubExplainer{})

	w := f.do(t, http.MethodPost, "/v1/classify", `{"ingredients":[
		{"name":"iodized salt","is_processed":true},
		{"name":"emulsifier","is_artificial":true,"is_processed":true,"additive_code":471}
	]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[assessor.Report](t, w)
	assert.Equal(t, risk_labeler.Concerning, resp.Level)
	assert.Equal(t, 1, resp.Driver)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, assessor.SourceInput, resp.Items[0].Source)
	assert.Equal(t, risk_labeler.RuleNaturalProcessed, resp.Items[0].Rule)
}

func TestHandleClassify_Errors(t *testing.T) {
	f := newFixture(t, stubExplainer{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"No ingredients", `{"ingredients":[]}`, http.StatusBadRequest, CodeBadRequest},
		{"Blank name", `{"ingredients":[{"name":"  "}]}`, http.StatusBadRequest, CodeBadRequest},
		{"Code out of range", `{"ingredients":[{"name":"x","additive_code":42}]}`, http.StatusBadRequest, CodeBadRequest},
		{
			name:       "Unmatched attributes",
			body:       `{"ingredients":[{"name":"artificial flavour","is_artificial":true}]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   CodeUnclassifiable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/v1/classify", tc.body)
			assert.Equal(t, tc.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tc.wantCode, decode[datatypes.ErrorResponse](t, w).Code)
		})
	}
}

func TestHandleExplain(t *testing.T) {
	f := newFixture(t, stubExplainer{text: "Overall:"})

	w := f.do(t, http.MethodPost, "/v1/explain", `{"text":"sugar, tartrazine (INS 102)"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[datatypes.ExplainResponse](t, w)
	assert.Equal(t, "Overall: High Risk", resp.Explanation)
	assert.Equal(t, "template", resp.Explainer)
	assert.Equal(t, risk_labeler.HighRisk, resp.Level)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ExplanationsTotal.WithLabelValues("template", "success")))
}

func TestHandleExplain_BackendFailure(t *testing.T) {
	f := newFixture(t, stubExplainer{err: errors.New("connection refused")})

	w := f.do(t, http.MethodPost, "/v1/explain", `{"text":"sugar"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decode[datatypes.ErrorResponse](t, w)
	assert.Equal(t, CodeExplainFailed, resp.Code)
	assert.NotContains(t, resp.Error, "connection refused")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ExplanationsTotal.WithLabelValues("template", "error")))
}

func TestHandleRootHealthRules(t *testing.T) {
	f := newFixture(t, stubExplainer{})

	w := f.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	root := decode[map[string]string](t, w)
	assert.Equal(t, "Ingredient Risk Classifier API", root["message"])
	assert.Equal(t, "1.0.0", root["version"])

	w = f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[datatypes.HealthResponse](t, w)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, f.rules.Hash(), health.RulesHash)
	assert.Equal(t, f.catalog.Len(), health.CatalogEntries)

	w = f.do(t, http.MethodGet, "/v1/rules", "")
	require.Equal(t, http.StatusOK, w.Code)
	rules := decode[datatypes.RulesResponse](t, w)
	assert.Equal(t, f.rules.HarmfulCodes(), rules.HarmfulAdditives)
	assert.Contains(t, rules.RefinedIngredients, "refined wheat flour")
	assert.NotEmpty(t, rules.Additives)
}

func TestToErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"Empty list", risk_labeler.ErrEmptyList, http.StatusBadRequest, CodeEmptyInput},
		{"Invalid ingredient", risk_labeler.ErrInvalidIngredient, http.StatusBadRequest, CodeInvalidIngredient},
		{"Deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout},
		{"Unknown", errors.New("disk on fire"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, resp := toErrorResponse(tc.err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantCode, resp.Code)
		})
	}

	_, resp := toErrorResponse(errors.New("disk on fire"))
	assert.Equal(t, "internal error", resp.Error)
}

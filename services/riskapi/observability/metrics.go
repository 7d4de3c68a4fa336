// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the risk API.
//
// # Description
//
// Metrics cover request volume and latency per endpoint, predicted risk
// levels, error kinds, explanation backend calls and catalog reloads. They
// are exposed on GET /metrics.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "ingredientrisk"

// Subsystem for API metrics
const apiSubsystem = "api"

// Metrics holds all Prometheus metrics for the risk API.
type Metrics struct {
	// RequestsTotal counts requests by endpoint and status.
	// Labels: endpoint, status (success, error)
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures handler latency.
	// Labels: endpoint
	RequestDurationSeconds *prometheus.HistogramVec

	// PredictionsTotal counts labeled ingredient lists by resulting level.
	// Labels: risk_category
	PredictionsTotal *prometheus.CounterVec

	// ErrorsTotal counts errors by endpoint and error code.
	// Labels: endpoint, error_code (empty_input, unknown_ingredient, ...)
	ErrorsTotal *prometheus.CounterVec

	// ExplanationsTotal counts explanation requests by backend and status.
	// Labels: backend (llm, template), status
	ExplanationsTotal *prometheus.CounterVec

	// CatalogReloadsTotal counts catalog file reloads by status.
	// Labels: status
	CatalogReloadsTotal *prometheus.CounterVec

	// CatalogEntries is the number of entries in the served catalog.
	CatalogEntries prometheus.Gauge
}

// NewMetrics creates all metrics and registers them with reg.
//
// # Inputs
//
//   - reg: Registry to register with. Use prometheus.NewRegistry() in tests;
//     registering twice with the same registry panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: apiSubsystem,
				Name:      "requests_total",
				Help:      "Total number of API requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: apiSubsystem,
				Name:      "request_duration_seconds",
				Help:      "API request handling time in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"endpoint"},
		),

		PredictionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: apiSubsystem,
				Name:      "predictions_total",
				Help:      "Total labeled ingredient lists by risk category",
			},
			[]string{"risk_category"},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: apiSubsystem,
				Name:      "errors_total",
				Help:      "Total API errors by endpoint and error code",
			},
			[]string{"endpoint", "error_code"},
		),

		ExplanationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: apiSubsystem,
				Name:      "explanations_total",
				Help:      "Total explanation requests by backend and status",
			},
			[]string{"backend", "status"},
		),

		CatalogReloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "catalog",
				Name:      "reloads_total",
				Help:      "Total catalog file reloads by status",
			},
			[]string{"status"},
		),

		CatalogEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "catalog",
				Name:      "entries",
				Help:      "Number of ingredients in the served catalog",
			},
		),
	}
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(endpoint string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.RequestDurationSeconds.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// RecordPrediction counts a labeled list.
func (m *Metrics) RecordPrediction(category string) {
	m.PredictionsTotal.WithLabelValues(category).Inc()
}

// RecordError counts an error response.
func (m *Metrics) RecordError(endpoint, code string) {
	m.ErrorsTotal.WithLabelValues(endpoint, code).Inc()
}

// RecordExplanation counts an explanation attempt.
func (m *Metrics) RecordExplanation(backend string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ExplanationsTotal.WithLabelValues(backend, status).Inc()
}

// RecordCatalogReload records a catalog reload outcome.
func (m *Metrics) RecordCatalogReload(entries int, err error) {
	if err != nil {
		m.CatalogReloadsTotal.WithLabelValues("error").Inc()
		return
	}
	m.CatalogReloadsTotal.WithLabelValues("success").Inc()
	m.CatalogEntries.Set(float64(entries))
}

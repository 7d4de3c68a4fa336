// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NotNil(t, m)

	m.ObserveRequest("predict", time.Now(), nil)
	m.RecordPrediction("High Risk")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "ingredientrisk_api_requests_total")
	assert.Contains(t, names, "ingredientrisk_api_predictions_total")
	assert.Contains(t, names, "ingredientrisk_catalog_entries")
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveRequest("predict", time.Now(), nil)
	m.ObserveRequest("predict", time.Now(), errors.New("x"))
	m.RecordError("predict", "unknown_ingredient")
	m.RecordExplanation("llm", errors.New("down"))
	m.RecordCatalogReload(42, nil)
	m.RecordCatalogReload(0, errors.New("bad yaml"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("predict", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("predict", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("predict", "unknown_ingredient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExplanationsTotal.WithLabelValues("llm", "error")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.CatalogEntries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CatalogReloadsTotal.WithLabelValues("error")))
}

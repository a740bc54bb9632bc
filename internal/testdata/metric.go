// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package testdata // import "github.com/open-telemetry/opentelemetry-lambda/extension/internal/testdata"

import (
	"strconv"

	"go.opentelemetry.io/collector/pdata/pmetric"
)

// GenerateMetrics returns one resource with count gauge metrics, each with a
// single data point.
func GenerateMetrics(count int) pmetric.Metrics {
	md := pmetric.NewMetrics()
	rm := md.ResourceMetrics().AppendEmpty()
	initResource(rm.Resource())
	sm := rm.ScopeMetrics().AppendEmpty()
	sm.Scope().SetName("testdata")
	for i := 0; i < count; i++ {
		m := sm.Metrics().AppendEmpty()
		m.SetName("gauge-" + strconv.Itoa(i))
		dp := m.SetEmptyGauge().DataPoints().AppendEmpty()
		dp.SetTimestamp(TestTimestamp)
		dp.SetDoubleValue(float64(i))
	}
	return md
}

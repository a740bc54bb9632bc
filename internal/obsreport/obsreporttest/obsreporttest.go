// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package obsreporttest reads back the counters recorded through obsreport.
package obsreporttest // import "github.com/open-telemetry/opentelemetry-lambda/extension/internal/obsreport/obsreporttest"

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component"
)

// TestTelemetry collects metrics in memory.
type TestTelemetry struct {
	reader *sdkmetric.ManualReader
	mp     *sdkmetric.MeterProvider
}

// SetupTelemetry returns a TestTelemetry that is shut down with the test.
func SetupTelemetry(t testing.TB) *TestTelemetry {
	reader := sdkmetric.NewManualReader()
	tt := &TestTelemetry{
		reader: reader,
		mp:     sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
	t.Cleanup(func() {
		require.NoError(t, tt.mp.Shutdown(context.Background()))
	})
	return tt
}

// Settings returns settings wired to the in-memory meter provider.
func (tt *TestTelemetry) Settings(logger *zap.Logger) component.TelemetrySettings {
	if logger == nil {
		logger = zap.NewNop()
	}
	return component.TelemetrySettings{Logger: logger, MeterProvider: tt.mp}
}

// Counter returns the sum of every data point of the int64 counter called
// name whose attributes contain all of attrs.
func (tt *TestTelemetry) Counter(t testing.TB, name string, attrs ...attribute.KeyValue) int64 {
	var rm metricdata.ResourceMetrics
	require.NoError(t, tt.reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.Truef(t, ok, "metric %q is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				if hasAll(dp.Attributes, attrs) {
					total += dp.Value
				}
			}
		}
	}
	return total
}

// MetricNames returns the names of every metric recorded so far.
func (tt *TestTelemetry) MetricNames(t testing.TB) []string {
	var rm metricdata.ResourceMetrics
	require.NoError(t, tt.reader.Collect(context.Background(), &rm))

	var names []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names = append(names, m.Name)
		}
	}
	return names
}

func hasAll(set attribute.Set, attrs []attribute.KeyValue) bool {
	for _, kv := range attrs {
		v, ok := set.Value(kv.Key)
		if !ok || v != kv.Value {
			return false
		}
	}
	return true
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package component holds the pieces shared by receivers, processors,
// exporters and pipelines.
package component // import "github.com/open-telemetry/opentelemetry-lambda/extension/component"

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// Host is the environment a running component reports to.
type Host interface {
	// ReportFatalError is used by a component to report an error it cannot
	// recover from. The host is expected to shut the process down.
	// May be called from any goroutine, more than once.
	ReportFatalError(err error)
}

// TelemetrySettings is passed to every component on creation.
type TelemetrySettings struct {
	// Logger the component logs with.
	Logger *zap.Logger

	// MeterProvider the component creates its counters from.
	MeterProvider metric.MeterProvider
}

// Meter returns the meter for scope, falling back to a no-op provider.
func (ts TelemetrySettings) Meter(scope string) metric.Meter {
	if ts.MeterProvider == nil {
		return noop.NewMeterProvider().Meter(scope)
	}
	return ts.MeterProvider.Meter(scope)
}

// LoggerOrNop returns the configured logger, or a no-op one if unset.
func (ts TelemetrySettings) LoggerOrNop() *zap.Logger {
	if ts.Logger == nil {
		return zap.NewNop()
	}
	return ts.Logger
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package componenttest provides hosts and settings for component tests.
package componenttest // import "github.com/open-telemetry/opentelemetry-lambda/extension/component/componenttest"

import (
	"sync"

	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component"
)

// NewNopTelemetrySettings returns settings that discard logs and metrics.
func NewNopTelemetrySettings() component.TelemetrySettings {
	return component.TelemetrySettings{
		Logger:        zap.NewNop(),
		MeterProvider: noop.NewMeterProvider(),
	}
}

// ErrorHost is a component.Host that records reported fatal errors.
type ErrorHost struct {
	mu     sync.Mutex
	errs   []error
	notify chan struct{}
}

var _ component.Host = (*ErrorHost)(nil)

// NewErrorHost returns an empty ErrorHost.
func NewErrorHost() *ErrorHost {
	return &ErrorHost{notify: make(chan struct{}, 1)}
}

// ReportFatalError records err.
func (h *ErrorHost) ReportFatalError(err error) {
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Errors returns the errors reported so far.
func (h *ErrorHost) Errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]error, len(h.errs))
	copy(out, h.errs)
	return out
}

// Reported returns a channel that receives after each ReportFatalError call.
func (h *ErrorHost) Reported() <-chan struct{} {
	return h.notify
}

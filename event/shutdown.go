// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package event defines the control signals exchanged between receivers and
// the application controller.
package event // import "github.com/open-telemetry/opentelemetry-lambda/extension/event"

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type shutdownCode int

const (
	codeOther shutdownCode = iota
	codeSpindown
	codeTimeout
	codeFailure
)

// ShutdownReason classifies why the host is terminating the process.
// The zero value is Other("").
type ShutdownReason struct {
	code shutdownCode
	raw  string
}

// Known shutdown reasons.
var (
	Spindown = ShutdownReason{code: codeSpindown}
	Timeout  = ShutdownReason{code: codeTimeout}
	Failure  = ShutdownReason{code: codeFailure}
)

// Other returns a ShutdownReason carrying a reason string the host sent that
// is not part of the known set.
func Other(reason string) ShutdownReason {
	return ShutdownReason{code: codeOther, raw: reason}
}

// ParseShutdownReason maps the host's reason string onto a ShutdownReason.
// Matching is exact; anything else is kept verbatim as Other.
func ParseShutdownReason(s string) ShutdownReason {
	switch s {
	case "SPINDOWN":
		return Spindown
	case "TIMEOUT":
		return Timeout
	case "FAILURE":
		return Failure
	}
	return Other(s)
}

// IsOther reports whether the reason is outside the known set.
func (r ShutdownReason) IsOther() bool {
	return r.code == codeOther
}

// Raw returns the original string for Other reasons and "" otherwise.
func (r ShutdownReason) Raw() string {
	return r.raw
}

// String returns the host's spelling of the reason.
func (r ShutdownReason) String() string {
	switch r.code {
	case codeSpindown:
		return "SPINDOWN"
	case codeTimeout:
		return "TIMEOUT"
	case codeFailure:
		return "FAILURE"
	}
	return r.raw
}

// MetricValue is the value of the "reason" attribute on the shutdown counter.
func (r ShutdownReason) MetricValue() string {
	if r.code == codeOther {
		return r.raw
	}
	return strings.ToLower(r.String())
}

// RecordShutdown adds one to counter, tagged with the reason.
func RecordShutdown(ctx context.Context, counter metric.Int64Counter, r ShutdownReason) {
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", r.MetricValue())))
}

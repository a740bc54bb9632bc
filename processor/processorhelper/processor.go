// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package processorhelper builds processors from per-signal functions.
package processorhelper // import "github.com/open-telemetry/opentelemetry-lambda/extension/processor/processorhelper"

import (
	"context"
	"errors"

	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/collector/pdata/pmetric"
	"go.opentelemetry.io/collector/pdata/ptrace"

	"github.com/open-telemetry/opentelemetry-lambda/extension/processor"
	"github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"
)

// ProcessLogsFunc is a helper function that processes the incoming data and returns the data to be sent to the next component.
// If error is returned then returned data are ignored. The input is a private copy and may be mutated.
type ProcessLogsFunc func(context.Context, plog.Logs) (plog.Logs, error)

// ProcessMetricsFunc is the metrics counterpart of ProcessLogsFunc.
type ProcessMetricsFunc func(context.Context, pmetric.Metrics) (pmetric.Metrics, error)

// ProcessTracesFunc is the traces counterpart of ProcessLogsFunc.
type ProcessTracesFunc func(context.Context, ptrace.Traces) (ptrace.Traces, error)

// Option apply changes to the processor.
type Option func(*funcProcessor)

// WithLogs sets the function applied to log envelopes.
func WithLogs(fn ProcessLogsFunc) Option {
	return func(p *funcProcessor) {
		p.logs = fn
	}
}

// WithMetrics sets the function applied to metric envelopes.
func WithMetrics(fn ProcessMetricsFunc) Option {
	return func(p *funcProcessor) {
		p.metrics = fn
	}
}

// WithTraces sets the function applied to span envelopes.
func WithTraces(fn ProcessTracesFunc) Option {
	return func(p *funcProcessor) {
		p.traces = fn
	}
}

type funcProcessor struct {
	logs    ProcessLogsFunc
	metrics ProcessMetricsFunc
	traces  ProcessTracesFunc
}

// New creates a Processor that copies the payload before handing it to the
// function for its kind. Envelopes of a kind without a function pass through
// untouched.
func New(options ...Option) (processor.Processor, error) {
	p := &funcProcessor{}
	for _, opt := range options {
		opt(p)
	}
	if p.logs == nil && p.metrics == nil && p.traces == nil {
		return nil, errors.New("nil processor")
	}
	return p, nil
}

func (p *funcProcessor) Process(ctx context.Context, env telemetry.Envelope) (telemetry.Envelope, error) {
	switch env.Kind() {
	case telemetry.KindLogs:
		if p.logs == nil {
			return env, nil
		}
		ld, _ := env.Logs()
		cp := plog.NewLogs()
		ld.CopyTo(cp)
		out, err := p.logs(ctx, cp)
		if err != nil {
			return telemetry.Envelope{}, err
		}
		return telemetry.NewLogs(out), nil
	case telemetry.KindMetrics:
		if p.metrics == nil {
			return env, nil
		}
		md, _ := env.Metrics()
		cp := pmetric.NewMetrics()
		md.CopyTo(cp)
		out, err := p.metrics(ctx, cp)
		if err != nil {
			return telemetry.Envelope{}, err
		}
		return telemetry.NewMetrics(out), nil
	case telemetry.KindTraces:
		if p.traces == nil {
			return env, nil
		}
		td, _ := env.Traces()
		cp := ptrace.NewTraces()
		td.CopyTo(cp)
		out, err := p.traces(ctx, cp)
		if err != nil {
			return telemetry.Envelope{}, err
		}
		return telemetry.NewTraces(out), nil
	}
	return env, nil
}

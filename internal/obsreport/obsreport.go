// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package obsreport creates the counters components use to report what
// happened to the envelopes that passed through them.
package obsreport // import "github.com/open-telemetry/opentelemetry-lambda/extension/internal/obsreport"

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component"
)

// ScopeName is the instrumentation scope of every counter in this module.
const ScopeName = "github.com/open-telemetry/opentelemetry-lambda/extension"

const (
	// PipelineKey tags pipeline counters with the pipeline name.
	PipelineKey = "pipeline"
	// ReceiverKey tags receiver counters with the receiver name.
	ReceiverKey = "receiver"

	nameSep = "."

	pipelinePrefix = PipelineKey + nameSep
	receiverPrefix = ReceiverKey + nameSep

	ExportedEnvelopes        = pipelinePrefix + "exported_envelopes"
	ExportFailedEnvelopes    = pipelinePrefix + "export_failed_envelopes"
	FailedOverEnvelopes      = pipelinePrefix + "failed_over_envelopes"
	DroppedEnvelopes         = pipelinePrefix + "dropped_envelopes"
	ProcessorFailedEnvelopes = pipelinePrefix + "processor_failed_envelopes"

	AcceptedEnvelopes        = receiverPrefix + "accepted_envelopes"
	RefusedEnvelopes         = receiverPrefix + "refused_envelopes"
	ReceiverDroppedEnvelopes = receiverPrefix + "dropped_envelopes"

	Invocations = "extension.invocations"
	Shutdowns   = "extension.shutdowns"
)

const envelopeUnit = "{envelope}"

// Pipeline holds the counters of a single pipeline.
type Pipeline struct {
	attrs metric.MeasurementOption

	exported        metric.Int64Counter
	exportFailed    metric.Int64Counter
	failedOver      metric.Int64Counter
	dropped         metric.Int64Counter
	processorFailed metric.Int64Counter
}

// NewPipeline creates the counters for the pipeline called name.
func NewPipeline(name string, set component.TelemetrySettings) (*Pipeline, error) {
	meter := set.Meter(ScopeName)
	p := &Pipeline{
		attrs: metric.WithAttributeSet(attribute.NewSet(attribute.String(PipelineKey, name))),
	}

	var errs, err error
	p.exported, err = meter.Int64Counter(ExportedEnvelopes,
		metric.WithDescription("Number of envelopes successfully exported."),
		metric.WithUnit(envelopeUnit))
	errs = multierr.Append(errs, err)
	p.exportFailed, err = meter.Int64Counter(ExportFailedEnvelopes,
		metric.WithDescription("Number of envelopes the exporter failed to deliver."),
		metric.WithUnit(envelopeUnit))
	errs = multierr.Append(errs, err)
	p.failedOver, err = meter.Int64Counter(FailedOverEnvelopes,
		metric.WithDescription("Number of envelopes forwarded to the failover pipeline."),
		metric.WithUnit(envelopeUnit))
	errs = multierr.Append(errs, err)
	p.dropped, err = meter.Int64Counter(DroppedEnvelopes,
		metric.WithDescription("Number of envelopes dropped by the pipeline."),
		metric.WithUnit(envelopeUnit))
	errs = multierr.Append(errs, err)
	p.processorFailed, err = meter.Int64Counter(ProcessorFailedEnvelopes,
		metric.WithDescription("Number of envelopes a processor failed on."),
		metric.WithUnit(envelopeUnit))
	errs = multierr.Append(errs, err)

	if errs != nil {
		return nil, errs
	}
	return p, nil
}

func (p *Pipeline) Exported(ctx context.Context, n int) {
	p.exported.Add(ctx, int64(n), p.attrs)
}

func (p *Pipeline) ExportFailed(ctx context.Context, n int) {
	p.exportFailed.Add(ctx, int64(n), p.attrs)
}

func (p *Pipeline) FailedOver(ctx context.Context, n int) {
	p.failedOver.Add(ctx, int64(n), p.attrs)
}

func (p *Pipeline) Dropped(ctx context.Context, n int) {
	p.dropped.Add(ctx, int64(n), p.attrs)
}

func (p *Pipeline) ProcessorFailed(ctx context.Context, n int) {
	p.processorFailed.Add(ctx, int64(n), p.attrs)
}

// Receiver holds the counters of a single receiver.
type Receiver struct {
	attrs metric.MeasurementOption

	accepted metric.Int64Counter
	refused  metric.Int64Counter
	dropped  metric.Int64Counter
}

// NewReceiver creates the counters for the receiver called name.
func NewReceiver(name string, set component.TelemetrySettings) (*Receiver, error) {
	meter := set.Meter(ScopeName)
	r := &Receiver{
		attrs: metric.WithAttributeSet(attribute.NewSet(attribute.String(ReceiverKey, name))),
	}

	var errs, err error
	r.accepted, err = meter.Int64Counter(AcceptedEnvelopes,
		metric.WithDescription("Number of envelopes pushed into the pipeline."),
		metric.WithUnit(envelopeUnit))
	errs = multierr.Append(errs, err)
	r.refused, err = meter.Int64Counter(RefusedEnvelopes,
		metric.WithDescription("Number of batches that could not be decoded."),
		metric.WithUnit("{batch}"))
	errs = multierr.Append(errs, err)
	r.dropped, err = meter.Int64Counter(ReceiverDroppedEnvelopes,
		metric.WithDescription("Number of envelopes dropped because the pipeline was saturated."),
		metric.WithUnit(envelopeUnit))
	errs = multierr.Append(errs, err)

	if errs != nil {
		return nil, errs
	}
	return r, nil
}

func (r *Receiver) Accepted(ctx context.Context, n int) {
	r.accepted.Add(ctx, int64(n), r.attrs)
}

func (r *Receiver) Refused(ctx context.Context, n int) {
	r.refused.Add(ctx, int64(n), r.attrs)
}

func (r *Receiver) Dropped(ctx context.Context, n int) {
	r.dropped.Add(ctx, int64(n), r.attrs)
}

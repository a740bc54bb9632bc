// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package resourceprocessor stamps the process wide Resource onto every
// envelope.
package resourceprocessor // import "github.com/open-telemetry/opentelemetry-lambda/extension/processor/resourceprocessor"

import (
	"context"
	"errors"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/collector/pdata/pmetric"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.uber.org/zap"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component"
	"github.com/open-telemetry/opentelemetry-lambda/extension/component/componenterror"
	"github.com/open-telemetry/opentelemetry-lambda/extension/processor"
	"github.com/open-telemetry/opentelemetry-lambda/extension/processor/processorhelper"
)

// Source provides the Resource. It returns componenterror.ErrResourceNotSet
// until the Resource is known.
type Source interface {
	Resource() (pcommon.Resource, error)
}

type resourceProcessor struct {
	logger *zap.Logger
	source Source
}

// New creates a processor that inserts every Resource attribute the payload
// does not carry yet. Existing attributes win. Envelopes pass through
// unchanged while the Resource is not set.
func New(set component.TelemetrySettings, source Source) (processor.Processor, error) {
	if source == nil {
		return nil, errors.New("nil resource source")
	}
	rp := &resourceProcessor{
		logger: set.LoggerOrNop().Named("resourceprocessor"),
		source: source,
	}
	return processorhelper.New(
		processorhelper.WithLogs(rp.processLogs),
		processorhelper.WithMetrics(rp.processMetrics),
		processorhelper.WithTraces(rp.processTraces),
	)
}

func (rp *resourceProcessor) resource() (pcommon.Map, bool) {
	res, err := rp.source.Resource()
	if err != nil {
		if !errors.Is(err, componenterror.ErrResourceNotSet) {
			rp.logger.Warn("Failed to read resource", zap.Error(err))
		}
		return pcommon.Map{}, false
	}
	return res.Attributes(), true
}

func (rp *resourceProcessor) processLogs(_ context.Context, ld plog.Logs) (plog.Logs, error) {
	attrs, ok := rp.resource()
	if !ok {
		return ld, nil
	}
	rls := ld.ResourceLogs()
	for i := 0; i < rls.Len(); i++ {
		insertMissing(rls.At(i).Resource().Attributes(), attrs)
	}
	return ld, nil
}

func (rp *resourceProcessor) processMetrics(_ context.Context, md pmetric.Metrics) (pmetric.Metrics, error) {
	attrs, ok := rp.resource()
	if !ok {
		return md, nil
	}
	rms := md.ResourceMetrics()
	for i := 0; i < rms.Len(); i++ {
		insertMissing(rms.At(i).Resource().Attributes(), attrs)
	}
	return md, nil
}

func (rp *resourceProcessor) processTraces(_ context.Context, td ptrace.Traces) (ptrace.Traces, error) {
	attrs, ok := rp.resource()
	if !ok {
		return td, nil
	}
	rss := td.ResourceSpans()
	for i := 0; i < rss.Len(); i++ {
		insertMissing(rss.At(i).Resource().Attributes(), attrs)
	}
	return td, nil
}

func insertMissing(dst, src pcommon.Map) {
	src.Range(func(k string, v pcommon.Value) bool {
		if _, ok := dst.Get(k); !ok {
			v.CopyTo(dst.PutEmpty(k))
		}
		return true
	})
}

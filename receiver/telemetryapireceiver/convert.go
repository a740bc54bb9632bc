// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package telemetryapireceiver // import "github.com/open-telemetry/opentelemetry-lambda/extension/receiver/telemetryapireceiver"

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/collector/pdata/pmetric"
	"go.opentelemetry.io/collector/pdata/ptrace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/obsreport"
	"github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"
)

const (
	scopeName = obsreport.ScopeName + "/telemetryapireceiver"

	eventTypeAttr = "aws.lambda.event_type"
	statusAttr    = "aws.lambda.status"
	errorTypeAttr = "aws.lambda.error_type"
)

type gaugeSpec struct {
	name string
	unit string
	desc string
}

var (
	durationGauge       = gaugeSpec{"aws.lambda.duration", "ms", "Invocation duration."}
	billedDurationGauge = gaugeSpec{"aws.lambda.billed_duration", "ms", "Billed invocation duration."}
	memorySizeGauge     = gaugeSpec{"aws.lambda.memory_size", "MBy", "Configured memory."}
	maxMemoryUsedGauge  = gaugeSpec{"aws.lambda.max_memory_used", "MBy", "Peak memory used by the invocation."}
	initDurationGauge   = gaugeSpec{"aws.lambda.init_duration", "ms", "Initialization duration."}
)

// converter turns one pushed batch into Envelopes: one for logs, and one
// each for metrics and spans when the batch carries any.
type converter struct {
	logger *zap.Logger
}

func (c converter) convert(events []apiEvent) []telemetry.Envelope {
	ld := plog.NewLogs()
	logs := newScopeLogs(ld)
	md := pmetric.NewMetrics()
	metrics := newScopeMetrics(md)
	td := ptrace.NewTraces()
	spans := newScopeSpans(td)

	for _, ev := range events {
		c.appendLog(logs, ev)
		switch ev.Type {
		case typePlatformReport:
			var rec reportRecord
			if err := json.Unmarshal(ev.Record, &rec); err != nil {
				c.logger.Debug("Malformed report record", zap.Error(err))
				continue
			}
			appendReportMetrics(metrics, ev.Time, rec)
		case typePlatformRuntimeDone:
			var rec runtimeDoneRecord
			if err := json.Unmarshal(ev.Record, &rec); err != nil {
				c.logger.Debug("Malformed runtimeDone record", zap.Error(err))
				continue
			}
			appendRuntimeSpans(spans, rec)
		}
	}

	out := make([]telemetry.Envelope, 0, 3)
	if ld.LogRecordCount() > 0 {
		out = append(out, telemetry.NewLogs(ld))
	}
	if md.DataPointCount() > 0 {
		out = append(out, telemetry.NewMetrics(md))
	}
	if td.SpanCount() > 0 {
		out = append(out, telemetry.NewTraces(td))
	}
	return out
}

func newScopeLogs(ld plog.Logs) plog.LogRecordSlice {
	sl := ld.ResourceLogs().AppendEmpty().ScopeLogs().AppendEmpty()
	sl.Scope().SetName(scopeName)
	return sl.LogRecords()
}

func newScopeMetrics(md pmetric.Metrics) pmetric.MetricSlice {
	sm := md.ResourceMetrics().AppendEmpty().ScopeMetrics().AppendEmpty()
	sm.Scope().SetName(scopeName)
	return sm.Metrics()
}

func newScopeSpans(td ptrace.Traces) ptrace.SpanSlice {
	ss := td.ResourceSpans().AppendEmpty().ScopeSpans().AppendEmpty()
	ss.Scope().SetName(scopeName)
	return ss.Spans()
}

func (c converter) appendLog(logs plog.LogRecordSlice, ev apiEvent) {
	lr := logs.AppendEmpty()
	lr.SetTimestamp(pcommon.NewTimestampFromTime(ev.Time))
	lr.SetObservedTimestamp(pcommon.NewTimestampFromTime(time.Now()))
	lr.Attributes().PutStr(eventTypeAttr, ev.Type)

	// Function and extension output is a plain string unless the function
	// logs in JSON format.
	var text string
	if err := json.Unmarshal(ev.Record, &text); err == nil {
		lr.Body().SetStr(text)
		if strings.HasPrefix(ev.Type, platformPrefix) {
			lr.SetSeverityNumber(plog.SeverityNumberInfo)
			lr.SetSeverityText("INFO")
		}
		return
	}

	var fields map[string]any
	if err := json.Unmarshal(ev.Record, &fields); err != nil {
		lr.Body().SetStr(string(ev.Record))
		return
	}
	if id, ok := fields[requestIDKey].(string); ok {
		lr.Attributes().PutStr(string(semconv.FaaSInvocationIDKey), id)
	}

	if strings.HasPrefix(ev.Type, platformPrefix) {
		lr.SetSeverityNumber(plog.SeverityNumberInfo)
		lr.SetSeverityText("INFO")
		if err := lr.Body().SetEmptyMap().FromRaw(fields); err != nil {
			c.logger.Debug("Unsupported record", zap.String("type", ev.Type), zap.Error(err))
			lr.Body().SetStr(string(ev.Record))
		}
		return
	}

	level, _ := fields[levelKey].(string)
	lr.SetSeverityNumber(severityFromLevel(level))
	lr.SetSeverityText(strings.ToUpper(level))
	if msg, ok := fields[messageKey].(string); ok {
		lr.Body().SetStr(msg)
		return
	}
	if err := lr.Body().SetEmptyMap().FromRaw(fields); err != nil {
		lr.Body().SetStr(string(ev.Record))
	}
}

func severityFromLevel(level string) plog.SeverityNumber {
	switch strings.ToUpper(level) {
	case "TRACE":
		return plog.SeverityNumberTrace
	case "DEBUG":
		return plog.SeverityNumberDebug
	case "INFO":
		return plog.SeverityNumberInfo
	case "WARN", "WARNING":
		return plog.SeverityNumberWarn
	case "ERROR":
		return plog.SeverityNumberError
	case "FATAL", "CRITICAL":
		return plog.SeverityNumberFatal
	}
	return plog.SeverityNumberUnspecified
}

func appendReportMetrics(metrics pmetric.MetricSlice, ts time.Time, rec reportRecord) {
	appendGauge(metrics, durationGauge, ts, rec.RequestID, rec.Metrics.DurationMs)
	appendGauge(metrics, billedDurationGauge, ts, rec.RequestID, rec.Metrics.BilledDurationMs)
	appendGauge(metrics, memorySizeGauge, ts, rec.RequestID, rec.Metrics.MemorySizeMB)
	appendGauge(metrics, maxMemoryUsedGauge, ts, rec.RequestID, rec.Metrics.MaxMemoryUsedMB)
	if rec.Metrics.InitDurationMs != nil {
		appendGauge(metrics, initDurationGauge, ts, rec.RequestID, *rec.Metrics.InitDurationMs)
	}
}

func appendGauge(metrics pmetric.MetricSlice, spec gaugeSpec, ts time.Time, requestID string, value float64) {
	m := metrics.AppendEmpty()
	m.SetName(spec.name)
	m.SetUnit(spec.unit)
	m.SetDescription(spec.desc)
	dp := m.SetEmptyGauge().DataPoints().AppendEmpty()
	dp.SetTimestamp(pcommon.NewTimestampFromTime(ts))
	dp.SetDoubleValue(value)
	if requestID != "" {
		dp.Attributes().PutStr(string(semconv.FaaSInvocationIDKey), requestID)
	}
}

func appendRuntimeSpans(spans ptrace.SpanSlice, rec runtimeDoneRecord) {
	if len(rec.Spans) == 0 {
		return
	}
	traceID, parentID := traceContext(rec.Tracing)
	for _, s := range rec.Spans {
		span := spans.AppendEmpty()
		span.SetName(s.Name)
		span.SetKind(ptrace.SpanKindInternal)
		span.SetTraceID(traceID)
		span.SetSpanID(newSpanID())
		span.SetParentSpanID(parentID)
		span.SetStartTimestamp(pcommon.NewTimestampFromTime(s.Start))
		end := s.Start.Add(time.Duration(s.DurationMs * float64(time.Millisecond)))
		span.SetEndTimestamp(pcommon.NewTimestampFromTime(end))

		attrs := span.Attributes()
		attrs.PutStr(string(semconv.FaaSInvocationIDKey), rec.RequestID)
		attrs.PutStr(statusAttr, rec.Status)
		if rec.ErrorType != "" {
			attrs.PutStr(errorTypeAttr, rec.ErrorType)
		}
		if rec.Status != "success" {
			span.Status().SetCode(ptrace.StatusCodeError)
			span.Status().SetMessage(rec.Status)
		}
	}
}

// traceContext extracts the trace and parent span from an X-Ray header of
// the form "Root=1-5759e988-bd862e3fe1be46a994272793;Parent=53995c3f42cd8ad8;Sampled=1".
// A random trace id is used when the header has none.
func traceContext(tracing *apiTracing) (pcommon.TraceID, pcommon.SpanID) {
	var (
		traceID  pcommon.TraceID
		parentID pcommon.SpanID
		haveRoot bool
	)
	if tracing != nil {
		for _, part := range strings.Split(tracing.Value, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
			if !ok {
				continue
			}
			switch k {
			case "Root":
				traceID, haveRoot = parseXRayTraceID(v)
			case "Parent":
				parentID, _ = parseSpanID(v)
			}
		}
		if id, ok := parseSpanID(tracing.SpanID); ok {
			parentID = id
		}
	}
	if !haveRoot {
		traceID = pcommon.TraceID(uuid.New())
	}
	return traceID, parentID
}

// parseXRayTraceID converts "1-<8 hex epoch>-<24 hex>" into a trace id.
func parseXRayTraceID(v string) (pcommon.TraceID, bool) {
	parts := strings.Split(v, "-")
	if len(parts) != 3 || parts[0] != "1" || len(parts[1]) != 8 || len(parts[2]) != 24 {
		return pcommon.TraceID{}, false
	}
	var id pcommon.TraceID
	if _, err := hex.Decode(id[:], []byte(parts[1]+parts[2])); err != nil {
		return pcommon.TraceID{}, false
	}
	return id, true
}

func parseSpanID(v string) (pcommon.SpanID, bool) {
	var id pcommon.SpanID
	if len(v) != hex.EncodedLen(len(id)) {
		return id, false
	}
	if _, err := hex.Decode(id[:], []byte(v)); err != nil {
		return pcommon.SpanID{}, false
	}
	return id, true
}

func newSpanID() pcommon.SpanID {
	u := uuid.New()
	var id pcommon.SpanID
	copy(id[:], u[:8])
	return id
}

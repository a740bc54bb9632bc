// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry defines the Envelope, the unit of data that flows from
// receivers through pipelines into exporters.
package telemetry // import "github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"

import (
	"encoding/json"
	"errors"

	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/collector/pdata/pmetric"
	"go.opentelemetry.io/collector/pdata/ptrace"
)

// Kind is the signal carried by an Envelope.
type Kind int

const (
	// KindUnknown is the Kind of the zero Envelope.
	KindUnknown Kind = iota
	KindLogs
	KindMetrics
	KindTraces
)

// String returns the lowercase signal name.
func (k Kind) String() string {
	switch k {
	case KindLogs:
		return "logs"
	case KindMetrics:
		return "metrics"
	case KindTraces:
		return "traces"
	}
	return "unknown"
}

var errUnknownKind = errors.New("envelope carries no telemetry")

var (
	logsMarshaler    = &plog.JSONMarshaler{}
	metricsMarshaler = &pmetric.JSONMarshaler{}
	tracesMarshaler  = &ptrace.JSONMarshaler{}
)

// Envelope is a tagged union over a batch of logs, metrics or spans.
//
// The payload is marked read-only when the Envelope is created, so once an
// Envelope is handed to a channel nothing downstream can mutate it in place.
// Stages that need to transform the payload must copy it first.
type Envelope struct {
	kind    Kind
	logs    plog.Logs
	metrics pmetric.Metrics
	traces  ptrace.Traces
}

// NewLogs wraps ld into an Envelope.
func NewLogs(ld plog.Logs) Envelope {
	if !ld.IsReadOnly() {
		ld.MarkReadOnly()
	}
	return Envelope{kind: KindLogs, logs: ld}
}

// NewMetrics wraps md into an Envelope.
func NewMetrics(md pmetric.Metrics) Envelope {
	if !md.IsReadOnly() {
		md.MarkReadOnly()
	}
	return Envelope{kind: KindMetrics, metrics: md}
}

// NewTraces wraps td into an Envelope.
func NewTraces(td ptrace.Traces) Envelope {
	if !td.IsReadOnly() {
		td.MarkReadOnly()
	}
	return Envelope{kind: KindTraces, traces: td}
}

// Kind returns the signal carried by the Envelope.
func (e Envelope) Kind() Kind {
	return e.kind
}

// Logs returns the logs payload and whether the Envelope carries logs.
func (e Envelope) Logs() (plog.Logs, bool) {
	return e.logs, e.kind == KindLogs
}

// Metrics returns the metrics payload and whether the Envelope carries metrics.
func (e Envelope) Metrics() (pmetric.Metrics, bool) {
	return e.metrics, e.kind == KindMetrics
}

// Traces returns the traces payload and whether the Envelope carries spans.
func (e Envelope) Traces() (ptrace.Traces, bool) {
	return e.traces, e.kind == KindTraces
}

// ItemCount returns the number of log records, metric data points or spans.
func (e Envelope) ItemCount() int {
	switch e.kind {
	case KindLogs:
		return e.logs.LogRecordCount()
	case KindMetrics:
		return e.metrics.DataPointCount()
	case KindTraces:
		return e.traces.SpanCount()
	}
	return 0
}

type envelopeJSON struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON encodes the Envelope as {"kind": ..., "data": <OTLP/JSON>}.
func (e Envelope) MarshalJSON() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch e.kind {
	case KindLogs:
		data, err = logsMarshaler.MarshalLogs(e.logs)
	case KindMetrics:
		data, err = metricsMarshaler.MarshalMetrics(e.metrics)
	case KindTraces:
		data, err = tracesMarshaler.MarshalTraces(e.traces)
	default:
		return nil, errUnknownKind
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelopeJSON{Kind: e.kind.String(), Data: data})
}

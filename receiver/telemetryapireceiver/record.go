// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package telemetryapireceiver // import "github.com/open-telemetry/opentelemetry-lambda/extension/receiver/telemetryapireceiver"

import (
	"encoding/json"
	"time"
)

// Telemetry API event types and record fields.
const (
	typePlatformRuntimeDone = "platform.runtimeDone"
	typePlatformReport      = "platform.report"
	platformPrefix          = "platform."

	requestIDKey = "requestId"
	levelKey     = "level"
	messageKey   = "message"
)

// apiEvent is one element of a pushed batch.
type apiEvent struct {
	Time   time.Time       `json:"time"`
	Type   string          `json:"type"`
	Record json.RawMessage `json:"record"`
}

type apiTracing struct {
	SpanID string `json:"spanId,omitempty"`
	Type   string `json:"type"`
	Value  string `json:"value"`
}

type apiSpan struct {
	Name       string    `json:"name"`
	Start      time.Time `json:"start"`
	DurationMs float64   `json:"durationMs"`
}

// runtimeDoneRecord is the record of platform.runtimeDone.
type runtimeDoneRecord struct {
	RequestID string      `json:"requestId"`
	Status    string      `json:"status"`
	ErrorType string      `json:"errorType,omitempty"`
	Spans     []apiSpan   `json:"spans,omitempty"`
	Tracing   *apiTracing `json:"tracing,omitempty"`
}

// reportRecord is the record of platform.report.
type reportRecord struct {
	RequestID string      `json:"requestId"`
	Status    string      `json:"status"`
	Metrics   reportStats `json:"metrics"`
	Tracing   *apiTracing `json:"tracing,omitempty"`
}

type reportStats struct {
	DurationMs       float64  `json:"durationMs"`
	BilledDurationMs float64  `json:"billedDurationMs"`
	MemorySizeMB     float64  `json:"memorySizeMB"`
	MaxMemoryUsedMB  float64  `json:"maxMemoryUsedMB"`
	InitDurationMs   *float64 `json:"initDurationMs,omitempty"`
}

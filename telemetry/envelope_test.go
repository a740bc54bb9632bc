// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/testdata"
)

func TestEnvelopeKinds(t *testing.T) {
	tests := []struct {
		name  string
		env   Envelope
		kind  Kind
		items int
	}{
		{name: "logs", env: NewLogs(testdata.GenerateLogs(3)), kind: KindLogs, items: 3},
		{name: "metrics", env: NewMetrics(testdata.GenerateMetrics(2)), kind: KindMetrics, items: 2},
		{name: "traces", env: NewTraces(testdata.GenerateTraces(4)), kind: KindTraces, items: 4},
		{name: "zero", env: Envelope{}, kind: KindUnknown, items: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.env.Kind())
			assert.Equal(t, tt.items, tt.env.ItemCount())

			_, isLogs := tt.env.Logs()
			_, isMetrics := tt.env.Metrics()
			_, isTraces := tt.env.Traces()
			assert.Equal(t, tt.kind == KindLogs, isLogs)
			assert.Equal(t, tt.kind == KindMetrics, isMetrics)
			assert.Equal(t, tt.kind == KindTraces, isTraces)
		})
	}
}

func TestEnvelopeIsReadOnly(t *testing.T) {
	ld := testdata.GenerateLogs(1)
	env := NewLogs(ld)

	got, ok := env.Logs()
	require.True(t, ok)
	assert.True(t, got.IsReadOnly())
	assert.Panics(t, func() {
		got.ResourceLogs().AppendEmpty()
	})
}

func TestEnvelopeMarshalJSON(t *testing.T) {
	b, err := json.Marshal(NewLogs(testdata.GenerateLogs(1)))
	require.NoError(t, err)

	var decoded struct {
		Kind string         `json:"kind"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "logs", decoded.Kind)
	assert.Contains(t, decoded.Data, "resourceLogs")

	b, err = NewTraces(testdata.GenerateTraces(1)).MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(b), `"kind":"traces"`)
	assert.Contains(t, string(b), "resourceSpans")
}

func TestEnvelopeMarshalJSONUnknown(t *testing.T) {
	_, err := Envelope{}.MarshalJSON()
	assert.ErrorIs(t, err, errUnknownKind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "logs", KindLogs.String())
	assert.Equal(t, "metrics", KindMetrics.String())
	assert.Equal(t, "traces", KindTraces.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

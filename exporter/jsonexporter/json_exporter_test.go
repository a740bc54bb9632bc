// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package jsonexporter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component/componenttest"
	"github.com/open-telemetry/opentelemetry-lambda/extension/exporter"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/testdata"
	"github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"
)

type line struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func readLines(t *testing.T, buf *bytes.Buffer) []line {
	t.Helper()
	var out []line
	sc := bufio.NewScanner(buf)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var l line
		require.NoError(t, json.Unmarshal(sc.Bytes(), &l))
		out = append(out, l)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestExportWritesOneLinePerEnvelope(t *testing.T) {
	var buf bytes.Buffer
	e := New(componenttest.NewNopTelemetrySettings(), &buf)

	require.NoError(t, e.Export(context.Background(), []telemetry.Envelope{
		telemetry.NewLogs(testdata.GenerateLogs(2)),
		telemetry.NewMetrics(testdata.GenerateMetrics(1)),
		telemetry.NewTraces(testdata.GenerateTraces(1)),
	}))

	lines := readLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "logs", lines[0].Kind)
	assert.Equal(t, "metrics", lines[1].Kind)
	assert.Equal(t, "traces", lines[2].Kind)

	ld, err := (&plog.JSONUnmarshaler{}).UnmarshalLogs(lines[0].Data)
	require.NoError(t, err)
	assert.Equal(t, 2, ld.LogRecordCount())
}

func TestSerializationFailureSkipsRecord(t *testing.T) {
	var buf bytes.Buffer
	core, logs := observer.New(zapcore.WarnLevel)
	set := componenttest.NewNopTelemetrySettings()
	set.Logger = zap.New(core)
	e := New(set, &buf)

	// The zero Envelope carries no payload and cannot be serialized.
	err := e.Export(context.Background(), []telemetry.Envelope{
		{},
		telemetry.NewLogs(testdata.GenerateLogs(1)),
	})
	require.NoError(t, err)
	assert.Len(t, readLines(t, &buf), 1)
	assert.Equal(t, 1, logs.FilterMessage("Dropping envelope that cannot be serialized").Len())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteFailureFailsBatch(t *testing.T) {
	e := New(componenttest.NewNopTelemetrySettings(), failingWriter{})
	batch := []telemetry.Envelope{
		telemetry.NewLogs(testdata.GenerateLogs(1)),
		telemetry.NewLogs(testdata.GenerateLogs(1)),
	}
	err := e.Export(context.Background(), batch)
	require.Error(t, err)
	assert.Equal(t, []int{0, 1}, exporter.FailedIndices(err, len(batch)))
}

type closeRecorder struct {
	bytes.Buffer
	closed int
}

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

func TestShutdownIsIdempotent(t *testing.T) {
	w := &closeRecorder{}
	e := New(componenttest.NewNopTelemetrySettings(), w, WithCloser(w))

	require.NoError(t, e.Shutdown(context.Background()))
	require.NoError(t, e.Shutdown(context.Background()))
	assert.Equal(t, 1, w.closed)
	assert.NoError(t, e.Flush(context.Background()))
	assert.ErrorIs(t, e.Export(context.Background(), []telemetry.Envelope{telemetry.NewLogs(testdata.GenerateLogs(1))}), exporter.ErrShutdown)
}

func TestShutdownLeavesWriterOpenByDefault(t *testing.T) {
	w := &closeRecorder{}
	e := New(componenttest.NewNopTelemetrySettings(), w)

	require.NoError(t, e.Export(context.Background(), []telemetry.Envelope{telemetry.NewLogs(testdata.GenerateLogs(1))}))
	require.NoError(t, e.Shutdown(context.Background()))
	assert.Equal(t, 0, w.closed)
	assert.Len(t, readLines(t, &w.Buffer), 1)
}

// limitWriter accepts limit bytes and fails every write after that.
type limitWriter struct {
	bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	room := w.limit - w.Len()
	if room >= len(p) {
		return w.Buffer.Write(p)
	}
	n, _ := w.Buffer.Write(p[:room])
	return n, errors.New("device full")
}

func TestFlushFailureReportsOnlyLostLines(t *testing.T) {
	// Every line is "line\n", 5 bytes; the writer takes two of them.
	w := &limitWriter{limit: 10}
	e := New(componenttest.NewNopTelemetrySettings(), w)
	e.marshal = func(env telemetry.Envelope) ([]byte, error) {
		if env.ItemCount() == 0 {
			return nil, errors.New("empty envelope")
		}
		return []byte("line"), nil
	}

	batch := []telemetry.Envelope{
		telemetry.NewLogs(testdata.GenerateLogs(1)),
		{},
		telemetry.NewLogs(testdata.GenerateLogs(1)),
		telemetry.NewLogs(testdata.GenerateLogs(1)),
	}
	err := e.Export(context.Background(), batch)
	require.Error(t, err)
	assert.Equal(t, []int{3}, exporter.FailedIndices(err, len(batch)))
	assert.Equal(t, "line\nline\n", w.String())
}

func TestConcurrentExportKeepsLinesIntact(t *testing.T) {
	var buf bytes.Buffer
	e := New(componenttest.NewNopTelemetrySettings(), &buf)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				assert.NoError(t, e.Export(context.Background(), []telemetry.Envelope{telemetry.NewLogs(testdata.GenerateLogs(3))}))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, e.Shutdown(context.Background()))

	lines := readLines(t, &buf)
	assert.Len(t, lines, 80)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(string(l.Data), "{"))
	}
}

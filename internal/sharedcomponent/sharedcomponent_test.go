// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package sharedcomponent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-telemetry/opentelemetry-lambda/extension/exporter/exportertest"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/testdata"
	"github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"
)

func TestSharedExporterShutsDownAfterLastOwner(t *testing.T) {
	rec := exportertest.NewRecordingExporter()
	shared := NewExporter(rec)
	assert.Same(t, rec, shared.Unwrap())

	first := shared.Acquire()
	second := shared.Acquire()

	env := telemetry.NewLogs(testdata.GenerateLogs(1))
	require.NoError(t, first.Export(context.Background(), []telemetry.Envelope{env}))
	require.NoError(t, second.Export(context.Background(), []telemetry.Envelope{env}))
	assert.Len(t, rec.Envelopes(), 2)

	require.NoError(t, first.Shutdown(context.Background()))
	require.NoError(t, first.Shutdown(context.Background()))
	assert.Zero(t, rec.Shutdowns(), "a second owner is still active")

	require.NoError(t, second.Shutdown(context.Background()))
	assert.Equal(t, 1, rec.Shutdowns())

	require.NoError(t, second.Shutdown(context.Background()))
	assert.Equal(t, 1, rec.Shutdowns())
}

func TestSharedExporterSingleOwner(t *testing.T) {
	rec := exportertest.NewRecordingExporter()
	only := NewExporter(rec).Acquire()
	require.NoError(t, only.Flush(context.Background()))
	require.NoError(t, only.Shutdown(context.Background()))
	assert.Equal(t, 1, rec.Shutdowns())
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component"
	"github.com/open-telemetry/opentelemetry-lambda/extension/component/componenterror"
	"github.com/open-telemetry/opentelemetry-lambda/extension/component/componenttest"
	"github.com/open-telemetry/opentelemetry-lambda/extension/event"
	"github.com/open-telemetry/opentelemetry-lambda/extension/exporter"
	"github.com/open-telemetry/opentelemetry-lambda/extension/exporter/exportertest"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/obsreport"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/obsreport/obsreporttest"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/testdata"
	"github.com/open-telemetry/opentelemetry-lambda/extension/pipeline"
	"github.com/open-telemetry/opentelemetry-lambda/extension/receiver/receivertest"
	"github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"
)

const waitFor = 5 * time.Second

func startAsync(t *testing.T, c *Controller, pipelines ...*pipeline.Pipeline) func() error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Start(pipelines) }()
	return func() error {
		t.Helper()
		select {
		case err := <-done:
			return err
		case <-time.After(waitFor):
			t.Fatal("controller did not return")
			return nil
		}
	}
}

func newController(t *testing.T, set component.TelemetrySettings) (*Controller, chan event.ApplicationEvent) {
	t.Helper()
	events := make(chan event.ApplicationEvent, 4)
	c, err := NewController(Settings{Telemetry: set}, events)
	require.NoError(t, err)
	return c, events
}

func TestControllerShutdownWithoutPipelines(t *testing.T) {
	tt := obsreporttest.SetupTelemetry(t)
	c, events := newController(t, tt.Settings(nil))

	events <- event.Shutdown{Reason: event.Failure, Deadline: time.Now().Add(2 * time.Second)}
	require.NoError(t, startAsync(t, c)())

	assert.True(t, c.Token().IsCancelled())
	assert.EqualValues(t, 1, tt.Counter(t, obsreport.Shutdowns, attribute.String("reason", "failure")))
}

func TestControllerIgnoresUnhandledEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	c, events := newController(t, component.TelemetrySettings{Logger: zap.New(core)})

	events <- event.Sentinel{}
	events <- nil
	events <- event.Shutdown{Reason: event.Spindown}
	require.NoError(t, startAsync(t, c)())

	assert.Equal(t, 2, logs.FilterMessage("Ignoring application event").Len())
	assert.Equal(t, 1, logs.FilterMessage("Received shutdown event").Len())
}

func TestControllerClosedEventChannel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c, events := newController(t, component.TelemetrySettings{Logger: zap.New(core)})

	close(events)
	require.NoError(t, startAsync(t, c)())
	assert.True(t, c.Token().IsCancelled())
	assert.Equal(t, 1, logs.FilterMessage("Application event channel closed without a shutdown event").Len())
}

func TestControllerFatalError(t *testing.T) {
	errBoom := errors.New("boom")
	c, _ := newController(t, componenttest.NewNopTelemetrySettings())

	c.ReportFatalError(errBoom)
	err := startAsync(t, c)()
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, c.Token().IsCancelled())
}

func TestControllerReportFatalErrorNeverBlocks(t *testing.T) {
	c, _ := newController(t, componenttest.NewNopTelemetrySettings())
	for i := 0; i < 2*asyncErrorBuffer; i++ {
		c.ReportFatalError(errors.New("boom"))
	}
}

func TestControllerStartTwice(t *testing.T) {
	c, events := newController(t, componenttest.NewNopTelemetrySettings())
	close(events)
	require.NoError(t, c.Start(nil))
	assert.ErrorIs(t, c.Start(nil), componenterror.ErrAlreadyStarted)
}

func TestControllerResource(t *testing.T) {
	c, _ := newController(t, componenttest.NewNopTelemetrySettings())
	_, err := c.Resource()
	assert.ErrorIs(t, err, componenterror.ErrResourceNotSet)

	require.NoError(t, c.SetResource(newResource("fn")))
	assert.ErrorIs(t, c.SetResource(newResource("fn")), componenterror.ErrResourceAlreadySet)
	res, err := c.Resource()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attributes().Len())
}

func TestNewControllerRejectsNilEvents(t *testing.T) {
	_, err := NewController(Settings{}, nil)
	assert.ErrorIs(t, err, componenterror.ErrNilNextConsumer)
}

func TestControllerDrainsPipelinesOnShutdown(t *testing.T) {
	c, events := newController(t, componenttest.NewNopTelemetrySettings())
	set := pipeline.Settings{Telemetry: componenttest.NewNopTelemetrySettings()}

	fallbackExp := exportertest.NewRecordingExporter()
	fallback, fallbackInput, err := pipeline.Build(pipeline.WithCancellation(
		pipeline.WithExporter(pipeline.WithProcessors(pipeline.NewBuilder("fallback", set)), fallbackExp), c.Token()))
	require.NoError(t, err)

	primaryExp := exportertest.NewFailingExporter()
	recv := receivertest.NewBlockingReceiver(
		telemetry.NewLogs(testdata.GenerateLogs(1)),
		telemetry.NewMetrics(testdata.GenerateMetrics(1)),
		telemetry.NewTraces(testdata.GenerateTraces(1)),
	)
	primary, _, err := pipeline.Build(pipeline.WithReceiver(pipeline.WithFailover(pipeline.WithCancellation(
		pipeline.WithExporter(pipeline.WithProcessors(pipeline.NewBuilder("primary", set)), primaryExp), c.Token()), fallbackInput), recv))
	require.NoError(t, err)

	wait := startAsync(t, c, primary, fallback)
	require.Eventually(t, func() bool { return len(fallbackExp.Envelopes()) == 3 }, waitFor, 5*time.Millisecond)

	events <- event.Shutdown{Reason: event.Timeout}
	require.NoError(t, wait())

	assert.Equal(t, 1, primaryExp.Shutdowns())
	assert.Equal(t, 1, fallbackExp.Shutdowns())
	assert.Equal(t, 1, recv.Stops())
}

func TestControllerStopsOnReceiverFailure(t *testing.T) {
	errBoom := errors.New("registration refused")
	c, _ := newController(t, componenttest.NewNopTelemetrySettings())
	set := pipeline.Settings{Telemetry: componenttest.NewNopTelemetrySettings()}

	p, _, err := pipeline.Build(pipeline.WithReceiver(pipeline.WithCancellation(
		pipeline.WithExporter(pipeline.WithProcessors(pipeline.NewBuilder("broken", set)), exportertest.NewRecordingExporter()), c.Token()),
		receivertest.NewFailingReceiver(errBoom)))
	require.NoError(t, err)

	err = startAsync(t, c, p)()
	assert.ErrorIs(t, err, errBoom)
}

func TestControllerCollectsPipelinePanics(t *testing.T) {
	c, _ := newController(t, componenttest.NewNopTelemetrySettings())
	set := pipeline.Settings{Telemetry: componenttest.NewNopTelemetrySettings()}

	p, input, err := pipeline.Build(pipeline.WithCancellation(
		pipeline.WithExporter(pipeline.WithProcessors(pipeline.NewBuilder("buggy", set), panicProcessor{}), exportertest.NewRecordingExporter()), c.Token()))
	require.NoError(t, err)
	input <- telemetry.NewLogs(testdata.GenerateLogs(1))

	err = startAsync(t, c, p)()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `pipeline "buggy" panicked`)
}

type panicProcessor struct{}

func (panicProcessor) Process(context.Context, telemetry.Envelope) (telemetry.Envelope, error) {
	panic("processor bug")
}

// gatedFailingExporter fails every envelope, but only once its gate opens.
type gatedFailingExporter struct {
	gate chan struct{}
}

func (e *gatedFailingExporter) Export(ctx context.Context, batch []telemetry.Envelope) error {
	select {
	case <-e.gate:
	case <-ctx.Done():
	}
	failed := make([]int, len(batch))
	for i := range failed {
		failed[i] = i
	}
	return exporter.NewExportError(failed, exportertest.ErrExportFailed)
}

func (e *gatedFailingExporter) Flush(context.Context) error    { return nil }
func (e *gatedFailingExporter) Shutdown(context.Context) error { return nil }

func TestControllerFailoverTargetOutlivesItsSources(t *testing.T) {
	tt := obsreporttest.SetupTelemetry(t)
	c, events := newController(t, tt.Settings(nil))
	set := pipeline.Settings{Telemetry: tt.Settings(nil), MaxBatchSize: 1}

	fallbackExp := exportertest.NewRecordingExporter()
	fallback, fallbackInput, err := pipeline.Build(pipeline.WithCancellation(
		pipeline.WithExporter(pipeline.WithProcessors(pipeline.NewBuilder("fallback", set)), fallbackExp), c.FailoverToken()))
	require.NoError(t, err)

	primaryExp := &gatedFailingExporter{gate: make(chan struct{})}
	primary, primaryInput, err := pipeline.Build(pipeline.WithFailover(pipeline.WithCancellation(
		pipeline.WithExporter(pipeline.WithProcessors(pipeline.NewBuilder("primary", set)), primaryExp), c.Token()), fallbackInput))
	require.NoError(t, err)

	const n = 5
	for i := 0; i < n; i++ {
		primaryInput <- telemetry.NewLogs(testdata.GenerateLogs(1))
	}
	wait := startAsync(t, c, primary, fallback)

	// The primary fails its exports only while it is draining.
	events <- event.Shutdown{Reason: event.Spindown}
	require.Eventually(t, c.Token().IsCancelled, waitFor, time.Millisecond)
	assert.False(t, c.FailoverToken().IsCancelled())
	close(primaryExp.gate)
	require.NoError(t, wait())

	assert.True(t, c.FailoverToken().IsCancelled())
	assert.Len(t, fallbackExp.Envelopes(), n)
	assert.EqualValues(t, n, tt.Counter(t, obsreport.FailedOverEnvelopes, attribute.String(obsreport.PipelineKey, "primary")))
	assert.EqualValues(t, 0, tt.Counter(t, obsreport.DroppedEnvelopes, attribute.String(obsreport.PipelineKey, "fallback")))
}

func TestControllerShutdownHonorsHostDeadline(t *testing.T) {
	c, events := newController(t, componenttest.NewNopTelemetrySettings())
	set := pipeline.Settings{
		Telemetry:       componenttest.NewNopTelemetrySettings(),
		ExportTimeout:   10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}

	exp := exportertest.NewBlockingExporter(true)
	defer exp.Release()
	p, input, err := pipeline.Build(pipeline.WithCancellation(
		pipeline.WithExporter(pipeline.WithProcessors(pipeline.NewBuilder("slow", set)), exp), c.Token()))
	require.NoError(t, err)
	input <- telemetry.NewLogs(testdata.GenerateLogs(1))

	wait := startAsync(t, c, p)
	<-exp.Entered()

	deadline := time.Now().Add(deadlineReserve + 100*time.Millisecond)
	start := time.Now()
	events <- event.Shutdown{Reason: event.Timeout, Deadline: deadline}
	require.NoError(t, wait())
	assert.Less(t, time.Since(start), 2*time.Second)

	got, ok := c.Token().Deadline()
	require.True(t, ok)
	assert.True(t, deadline.Add(-deadlineReserve).Equal(got))
	got, ok = c.FailoverToken().Deadline()
	require.True(t, ok)
	assert.True(t, deadline.Add(-deadlineReserve).Equal(got))
}

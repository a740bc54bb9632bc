// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package exportertest provides exporters for tests.
package exportertest // import "github.com/open-telemetry/opentelemetry-lambda/extension/exporter/exportertest"

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"

	"github.com/open-telemetry/opentelemetry-lambda/extension/exporter"
	"github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"
)

// ErrExportFailed is returned by FailingExporter.
var ErrExportFailed = errors.New("export failed")

// RecordingExporter keeps every envelope it is given, in order.
type RecordingExporter struct {
	mu        sync.Mutex
	envelopes []telemetry.Envelope
	flushes   *atomic.Int32
	shutdowns *atomic.Int32
}

var _ exporter.Exporter = (*RecordingExporter)(nil)

// NewRecordingExporter returns an empty RecordingExporter.
func NewRecordingExporter() *RecordingExporter {
	return &RecordingExporter{flushes: atomic.NewInt32(0), shutdowns: atomic.NewInt32(0)}
}

func (e *RecordingExporter) Export(_ context.Context, batch []telemetry.Envelope) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.envelopes = append(e.envelopes, batch...)
	return nil
}

func (e *RecordingExporter) Flush(context.Context) error {
	e.flushes.Inc()
	return nil
}

func (e *RecordingExporter) Shutdown(context.Context) error {
	e.shutdowns.Inc()
	return nil
}

// Envelopes returns everything exported so far.
func (e *RecordingExporter) Envelopes() []telemetry.Envelope {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]telemetry.Envelope(nil), e.envelopes...)
}

// Shutdowns returns how many times Shutdown was called.
func (e *RecordingExporter) Shutdowns() int {
	return int(e.shutdowns.Load())
}

// FailingExporter fails every envelope of every batch.
type FailingExporter struct {
	calls     *atomic.Int32
	shutdowns *atomic.Int32
}

var _ exporter.Exporter = (*FailingExporter)(nil)

// NewFailingExporter returns a FailingExporter.
func NewFailingExporter() *FailingExporter {
	return &FailingExporter{calls: atomic.NewInt32(0), shutdowns: atomic.NewInt32(0)}
}

func (e *FailingExporter) Export(_ context.Context, batch []telemetry.Envelope) error {
	e.calls.Inc()
	failed := make([]int, len(batch))
	for i := range failed {
		failed[i] = i
	}
	return exporter.NewExportError(failed, ErrExportFailed)
}

func (e *FailingExporter) Flush(context.Context) error {
	return nil
}

func (e *FailingExporter) Shutdown(context.Context) error {
	e.shutdowns.Inc()
	return nil
}

// Calls returns how many times Export was called.
func (e *FailingExporter) Calls() int {
	return int(e.calls.Load())
}

// Shutdowns returns how many times Shutdown was called.
func (e *FailingExporter) Shutdowns() int {
	return int(e.shutdowns.Load())
}

// BlockingExporter blocks in Export, and optionally in Shutdown, until its
// context is done or Release is called.
type BlockingExporter struct {
	blockShutdown bool
	release       chan struct{}
	once          sync.Once
	entered       chan struct{}
	shutdowns     *atomic.Int32
}

var _ exporter.Exporter = (*BlockingExporter)(nil)

// NewBlockingExporter returns a BlockingExporter. When blockShutdown is
// true Shutdown blocks as well.
func NewBlockingExporter(blockShutdown bool) *BlockingExporter {
	return &BlockingExporter{
		blockShutdown: blockShutdown,
		release:       make(chan struct{}),
		entered:       make(chan struct{}, 1),
		shutdowns:     atomic.NewInt32(0),
	}
}

func (e *BlockingExporter) Export(ctx context.Context, _ []telemetry.Envelope) error {
	select {
	case e.entered <- struct{}{}:
	default:
	}
	return e.wait(ctx)
}

func (e *BlockingExporter) Flush(context.Context) error {
	return nil
}

func (e *BlockingExporter) Shutdown(ctx context.Context) error {
	e.shutdowns.Inc()
	if !e.blockShutdown {
		return nil
	}
	return e.wait(ctx)
}

// Entered returns a channel that receives when Export is entered.
func (e *BlockingExporter) Entered() <-chan struct{} {
	return e.entered
}

// Release unblocks every current and future call.
func (e *BlockingExporter) Release() {
	e.once.Do(func() { close(e.release) })
}

// Shutdowns returns how many times Shutdown was called.
func (e *BlockingExporter) Shutdowns() int {
	return int(e.shutdowns.Load())
}

func (e *BlockingExporter) wait(ctx context.Context) error {
	select {
	case <-e.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package jsonexporter writes envelopes as JSON, one per line.
package jsonexporter // import "github.com/open-telemetry/opentelemetry-lambda/extension/exporter/jsonexporter"

import (
	"bufio"
	"context"
	"io"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component"
	"github.com/open-telemetry/opentelemetry-lambda/extension/exporter"
	"github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"
)

type marshalFunc func(telemetry.Envelope) ([]byte, error)

// Exporter writes each envelope as {"kind":...,"data":<OTLP/JSON>} followed
// by a newline.
type Exporter struct {
	logger  *zap.Logger
	marshal marshalFunc

	mu  sync.Mutex
	out *countingWriter
	w   *bufio.Writer
	// submitted counts the bytes handed to w.
	submitted int64
	closer    io.Closer
	stopped   bool
}

var _ exporter.Exporter = (*Exporter)(nil)

// Option configures the exporter.
type Option func(*Exporter)

// WithCloser hands c over to the exporter, which closes it on Shutdown.
// Without it the writer is never closed.
func WithCloser(c io.Closer) Option {
	return func(e *Exporter) {
		e.closer = c
	}
}

// New returns an exporter writing to w.
func New(set component.TelemetrySettings, w io.Writer, opts ...Option) *Exporter {
	out := &countingWriter{w: w}
	e := &Exporter{
		logger:  set.LoggerOrNop().Named("jsonexporter"),
		marshal: func(env telemetry.Envelope) ([]byte, error) { return env.MarshalJSON() },
		out:     out,
		w:       bufio.NewWriter(out),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// countingWriter counts the bytes the underlying writer accepted.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// bufferedLine is a line of the current batch that sits in the buffer
// until its last byte, at offset end, reaches the writer.
type bufferedLine struct {
	index int
	end   int64
}

// Export serializes and writes every envelope of batch. An envelope that
// cannot be serialized is logged and skipped; it does not fail the batch.
// Only envelopes whose line did not reach the writer are reported failed.
func (e *Exporter) Export(_ context.Context, batch []telemetry.Envelope) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return exporter.ErrShutdown
	}

	var (
		failed   []int
		buffered []bufferedLine
		errs     error
	)
	for i, env := range batch {
		buf, err := e.marshal(env)
		if err != nil {
			e.logger.Warn("Dropping envelope that cannot be serialized",
				zap.Stringer("kind", env.Kind()), zap.Error(err))
			continue
		}
		if err = e.writeLine(buf); err != nil {
			failed = append(failed, i)
			errs = multierr.Append(errs, err)
			continue
		}
		buffered = append(buffered, bufferedLine{index: i, end: e.submitted})
	}
	if err := e.w.Flush(); err != nil {
		errs = multierr.Append(errs, err)
		for _, l := range buffered {
			if l.end > e.out.n {
				failed = append(failed, l.index)
			}
		}
	}
	if len(failed) > 0 {
		sort.Ints(failed)
		return exporter.NewExportError(failed, errs)
	}
	if errs != nil {
		e.logger.Warn("Flush failed, no line of this batch was lost", zap.Error(errs))
	}
	return nil
}

func (e *Exporter) writeLine(buf []byte) error {
	n, err := e.w.Write(buf)
	e.submitted += int64(n)
	if err != nil {
		return err
	}
	if err = e.w.WriteByte('\n'); err != nil {
		return err
	}
	e.submitted++
	return nil
}

// Flush writes out buffered lines.
func (e *Exporter) Flush(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil
	}
	return e.w.Flush()
}

// Shutdown flushes the buffer and closes the writer handed over with
// WithCloser, if any.
func (e *Exporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil
	}
	e.stopped = true

	err := e.w.Flush()
	if e.closer != nil {
		err = multierr.Append(err, e.closer.Close())
	}
	return err
}


// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package exporter defines the sink stage of a pipeline.
package exporter // import "github.com/open-telemetry/opentelemetry-lambda/extension/exporter"

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"
)

// ErrShutdown is returned when exporting after Shutdown.
var ErrShutdown = errors.New("exporter is shut down")

// Exporter delivers batches of Envelopes to a backend. Implementations must
// be safe for concurrent use, so one instance can serve several pipelines.
type Exporter interface {
	// Export attempts delivery of batch. On partial failure it should
	// return an *ExportError naming the failed positions; any other error
	// means the whole batch failed.
	Export(ctx context.Context, batch []telemetry.Envelope) error

	// Flush pushes out anything buffered before returning.
	Flush(ctx context.Context) error

	// Shutdown flushes and releases resources. Calling it again is a no-op.
	Shutdown(ctx context.Context) error
}

// ExportError reports which positions of a batch were not delivered.
type ExportError struct {
	Failed []int
	Err    error
}

// NewExportError returns an error for the failed positions of a batch.
func NewExportError(failed []int, err error) error {
	return &ExportError{Failed: failed, Err: err}
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("%d envelope(s) failed to export: %v", len(e.Failed), e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// FailedIndices returns the positions of a batch of size n that err says
// were not delivered. A nil error means none; an error that is not an
// *ExportError means all of them.
func FailedIndices(err error, n int) []int {
	if err == nil {
		return nil
	}
	var ee *ExportError
	if errors.As(err, &ee) {
		out := make([]int, 0, len(ee.Failed))
		for _, i := range ee.Failed {
			if i >= 0 && i < n {
				out = append(out, i)
			}
		}
		return out
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

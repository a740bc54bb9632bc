// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package sharedcomponent lets several pipelines own one exporter. This is
// useful when the exporter relies on a shared resource such as os.Stdout.
package sharedcomponent // import "github.com/open-telemetry/opentelemetry-lambda/extension/internal/sharedcomponent"

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/open-telemetry/opentelemetry-lambda/extension/exporter"
	"github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"
)

// Exporter ensures that the wrapped exporter is shut down only once, after
// every owner is done with it.
type Exporter struct {
	exporter exporter.Exporter

	activeCount *atomic.Int32 // number of owners that have not shut down yet
	stopOnce    sync.Once
	stopErr     error
}

// NewExporter wraps e. Owners obtain their handle with Acquire.
func NewExporter(e exporter.Exporter) *Exporter {
	return &Exporter{exporter: e, activeCount: atomic.NewInt32(0)}
}

// Unwrap returns the original exporter.
func (s *Exporter) Unwrap() exporter.Exporter {
	return s.exporter
}

// Acquire returns a new owner handle. Shutdown on the handle only shuts the
// underlying exporter down when it is the last active handle; earlier
// handles just flush.
func (s *Exporter) Acquire() exporter.Exporter {
	s.activeCount.Inc()
	return &handle{shared: s}
}

type handle struct {
	shared   *Exporter
	stopOnce sync.Once
}

func (h *handle) Export(ctx context.Context, batch []telemetry.Envelope) error {
	return h.shared.exporter.Export(ctx, batch)
}

func (h *handle) Flush(ctx context.Context) error {
	return h.shared.exporter.Flush(ctx)
}

func (h *handle) Shutdown(ctx context.Context) error {
	var err error
	h.stopOnce.Do(func() {
		if h.shared.activeCount.Dec() > 0 {
			err = h.shared.exporter.Flush(ctx)
			return
		}
		err = h.shared.shutdown(ctx)
	})
	return err
}

func (s *Exporter) shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.stopErr = s.exporter.Shutdown(ctx)
	})
	return s.stopErr
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline // import "github.com/open-telemetry/opentelemetry-lambda/extension/pipeline"

import (
	"errors"
	"time"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component"
)

const (
	defaultQueueSize       = 1024
	defaultMaxBatchSize    = 64
	defaultExportTimeout   = time.Second
	defaultShutdownTimeout = 1500 * time.Millisecond
)

// Settings tunes a Pipeline. Zero values take the defaults.
type Settings struct {
	Telemetry component.TelemetrySettings

	// QueueSize is the capacity of the input channel.
	QueueSize int

	// MaxBatchSize caps how many queued envelopes go into one Export call.
	MaxBatchSize int

	// ExportTimeout bounds a single Export call.
	ExportTimeout time.Duration

	// ShutdownTimeout bounds everything after cancellation: stopping the
	// receiver, draining the input channel and shutting the exporter down.
	ShutdownTimeout time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.QueueSize == 0 {
		s.QueueSize = defaultQueueSize
	}
	if s.MaxBatchSize == 0 {
		s.MaxBatchSize = defaultMaxBatchSize
	}
	if s.ExportTimeout == 0 {
		s.ExportTimeout = defaultExportTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = defaultShutdownTimeout
	}
	return s
}

// Validate checks the settings after defaults are applied.
func (s Settings) Validate() error {
	switch {
	case s.QueueSize < 0:
		return errors.New("queue size must not be negative")
	case s.MaxBatchSize < 0:
		return errors.New("max batch size must not be negative")
	case s.ExportTimeout < 0:
		return errors.New("export timeout must not be negative")
	case s.ShutdownTimeout < 0:
		return errors.New("shutdown timeout must not be negative")
	}
	return nil
}

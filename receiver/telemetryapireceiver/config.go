// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package telemetryapireceiver // import "github.com/open-telemetry/opentelemetry-lambda/extension/receiver/telemetryapireceiver"

import (
	"errors"
	"time"
)

// Config defines configuration for the Telemetry API listener.
type Config struct {
	// Endpoint is the address the listener binds, for example ":4243".
	Endpoint string

	// EnqueueTimeout bounds how long a pushed batch may wait for room in the
	// pipeline before it is dropped.
	EnqueueTimeout time.Duration

	// MaxRequestBytes caps the size of a pushed batch.
	MaxRequestBytes int64
}

const defaultMaxRequestBytes = 4 << 20

// Validate checks the receiver configuration is valid.
func (cfg *Config) Validate() error {
	if cfg.Endpoint == "" {
		return errors.New("endpoint must not be empty")
	}
	if cfg.EnqueueTimeout <= 0 {
		return errors.New("enqueue timeout must be positive")
	}
	if cfg.MaxRequestBytes < 0 {
		return errors.New("max request bytes must not be negative")
	}
	return nil
}

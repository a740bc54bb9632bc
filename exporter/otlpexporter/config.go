// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package otlpexporter // import "github.com/open-telemetry/opentelemetry-lambda/extension/exporter/otlpexporter"

import (
	"errors"
	"time"
)

// Config defines configuration for the OTLP/gRPC exporter.
type Config struct {
	// Endpoint is the host:port of the OTLP/gRPC backend.
	Endpoint string

	// Insecure disables TLS.
	Insecure bool

	// Headers are sent as gRPC metadata with every call.
	Headers map[string]string

	// Timeout bounds a single export call.
	Timeout time.Duration

	Retry RetrySettings
}

// RetrySettings defines exponential backoff for retryable failures.
type RetrySettings struct {
	Enabled         bool
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsedTime bounds all attempts for one envelope.
	MaxElapsedTime time.Duration
}

// DefaultRetrySettings keeps total retry time well inside the host's
// shutdown deadline.
func DefaultRetrySettings() RetrySettings {
	return RetrySettings{
		Enabled:         true,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     200 * time.Millisecond,
		MaxElapsedTime:  time.Second,
	}
}

// Validate checks the exporter configuration is valid.
func (cfg *Config) Validate() error {
	if cfg.Endpoint == "" {
		return errors.New("endpoint must not be empty")
	}
	if cfg.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if cfg.Retry.Enabled && cfg.Retry.MaxElapsedTime <= 0 {
		return errors.New("retry max elapsed time must be positive")
	}
	return nil
}

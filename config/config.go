// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package config reads the extension configuration from the environment.
package config // import "github.com/open-telemetry/opentelemetry-lambda/extension/config"

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/open-telemetry/opentelemetry-lambda/extension/processor/filterprocessor"
)

// Prefix is prepended to every variable name, for example
// TELEMETRY_EXTENSION_OTLP_ENDPOINT.
const Prefix = "TELEMETRY_EXTENSION"

// Config is the process configuration. AWS_LAMBDA_RUNTIME_API is also read
// without the prefix since the host sets it.
type Config struct {
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	ExtensionName string `envconfig:"EXTENSION_NAME"`
	RuntimeAPI    string `envconfig:"AWS_LAMBDA_RUNTIME_API"`

	OTLPEnabled      bool              `envconfig:"OTLP_ENABLED" default:"true"`
	OTLPEndpoint     string            `envconfig:"OTLP_ENDPOINT" default:"localhost:4317"`
	OTLPInsecure     bool              `envconfig:"OTLP_INSECURE" default:"true"`
	OTLPHeaders      map[string]string `envconfig:"OTLP_HEADERS"`
	OTLPTimeout      time.Duration     `envconfig:"OTLP_TIMEOUT" default:"1s"`
	OTLPRetryEnabled bool              `envconfig:"OTLP_RETRY_ENABLED" default:"true"`

	ListenerHost   string        `envconfig:"LISTENER_HOST" default:"sandbox.localdomain"`
	ListenerPort   int           `envconfig:"LISTENER_PORT" default:"4243"`
	EnqueueTimeout time.Duration `envconfig:"ENQUEUE_TIMEOUT" default:"25ms"`

	QueueSize       int           `envconfig:"QUEUE_SIZE" default:"1024"`
	MaxBatchSize    int           `envconfig:"MAX_BATCH_SIZE" default:"64"`
	ExportTimeout   time.Duration `envconfig:"EXPORT_TIMEOUT" default:"1s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"1500ms"`

	MinSeverity string `envconfig:"MIN_SEVERITY"`
	LogExclude  string `envconfig:"LOG_EXCLUDE"`

	SelfMetricsEnabled  bool          `envconfig:"SELF_METRICS_ENABLED" default:"false"`
	SelfMetricsInterval time.Duration `envconfig:"SELF_METRICS_INTERVAL" default:"30s"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if cfg.ExtensionName == "" {
		cfg.ExtensionName = filepath.Base(os.Args[0])
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate reports every malformed value.
func (cfg *Config) Validate() error {
	var errs error
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		errs = multierr.Append(errs, err)
	}
	if cfg.ExtensionName == "" {
		errs = multierr.Append(errs, errors.New("extension name must not be empty"))
	}
	if cfg.RuntimeAPI == "" {
		errs = multierr.Append(errs, errors.New("AWS_LAMBDA_RUNTIME_API must be set"))
	}
	if cfg.OTLPEnabled {
		if cfg.OTLPEndpoint == "" {
			errs = multierr.Append(errs, errors.New("OTLP endpoint must not be empty"))
		}
		if cfg.OTLPTimeout <= 0 {
			errs = multierr.Append(errs, errors.New("OTLP timeout must be positive"))
		}
	}
	if cfg.ListenerHost == "" {
		errs = multierr.Append(errs, errors.New("listener host must not be empty"))
	}
	if cfg.ListenerPort <= 0 || cfg.ListenerPort > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("listener port %d out of range", cfg.ListenerPort))
	}
	if cfg.EnqueueTimeout <= 0 {
		errs = multierr.Append(errs, errors.New("enqueue timeout must be positive"))
	}
	if cfg.QueueSize <= 0 {
		errs = multierr.Append(errs, errors.New("queue size must be positive"))
	}
	if cfg.MaxBatchSize <= 0 {
		errs = multierr.Append(errs, errors.New("max batch size must be positive"))
	}
	if cfg.ExportTimeout <= 0 {
		errs = multierr.Append(errs, errors.New("export timeout must be positive"))
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = multierr.Append(errs, errors.New("shutdown timeout must be positive"))
	}
	if _, err := filterprocessor.ParseSeverity(cfg.MinSeverity); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := (filterprocessor.Config{Exclude: cfg.LogExclude}).Validate(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if cfg.SelfMetricsEnabled && cfg.SelfMetricsInterval <= 0 {
		errs = multierr.Append(errs, errors.New("self metrics interval must be positive"))
	}
	return errs
}

// Level returns the parsed log level, info if it does not parse.
func (cfg *Config) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Severity returns the parsed minimum log severity.
func (cfg *Config) Severity() plog.SeverityNumber {
	sev, _ := filterprocessor.ParseSeverity(cfg.MinSeverity)
	return sev
}

// ListenerEndpoint is the address the Telemetry API listener binds.
func (cfg *Config) ListenerEndpoint() string {
	return ":" + strconv.Itoa(cfg.ListenerPort)
}

// ListenerURI is the destination the host pushes telemetry to.
func (cfg *Config) ListenerURI() string {
	return "http://" + net.JoinHostPort(cfg.ListenerHost, strconv.Itoa(cfg.ListenerPort))
}

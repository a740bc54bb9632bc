// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package filterprocessor // import "github.com/open-telemetry/opentelemetry-lambda/extension/processor/filterprocessor"

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/collector/pdata/plog"
)

// Config defines configuration for the filter processor.
type Config struct {
	// MinSeverity drops log records with a lower, specified severity.
	// Records without a severity are always kept.
	MinSeverity plog.SeverityNumber

	// Exclude is an expression evaluated against every log record; records
	// it matches are dropped. The empty string disables it.
	Exclude string
}

// Validate checks that Exclude compiles.
func (cfg Config) Validate() error {
	if cfg.Exclude == "" {
		return nil
	}
	if _, err := newLogMatcher(cfg.Exclude); err != nil {
		return fmt.Errorf("invalid exclude expression: %w", err)
	}
	return nil
}

// ParseSeverity maps a level name such as "info" or "WARN" onto the lowest
// severity number of that level. The empty string disables filtering.
func ParseSeverity(level string) (plog.SeverityNumber, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return plog.SeverityNumberUnspecified, nil
	case "trace":
		return plog.SeverityNumberTrace, nil
	case "debug":
		return plog.SeverityNumberDebug, nil
	case "info":
		return plog.SeverityNumberInfo, nil
	case "warn", "warning":
		return plog.SeverityNumberWarn, nil
	case "error":
		return plog.SeverityNumberError, nil
	case "fatal":
		return plog.SeverityNumberFatal, nil
	}
	return plog.SeverityNumberUnspecified, fmt.Errorf("unknown severity %q", level)
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package filterprocessor drops log records below a minimum severity or
// matching an exclude expression.
package filterprocessor // import "github.com/open-telemetry/opentelemetry-lambda/extension/processor/filterprocessor"

import (
	"context"
	"fmt"

	"go.opentelemetry.io/collector/pdata/plog"
	"go.uber.org/zap"

	"github.com/open-telemetry/opentelemetry-lambda/extension/processor"
	"github.com/open-telemetry/opentelemetry-lambda/extension/processor/processorhelper"
)

type filterLogProcessor struct {
	logger  *zap.Logger
	min     plog.SeverityNumber
	exclude *logMatcher
}

// New creates the filter processor. Metrics and spans pass through.
func New(cfg Config, opts ...Option) (processor.Processor, error) {
	flp := &filterLogProcessor{logger: zap.NewNop(), min: cfg.MinSeverity}
	for _, opt := range opts {
		opt(flp)
	}
	if cfg.Exclude != "" {
		m, err := newLogMatcher(cfg.Exclude)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude expression: %w", err)
		}
		flp.exclude = m
	}
	return processorhelper.New(processorhelper.WithLogs(flp.processLogs))
}

// Option configures the filter processor.
type Option func(*filterLogProcessor)

// WithLogger sets the logger expression evaluation errors are reported to.
func WithLogger(logger *zap.Logger) Option {
	return func(flp *filterLogProcessor) {
		flp.logger = logger.Named("filterprocessor")
	}
}

// processLogs removes filtered records and the scopes and resources left
// empty. It returns processor.ErrSkipProcessingData when nothing is left.
func (flp *filterLogProcessor) processLogs(_ context.Context, ld plog.Logs) (plog.Logs, error) {
	if flp.min == plog.SeverityNumberUnspecified && flp.exclude == nil {
		return ld, nil
	}
	ld.ResourceLogs().RemoveIf(func(rl plog.ResourceLogs) bool {
		rl.ScopeLogs().RemoveIf(func(sl plog.ScopeLogs) bool {
			sl.LogRecords().RemoveIf(flp.shouldDrop)
			return sl.LogRecords().Len() == 0
		})
		return rl.ScopeLogs().Len() == 0
	})
	if ld.ResourceLogs().Len() == 0 {
		return ld, processor.ErrSkipProcessingData
	}
	return ld, nil
}

// shouldDrop keeps a record the exclude expression fails to evaluate on.
func (flp *filterLogProcessor) shouldDrop(lr plog.LogRecord) bool {
	sev := lr.SeverityNumber()
	if sev != plog.SeverityNumberUnspecified && sev < flp.min {
		return true
	}
	if flp.exclude == nil {
		return false
	}
	matched, err := flp.exclude.matchLog(lr)
	if err != nil {
		flp.logger.Debug("Exclude expression failed", zap.Error(err))
		return false
	}
	return matched
}

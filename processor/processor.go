// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package processor defines the transform stage of a pipeline.
package processor // import "github.com/open-telemetry/opentelemetry-lambda/extension/processor"

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"
)

// ErrSkipProcessingData is a sentinel value to indicate when an envelope should intentionally be dropped
// from further processing in the pipeline because the data is determined to be irrelevant. A processor can return this error
// to stop further processing without it being counted as a failure.
var ErrSkipProcessingData = errors.New("sentinel error to skip processing data from the remainder of the pipeline")

// Processor transforms one Envelope. It must not block indefinitely and
// must not mutate the payload of its input in place.
type Processor interface {
	// Process returns the transformed Envelope. If an error is returned the
	// returned Envelope is ignored.
	Process(ctx context.Context, env telemetry.Envelope) (telemetry.Envelope, error)
}

// Chain runs processors in declaration order, feeding each one's output to
// the next. An empty Chain returns its input.
type Chain []Processor

var _ Processor = Chain(nil)

// Process runs the chain and stops at the first error.
func (c Chain) Process(ctx context.Context, env telemetry.Envelope) (telemetry.Envelope, error) {
	for i, p := range c {
		var err error
		if env, err = p.Process(ctx, env); err != nil {
			return telemetry.Envelope{}, fmt.Errorf("processor %d: %w", i, err)
		}
	}
	return env, nil
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package receiver defines the interface implemented by components that
// bring telemetry into a pipeline.
package receiver // import "github.com/open-telemetry/opentelemetry-lambda/extension/receiver"

import (
	"context"

	"github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"
)

// Receiver ingests data from an external source and emits Envelopes.
//
// A Receiver is owned by exactly one pipeline, which calls Start on its own
// goroutine and Stop once the pipeline is cancelled.
type Receiver interface {
	// Start runs the receiver until ctx is done, Stop is called, or an
	// unrecoverable error occurs. Envelopes are sent on next. Start returns
	// nil on a cooperative stop and a non-nil error only when the failure
	// must be escalated to the host.
	Start(ctx context.Context, next chan<- telemetry.Envelope) error

	// Stop asks the receiver to stop and returns once no further sends to
	// next will happen, or ctx is done first. Calling Stop on a receiver
	// that was never started returns nil.
	Stop(ctx context.Context) error
}

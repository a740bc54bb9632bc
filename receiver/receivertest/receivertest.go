// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package receivertest provides receivers for pipeline tests.
package receivertest // import "github.com/open-telemetry/opentelemetry-lambda/extension/receiver/receivertest"

import (
	"context"

	"go.uber.org/atomic"

	"github.com/open-telemetry/opentelemetry-lambda/extension/receiver"
	"github.com/open-telemetry/opentelemetry-lambda/extension/receiver/receiverhelper"
	"github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"
)

// Receiver sends a fixed list of envelopes, then either fails or blocks
// until it is stopped.
type Receiver struct {
	envelopes []telemetry.Envelope
	err       error
	runner    *receiverhelper.Runner
	started   chan struct{}
	stops     *atomic.Int32
}

var _ receiver.Receiver = (*Receiver)(nil)

// NewBlockingReceiver returns a receiver that sends envs and then waits
// for cancellation.
func NewBlockingReceiver(envs ...telemetry.Envelope) *Receiver {
	return &Receiver{
		envelopes: envs,
		runner:    receiverhelper.NewRunner(),
		started:   make(chan struct{}),
		stops:     atomic.NewInt32(0),
	}
}

// NewFailingReceiver returns a receiver whose Start returns err at once.
func NewFailingReceiver(err error) *Receiver {
	r := NewBlockingReceiver()
	r.err = err
	return r
}

func (r *Receiver) Start(ctx context.Context, next chan<- telemetry.Envelope) error {
	return r.runner.Run(ctx, func(ctx context.Context) error {
		close(r.started)
		for _, env := range r.envelopes {
			select {
			case next <- env:
			case <-ctx.Done():
				return nil
			}
		}
		if r.err != nil {
			return r.err
		}
		<-ctx.Done()
		return nil
	})
}

func (r *Receiver) Stop(ctx context.Context) error {
	r.stops.Inc()
	return r.runner.Stop(ctx)
}

// Started returns a channel that is closed once Start is running.
func (r *Receiver) Started() <-chan struct{} {
	return r.started
}

// Stops returns how many times Stop was called.
func (r *Receiver) Stops() int {
	return int(r.stops.Load())
}

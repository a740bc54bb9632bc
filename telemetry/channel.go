// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry // import "github.com/open-telemetry/opentelemetry-lambda/extension/telemetry"

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrChannelFull is returned when a non-blocking enqueue finds no room.
	ErrChannelFull = errors.New("channel is full")

	// ErrChannelClosed is returned when enqueueing onto a closed channel.
	ErrChannelClosed = errors.New("channel is closed")

	// ErrEnqueueTimeout is returned when the enqueue deadline elapses first.
	ErrEnqueueTimeout = errors.New("enqueue deadline exceeded")
)

// TrySend enqueues env onto ch without blocking.
func TrySend(ch chan<- Envelope, env Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrChannelClosed
		}
	}()
	select {
	case ch <- env:
		return nil
	default:
		return ErrChannelFull
	}
}

// SendWithTimeout enqueues env onto ch, waiting at most timeout for room.
// It returns ctx.Err() if ctx is done before the item was accepted.
func SendWithTimeout(ctx context.Context, ch chan<- Envelope, env Envelope, timeout time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrChannelClosed
		}
	}()

	// Fast path, no timer.
	select {
	case ch <- env:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ch <- env:
		return nil
	case <-timer.C:
		return ErrEnqueueTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package receiverhelper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component/componenterror"
)

func TestRunnerStopWaitsForRun(t *testing.T) {
	r := NewRunner()
	running := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		result <- r.Run(context.Background(), func(ctx context.Context) error {
			close(running)
			<-ctx.Done()
			return nil
		})
	}()
	<-running

	require.NoError(t, r.Stop(context.Background()))
	select {
	case err := <-result:
		assert.NoError(t, err)
	default:
		t.Fatal("Stop returned before Run")
	}
	// Second Stop is a no-op.
	assert.NoError(t, r.Stop(context.Background()))
}

func TestRunnerParentContextCancels(t *testing.T) {
	r := NewRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Run(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunnerReturnsLoopError(t *testing.T) {
	r := NewRunner()
	boom := errors.New("boom")
	assert.Equal(t, boom, r.Run(context.Background(), func(context.Context) error { return boom }))
	assert.ErrorIs(t, r.Run(context.Background(), func(context.Context) error { return nil }), componenterror.ErrAlreadyStarted)
	assert.NoError(t, r.Stop(context.Background()))
}

func TestRunnerStopBeforeRun(t *testing.T) {
	r := NewRunner()
	require.NoError(t, r.Stop(context.Background()))
	select {
	case <-r.Stopping():
	default:
		t.Fatal("Stopping channel not closed")
	}
	err := r.Run(context.Background(), func(context.Context) error {
		t.Fatal("loop must not run after Stop")
		return nil
	})
	assert.ErrorIs(t, err, componenterror.ErrAlreadyStopped)
}

func TestRunnerStopTimeout(t *testing.T) {
	r := NewRunner()
	release := make(chan struct{})
	running := make(chan struct{})
	go func() {
		_ = r.Run(context.Background(), func(context.Context) error {
			close(running)
			<-release
			return nil
		})
	}()
	<-running

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Stop(ctx), componenterror.ErrShutdownTimeout)

	close(release)
	assert.NoError(t, r.Stop(context.Background()))
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package receiverhelper provides the start/stop bookkeeping shared by
// receivers.
package receiverhelper // import "github.com/open-telemetry/opentelemetry-lambda/extension/receiver/receiverhelper"

import (
	"context"
	"fmt"
	"sync"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component/componenterror"
)

// Runner runs a blocking receiver loop at most once and lets another
// goroutine stop it and wait for it to return.
type Runner struct {
	mu      sync.Mutex
	started bool
	stopped bool

	stopCh chan struct{}
	done   chan struct{}
}

// NewRunner returns a Runner that has not been started.
func NewRunner() *Runner {
	return &Runner{
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run calls fn with a context that is cancelled when ctx is done or Stop is
// called, and returns what fn returns. Run may succeed only once.
func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	switch {
	case r.stopped:
		r.mu.Unlock()
		return componenterror.ErrAlreadyStopped
	case r.started:
		r.mu.Unlock()
		return componenterror.ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	defer close(r.done)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	return fn(runCtx)
}

// Stop cancels the running loop and waits until Run has returned. It is safe
// to call more than once and before Run.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		close(r.stopCh)
	}
	started := r.started
	r.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("receiver did not quiesce: %w", componenterror.ErrShutdownTimeout)
	}
}

// Stopping returns a channel that is closed once Stop has been called.
func (r *Runner) Stopping() <-chan struct{} {
	return r.stopCh
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle provides the shared cancellation token and the start/stop
// state used by long-running components.
package lifecycle // import "github.com/open-telemetry/opentelemetry-lambda/extension/lifecycle"

import (
	"context"
	"sync"
	"time"
)

// Token is a broadcast shutdown signal. It can be cancelled exactly once;
// later calls to Cancel are no-ops. Any number of goroutines may observe it.
// A cancellation may carry the deadline by which observers must be done.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	deadline time.Time
}

// NewToken returns a Token that is not cancelled.
func NewToken() *Token {
	ctx, cancel := context.WithCancel(context.Background())
	return &Token{ctx: ctx, cancel: cancel}
}

// Cancel fires the token.
func (t *Token) Cancel() {
	t.CancelWithDeadline(time.Time{})
}

// CancelWithDeadline fires the token and records deadline as the time by
// which observers must have finished. A zero deadline means none. Only the
// first cancellation sets the deadline.
func (t *Token) CancelWithDeadline(deadline time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx.Err() != nil {
		return
	}
	t.deadline = deadline
	t.cancel()
}

// Deadline returns the deadline the token was cancelled with, if any.
func (t *Token) Deadline() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline, !t.deadline.IsZero()
}

// IsCancelled reports whether Cancel has been called. It never blocks.
func (t *Token) IsCancelled() bool {
	return t.ctx.Err() != nil
}

// Done returns a channel that is closed once the token is cancelled.
func (t *Token) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Wait blocks until the token is cancelled or ctx is done.
func (t *Token) Wait(ctx context.Context) error {
	select {
	case <-t.ctx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Context returns a context that is cancelled together with the token.
func (t *Token) Context() context.Context {
	return t.ctx
}

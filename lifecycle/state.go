// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle // import "github.com/open-telemetry/opentelemetry-lambda/extension/lifecycle"

import "go.uber.org/atomic"

// State tracks whether a component was started and stopped. It is safe for
// concurrent use and lets Start and Shutdown be idempotent.
type State struct {
	current *atomic.Int32
}

const (
	created int32 = iota
	running
	stopped
)

// NewState returns a State in the created phase.
func NewState() *State {
	return &State{current: atomic.NewInt32(created)}
}

// Start moves created to running and reports whether this call did it.
func (s *State) Start() (started bool) {
	return s.current.CompareAndSwap(created, running)
}

// Stop moves the state to stopped and reports whether this call did it.
// A component that was never started can still be stopped.
func (s *State) Stop() (wasStopped bool) {
	return s.current.Swap(stopped) != stopped
}

// IsRunning reports whether Start succeeded and Stop has not been called.
func (s *State) IsRunning() bool {
	return s.current.Load() == running
}

// IsStopped reports whether Stop has been called.
func (s *State) IsStopped() bool {
	return s.current.Load() == stopped
}

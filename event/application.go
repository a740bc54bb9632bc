// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package event // import "github.com/open-telemetry/opentelemetry-lambda/extension/event"

import (
	"time"
)

// ApplicationEvent is a control signal produced by a receiver and consumed by
// the application controller. Controllers must tolerate variants they do not
// handle yet.
type ApplicationEvent interface {
	applicationEvent()
}

// Shutdown tells the controller that the host is terminating the process.
type Shutdown struct {
	Reason ShutdownReason
	// Deadline is the host's hard deadline, zero when unknown.
	Deadline time.Time
}

func (Shutdown) applicationEvent() {}

// Sentinel carries no meaning and is reserved for forward compatible
// signaling.
type Sentinel struct{}

func (Sentinel) applicationEvent() {}

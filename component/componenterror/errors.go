// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package componenterror provides the sentinel errors shared by components.
package componenterror // import "github.com/open-telemetry/opentelemetry-lambda/extension/component/componenterror"

import (
	"errors"
)

var (
	// ErrAlreadyStarted indicates an error on starting an already-started component.
	ErrAlreadyStarted = errors.New("already started")

	// ErrAlreadyStopped indicates an error on using an already-stopped component.
	ErrAlreadyStopped = errors.New("already stopped")

	// ErrNilNextConsumer indicates an error on nil output channel.
	ErrNilNextConsumer = errors.New("nil output channel")

	// ErrRegistration indicates the host rejected or never answered the
	// registration handshake.
	ErrRegistration = errors.New("extension registration failed")

	// ErrShutdownTimeout indicates a drain, flush or shutdown did not finish
	// within its deadline.
	ErrShutdownTimeout = errors.New("shutdown deadline exceeded")
)

var (
	// ErrResourceAlreadySet is returned by every Resource write after the
	// first successful one.
	ErrResourceAlreadySet = errors.New("resource already set")

	// ErrResourceNotSet is returned when reading the Resource before it has
	// been set.
	ErrResourceNotSet = errors.New("resource not set")
)

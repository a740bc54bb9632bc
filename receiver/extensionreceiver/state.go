// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package extensionreceiver // import "github.com/open-telemetry/opentelemetry-lambda/extension/receiver/extensionreceiver"

// State is the position of the receiver in its lifecycle protocol.
type State int32

const (
	// Registering is the initial state, until the handshake succeeds.
	Registering State = iota
	// Polling loops on the host's next event call.
	Polling
	// ShuttingDown is entered once the host announced shutdown.
	ShuttingDown
	// Stopped is terminal.
	Stopped
)

func (s State) String() string {
	switch s {
	case Registering:
		return "Registering"
	case Polling:
		return "Polling"
	case ShuttingDown:
		return "ShuttingDown"
	case Stopped:
		return "Stopped"
	}
	return "Unknown"
}

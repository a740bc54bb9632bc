// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Program telemetryextension runs next to a serverless function, receives
// its telemetry and lifecycle events and exports them.
package main

import (
	"os"
)

func main() {
	if err := newCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package version describes the running build.
package version // import "github.com/open-telemetry/opentelemetry-lambda/extension/internal/version"

import (
	"bytes"
	"fmt"
	"runtime"
)

// Version variable will be replaced at link time after `make` has been run.
var Version = "latest"

// GitHash variable will be replaced at link time after `make` has been run.
var GitHash = "<NOT PROPERLY GENERATED>"

// Info has properties about the build and runtime.
type Info [][2]string

// InfoVar describes this build.
func InfoVar() Info {
	return Info{
		{"Version", Version},
		{"GitHash", GitHash},
		{"Goversion", runtime.Version()},
		{"OS", runtime.GOOS},
		{"Architecture", runtime.GOARCH},
	}
}

// String returns a formatted string, with linebreaks, intended to be displayed
// on stdout.
func (i Info) String() string {
	buf := new(bytes.Buffer)
	maxRow1Alignment := 0
	for _, prop := range i {
		if cl0 := len(prop[0]); cl0 > maxRow1Alignment {
			maxRow1Alignment = cl0
		}
	}

	for _, prop := range i {
		fmt.Fprintf(buf, "%*s %s\n", -maxRow1Alignment, prop[0], prop[1])
	}
	return buf.String()
}

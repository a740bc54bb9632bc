// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package testdata // import "github.com/open-telemetry/opentelemetry-lambda/extension/internal/testdata"

import (
	"strconv"

	"go.opentelemetry.io/collector/pdata/plog"
)

// GenerateLogs returns one resource with count log records. Record i has body
// "log-i" and INFO severity, except every third record which is DEBUG.
func GenerateLogs(count int) plog.Logs {
	ld := plog.NewLogs()
	rl := ld.ResourceLogs().AppendEmpty()
	initResource(rl.Resource())
	sl := rl.ScopeLogs().AppendEmpty()
	sl.Scope().SetName("testdata")
	for i := 0; i < count; i++ {
		lr := sl.LogRecords().AppendEmpty()
		lr.SetTimestamp(TestTimestamp)
		lr.Body().SetStr("log-" + strconv.Itoa(i))
		if i%3 == 2 {
			lr.SetSeverityNumber(plog.SeverityNumberDebug)
			lr.SetSeverityText("DEBUG")
		} else {
			lr.SetSeverityNumber(plog.SeverityNumberInfo)
			lr.SetSeverityText("INFO")
		}
	}
	return ld
}

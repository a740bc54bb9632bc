// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package testdata // import "github.com/open-telemetry/opentelemetry-lambda/extension/internal/testdata"

import (
	"strconv"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"
)

// GenerateTraces returns one resource with count spans sharing a trace id.
func GenerateTraces(count int) ptrace.Traces {
	td := ptrace.NewTraces()
	rs := td.ResourceSpans().AppendEmpty()
	initResource(rs.Resource())
	ss := rs.ScopeSpans().AppendEmpty()
	ss.Scope().SetName("testdata")
	for i := 0; i < count; i++ {
		span := ss.Spans().AppendEmpty()
		span.SetName("span-" + strconv.Itoa(i))
		span.SetTraceID(pcommon.TraceID([16]byte{1, 2, 3, 4, 5, 6, 7, 8, 8, 7, 6, 5, 4, 3, 2, 1}))
		span.SetSpanID(pcommon.SpanID([8]byte{1, 2, 3, 4, 5, 6, 7, byte(i)}))
		span.SetStartTimestamp(TestTimestamp)
		span.SetEndTimestamp(TestTimestamp + 1000)
	}
	return td
}

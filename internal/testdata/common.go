// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package testdata generates small, deterministic telemetry payloads for tests.
package testdata // import "github.com/open-telemetry/opentelemetry-lambda/extension/internal/testdata"

import (
	"time"

	"go.opentelemetry.io/collector/pdata/pcommon"
)

var testTime = time.Date(2024, 10, 12, 0, 3, 50, 0, time.UTC)

// TestTimestamp is the timestamp stamped on every generated item.
var TestTimestamp = pcommon.NewTimestampFromTime(testTime)

const (
	ResourceAttrKey   = "resource-attr"
	ResourceAttrValue = "resource-attr-val-1"
)

func initResource(res pcommon.Resource) {
	res.Attributes().PutStr(ResourceAttrKey, ResourceAttrValue)
}

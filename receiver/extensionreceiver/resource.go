// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package extensionreceiver // import "github.com/open-telemetry/opentelemetry-lambda/extension/receiver/extensionreceiver"

import (
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/extensionapi"
)

// Environment variables the host sets in the execution environment.
const (
	envRegion        = "AWS_REGION"
	envMemorySize    = "AWS_LAMBDA_FUNCTION_MEMORY_SIZE"
	envLogStreamName = "AWS_LAMBDA_LOG_STREAM_NAME"
)

// ResourceSetter stores the process wide Resource. Only the first call
// succeeds.
type ResourceSetter interface {
	SetResource(res pcommon.Resource) error
}

// newResource describes the function instance the extension runs next to.
func newResource(reg *extensionapi.RegisterResponse, getenv func(string) string) pcommon.Resource {
	attrs := []attribute.KeyValue{
		semconv.CloudProviderAWS,
		semconv.CloudPlatformAWSLambda,
		semconv.ServiceName(reg.FunctionName),
		semconv.ServiceInstanceID(uuid.NewString()),
		semconv.FaaSName(reg.FunctionName),
		semconv.FaaSVersion(reg.FunctionVersion),
	}
	if reg.AccountID != "" {
		attrs = append(attrs, semconv.CloudAccountID(reg.AccountID))
	}
	if region := getenv(envRegion); region != "" {
		attrs = append(attrs, semconv.CloudRegion(region))
	}
	if stream := getenv(envLogStreamName); stream != "" {
		attrs = append(attrs, semconv.FaaSInstance(stream))
	}
	if mb, err := strconv.Atoi(getenv(envMemorySize)); err == nil && mb > 0 {
		attrs = append(attrs, semconv.FaaSMaxMemory(mb*1024*1024))
	}

	res := pcommon.NewResource()
	putAttributes(res.Attributes(), attrs)
	return res
}

func putAttributes(m pcommon.Map, attrs []attribute.KeyValue) {
	for _, kv := range attrs {
		k := string(kv.Key)
		switch kv.Value.Type() {
		case attribute.INT64:
			m.PutInt(k, kv.Value.AsInt64())
		case attribute.BOOL:
			m.PutBool(k, kv.Value.AsBool())
		case attribute.FLOAT64:
			m.PutDouble(k, kv.Value.AsFloat64())
		default:
			m.PutStr(k, kv.Value.Emit())
		}
	}
}

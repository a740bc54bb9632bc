// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package obsreport_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component/componenttest"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/obsreport"
	"github.com/open-telemetry/opentelemetry-lambda/extension/internal/obsreport/obsreporttest"
)

func TestPipelineCounters(t *testing.T) {
	tt := obsreporttest.SetupTelemetry(t)
	p, err := obsreport.NewPipeline("primary", tt.Settings(nil))
	require.NoError(t, err)
	other, err := obsreport.NewPipeline("fallback", tt.Settings(nil))
	require.NoError(t, err)

	ctx := context.Background()
	p.Exported(ctx, 3)
	p.ExportFailed(ctx, 2)
	p.FailedOver(ctx, 1)
	p.Dropped(ctx, 1)
	p.ProcessorFailed(ctx, 4)
	other.Dropped(ctx, 5)

	primary := attribute.String(obsreport.PipelineKey, "primary")
	assert.EqualValues(t, 3, tt.Counter(t, obsreport.ExportedEnvelopes, primary))
	assert.EqualValues(t, 2, tt.Counter(t, obsreport.ExportFailedEnvelopes, primary))
	assert.EqualValues(t, 1, tt.Counter(t, obsreport.FailedOverEnvelopes, primary))
	assert.EqualValues(t, 1, tt.Counter(t, obsreport.DroppedEnvelopes, primary))
	assert.EqualValues(t, 4, tt.Counter(t, obsreport.ProcessorFailedEnvelopes, primary))
	assert.EqualValues(t, 6, tt.Counter(t, obsreport.DroppedEnvelopes))
}

func TestReceiverCounters(t *testing.T) {
	tt := obsreporttest.SetupTelemetry(t)
	r, err := obsreport.NewReceiver("telemetryapi", tt.Settings(nil))
	require.NoError(t, err)

	ctx := context.Background()
	r.Accepted(ctx, 2)
	r.Refused(ctx, 1)
	r.Dropped(ctx, 7)

	assert.EqualValues(t, 2, tt.Counter(t, obsreport.AcceptedEnvelopes))
	assert.EqualValues(t, 1, tt.Counter(t, obsreport.RefusedEnvelopes))
	assert.EqualValues(t, 7, tt.Counter(t, obsreport.ReceiverDroppedEnvelopes, attribute.String(obsreport.ReceiverKey, "telemetryapi")))
}

func TestNopSettings(t *testing.T) {
	_, err := obsreport.NewPipeline("nop", componenttest.NewNopTelemetrySettings())
	assert.NoError(t, err)
	_, err = obsreport.NewReceiver("nop", componenttest.NewNopTelemetrySettings())
	assert.NoError(t, err)
}

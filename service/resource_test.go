// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.uber.org/atomic"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component/componenterror"
)

func newResource(name string) pcommon.Resource {
	res := pcommon.NewResource()
	res.Attributes().PutStr("service.name", name)
	return res
}

func TestResourceCellWriteOnce(t *testing.T) {
	var cell ResourceCell

	_, err := cell.Get()
	assert.ErrorIs(t, err, componenterror.ErrResourceNotSet)

	require.NoError(t, cell.Set(newResource("first")))
	assert.ErrorIs(t, cell.Set(newResource("second")), componenterror.ErrResourceAlreadySet)

	got, err := cell.Get()
	require.NoError(t, err)
	v, ok := got.Attributes().Get("service.name")
	require.True(t, ok)
	assert.Equal(t, "first", v.Str())
}

func TestResourceCellIsolatesCopies(t *testing.T) {
	var cell ResourceCell
	res := newResource("fn")
	require.NoError(t, cell.Set(res))

	res.Attributes().PutStr("service.name", "changed")
	got, err := cell.Get()
	require.NoError(t, err)
	got.Attributes().PutStr("extra", "x")

	again, err := cell.Get()
	require.NoError(t, err)
	v, _ := again.Attributes().Get("service.name")
	assert.Equal(t, "fn", v.Str())
	_, ok := again.Attributes().Get("extra")
	assert.False(t, ok)
}

func TestResourceCellConcurrentWriters(t *testing.T) {
	var cell ResourceCell
	succeeded := atomic.NewInt32(0)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cell.Set(newResource("writer")); err == nil {
				succeeded.Inc()
			} else {
				assert.ErrorIs(t, err, componenterror.ErrResourceAlreadySet)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, succeeded.Load())
}

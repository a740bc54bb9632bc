// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package service // import "github.com/open-telemetry/opentelemetry-lambda/extension/service"

import (
	"sync"

	"go.opentelemetry.io/collector/pdata/pcommon"

	"github.com/open-telemetry/opentelemetry-lambda/extension/component/componenterror"
)

// ResourceCell holds the process-wide Resource. It can be written once;
// readers get their own copy. The zero value is empty and ready to use.
type ResourceCell struct {
	mu  sync.RWMutex
	res pcommon.Resource
	set bool
}

// Set stores a copy of res. Every call after the first successful one
// returns componenterror.ErrResourceAlreadySet.
func (c *ResourceCell) Set(res pcommon.Resource) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set {
		return componenterror.ErrResourceAlreadySet
	}
	c.res = pcommon.NewResource()
	res.CopyTo(c.res)
	c.set = true
	return nil
}

// Get returns a copy of the stored Resource, or
// componenterror.ErrResourceNotSet before Set succeeded.
func (c *ResourceCell) Get() (pcommon.Resource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.set {
		return pcommon.NewResource(), componenterror.ErrResourceNotSet
	}
	out := pcommon.NewResource()
	c.res.CopyTo(out)
	return out, nil
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package xsync // import "go.opentelemetry.io/staticanalyzer/libpf/xsync"

import (
	"sync"
	"sync/atomic"
)

// Once publishes a value that is set at most once. The zero value is ready for use.
type Once[T any] struct {
	mu    sync.Mutex
	value atomic.Pointer[T]
}

// Do returns the published value. If there is none yet, init is called under a lock
// and its result published. An error from init is returned and nothing is published,
// so a later Do calls init again.
func (o *Once[T]) Do(init func() (T, error)) (T, error) {
	if v := o.value.Load(); v != nil {
		return *v, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if v := o.value.Load(); v != nil {
		return *v, nil
	}
	v, err := init()
	if err != nil {
		var zero T
		return zero, err
	}
	o.value.Store(&v)
	return v, nil
}

// Load returns the published value and whether there is one.
func (o *Once[T]) Load() (T, bool) {
	if v := o.value.Load(); v != nil {
		return *v, true
	}
	var zero T
	return zero, false
}

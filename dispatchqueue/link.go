// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package dispatchqueue // import "go.opentelemetry.io/staticanalyzer/dispatchqueue"

import (
	"errors"

	"go.opentelemetry.io/staticanalyzer/libpf/xsync"
)

// Link establishes which Processor a Queue forwards to. It is set up once during
// startup and handed to New.
//
// The zero value is ready for use.
type Link struct {
	processor xsync.Once[Processor]
}

// Register runs init to obtain the processor unless one was already registered, in
// which case the existing processor is returned and init is not called. A failing init
// leaves the link unregistered.
func (l *Link) Register(init func() (Processor, error)) (Processor, error) {
	return l.processor.Do(func() (Processor, error) {
		processor, err := init()
		if err != nil {
			return nil, err
		}
		if processor == nil {
			return nil, errors.New("registration returned a nil processor")
		}
		return processor, nil
	})
}

// Processor returns the registered processor, if any.
func (l *Link) Processor() (Processor, bool) {
	return l.processor.Load()
}

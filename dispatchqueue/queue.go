// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatchqueue forwards batches of work identifiers to a processor, making sure
// that every distinct identifier reaches the processor at most once for the lifetime of
// the queue.
package dispatchqueue // import "go.opentelemetry.io/staticanalyzer/dispatchqueue"

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/staticanalyzer/metrics"
)

// WorkID is an opaque handle for a unit of work, such as a method to analyze.
// The queue never looks inside it.
type WorkID uint64

// Processor consumes deduplicated batches of work.
//
// Process may block for as long as it needs. Its return value is handed back to the
// submitter unchanged.
type Processor interface {
	Process(ids []WorkID) bool
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(ids []WorkID) bool

// Process calls f(ids).
func (f ProcessorFunc) Process(ids []WorkID) bool {
	return f(ids)
}

// ErrNotLinked is returned by New if no processor was registered on the link.
var ErrNotLinked = errors.New("dispatch queue link has no registered processor")

// Queue filters out previously submitted identifiers and forwards the rest.
// All methods are safe for concurrent use.
type Queue struct {
	seen      *seenSet
	processor Processor
}

// New creates a queue bound to the processor registered on link.
func New(link *Link) (*Queue, error) {
	if link == nil {
		return nil, ErrNotLinked
	}
	processor, ok := link.Processor()
	if !ok {
		return nil, ErrNotLinked
	}
	return &Queue{
		seen:      newSeenSet(),
		processor: processor,
	}, nil
}

// Submit forwards the identifiers of batch that were never seen before, in their original
// relative order, and returns the processor's result.
//
// The processor is called even if nothing is left after filtering. Identifiers remain
// marked as seen when the processor reports failure.
func (q *Queue) Submit(batch []WorkID) bool {
	fresh := make([]WorkID, 0, len(batch))
	for _, id := range batch {
		if q.seen.insert(id) {
			fresh = append(fresh, id)
		}
	}

	metrics.AddSlice([]metrics.Metric{
		{ID: metrics.IDQueueSubmitted, Value: metrics.MetricValue(len(batch))},
		{ID: metrics.IDQueueForwarded, Value: metrics.MetricValue(len(fresh))},
		{ID: metrics.IDQueueDuplicates, Value: metrics.MetricValue(len(batch) - len(fresh))},
	})

	ok := q.processor.Process(fresh)
	if !ok {
		metrics.Add(metrics.IDQueueProcessorFailures, 1)
		log.Debugf("Processor rejected batch of %d work items", len(fresh))
	}
	return ok
}

// Seen reports whether id was submitted before.
func (q *Queue) Seen(id WorkID) bool {
	return q.seen.contains(id)
}

// Len returns the number of distinct identifiers submitted so far.
func (q *Queue) Len() int {
	return q.seen.len()
}

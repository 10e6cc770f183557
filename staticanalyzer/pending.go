// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package staticanalyzer // import "go.opentelemetry.io/staticanalyzer/staticanalyzer"

import (
	"sync"

	"go.opentelemetry.io/staticanalyzer/dispatchqueue"
	"go.opentelemetry.io/staticanalyzer/metrics"
)

// pendingQueue is an unbounded FIFO of work handed over by the dispatch queue.
// It tracks the items taken but not yet finished, so that consumers can tell an
// empty queue that will receive more work from a drained one.
type pendingQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []dispatchqueue.WorkID
	busy    int
	stopped bool
}

func newPendingQueue() *pendingQueue {
	q := &pendingQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends ids. It returns false once the queue is stopped.
func (q *pendingQueue) push(ids []dispatchqueue.WorkID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false
	}
	if len(ids) > 0 {
		q.items = append(q.items, ids...)
		metrics.Add(metrics.IDPendingWork, metrics.MetricValue(len(q.items)))
		q.cond.Broadcast()
	}
	return true
}

// take blocks until an item is available. It returns false when the queue is
// stopped, or drained: empty with no item in progress.
func (q *pendingQueue) take() (dispatchqueue.WorkID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.stopped {
			return 0, false
		}
		if len(q.items) > 0 {
			id := q.items[0]
			q.items[0] = 0
			q.items = q.items[1:]
			q.busy++
			metrics.Add(metrics.IDPendingWork, metrics.MetricValue(len(q.items)))
			return id, true
		}
		if q.busy == 0 {
			q.stopped = true
			q.cond.Broadcast()
			return 0, false
		}
		q.cond.Wait()
	}
}

// done marks an item returned by take as finished.
func (q *pendingQueue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.busy--
	if q.busy == 0 && len(q.items) == 0 {
		q.cond.Broadcast()
	}
}

// stop wakes all consumers and rejects further pushes.
func (q *pendingQueue) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	q.cond.Broadcast()
}

func (q *pendingQueue) isStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package dispatchqueue

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Processor that remembers every batch it was handed.
type recorder struct {
	mu      sync.Mutex
	batches [][]WorkID
	result  bool
}

func (r *recorder) Process(ids []WorkID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]WorkID{}, ids...))
	return r.result
}

func (r *recorder) forwarded() map[WorkID]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[WorkID]int)
	for _, b := range r.batches {
		for _, id := range b {
			counts[id]++
		}
	}
	return counts
}

func newTestQueue(t *testing.T, p Processor) *Queue {
	t.Helper()
	var link Link
	_, err := link.Register(func() (Processor, error) { return p, nil })
	require.NoError(t, err)
	q, err := New(&link)
	require.NoError(t, err)
	return q
}

func TestSubmitFiltersPreviouslySeen(t *testing.T) {
	tests := map[string]struct {
		batches [][]WorkID
		expect  [][]WorkID
	}{
		"fresh then overlapping": {
			batches: [][]WorkID{{1, 2, 3}, {2, 3, 4}},
			expect:  [][]WorkID{{1, 2, 3}, {4}},
		},
		"same batch twice": {
			batches: [][]WorkID{{5, 6}, {5, 6}},
			expect:  [][]WorkID{{5, 6}, {}},
		},
		"duplicates within batch keep first occurrence": {
			batches: [][]WorkID{{9, 7, 9, 8, 7}},
			expect:  [][]WorkID{{9, 7, 8}},
		},
		"empty batch is still forwarded": {
			batches: [][]WorkID{{}},
			expect:  [][]WorkID{{}},
		},
		"order is preserved": {
			batches: [][]WorkID{{30, 10, 20}, {40, 10, 5}},
			expect:  [][]WorkID{{30, 10, 20}, {40, 5}},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			rec := &recorder{result: true}
			q := newTestQueue(t, rec)

			for _, b := range test.batches {
				assert.True(t, q.Submit(b))
			}
			assert.Equal(t, test.expect, rec.batches)
		})
	}
}

func TestSubmitReturnsProcessorResult(t *testing.T) {
	for _, want := range []bool{true, false} {
		rec := &recorder{result: want}
		q := newTestQueue(t, rec)
		assert.Equal(t, want, q.Submit(nil))
		assert.Equal(t, want, q.Submit([]WorkID{1}))
	}
}

func TestSubmitKeepsIDsSeenAfterFailure(t *testing.T) {
	rec := &recorder{result: false}
	q := newTestQueue(t, rec)

	assert.False(t, q.Submit([]WorkID{1, 2}))
	rec.result = true
	assert.True(t, q.Submit([]WorkID{1, 2, 3}))

	assert.Equal(t, [][]WorkID{{1, 2}, {3}}, rec.batches)
	assert.True(t, q.Seen(1))
	assert.False(t, q.Seen(42))
	assert.Equal(t, 3, q.Len())
}

func TestSubmitConcurrentSameID(t *testing.T) {
	const goroutines = 128
	var withID atomic.Int32
	q := newTestQueue(t, ProcessorFunc(func(ids []WorkID) bool {
		for _, id := range ids {
			if id == 77 {
				withID.Add(1)
			}
		}
		return true
	}))

	var wg sync.WaitGroup
	start := make(chan struct{})
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			q.Submit([]WorkID{77})
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), withID.Load())
}

func TestSubmitConcurrentOverlappingBatches(t *testing.T) {
	rec := &recorder{result: true}
	q := newTestQueue(t, rec)

	var wg sync.WaitGroup
	for g := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]WorkID, 0, 100)
			for i := range 100 {
				batch = append(batch, WorkID((g*37+i)%250))
			}
			q.Submit(batch)
		}()
	}
	wg.Wait()

	counts := rec.forwarded()
	for id, n := range counts {
		assert.Equal(t, 1, n, "id %d forwarded %d times", id, n)
	}
	assert.Equal(t, q.Len(), len(counts))
}

func TestNewRequiresRegisteredLink(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNotLinked)

	var link Link
	_, err = New(&link)
	assert.ErrorIs(t, err, ErrNotLinked)
}

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package xsync // import "go.opentelemetry.io/staticanalyzer/libpf/xsync"

import "sync"

// RWMutex is a sync.RWMutex that owns the data it protects.
//
// The guarded value is only reachable through RLock or WLock. The matching unlock call
// takes the address of the pointer it handed out and clears it, so a use after unlock
// crashes in tests instead of silently racing:
//
//	seen := xsync.NewRWMutex(map[uint64]struct{}{})
//
//	m := seen.WLock()
//	(*m)[42] = struct{}{}
//	seen.WUnlock(&m)
type RWMutex[T any] struct {
	guarded T
	mutex   sync.RWMutex
}

// NewRWMutex creates a new read-write mutex guarding the given value.
func NewRWMutex[T any](guarded T) RWMutex[T] {
	return RWMutex[T]{guarded: guarded}
}

// RLock locks for reading. The caller must not write through the returned pointer nor
// keep it past the matching RUnlock.
func (mtx *RWMutex[T]) RLock() *T {
	mtx.mutex.RLock()
	return &mtx.guarded
}

// RUnlock releases a read lock and invalidates the reference obtained from RLock.
func (mtx *RWMutex[T]) RUnlock(ref **T) {
	*ref = nil
	mtx.mutex.RUnlock()
}

// WLock locks for writing. The caller must not keep the returned pointer past the
// matching WUnlock.
func (mtx *RWMutex[T]) WLock() *T {
	mtx.mutex.Lock()
	return &mtx.guarded
}

// WUnlock releases a write lock and invalidates the reference obtained from WLock.
func (mtx *RWMutex[T]) WUnlock(ref **T) {
	*ref = nil
	mtx.mutex.Unlock()
}

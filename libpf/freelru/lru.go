// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package freelru wraps go-freelru.SyncedLRU and keeps hit and miss statistics
// alongside it.
package freelru // import "go.opentelemetry.io/staticanalyzer/libpf/freelru"

import (
	"sync/atomic"

	lru "github.com/elastic/go-freelru"
	"github.com/zeebo/xxh3"
)

// SyncedLRU is a concurrency safe LRU with statistics embedded.
type SyncedLRU[K comparable, V any] struct {
	lru *lru.SyncedLRU[K, V]

	hit     atomic.Uint64
	miss    atomic.Uint64
	added   atomic.Uint64
	evicted atomic.Uint64
}

type Statistics struct {
	// Number of lookups that found an entry.
	Hit uint64
	// Number of lookups that found nothing.
	Miss uint64
	// Number of elements added to the cache.
	Added uint64
	// Number of elements evicted to make room for others.
	Evicted uint64
}

// NewSynced creates a SyncedLRU holding at most capacity elements.
func NewSynced[K comparable, V any](capacity uint32,
	hash lru.HashKeyCallback[K]) (*SyncedLRU[K, V], error) {
	cache, err := lru.NewSynced[K, V](capacity, hash)
	if err != nil {
		return nil, err
	}
	return &SyncedLRU[K, V]{lru: cache}, nil
}

// HashString is a HashKeyCallback for string keys.
func HashString(s string) uint32 {
	return uint32(xxh3.HashString(s))
}

func (c *SyncedLRU[K, V]) Add(key K, value V) (evicted bool) {
	evicted = c.lru.Add(key, value)
	if evicted {
		c.evicted.Add(1)
	}
	c.added.Add(1)
	return evicted
}

func (c *SyncedLRU[K, V]) Get(key K) (value V, ok bool) {
	value, ok = c.lru.Get(key)
	if ok {
		c.hit.Add(1)
	} else {
		c.miss.Add(1)
	}
	return value, ok
}

func (c *SyncedLRU[K, V]) Len() int {
	return c.lru.Len()
}

func (c *SyncedLRU[K, V]) Purge() {
	c.lru.Purge()
}

// Statistics returns the statistics accumulated since creation.
func (c *SyncedLRU[K, V]) Statistics() Statistics {
	return Statistics{
		Hit:     c.hit.Load(),
		Miss:    c.miss.Load(),
		Added:   c.added.Load(),
		Evicted: c.evicted.Load(),
	}
}

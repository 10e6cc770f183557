// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package dispatchqueue // import "go.opentelemetry.io/staticanalyzer/dispatchqueue"

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"

	"go.opentelemetry.io/staticanalyzer/libpf/xsync"
)

// numShards must be a power of two.
const numShards = 64

// seenSet records every identifier ever inserted. Entries are never removed.
type seenSet struct {
	shards [numShards]xsync.RWMutex[map[WorkID]struct{}]
}

func newSeenSet() *seenSet {
	s := &seenSet{}
	for i := range s.shards {
		s.shards[i] = xsync.NewRWMutex(make(map[WorkID]struct{}))
	}
	return s
}

func (s *seenSet) shard(id WorkID) *xsync.RWMutex[map[WorkID]struct{}] {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(id))
	return &s.shards[xxh3.Hash(buf[:])&(numShards-1)]
}

// insert adds id and returns true if it was not present before. Exactly one of any
// number of concurrent inserts of the same id returns true.
func (s *seenSet) insert(id WorkID) bool {
	shard := s.shard(id)

	r := shard.RLock()
	_, present := (*r)[id]
	shard.RUnlock(&r)
	if present {
		return false
	}

	w := shard.WLock()
	defer shard.WUnlock(&w)
	if _, present = (*w)[id]; present {
		return false
	}
	(*w)[id] = struct{}{}
	return true
}

func (s *seenSet) contains(id WorkID) bool {
	shard := s.shard(id)
	r := shard.RLock()
	defer shard.RUnlock(&r)
	_, present := (*r)[id]
	return present
}

func (s *seenSet) len() int {
	n := 0
	for i := range s.shards {
		r := s.shards[i].RLock()
		n += len(*r)
		s.shards[i].RUnlock(&r)
	}
	return n
}

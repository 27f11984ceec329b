// Package keyspace implements the sharded multi-type keyspace: a database
// is N shards, each an independent map-plus-LRU-plus-lock partition of the
// key space (spec.md §3, §4.1). Read-modify-write always happens under the
// owning shard's lock; scans over all keys are advisory and tolerate skew
// from concurrent mutation.
package keyspace

import (
	"sync"
	"time"

	"github.com/spineldb/spineldb/pkg/types"
)

// Shard is one partition of a Database's key space: a map from raw key
// bytes to entry, an LRU eviction queue ordered by last access, and the
// single lock that serializes all read-modify-write operations against it.
type Shard struct {
	mu    sync.Mutex
	id    int
	data  map[string]*types.Entry
	lru   *lruList
	bytes int64
}

func newShard(id int) *Shard {
	return &Shard{
		id:   id,
		data: make(map[string]*types.Entry),
		lru:  newLRUList(),
	}
}

// ID returns the shard's index within its database.
func (s *Shard) ID() int { return s.id }

// Lock/Unlock expose the shard's mutex directly so the executor can hold
// it across a multi-step command handler (spec.md §4.2 locking policy).
// Handlers must never suspend (I/O, channel receive) between Lock and
// Unlock.
func (s *Shard) Lock()   { s.mu.Lock() }
func (s *Shard) Unlock() { s.mu.Unlock() }

// get returns the live entry for key, treating an expired entry as absent
// and lazily removing it. Caller must hold the lock.
func (s *Shard) get(key string, now time.Time) (*types.Entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if e.Expired(now) {
		s.deleteLocked(key, e)
		return nil, false
	}
	return e, true
}

// Get reads key, touching its LRU position. Caller must NOT already hold
// the shard lock.
func (s *Shard) Get(key string) (*types.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.get(key, time.Now())
	if ok {
		e.LastAccess = time.Now()
		s.lru.touch(e)
	}
	return e, ok
}

// Peek reads key without touching LRU order (used by read-only introspection
// commands like TTL, OBJECT, DEBUG).
func (s *Shard) Peek(key string) (*types.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(key, time.Now())
}

// Set installs or replaces the entry for key. Caller must hold the lock
// (command handlers run with it held by the executor).
func (s *Shard) Set(key string, e *types.Entry) {
	if old, ok := s.data[key]; ok {
		s.bytes -= entrySize(key, old)
		s.lru.remove(old)
	}
	e.LastAccess = time.Now()
	s.data[key] = e
	s.bytes += entrySize(key, e)
	s.lru.pushFront(e)
}

// Delete removes key if present, returning whether it existed.
func (s *Shard) Delete(key string) bool {
	e, ok := s.data[key]
	if !ok {
		return false
	}
	s.deleteLocked(key, e)
	return true
}

func (s *Shard) deleteLocked(key string, e *types.Entry) {
	s.bytes -= entrySize(key, e)
	s.lru.remove(e)
	delete(s.data, key)
}

// Len returns the number of live (not lazily-expired-checked) entries.
func (s *Shard) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Bytes returns the shard's tracked memory footprint.
func (s *Shard) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

// Keys returns a snapshot of all keys currently stored, including ones
// that may have expired but not yet been swept. Advisory per spec.md §4.1.
func (s *Shard) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	return out
}

// EvictOne removes one key chosen by policy and returns its name, or ""
// if the shard is empty. Caller must hold the lock.
func (s *Shard) EvictOne(policy types.EvictionPolicy, sampleSize int) string {
	switch policy {
	case types.EvictAllKeysLRU, types.EvictVolatileLRU:
		key := s.lru.oldestSample(s.data, sampleSize, policy == types.EvictVolatileLRU)
		if key != "" {
			s.Delete(key)
		}
		return key
	case types.EvictVolatileTTL:
		key := s.soonestExpiring()
		if key != "" {
			s.Delete(key)
		}
		return key
	case types.EvictAllKeysRandom, types.EvictVolatileRandom:
		key := s.randomKey(policy == types.EvictVolatileRandom)
		if key != "" {
			s.Delete(key)
		}
		return key
	default:
		return ""
	}
}

func (s *Shard) soonestExpiring() string {
	best := ""
	var bestAt time.Time
	for k, e := range s.data {
		if !e.HasTTL() {
			continue
		}
		if best == "" || e.ExpireAt.Before(bestAt) {
			best, bestAt = k, e.ExpireAt
		}
	}
	return best
}

func (s *Shard) randomKey(volatileOnly bool) string {
	for k, e := range s.data {
		if volatileOnly && !e.HasTTL() {
			continue
		}
		return k
	}
	return ""
}

func entrySize(key string, e *types.Entry) int64 {
	sz := int64(len(key)) + 48 // entry/map overhead estimate
	if e.Value != nil {
		sz += e.Value.SizeEstimate()
	}
	return sz
}

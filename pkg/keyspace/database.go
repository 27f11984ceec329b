package keyspace

import (
	"hash/fnv"
	"sort"
	"time"

	"github.com/spineldb/spineldb/pkg/types"
)

// Database is an ordered sequence of shards plus the accounting needed to
// run eviction and TTL sweeps over them (spec.md §3). Blocking waiters,
// transaction state, and the notification publisher live in their own
// packages and are wired in by pkg/command; Database itself only owns the
// keyspace partitions.
type Database struct {
	Index     int
	shards    []*Shard
	MaxMemory int64
	Policy    types.EvictionPolicy
}

// NewDatabase creates a database with shardCount shards.
func NewDatabase(index, shardCount int) *Database {
	if shardCount < 1 {
		shardCount = 1
	}
	d := &Database{Index: index, Policy: types.EvictNoEviction}
	d.shards = make([]*Shard, shardCount)
	for i := range d.shards {
		d.shards[i] = newShard(i)
	}
	return d
}

// ShardCount returns the number of shards.
func (d *Database) ShardCount() int { return len(d.shards) }

// Shard returns the shard at index i.
func (d *Database) Shard(i int) *Shard { return d.shards[i] }

// AllShards returns every shard in ascending index order, the canonical
// acquisition order for cross-shard commands (spec.md §4.2).
func (d *Database) AllShards() []*Shard { return d.shards }

// ShardFor returns the shard that owns key: hash(key) mod N using a
// stable, non-cryptographic hash (FNV-1a), per spec.md §4.1.
func (d *Database) ShardFor(key string) *Shard {
	return d.shards[d.ShardIndex(key)]
}

// ShardIndex returns hash(key) mod N without resolving the shard pointer,
// useful for building an acquisition-ordered index set without re-hashing.
func (d *Database) ShardIndex(key string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum64() % uint64(len(d.shards)))
}

// ShardsFor returns the distinct shards that own keys, already sorted in
// ascending index order — the deadlock-avoidance acquisition order spec.md
// §4.2 mandates for multi-key/cross-shard commands.
func (d *Database) ShardsFor(keys []string) []*Shard {
	idx := make(map[int]struct{}, len(keys))
	for _, k := range keys {
		idx[d.ShardIndex(k)] = struct{}{}
	}
	out := make([]int, 0, len(idx))
	for i := range idx {
		out = append(out, i)
	}
	sort.Ints(out)
	shards := make([]*Shard, len(out))
	for i, si := range out {
		shards[i] = d.shards[si]
	}
	return shards
}

// Get resolves a key to its live entry, or ok=false if absent/expired.
func (d *Database) Get(key string) (*types.Entry, bool) {
	return d.ShardFor(key).Get(key)
}

// DBSize returns the approximate total number of keys across all shards
// (advisory: a shard may change between per-shard counts being summed).
func (d *Database) DBSize() int64 {
	var total int64
	for _, s := range d.shards {
		total += int64(s.Len())
	}
	return total
}

// MemoryUsage returns the summed per-shard byte counters (spec.md §4.5).
func (d *Database) MemoryUsage() int64 {
	var total int64
	for _, s := range d.shards {
		total += s.Bytes()
	}
	return total
}

// Flush clears every shard's contents, implementing FLUSHDB.
func (d *Database) Flush() {
	for _, s := range d.shards {
		s.mu.Lock()
		s.data = make(map[string]*types.Entry)
		s.lru = newLRUList()
		s.bytes = 0
		s.mu.Unlock()
	}
}

// SweepExpired samples up to sampleSize keys per shard and removes any
// that have expired, mirroring the periodic active-expiry cycle of
// spec.md §4.5. It returns the number of keys removed.
func (d *Database) SweepExpired(sampleSize int) int {
	removed := 0
	now := time.Now()
	for _, s := range d.shards {
		s.mu.Lock()
		seen := 0
		for k, e := range s.data {
			if seen >= sampleSize {
				break
			}
			seen++
			if e.Expired(now) {
				s.deleteLocked(k, e)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// EnforceMemory evicts keys under the configured policy until memory usage
// is at or below MaxMemory, or no more candidates exist. It returns the
// keys evicted, in eviction order, or an OOM condition via ok=false when
// the policy is noeviction and the budget is still exceeded.
func (d *Database) EnforceMemory(sampleSize int) (evicted []string, ok bool) {
	if d.MaxMemory <= 0 {
		return nil, true
	}
	for d.MemoryUsage() > d.MaxMemory {
		if d.Policy == types.EvictNoEviction {
			return evicted, false
		}
		victim := ""
		for _, s := range d.shards {
			s.mu.Lock()
			k := s.EvictOne(d.Policy, sampleSize)
			s.mu.Unlock()
			if k != "" {
				victim = k
				break
			}
		}
		if victim == "" {
			// no eligible candidate anywhere; stop to avoid spinning.
			return evicted, true
		}
		evicted = append(evicted, victim)
	}
	return evicted, true
}

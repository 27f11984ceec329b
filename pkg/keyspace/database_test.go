package keyspace

import (
	"testing"
	"time"

	"github.com/spineldb/spineldb/pkg/types"
)

type fakeValue struct{ n int64 }

func (fakeValue) Type() types.ValueType   { return types.TypeString }
func (v fakeValue) SizeEstimate() int64   { return v.n }

func TestShardForIsStableAndDeterministic(t *testing.T) {
	db := NewDatabase(0, 8)
	idx1 := db.ShardIndex("hello")
	idx2 := db.ShardIndex("hello")
	if idx1 != idx2 {
		t.Fatalf("hashing key %q is not stable: %d vs %d", "hello", idx1, idx2)
	}
	if idx1 < 0 || idx1 >= db.ShardCount() {
		t.Fatalf("shard index %d out of range", idx1)
	}
}

func TestShardsForSortedAscending(t *testing.T) {
	db := NewDatabase(0, 16)
	keys := []string{"a", "b", "c", "d", "e"}
	shards := db.ShardsFor(keys)
	for i := 1; i < len(shards); i++ {
		if shards[i-1].ID() >= shards[i].ID() {
			t.Fatalf("shards not strictly ascending: %d then %d", shards[i-1].ID(), shards[i].ID())
		}
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	db := NewDatabase(0, 4)
	sh := db.ShardFor("k")
	sh.Lock()
	sh.Set("k", &types.Entry{Value: fakeValue{1}})
	sh.Unlock()

	e, ok := db.Get("k")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if e.Value.(fakeValue).n != 1 {
		t.Fatalf("unexpected value: %+v", e.Value)
	}
}

func TestExpiredEntryTreatedAsAbsent(t *testing.T) {
	db := NewDatabase(0, 1)
	sh := db.ShardFor("k")
	sh.Lock()
	sh.Set("k", &types.Entry{Value: fakeValue{1}, ExpireAt: time.Now().Add(-time.Second)})
	sh.Unlock()

	if _, ok := db.Get("k"); ok {
		t.Fatal("expected expired key to read as absent")
	}
}

func TestSweepExpiredRemovesLazyEntries(t *testing.T) {
	db := NewDatabase(0, 1)
	sh := db.ShardFor("k")
	sh.Lock()
	sh.Set("k", &types.Entry{Value: fakeValue{1}, ExpireAt: time.Now().Add(-time.Second)})
	sh.Unlock()

	removed := db.SweepExpired(100)
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if db.DBSize() != 0 {
		t.Fatalf("expected empty db after sweep, got %d", db.DBSize())
	}
}

func TestFlushClearsAllShards(t *testing.T) {
	db := NewDatabase(0, 4)
	for i := 0; i < 20; i++ {
		k := string(rune('a' + i))
		sh := db.ShardFor(k)
		sh.Lock()
		sh.Set(k, &types.Entry{Value: fakeValue{1}})
		sh.Unlock()
	}
	if db.DBSize() == 0 {
		t.Fatal("expected keys before flush")
	}
	db.Flush()
	if db.DBSize() != 0 {
		t.Fatalf("expected 0 keys after flush, got %d", db.DBSize())
	}
}

func TestEnforceMemoryNoEvictionReturnsOOM(t *testing.T) {
	db := NewDatabase(0, 1)
	db.Policy = types.EvictNoEviction
	db.MaxMemory = 1
	sh := db.ShardFor("k")
	sh.Lock()
	sh.Set("k", &types.Entry{Value: fakeValue{1000}})
	sh.Unlock()

	_, ok := db.EnforceMemory(10)
	if ok {
		t.Fatal("expected noeviction policy to report OOM when over budget")
	}
}

func TestEnforceMemoryEvictsUnderLRU(t *testing.T) {
	db := NewDatabase(0, 1)
	db.Policy = types.EvictAllKeysLRU
	db.MaxMemory = 100
	sh := db.ShardFor("k")
	for i := 0; i < 5; i++ {
		k := string(rune('a' + i))
		sh.Lock()
		sh.Set(k, &types.Entry{Value: fakeValue{100}})
		sh.Unlock()
	}
	evicted, ok := db.EnforceMemory(10)
	if !ok {
		t.Fatal("expected eviction to succeed")
	}
	if len(evicted) == 0 {
		t.Fatal("expected at least one key evicted")
	}
	if db.MemoryUsage() > db.MaxMemory {
		t.Fatalf("memory usage %d still exceeds budget %d", db.MemoryUsage(), db.MaxMemory)
	}
}

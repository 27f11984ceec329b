// Package snapshot implements SAVE/BGSAVE-equivalent point-in-time
// dump and restore, walking pkg/keyspace the way the AOF writer replays
// commands but capturing final state directly instead of an operation
// log (spec.md §4.9). It is the direct consumer of pkg/storage.Store's
// snapshot bucket: Dump encodes every live entry into the wire shape
// storage.SnapshotEntry persists, and Restore decodes it back.
package snapshot

import (
	"fmt"
	"math"
	"time"

	"github.com/spineldb/spineldb/pkg/encoding"
	"github.com/spineldb/spineldb/pkg/keyspace"
	"github.com/spineldb/spineldb/pkg/storage"
	"github.com/spineldb/spineldb/pkg/types"
)

// Type tags recorded alongside each entry's encoded bytes so Restore knows
// which decoder to run without consulting types.ValueType's display form.
const (
	tagString = "string"
	tagList   = "list"
	tagHash   = "hash"
	tagSet    = "set"
	tagZSet   = "zset"
	tagStream = "stream"
	tagJSON   = "json"
	tagHLL    = "hll"
	tagBloom  = "bloom"
)

// Dump walks every shard of every database in ascending shard order and
// encodes its live, non-expired entries into the shape pkg/storage
// persists. Keys and Peek each take the shard's lock for their own call,
// so a key removed between the two is skipped.
func Dump(dbs []*keyspace.Database) []storage.DatabaseSnapshot {
	out := make([]storage.DatabaseSnapshot, 0, len(dbs))
	now := time.Now()
	for _, db := range dbs {
		var entries []storage.SnapshotEntry
		for _, sh := range db.AllShards() {
			for _, key := range sh.Keys() {
				e, ok := sh.Peek(key)
				if !ok || e.Expired(now) {
					continue
				}
				tag, data, err := encodeValue(e.Value)
				if err != nil {
					continue
				}
				se := storage.SnapshotEntry{Key: key, Type: tag, Value: data}
				if e.HasTTL() {
					se.ExpireAtMs = e.ExpireAt.UnixMilli()
				}
				entries = append(entries, se)
			}
		}
		out = append(out, storage.DatabaseSnapshot{Index: db.Index, Entries: entries})
	}
	return out
}

// Restore replaces every database's contents with the decoded snapshot.
// Databases present in dbs but absent from snap are flushed empty;
// databases in snap with no matching index in dbs are skipped.
func Restore(dbs []*keyspace.Database, snap []storage.DatabaseSnapshot) error {
	byIndex := make(map[int]*keyspace.Database, len(dbs))
	for _, db := range dbs {
		db.Flush()
		byIndex[db.Index] = db
	}
	now := time.Now()
	for _, ds := range snap {
		db, ok := byIndex[ds.Index]
		if !ok {
			continue
		}
		for _, se := range ds.Entries {
			val, err := decodeValue(se.Type, se.Value)
			if err != nil {
				return fmt.Errorf("restore db %d key %q: %w", ds.Index, se.Key, err)
			}
			entry := &types.Entry{Value: val, LastAccess: now}
			if se.ExpireAtMs != 0 {
				entry.ExpireAt = time.UnixMilli(se.ExpireAtMs)
				if entry.Expired(now) {
					continue
				}
			}
			db.ShardFor(se.Key).Set(se.Key, entry)
		}
	}
	return nil
}

func encodeValue(v types.Value) (tag string, data []byte, err error) {
	switch val := v.(type) {
	case *encoding.StringValue:
		return tagString, val.Data, nil
	case *encoding.ListValue:
		return tagList, encodeStrings(val.All()), nil
	case *encoding.HashValue:
		return tagHash, encodeMap(val.All()), nil
	case *encoding.SetValue:
		return tagSet, encodeStrings(val.Members()), nil
	case *encoding.ZSetValue:
		return tagZSet, encodeScored(val.All()), nil
	case *encoding.StreamValue:
		return tagStream, encodeStream(val), nil
	case *encoding.JSONValue:
		b, err := val.Marshal()
		return tagJSON, b, err
	case *encoding.HLLValue:
		return tagHLL, val.Marshal(), nil
	case *encoding.BloomValue:
		return tagBloom, val.Marshal(), nil
	default:
		return "", nil, fmt.Errorf("snapshot: unsupported value type %T", v)
	}
}

func decodeValue(tag string, data []byte) (types.Value, error) {
	switch tag {
	case tagString:
		return encoding.NewString(data), nil
	case tagList:
		l := encoding.NewList()
		l.PushRight(decodeStrings(data)...)
		return l, nil
	case tagHash:
		h := encoding.NewHash()
		for k, v := range decodeMap(data) {
			h.Set(k, v)
		}
		return h, nil
	case tagSet:
		s := encoding.NewSet()
		s.Add(decodeStrings(data)...)
		return s, nil
	case tagZSet:
		z := encoding.NewZSet()
		for _, sm := range decodeScored(data) {
			z.Add(sm.Score, sm.Member)
		}
		return z, nil
	case tagStream:
		return decodeStream(data)
	case tagJSON:
		return encoding.ParseJSON(data)
	case tagHLL:
		return encoding.UnmarshalHLL(data)
	case tagBloom:
		return encoding.UnmarshalBloom(data)
	default:
		return nil, fmt.Errorf("snapshot: unknown value tag %q", tag)
	}
}

func decodeStream(data []byte) (types.Value, error) {
	entries, err := decodeStreamEntries(data)
	if err != nil {
		return nil, err
	}
	s := encoding.NewStream()
	for _, e := range entries {
		if err := s.Append(e.ID, e.Fields); err != nil {
			return nil, fmt.Errorf("replay stream entry %s: %w", e.ID, err)
		}
	}
	return s, nil
}

func encodeStream(s *encoding.StreamValue) []byte {
	all := s.Range(encoding.StreamID{}, encoding.StreamID{MS: math.MaxUint64, Seq: math.MaxUint64}, 0)
	return marshalStreamEntries(all)
}

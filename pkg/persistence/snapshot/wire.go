package snapshot

import (
	"encoding/json"

	"github.com/spineldb/spineldb/pkg/encoding"
)

// The aggregate types (list, hash, set, zset, stream) have no Marshal
// method of their own the way Bloom/HLL/JSON do (pkg/encoding keeps their
// internal layout private to the package), so the snapshot format encodes
// their public accessor output (All()/Members()) as JSON directly. This
// is simpler than teaching each encoding type binary serialization for a
// format only the snapshot writer/reader ever touches.

func encodeStrings(ss []string) []byte {
	b, _ := json.Marshal(ss)
	return b
}

func decodeStrings(data []byte) []string {
	var ss []string
	_ = json.Unmarshal(data, &ss)
	return ss
}

func encodeMap(m map[string]string) []byte {
	b, _ := json.Marshal(m)
	return b
}

func decodeMap(data []byte) map[string]string {
	m := make(map[string]string)
	_ = json.Unmarshal(data, &m)
	return m
}

func encodeScored(sm []encoding.ScoredMember) []byte {
	b, _ := json.Marshal(sm)
	return b
}

func decodeScored(data []byte) []encoding.ScoredMember {
	var sm []encoding.ScoredMember
	_ = json.Unmarshal(data, &sm)
	return sm
}

func marshalStreamEntries(entries []encoding.StreamEntry) []byte {
	b, _ := json.Marshal(entries)
	return b
}

func decodeStreamEntries(data []byte) ([]encoding.StreamEntry, error) {
	var entries []encoding.StreamEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

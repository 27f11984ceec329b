// Package encoding implements the concrete value encodings a keyspace
// entry can hold: string, list, hash, set, sorted set, stream, JSON tree,
// HyperLogLog, and Bloom filter (spec.md §4.4). Each type implements
// types.Value so the keyspace and command layers can treat any of them
// uniformly until a handler needs the concrete shape.
package encoding

import "github.com/spineldb/spineldb/pkg/types"

// StringValue is the simplest encoding: a raw byte string.
type StringValue struct {
	Data []byte
}

func NewString(b []byte) *StringValue { return &StringValue{Data: append([]byte(nil), b...)} }

func (s *StringValue) Type() types.ValueType { return types.TypeString }
func (s *StringValue) SizeEstimate() int64   { return int64(len(s.Data)) + 16 }

/*
Package types defines SpinelDB's domain model: the tagged value union a
key's entry holds, TTL/LRU metadata, and the write-outcome contract the
command executor uses to drive persistence, replication, and
notifications.

Concrete value encodings (string, list, hash, set, zset, stream, JSON,
HyperLogLog, Bloom filter) live in pkg/encoding and implement the Value
interface declared here, keeping this package free of their internals.
*/
package types

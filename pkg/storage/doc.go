/*
Package storage provides BoltDB-backed durability for SpinelDB: point-in-time
keyspace snapshots, the cluster slot/node table, and the ACL user table.

BoltStore keeps three buckets in a single bbolt file at <dataDir>/spineldb.db:

  - snapshot: one JSON blob holding every database's keys, written by
    SAVE/BGSAVE and read back on startup before the AOF (if any) replays.
  - cluster: the persisted CLUSTER slot-ownership/node roster, equivalent to
    Redis Cluster's nodes.conf.
  - acl: the persisted ACL user table, equivalent to Redis's users.json / ACL
    SAVE file.

Each bucket stores a single JSON-encoded value under a fixed key rather than
one bbolt key per domain record, since these datasets are read and written as
a unit (a full snapshot, a full cluster table, a full ACL table) rather than
looked up by individual key.
*/
package storage

package storage

// Store defines the interface for durable point-in-time persistence of the
// keyspace. It is implemented by BoltStore.
type Store interface {
	// SaveSnapshot writes a full snapshot of every database's keyspace,
	// replacing whatever snapshot was previously stored.
	SaveSnapshot(dbs []DatabaseSnapshot) error

	// LoadSnapshot returns the most recently saved snapshot, or an empty
	// slice if none has been written yet.
	LoadSnapshot() ([]DatabaseSnapshot, error)

	// SaveClusterConfig persists the cluster slot-ownership table and node
	// roster (nodes.conf equivalent).
	SaveClusterConfig(data []byte) error
	GetClusterConfig() ([]byte, error)

	// SaveACL persists the ACL user table (users.json equivalent).
	SaveACL(data []byte) error
	GetACL() ([]byte, error)

	Close() error
}

// DatabaseSnapshot is one logical database's worth of keys as captured for
// SAVE/BGSAVE and restored at startup.
type DatabaseSnapshot struct {
	Index   int             `json:"index"`
	Entries []SnapshotEntry `json:"entries"`
}

// SnapshotEntry is a single key's encoded value plus its expiry, in the
// same shape persisted to the RDB-equivalent snapshot file.
type SnapshotEntry struct {
	Key        string `json:"key"`
	Type       string `json:"type"`
	Value      []byte `json:"value"`
	ExpireAtMs int64  `json:"expire_at_ms,omitempty"`
}

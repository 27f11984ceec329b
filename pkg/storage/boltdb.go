package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketSnapshot = []byte("snapshot")
	bucketCluster  = []byte("cluster")
	bucketACL      = []byte("acl")

	snapshotDataKey = []byte("data")
	clusterDataKey  = []byte("data")
	aclDataKey      = []byte("data")
)

// BoltStore implements Store using bbolt, matching the teacher's
// bucket-per-concern BoltDB layout.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) the durable store rooted at
// dataDir/spineldb.db.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "spineldb.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketSnapshot, bucketCluster, bucketACL} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot overwrites the stored snapshot with dbs, marshaled as JSON.
//
// The snapshot is small enough (bounded by keyspace size, written at most
// once per BGSAVE cycle) that a single JSON blob per bucket is simpler than
// per-key bbolt entries and keeps LoadSnapshot a single read.
func (s *BoltStore) SaveSnapshot(dbs []DatabaseSnapshot) error {
	data, err := json.Marshal(dbs)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshot).Put(snapshotDataKey, data)
	})
}

// LoadSnapshot returns the most recently saved snapshot.
func (s *BoltStore) LoadSnapshot() ([]DatabaseSnapshot, error) {
	var dbs []DatabaseSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSnapshot).Get(snapshotDataKey)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &dbs)
	})
	return dbs, err
}

// SaveClusterConfig persists the cluster slot/node table.
func (s *BoltStore) SaveClusterConfig(data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCluster).Put(clusterDataKey, data)
	})
}

// GetClusterConfig returns the persisted cluster slot/node table, or nil if
// none has been saved.
func (s *BoltStore) GetClusterConfig() ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(bucketCluster).Get(clusterDataKey); data != nil {
			out = append([]byte(nil), data...)
		}
		return nil
	})
	return out, err
}

// SaveACL persists the ACL user table.
func (s *BoltStore) SaveACL(data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketACL).Put(aclDataKey, data)
	})
}

// GetACL returns the persisted ACL user table, or nil if none has been saved.
func (s *BoltStore) GetACL() ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(bucketACL).Get(aclDataKey); data != nil {
			out = append([]byte(nil), data...)
		}
		return nil
	})
	return out, err
}

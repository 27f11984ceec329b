// Package clusterstore persists the two JSON documents CLUSTER and ACL
// state reduce to — the slot/node table and the ACL user table — through
// pkg/storage.Store's dedicated buckets. It plays the same role for
// pkg/cluster and pkg/acl that a Redis Cluster deployment's nodes.conf
// and a Redis server's users.json (ACLFILE) play: a small, infrequently
// written configuration document, distinct from the high-churn keyspace
// snapshot pkg/persistence/snapshot owns.
package clusterstore

import (
	"encoding/json"
	"fmt"

	"github.com/spineldb/spineldb/pkg/storage"
)

// Store adapts storage.Store's two-bucket byte-slice API to typed
// load/save calls for whatever document pkg/cluster or pkg/acl hands it.
type Store struct {
	backing storage.Store
}

func New(backing storage.Store) *Store { return &Store{backing: backing} }

// SaveCluster marshals v (pkg/cluster's *Table) and persists it as the
// cluster bucket's document.
func (s *Store) SaveCluster(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cluster config: %w", err)
	}
	return s.backing.SaveClusterConfig(data)
}

// LoadCluster unmarshals the persisted cluster document into v (a
// pointer). v is left untouched if nothing has been saved yet.
func (s *Store) LoadCluster(v any) error {
	data, err := s.backing.GetClusterConfig()
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}
	return json.Unmarshal(data, v)
}

// SaveACL marshals v (pkg/acl's []*User) and persists it as the acl
// bucket's document.
func (s *Store) SaveACL(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal acl table: %w", err)
	}
	return s.backing.SaveACL(data)
}

// LoadACL unmarshals the persisted ACL document into v (a pointer). v is
// left untouched if nothing has been saved yet.
func (s *Store) LoadACL(v any) error {
	data, err := s.backing.GetACL()
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}
	return json.Unmarshal(data, v)
}

// Package cluster implements CLUSTER mode: the 16384-slot keyspace
// partition, CRC16-based key routing, and MOVED/ASK redirection spec.md
// §4.12 requires, with slot ownership kept consistent across nodes by a
// Raft-replicated log (pkg/cluster.FSM) rather than the gossip protocol
// real Redis Cluster uses — the redesign DESIGN.md records, grounded on
// the teacher's pkg/manager Raft bootstrap/join/FSM machinery adapted
// from orchestrating containers to owning a slot table.
package cluster

import (
	"fmt"
	"sync"

	"github.com/spineldb/spineldb/pkg/rerror"
)

// SlotCount is the fixed size of the cluster hash space (Redis Cluster's
// convention; spec.md §4.12).
const SlotCount = 16384

// crc16Table is the CCITT polynomial table CRC16(key) uses to map keys to
// slots, the same table Redis Cluster's crc16.c generates. There is no
// third-party CRC16 implementation in the example pack (crc32/crc64 are
// stdlib but CRC16-CCITT is not), so this is hand-rolled and justified in
// DESIGN.md as a standard-library-only exception.
var crc16Table = func() [256]uint16 {
	const poly = 0x1021
	var tbl [256]uint16
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		tbl[i] = crc
	}
	return tbl
}()

func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = crc<<8 ^ crc16Table[byte(crc>>8)^b]
	}
	return crc
}

// KeySlot returns the slot a key maps to. A "{hashtag}" substring, if
// present, is hashed instead of the full key, so related keys can be
// co-located in one slot for multi-key operations (spec.md §4.12).
func KeySlot(key string) int {
	if start := indexByte(key, '{'); start >= 0 {
		if end := indexByte(key[start+1:], '}'); end > 0 {
			tag := key[start+1 : start+1+end]
			if tag != "" {
				return int(crc16([]byte(tag))) % SlotCount
			}
		}
	}
	return int(crc16([]byte(key))) % SlotCount
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// NodeState describes one cluster member.
type NodeState struct {
	ID      string `json:"id"`
	Addr    string `json:"addr"` // client-facing RESP address, for MOVED/ASK replies
	RaftAddr string `json:"raft_addr"`
}

// Table is the slot-ownership map plus the node roster, replicated via
// Raft so every node's view converges without gossip. MigratingTo and
// ImportingFrom hold slots mid-migration; Redirect consults MigratingTo
// so a client can be pointed (ASK) at the target node for a key that's
// in flight. ImportingFrom is recorded but not consulted by Redirect.
type Table struct {
	mu           sync.RWMutex
	Nodes        map[string]*NodeState `json:"nodes"`
	SlotOwner    [SlotCount]string     `json:"slot_owner"`
	MigratingTo  map[int]string        `json:"migrating_to,omitempty"`  // slot -> target node ID
	ImportingFrom map[int]string       `json:"importing_from,omitempty"` // slot -> source node ID
}

// NewTable returns an empty table (no nodes, no slots assigned).
func NewTable() *Table {
	return &Table{
		Nodes:         make(map[string]*NodeState),
		MigratingTo:   make(map[int]string),
		ImportingFrom: make(map[int]string),
	}
}

// snapshotLocked returns a deep-enough copy for JSON marshaling under
// FSM.Snapshot without holding the lock across file I/O.
func (t *Table) snapshotLocked() *Table {
	cp := NewTable()
	for id, n := range t.Nodes {
		node := *n
		cp.Nodes[id] = &node
	}
	cp.SlotOwner = t.SlotOwner
	for s, n := range t.MigratingTo {
		cp.MigratingTo[s] = n
	}
	for s, n := range t.ImportingFrom {
		cp.ImportingFrom[s] = n
	}
	return cp
}

// Clone returns a point-in-time copy safe to read without further
// locking (used by CLUSTER NODES/SLOTS and FSM.Snapshot).
func (t *Table) Clone() *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

// AddNode registers or updates a node in the roster.
func (t *Table) AddNode(n NodeState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Nodes[n.ID] = &n
}

// RemoveNode drops a node from the roster (CLUSTER FORGET). Slots it
// owned are left dangling; an operator must reassign them.
func (t *Table) RemoveNode(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.Nodes, id)
}

// AddSlots assigns slots to nodeID (CLUSTER ADDSLOTS).
func (t *Table) AddSlots(nodeID string, slots []int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.Nodes[nodeID]; !ok {
		return fmt.Errorf("ERR Unknown node %s", nodeID)
	}
	for _, s := range slots {
		if s < 0 || s >= SlotCount {
			return fmt.Errorf("ERR Invalid slot %d", s)
		}
		t.SlotOwner[s] = nodeID
	}
	return nil
}

// DelSlots unassigns slots (CLUSTER DELSLOTS).
func (t *Table) DelSlots(slots []int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range slots {
		if s < 0 || s >= SlotCount {
			return fmt.Errorf("ERR Invalid slot %d", s)
		}
		t.SlotOwner[s] = ""
	}
	return nil
}

// SetSlot reassigns a single slot, optionally marking it as migrating or
// importing (CLUSTER SETSLOT NODE|MIGRATING|IMPORTING|STABLE).
func (t *Table) SetSlot(slot int, ownerID string, migratingTo, importingFrom string) error {
	if slot < 0 || slot >= SlotCount {
		return fmt.Errorf("ERR Invalid slot %d", slot)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if ownerID != "" {
		t.SlotOwner[slot] = ownerID
	}
	if migratingTo != "" {
		t.MigratingTo[slot] = migratingTo
	} else {
		delete(t.MigratingTo, slot)
	}
	if importingFrom != "" {
		t.ImportingFrom[slot] = importingFrom
	} else {
		delete(t.ImportingFrom, slot)
	}
	return nil
}

// Owner returns the node ID owning slot, or "" if unassigned.
func (t *Table) Owner(slot int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if slot < 0 || slot >= SlotCount {
		return ""
	}
	return t.SlotOwner[slot]
}

// NodeAddr returns id's client-facing address, or "" if unknown.
func (t *Table) NodeAddr(id string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n, ok := t.Nodes[id]; ok {
		return n.Addr
	}
	return ""
}

// Redirect decides what a node running as selfID should tell a client
// addressing key: nil if selfID owns the slot outright, rerror.Moved if
// another node owns it, or rerror.Ask if the slot is mid-migration away
// from selfID (spec.md §4.12's MOVED/ASK rules).
func (t *Table) Redirect(selfID, key string) *rerror.Error {
	slot := KeySlot(key)
	t.mu.RLock()
	defer t.mu.RUnlock()

	owner := t.SlotOwner[slot]
	if owner == selfID || owner == "" {
		if target, migrating := t.MigratingTo[slot]; migrating && owner == selfID {
			if addr, ok := t.Nodes[target]; ok {
				return rerror.Ask(slot, addr.Addr)
			}
		}
		return nil
	}
	if addr, ok := t.Nodes[owner]; ok {
		return rerror.Moved(slot, addr.Addr)
	}
	return nil
}

// KeysInSlot scans db for live keys that hash to slot, up to count (0 =
// unlimited), for CLUSTER GETKEYSINSLOT.
func KeysInSlot(keys []string, slot, count int) []string {
	var out []string
	for _, k := range keys {
		if KeySlot(k) == slot {
			out = append(out, k)
			if count > 0 && len(out) >= count {
				break
			}
		}
	}
	return out
}

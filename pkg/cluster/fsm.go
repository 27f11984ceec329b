package cluster

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hashicorp/raft"
)

// Command is one state-change operation in the Raft log, the same
// {Op, Data} envelope the teacher's manager.Command used for node/
// service/task mutations, now carrying slot-table mutations instead.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	opAddNode   = "add_node"
	opRemoveNode = "remove_node"
	opAddSlots  = "add_slots"
	opDelSlots  = "del_slots"
	opSetSlot   = "set_slot"
)

type addSlotsArgs struct {
	NodeID string `json:"node_id"`
	Slots  []int  `json:"slots"`
}

type setSlotArgs struct {
	Slot          int    `json:"slot"`
	Owner         string `json:"owner"`
	MigratingTo   string `json:"migrating_to"`
	ImportingFrom string `json:"importing_from"`
}

// FSM applies committed Raft log entries to a slot Table, the cluster
// counterpart to the teacher's WarrenFSM applying node/service/task
// mutations to its store.
type FSM struct {
	table *Table
}

// NewFSM wraps table as a raft.FSM.
func NewFSM(table *Table) *FSM { return &FSM{table: table} }

// Apply applies one committed log entry.
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("cluster fsm: unmarshal command: %w", err)
	}

	switch cmd.Op {
	case opAddNode:
		var n NodeState
		if err := json.Unmarshal(cmd.Data, &n); err != nil {
			return err
		}
		f.table.AddNode(n)
		return nil

	case opRemoveNode:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		f.table.RemoveNode(id)
		return nil

	case opAddSlots:
		var args addSlotsArgs
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			return err
		}
		return f.table.AddSlots(args.NodeID, args.Slots)

	case opDelSlots:
		var slots []int
		if err := json.Unmarshal(cmd.Data, &slots); err != nil {
			return err
		}
		return f.table.DelSlots(slots)

	case opSetSlot:
		var args setSlotArgs
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			return err
		}
		return f.table.SetSlot(args.Slot, args.Owner, args.MigratingTo, args.ImportingFrom)

	default:
		return fmt.Errorf("cluster fsm: unknown op %q", cmd.Op)
	}
}

// Snapshot captures the table's full state for Raft's log-compaction
// cycle, mirroring WarrenSnapshot.Persist's JSON encoding.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	return &fsmSnapshot{table: f.table.snapshotLocked()}, nil
}

// Restore replaces the table's contents from a previously persisted
// snapshot, run when a node restarts or joins and catches up.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var table Table
	if err := json.NewDecoder(rc).Decode(&table); err != nil {
		return fmt.Errorf("cluster fsm: decode snapshot: %w", err)
	}

	f.table.mu.Lock()
	defer f.table.mu.Unlock()
	f.table.Nodes = table.Nodes
	f.table.SlotOwner = table.SlotOwner
	f.table.MigratingTo = table.MigratingTo
	f.table.ImportingFrom = table.ImportingFrom
	if f.table.Nodes == nil {
		f.table.Nodes = make(map[string]*NodeState)
	}
	if f.table.MigratingTo == nil {
		f.table.MigratingTo = make(map[int]string)
	}
	if f.table.ImportingFrom == nil {
		f.table.ImportingFrom = make(map[int]string)
	}
	return nil
}

type fsmSnapshot struct {
	table *Table
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s.table); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *fsmSnapshot) Release() {}

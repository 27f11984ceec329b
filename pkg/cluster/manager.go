package cluster

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/spineldb/spineldb/pkg/clusterstore"
	"github.com/spineldb/spineldb/pkg/log"
)

// Config is a Manager's construction parameters, the cluster-mode
// counterpart to the teacher's manager.Config.
type Config struct {
	NodeID     string // Raft server ID; also the cluster node ID
	RaftAddr   string // host:port the Raft transport binds and advertises
	ClientAddr string // host:port clients are redirected to via MOVED/ASK
	DataDir    string
}

// Manager owns this node's Raft instance and the slot Table it drives,
// the cluster counterpart to the teacher's Manager owning Raft-backed
// orchestration state. Unlike the teacher, a Manager here has no DNS
// server, CA, or container runtime to start — CLUSTER mode only
// replicates the slot/node table.
type Manager struct {
	cfg   Config
	table *Table
	fsm   *FSM
	raft  *raft.Raft
	store *clusterstore.Store

	adminLn net.Listener
}

// NewManager builds a Manager around a fresh Table; call Bootstrap or
// Join to actually start the Raft instance.
func NewManager(cfg Config, store *clusterstore.Store) *Manager {
	table := NewTable()
	return &Manager{cfg: cfg, table: table, fsm: NewFSM(table), store: store}
}

// Table returns the live slot/node table (read-heavy callers like CLUSTER
// NODES/SLOTS and the command executor's MOVED/ASK check use this
// directly; only FSM.Apply, reached through Manager.apply, mutates it).
func (m *Manager) Table() *Table { return m.table }

// NodeID returns this node's Raft server ID / cluster node ID.
func (m *Manager) NodeID() string { return m.cfg.NodeID }

func (m *Manager) raftConfig() *raft.Config {
	c := raft.DefaultConfig()
	c.LocalID = raft.ServerID(m.cfg.NodeID)
	// Matches the teacher's LAN-tuned timeouts (manager.go's Bootstrap):
	// faster failure detection than hashicorp/raft's WAN-oriented
	// defaults, since CLUSTER mode targets same-datacenter deployments.
	c.HeartbeatTimeout = 500 * time.Millisecond
	c.ElectionTimeout = 500 * time.Millisecond
	c.CommitTimeout = 50 * time.Millisecond
	c.LeaderLeaseTimeout = 250 * time.Millisecond
	return c
}

func (m *Manager) newRaft() (*raft.Raft, error) {
	addr, err := net.ResolveTCPAddr("tcp", m.cfg.RaftAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve raft addr: %w", err)
	}
	transport, err := raft.NewTCPTransport(m.cfg.RaftAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raft transport: %w", err)
	}
	snapshotStore, err := raft.NewFileSnapshotStore(m.cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raft snapshot store: %w", err)
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(m.cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(m.cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("raft stable store: %w", err)
	}
	return raft.NewRaft(m.raftConfig(), m.fsm, logStore, stableStore, snapshotStore, transport)
}

// Bootstrap starts a brand-new single-node cluster with this node as the
// only (leader) member, mirroring the teacher's Manager.Bootstrap.
func (m *Manager) Bootstrap() error {
	r, err := m.newRaft()
	if err != nil {
		return err
	}
	m.raft = r

	cfg := raft.Configuration{Servers: []raft.Server{{
		ID:      raft.ServerID(m.cfg.NodeID),
		Address: raft.ServerAddress(m.cfg.RaftAddr),
	}}}
	if err := m.raft.BootstrapCluster(cfg).Error(); err != nil {
		return fmt.Errorf("bootstrap cluster: %w", err)
	}

	m.table.AddNode(NodeState{ID: m.cfg.NodeID, Addr: m.cfg.ClientAddr, RaftAddr: m.cfg.RaftAddr})
	go m.serveAdmin()
	return nil
}

// Join starts this node's Raft instance and asks the cluster reachable
// at leaderAdminAddr (a running node's admin-join listener, started by
// serveAdmin) to add it as a voter, the cluster-mode replacement for the
// teacher's RPC-based Manager.Join/client.JoinCluster flow — simplified
// to a single-line TCP request/response since there is no gRPC service
// layer in this tree.
func (m *Manager) Join(leaderAdminAddr string) error {
	r, err := m.newRaft()
	if err != nil {
		return err
	}
	m.raft = r

	conn, err := net.DialTimeout("tcp", leaderAdminAddr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial leader %s: %w", leaderAdminAddr, err)
	}
	defer conn.Close()

	fmt.Fprintf(conn, "JOIN %s %s %s\n", m.cfg.NodeID, m.cfg.RaftAddr, m.cfg.ClientAddr)
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read join response: %w", err)
	}
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "OK") {
		return fmt.Errorf("join rejected: %s", line)
	}

	log.Info("joined cluster via " + leaderAdminAddr)
	go m.serveAdmin()
	return nil
}

// serveAdmin runs the minimal join protocol: a newline-terminated
// "JOIN id raftAddr clientAddr" request is answered with "OK\n" once
// raft.AddVoter commits, or "ERR message\n" on failure. Only the current
// Raft leader can usefully accept joins; a follower replies ERR with the
// leader's address so the caller can retry there.
func (m *Manager) serveAdmin() {
	ln, err := net.Listen("tcp", m.cfg.RaftAddr[:strings.LastIndex(m.cfg.RaftAddr, ":")]+":0")
	if err != nil {
		log.Errorf("cluster admin listener: %v", err)
		return
	}
	m.adminLn = ln
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go m.handleAdminConn(conn)
	}
}

func (m *Manager) handleAdminConn(conn net.Conn) {
	defer conn.Close()
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}
	fields := strings.Fields(line)
	if len(fields) != 4 || fields[0] != "JOIN" {
		fmt.Fprintf(conn, "ERR malformed join request\n")
		return
	}
	if m.raft.State() != raft.Leader {
		fmt.Fprintf(conn, "ERR not leader, try %s\n", m.raft.Leader())
		return
	}
	nodeID, raftAddr, clientAddr := fields[1], fields[2], fields[3]
	if err := m.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(raftAddr), 0, 10*time.Second).Error(); err != nil {
		fmt.Fprintf(conn, "ERR %s\n", err)
		return
	}
	if err := m.Apply(opAddNode, NodeState{ID: nodeID, Addr: clientAddr, RaftAddr: raftAddr}); err != nil {
		fmt.Fprintf(conn, "ERR %s\n", err)
		return
	}
	fmt.Fprintf(conn, "OK\n")
}

// AdminAddr returns the address other nodes should dial to request a
// join, or "" if this node hasn't started serving admin requests yet.
func (m *Manager) AdminAddr() string {
	if m.adminLn == nil {
		return ""
	}
	return m.adminLn.Addr().String()
}

// IsLeader reports whether this node currently holds the Raft leadership.
func (m *Manager) IsLeader() bool { return m.raft != nil && m.raft.State() == raft.Leader }

// LeaderAddr returns the current Raft leader's address, if known.
func (m *Manager) LeaderAddr() string {
	if m.raft == nil {
		return ""
	}
	return string(m.raft.Leader())
}

// apply submits a Command to the Raft log and waits for it to commit,
// mirroring the teacher's Manager.Apply.
func (m *Manager) apply(op string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	cmd := Command{Op: op, Data: payload}
	buf, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	future := m.raft.Apply(buf, 5*time.Second)
	if err := future.Error(); err != nil {
		return err
	}
	if fsmErr, ok := future.Response().(error); ok && fsmErr != nil {
		return fsmErr
	}
	return nil
}

// Apply is the exported form of apply; handleAdminConn uses it to
// register a joining node's NodeState through Raft.
func (m *Manager) Apply(op string, data any) error { return m.apply(op, data) }

// AddSlots proposes a slot-ownership change through Raft.
func (m *Manager) AddSlots(nodeID string, slots []int) error {
	return m.apply(opAddSlots, addSlotsArgs{NodeID: nodeID, Slots: slots})
}

// DelSlots proposes unassigning slots through Raft.
func (m *Manager) DelSlots(slots []int) error {
	return m.apply(opDelSlots, slots)
}

// SetSlot proposes a single-slot ownership/migration-state change.
func (m *Manager) SetSlot(slot int, owner, migratingTo, importingFrom string) error {
	return m.apply(opSetSlot, setSlotArgs{Slot: slot, Owner: owner, MigratingTo: migratingTo, ImportingFrom: importingFrom})
}

// ForgetNode proposes removing a node from the roster.
func (m *Manager) ForgetNode(nodeID string) error {
	return m.apply(opRemoveNode, nodeID)
}

// PersistTable saves the current slot/node table via pkg/clusterstore,
// the nodes.conf-equivalent durability spec.md §4.12 calls for between
// restarts (Raft's own log/snapshot already gives it replication; this
// is the local rehydration path a node too uses before Raft has
// delivered a snapshot post-restart).
func (m *Manager) PersistTable() error {
	if m.store == nil {
		return nil
	}
	return m.store.SaveCluster(m.table.Clone())
}
